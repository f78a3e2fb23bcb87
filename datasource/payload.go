package datasource

import (
	"encoding/json"

	"github.com/flagbridge/go-server-sdk/datakinds"
	"github.com/flagbridge/go-server-sdk/datastore"
)

// allDataPayload is the full polling response / streaming "put" payload shape (§6): a map of flag
// key to flag JSON, and segment key to segment JSON.
type allDataPayload struct {
	Flags    map[string]json.RawMessage `json:"flags"`
	Segments map[string]json.RawMessage `json:"segments"`
}

func parseAllData(data []byte) ([]datastore.Collection, error) {
	var payload allDataPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, malformedJSONError{inner: err}
	}
	var result []datastore.Collection
	if payload.Flags != nil {
		coll := datastore.Collection{Kind: datakinds.Flags}
		for key, raw := range payload.Flags {
			f, err := datakinds.UnmarshalFlag(raw)
			if err != nil {
				return nil, malformedJSONError{inner: err}
			}
			coll.Items = append(coll.Items, datastore.KeyedItem{Key: key, Item: datastore.Item{Version: f.Version, Data: f}})
		}
		result = append(result, coll)
	}
	if payload.Segments != nil {
		coll := datastore.Collection{Kind: datakinds.Segments}
		for key, raw := range payload.Segments {
			s, err := datakinds.UnmarshalSegment(raw)
			if err != nil {
				return nil, malformedJSONError{inner: err}
			}
			coll.Items = append(coll.Items, datastore.KeyedItem{Key: key, Item: datastore.Item{Version: s.Version, Data: s}})
		}
		result = append(result, coll)
	}
	return result, nil
}

// patchData is the "patch" streaming event payload: one updated flag or segment.
type patchData struct {
	Path string          `json:"path"`
	Data json.RawMessage `json:"data"`
}

// deleteData is the "delete" streaming event payload: a tombstone for one key.
type deleteData struct {
	Path    string `json:"path"`
	Version int    `json:"version"`
}

func parsePatchData(data []byte) (datakinds.Kind, string, datastore.Item, error) {
	var p patchData
	if err := json.Unmarshal(data, &p); err != nil {
		return "", "", datastore.Item{}, malformedJSONError{inner: err}
	}
	kind, key := kindAndKeyFromPath(p.Path)
	if kind == "" {
		return "", "", datastore.Item{}, nil
	}
	var item datastore.Item
	switch kind {
	case datakinds.Flags:
		flag, uerr := datakinds.UnmarshalFlag(p.Data)
		if uerr != nil {
			return "", "", datastore.Item{}, malformedJSONError{inner: uerr}
		}
		item = datastore.Item{Version: flag.Version, Data: flag}
	case datakinds.Segments:
		seg, uerr := datakinds.UnmarshalSegment(p.Data)
		if uerr != nil {
			return "", "", datastore.Item{}, malformedJSONError{inner: uerr}
		}
		item = datastore.Item{Version: seg.Version, Data: seg}
	}
	return kind, key, item, nil
}

func parseDeleteData(data []byte) (datakinds.Kind, string, datastore.Item, error) {
	var d deleteData
	if err := json.Unmarshal(data, &d); err != nil {
		return "", "", datastore.Item{}, malformedJSONError{inner: err}
	}
	kind, key := kindAndKeyFromPath(d.Path)
	if kind == "" {
		return "", "", datastore.Item{}, nil
	}
	return kind, key, datastore.Tombstone(d.Version), nil
}

// kindAndKeyFromPath splits a streaming event path like "/flags/my-flag" into its kind and key.
func kindAndKeyFromPath(path string) (datakinds.Kind, string) {
	const flagsPrefix = "/flags/"
	const segmentsPrefix = "/segments/"
	switch {
	case len(path) > len(flagsPrefix) && path[:len(flagsPrefix)] == flagsPrefix:
		return datakinds.Flags, path[len(flagsPrefix):]
	case len(path) > len(segmentsPrefix) && path[:len(segmentsPrefix)] == segmentsPrefix:
		return datakinds.Segments, path[len(segmentsPrefix):]
	default:
		return "", ""
	}
}
