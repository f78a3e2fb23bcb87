package datastore

import (
	"fmt"

	"github.com/flagbridge/go-server-sdk/datakinds"
	"github.com/flagbridge/go-server-sdk/flagmodel"
)

// marshalByKind and unmarshalByKind are the serialized-item boundary a Driver sees: a flag or
// segment crosses as opaque bytes, per the persistent store contract.
func marshalByKind(kind datakinds.Kind, data any) ([]byte, error) {
	switch kind {
	case datakinds.Flags:
		f, ok := data.(*flagmodel.FeatureFlag)
		if !ok {
			return nil, fmt.Errorf("datastore: expected *flagmodel.FeatureFlag, got %T", data)
		}
		return datakinds.MarshalFlag(f)
	case datakinds.Segments:
		s, ok := data.(*flagmodel.Segment)
		if !ok {
			return nil, fmt.Errorf("datastore: expected *flagmodel.Segment, got %T", data)
		}
		return datakinds.MarshalSegment(s)
	default:
		return nil, fmt.Errorf("datastore: unknown kind %q", kind)
	}
}

func unmarshalByKind(kind datakinds.Kind, data []byte) (any, error) {
	switch kind {
	case datakinds.Flags:
		return datakinds.UnmarshalFlag(data)
	case datakinds.Segments:
		return datakinds.UnmarshalSegment(data)
	default:
		return nil, fmt.Errorf("datastore: unknown kind %q", kind)
	}
}
