// Package flagstate holds the result of Client.AllFlagsState: a snapshot of every flag's
// evaluation result for one context, suitable for bootstrapping a client-side SDK.
package flagstate

import (
	"encoding/json"

	"github.com/flagbridge/go-server-sdk/eval"
	"github.com/flagbridge/go-server-sdk/flagvalue"
)

// FlagState is one flag's evaluation result and metadata at the time AllFlagsState was called.
type FlagState struct {
	Value                flagvalue.Value
	Variation            int
	HasVariation         bool
	Version              int
	Reason               eval.Reason
	HasReason            bool
	TrackEvents          bool
	TrackReason          bool
	DebugEventsUntilDate int64
}

// AllFlags is a snapshot of every flag's state for one context. Marshal it to JSON to get the
// bootstrap payload a client-side SDK expects ($flagsState / $valid alongside the flat values).
type AllFlags struct {
	flags map[string]FlagState
	order []string
	valid bool
}

// Options controls what AllFlagsState includes.
type Options struct {
	ClientSideOnly             bool
	WithReasons                bool
	DetailsOnlyForTrackedFlags bool
}

// Builder accumulates flags into an AllFlags snapshot.
type Builder struct {
	state AllFlags
	opts  Options
}

// NewBuilder creates a Builder. An invalid (empty, not-ok) snapshot can be obtained by never
// calling AddFlag and calling Build with valid set false via NewInvalid instead.
func NewBuilder(opts Options) *Builder {
	return &Builder{
		state: AllFlags{flags: map[string]FlagState{}, valid: true},
		opts:  opts,
	}
}

// NewInvalid returns an AllFlags snapshot representing a failed AllFlagsState call (offline, or
// the data store was unavailable).
func NewInvalid() AllFlags {
	return AllFlags{valid: false}
}

// AddFlag records one flag's state, applying the DetailsOnlyForTrackedFlags policy to the reason.
func (b *Builder) AddFlag(key string, fs FlagState) *Builder {
	if b.opts.DetailsOnlyForTrackedFlags && !fs.TrackEvents && fs.DebugEventsUntilDate == 0 {
		fs.HasReason = false
	}
	if !b.opts.WithReasons {
		fs.HasReason = false
	}
	if _, exists := b.state.flags[key]; !exists {
		b.state.order = append(b.state.order, key)
	}
	b.state.flags[key] = fs
	return b
}

// Build returns the accumulated AllFlags snapshot.
func (b *Builder) Build() AllFlags {
	return b.state
}

// IsValid reports whether AllFlagsState succeeded.
func (a AllFlags) IsValid() bool { return a.valid }

// GetFlag looks up one flag's recorded state.
func (a AllFlags) GetFlag(key string) (FlagState, bool) {
	fs, ok := a.flags[key]
	return fs, ok
}

// ToValuesMap returns a plain map of flag key to evaluated value.
func (a AllFlags) ToValuesMap() map[string]flagvalue.Value {
	m := make(map[string]flagvalue.Value, len(a.flags))
	for k, v := range a.flags {
		m[k] = v.Value
	}
	return m
}

// MarshalJSON produces the bootstrap payload: flat key/value pairs for every flag, plus a
// "$flagsState" object with per-flag metadata and a "$valid" flag.
func (a AllFlags) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(a.flags)+2)
	states := make(map[string]any, len(a.flags))
	for _, key := range a.order {
		fs := a.flags[key]
		m[key] = fs.Value
		detail := map[string]any{"version": fs.Version}
		if fs.HasVariation {
			detail["variation"] = fs.Variation
		}
		if fs.HasReason {
			detail["reason"] = fs.Reason
		}
		if fs.TrackEvents {
			detail["trackEvents"] = true
		}
		if fs.DebugEventsUntilDate > 0 {
			detail["debugEventsUntilDate"] = fs.DebugEventsUntilDate
		}
		states[key] = detail
	}
	m["$valid"] = a.valid
	m["$flagsState"] = states
	return json.Marshal(m)
}
