package datastore

import (
	"github.com/flagbridge/go-server-sdk/datakinds"
	"github.com/flagbridge/go-server-sdk/flagmodel"
)

// evalProvider adapts a Store to the narrow read interface eval.Evaluator depends on.
type evalProvider struct {
	store Store
}

// NewEvalProvider wraps store so it can be passed to eval.NewEvaluator.
func NewEvalProvider(store Store) *evalProvider {
	return &evalProvider{store: store}
}

func (p *evalProvider) GetFlag(key string) (*flagmodel.FeatureFlag, bool) {
	item, err := p.store.Get(datakinds.Flags, key)
	if err != nil || item.Deleted() {
		return nil, false
	}
	f, ok := item.Data.(*flagmodel.FeatureFlag)
	return f, ok
}

func (p *evalProvider) GetSegment(key string) (*flagmodel.Segment, bool) {
	item, err := p.store.Get(datakinds.Segments, key)
	if err != nil || item.Deleted() {
		return nil, false
	}
	s, ok := item.Data.(*flagmodel.Segment)
	return s, ok
}
