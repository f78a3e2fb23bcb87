package datakinds

import (
	"encoding/json"
	"fmt"

	"github.com/flagbridge/go-server-sdk/flagmodel"
	"github.com/flagbridge/go-server-sdk/flagvalue"
)

// UnmarshalFlag parses one flag's JSON representation.
func UnmarshalFlag(data []byte) (*flagmodel.FeatureFlag, error) {
	var jf jsonFlag
	if err := json.Unmarshal(data, &jf); err != nil {
		return nil, fmt.Errorf("flag: %w", err)
	}
	f := &flagmodel.FeatureFlag{
		Key:                    jf.Key,
		Version:                jf.Version,
		On:                     jf.On,
		OffVariation:           jf.OffVariation,
		Salt:                   jf.Salt,
		TrackEvents:            jf.TrackEvents,
		TrackEventsFallthrough: jf.TrackEventsFallthrough,
		DebugEventsUntilDate:   jf.DebugEventsUntilDate,
		ExcludeFromSummaries:   jf.ExcludeFromSummaries,
		Deleted:                jf.Deleted,
	}
	if jf.SamplingRatio != nil {
		f.SamplingRatio = *jf.SamplingRatio
	}
	if jf.Migration != nil {
		f.Migration = &flagmodel.MigrationSettings{CheckRatio: jf.Migration.CheckRatio}
	}
	for _, raw := range jf.Variations {
		f.Variations = append(f.Variations, mustValue(raw))
	}
	f.Fallthrough = toVariationOrRollout(jf.Fallthrough)
	for _, t := range jf.Targets {
		f.Targets = append(f.Targets, toTarget(t))
	}
	for _, t := range jf.ContextTargets {
		f.ContextTargets = append(f.ContextTargets, toTarget(t))
	}
	for _, p := range jf.Prerequisites {
		f.Prerequisites = append(f.Prerequisites, flagmodel.Prerequisite{Key: p.Key, Variation: p.Variation})
	}
	for _, r := range jf.Rules {
		f.Rules = append(f.Rules, toFlagRule(r))
	}
	return f, nil
}

// UnmarshalSegment parses one segment's JSON representation.
func UnmarshalSegment(data []byte) (*flagmodel.Segment, error) {
	var js jsonSegment
	if err := json.Unmarshal(data, &js); err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}
	s := &flagmodel.Segment{
		Key:                  js.Key,
		Version:              js.Version,
		Salt:                 js.Salt,
		Unbounded:            js.Unbounded,
		UnboundedContextKind: js.UnboundedContextKind,
		Generation:           js.Generation,
		Deleted:              js.Deleted,
		Included:             toSet(js.Included),
		Excluded:             toSet(js.Excluded),
	}
	for _, ck := range js.IncludedContexts {
		s.IncludedContexts = append(s.IncludedContexts, flagmodel.ContextKeys{ContextKind: ck.ContextKind, Values: toSet(ck.Values)})
	}
	for _, ck := range js.ExcludedContexts {
		s.ExcludedContexts = append(s.ExcludedContexts, flagmodel.ContextKeys{ContextKind: ck.ContextKind, Values: toSet(ck.Values)})
	}
	for _, r := range js.Rules {
		rule := flagmodel.SegmentRule{ID: r.ID, Weight: r.Weight, RolloutContextKind: r.RolloutContextKind}
		if r.BucketBy != nil {
			rule.HasBucketBy = true
			rule.BucketBy = *r.BucketBy
		}
		for _, c := range r.Clauses {
			rule.Clauses = append(rule.Clauses, toClause(c))
		}
		s.Rules = append(s.Rules, rule)
	}
	return s, nil
}

// MarshalFlag serializes a flag back to its wire representation (used by the persistent store
// driver boundary, §4.2, which treats items as opaque bytes).
func MarshalFlag(f *flagmodel.FeatureFlag) ([]byte, error) {
	jf := jsonFlag{
		Key: f.Key, Version: f.Version, On: f.On, OffVariation: f.OffVariation, Salt: f.Salt,
		TrackEvents: f.TrackEvents, TrackEventsFallthrough: f.TrackEventsFallthrough,
		DebugEventsUntilDate: f.DebugEventsUntilDate, ExcludeFromSummaries: f.ExcludeFromSummaries,
		Deleted: f.Deleted, Fallthrough: fromVariationOrRollout(f.Fallthrough),
	}
	if f.SamplingRatio > 0 {
		jf.SamplingRatio = &f.SamplingRatio
	}
	if f.Migration != nil {
		jf.Migration = &jsonMigration{CheckRatio: f.Migration.CheckRatio}
	}
	for _, v := range f.Variations {
		raw, err := v.MarshalJSON()
		if err != nil {
			return nil, err
		}
		jf.Variations = append(jf.Variations, raw)
	}
	for _, t := range f.Targets {
		jf.Targets = append(jf.Targets, fromTarget(t))
	}
	for _, t := range f.ContextTargets {
		jf.ContextTargets = append(jf.ContextTargets, fromTarget(t))
	}
	for _, p := range f.Prerequisites {
		jf.Prerequisites = append(jf.Prerequisites, jsonPrerequisite{Key: p.Key, Variation: p.Variation})
	}
	for _, r := range f.Rules {
		jf.Rules = append(jf.Rules, fromFlagRule(r))
	}
	return json.Marshal(jf)
}

// MarshalSegment serializes a segment back to its wire representation.
func MarshalSegment(s *flagmodel.Segment) ([]byte, error) {
	js := jsonSegment{
		Key: s.Key, Version: s.Version, Salt: s.Salt, Unbounded: s.Unbounded,
		UnboundedContextKind: s.UnboundedContextKind, Generation: s.Generation, Deleted: s.Deleted,
		Included: fromSet(s.Included), Excluded: fromSet(s.Excluded),
	}
	for _, ck := range s.IncludedContexts {
		js.IncludedContexts = append(js.IncludedContexts, jsonContextKeys{ContextKind: ck.ContextKind, Values: fromSet(ck.Values)})
	}
	for _, ck := range s.ExcludedContexts {
		js.ExcludedContexts = append(js.ExcludedContexts, jsonContextKeys{ContextKind: ck.ContextKind, Values: fromSet(ck.Values)})
	}
	for _, r := range s.Rules {
		jr := jsonSegmentRule{ID: r.ID, Weight: r.Weight, RolloutContextKind: r.RolloutContextKind}
		if r.HasBucketBy {
			jr.BucketBy = &r.BucketBy
		}
		for _, c := range r.Clauses {
			jr.Clauses = append(jr.Clauses, fromClause(c))
		}
		js.Rules = append(js.Rules, jr)
	}
	return json.Marshal(js)
}

func mustValue(raw json.RawMessage) flagvalue.Value {
	var v flagvalue.Value
	_ = v.UnmarshalJSON(raw)
	return v
}

func toSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

func fromSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func toTarget(t jsonTarget) flagmodel.Target {
	return flagmodel.Target{ContextKind: t.ContextKind, Variation: t.Variation, Values: toSet(t.Values)}
}

func fromTarget(t flagmodel.Target) jsonTarget {
	return jsonTarget{ContextKind: t.ContextKind, Variation: t.Variation, Values: fromSet(t.Values)}
}

func toClause(c jsonClause) flagmodel.Clause {
	clause := flagmodel.Clause{ContextKind: c.ContextKind, Attribute: c.Attribute, Op: flagmodel.Operator(c.Op), Negate: c.Negate}
	for _, raw := range c.Values {
		clause.Values = append(clause.Values, mustValue(raw))
	}
	return clause
}

func fromClause(c flagmodel.Clause) jsonClause {
	jc := jsonClause{ContextKind: c.ContextKind, Attribute: c.Attribute, Op: string(c.Op), Negate: c.Negate}
	for _, v := range c.Values {
		raw, _ := v.MarshalJSON()
		jc.Values = append(jc.Values, raw)
	}
	return jc
}

func toVariationOrRollout(jv jsonVariationOrRollout) flagmodel.VariationOrRollout {
	vr := flagmodel.VariationOrRollout{Variation: jv.Variation}
	if jv.Rollout != nil {
		vr.Rollout = toRollout(jv.Rollout)
	}
	return vr
}

func fromVariationOrRollout(vr flagmodel.VariationOrRollout) jsonVariationOrRollout {
	jv := jsonVariationOrRollout{Variation: vr.Variation}
	if vr.Rollout != nil {
		jv.Rollout = fromRollout(vr.Rollout)
	}
	return jv
}

func toRollout(jr *jsonRollout) *flagmodel.Rollout {
	kind := flagmodel.RolloutKindRollout
	if jr.Kind == string(flagmodel.RolloutKindExperiment) {
		kind = flagmodel.RolloutKindExperiment
	}
	r := &flagmodel.Rollout{Kind: kind, ContextKind: jr.ContextKind, Seed: jr.Seed}
	if jr.BucketBy != nil {
		r.HasBucketBy = true
		r.BucketBy = *jr.BucketBy
	}
	for _, wv := range jr.Variations {
		r.Variations = append(r.Variations, flagmodel.WeightedVariation{Variation: wv.Variation, Weight: wv.Weight, Untracked: wv.Untracked})
	}
	return r
}

func fromRollout(r *flagmodel.Rollout) *jsonRollout {
	jr := &jsonRollout{Kind: string(r.Kind), ContextKind: r.ContextKind, Seed: r.Seed}
	if r.HasBucketBy {
		jr.BucketBy = &r.BucketBy
	}
	for _, wv := range r.Variations {
		jr.Variations = append(jr.Variations, jsonWeightedVariation{Variation: wv.Variation, Weight: wv.Weight, Untracked: wv.Untracked})
	}
	return jr
}

func toFlagRule(jr jsonFlagRule) flagmodel.FlagRule {
	rule := flagmodel.FlagRule{ID: jr.ID, TrackEvents: jr.TrackEvents}
	for _, c := range jr.Clauses {
		rule.Clauses = append(rule.Clauses, toClause(c))
	}
	rule.VariationOrRollout = toVariationOrRollout(jsonVariationOrRollout{Variation: jr.Variation, Rollout: jr.Rollout})
	return rule
}

func fromFlagRule(r flagmodel.FlagRule) jsonFlagRule {
	jr := jsonFlagRule{ID: r.ID, TrackEvents: r.TrackEvents}
	for _, c := range r.Clauses {
		jr.Clauses = append(jr.Clauses, fromClause(c))
	}
	vr := fromVariationOrRollout(r.VariationOrRollout)
	jr.Variation = vr.Variation
	jr.Rollout = vr.Rollout
	return jr
}
