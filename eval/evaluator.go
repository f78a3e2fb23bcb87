// Package eval implements the pure flag-evaluation decision procedure: targets, rules,
// prerequisites, clauses, segments, rollouts, and experiments, as specified in §4.1.
package eval

import (
	"crypto/sha1" //nolint:gosec // bucketing hash is not a security boundary
	"encoding/hex"
	"math/rand"
	"strconv"

	"github.com/flagbridge/go-server-sdk/evalcontext"
	"github.com/flagbridge/go-server-sdk/flagmodel"
	"github.com/flagbridge/go-server-sdk/flagvalue"
)

// maxSegmentRecursionDepth bounds segment-references-segment recursion (§4.1.1); beyond this the
// evaluation is treated as a malformed-flag error rather than looping indefinitely.
const maxSegmentRecursionDepth = 20

// Detail is the full result of one evaluation: the value, its variation index (-1 if none), and
// the reason it was selected.
type Detail struct {
	Value          flagvalue.Value
	VariationIndex int
	Reason         Reason
}

// IsDefaultValue reports whether no variation was selected (used by prerequisite checks).
func (d Detail) IsDefaultValue() bool { return d.VariationIndex < 0 }

// Evaluator evaluates flags against contexts. It is stateless and safe for concurrent use; all
// state it needs comes from the DataProvider and BigSegmentProvider on each call.
type Evaluator struct {
	data        DataProvider
	bigSegments BigSegmentProvider
}

// NewEvaluator constructs an Evaluator. bigSegments may be nil, in which case any segment
// referencing a big segment reports BigSegmentsNotConfigured and never matches.
func NewEvaluator(data DataProvider, bigSegments BigSegmentProvider) *Evaluator {
	return &Evaluator{data: data, bigSegments: bigSegments}
}

// evalState threads per-call mutable bookkeeping: the prerequisite cycle-detection set, the
// accumulated big-segments status (the "stalest wins" of every segment consulted), and the
// prerequisite event recorder.
type evalState struct {
	visitedFlags    map[string]bool
	visitedSegments map[string]bool
	bigSegStatus    BigSegmentsStatus
	recorder        PrerequisiteEventRecorder
	membershipCache map[string]membershipCacheEntry
	malformed       bool
}

type membershipCacheEntry struct {
	membership BigSegmentMembership
	status     BigSegmentsStatus
}

// Evaluate resolves flagKey against ctx, returning default with an ERROR reason if the context or
// flag is invalid (§4.1 step 1).
func (e *Evaluator) Evaluate(
	flagKey string,
	ctx evalcontext.Context,
	defaultValue flagvalue.Value,
	recorder PrerequisiteEventRecorder,
) Detail {
	if !ctx.IsValid() {
		return Detail{Value: defaultValue, VariationIndex: -1, Reason: NewErrorReason(ErrorUserNotSpecified)}
	}
	flag, ok := e.data.GetFlag(flagKey)
	if !ok || flag == nil {
		return Detail{Value: defaultValue, VariationIndex: -1, Reason: NewErrorReason(ErrorFlagNotFound)}
	}
	st := &evalState{
		visitedFlags:    map[string]bool{},
		visitedSegments: map[string]bool{},
		bigSegStatus:    "",
		recorder:        recorder,
		membershipCache: map[string]membershipCacheEntry{},
	}
	return e.evaluateFlag(flag, ctx, defaultValue, st)
}

// evaluateFlag resolves flag against ctx, then checks whether clause evaluation along the way hit
// the segment-referencing-segment recursion limit (§4.1.1): that condition invalidates whatever
// result was computed, regardless of which branch produced it, and is reported as a flag-level
// ERROR{MALFORMED_FLAG} with the default value rather than any variation.
func (e *Evaluator) evaluateFlag(
	flag *flagmodel.FeatureFlag,
	ctx evalcontext.Context,
	defaultValue flagvalue.Value,
	st *evalState,
) Detail {
	detail := e.evaluateFlagRules(flag, ctx, defaultValue, st)
	if st.malformed {
		st.malformed = false
		return e.applyBigSegStatus(Detail{Value: defaultValue, VariationIndex: -1, Reason: NewErrorReason(ErrorMalformedFlag)}, st)
	}
	return detail
}

func (e *Evaluator) evaluateFlagRules(
	flag *flagmodel.FeatureFlag,
	ctx evalcontext.Context,
	defaultValue flagvalue.Value,
	st *evalState,
) Detail {
	if flag.Deleted {
		return Detail{Value: defaultValue, VariationIndex: -1, Reason: NewErrorReason(ErrorFlagNotFound)}
	}
	if !flag.On {
		return e.applyBigSegStatus(e.offResult(flag, defaultValue, NewOffReason()), st)
	}

	if reason, ok := e.checkPrerequisites(flag, ctx, st); !ok {
		if reason.Kind == KindError {
			return e.applyBigSegStatus(Detail{Value: defaultValue, VariationIndex: -1, Reason: reason}, st)
		}
		return e.applyBigSegStatus(e.offResult(flag, defaultValue, reason), st)
	}

	if detail, matched := e.checkTargets(flag, ctx); matched {
		return e.applyBigSegStatus(detail, st)
	}

	for i, rule := range flag.Rules {
		if e.ruleMatches(&rule, ctx, st) {
			inExperiment := rule.VariationOrRollout.Rollout != nil && rule.VariationOrRollout.Rollout.Kind == flagmodel.RolloutKindExperiment
			reason := NewRuleMatchReason(i, rule.ID, false)
			detail := e.resolveVariationOrRollout(flag, rule.VariationOrRollout, ctx, reason, defaultValue)
			if inExperiment {
				detail.Reason.InExperiment = e.isTrackedVariation(rule.VariationOrRollout.Rollout, detail.VariationIndex)
			}
			return e.applyBigSegStatus(detail, st)
		}
	}

	reason := NewFallthroughReason(false)
	detail := e.resolveVariationOrRollout(flag, flag.Fallthrough, ctx, reason, defaultValue)
	if flag.Fallthrough.Rollout != nil && flag.Fallthrough.Rollout.Kind == flagmodel.RolloutKindExperiment {
		detail.Reason.InExperiment = e.isTrackedVariation(flag.Fallthrough.Rollout, detail.VariationIndex)
	}
	return e.applyBigSegStatus(detail, st)
}

func (e *Evaluator) applyBigSegStatus(d Detail, st *evalState) Detail {
	if st.bigSegStatus != "" {
		d.Reason = d.Reason.WithBigSegmentsStatus(st.bigSegStatus)
	}
	return d
}

func (e *Evaluator) isTrackedVariation(r *flagmodel.Rollout, variationIndex int) bool {
	if r == nil {
		return false
	}
	for _, wv := range r.Variations {
		if wv.Variation == variationIndex {
			return !wv.Untracked
		}
	}
	return false
}

func (e *Evaluator) offResult(flag *flagmodel.FeatureFlag, defaultValue flagvalue.Value, reason Reason) Detail {
	if flag.OffVariation == nil {
		return Detail{Value: defaultValue, VariationIndex: -1, Reason: reason}
	}
	return e.variationResult(flag, *flag.OffVariation, reason, defaultValue)
}

func (e *Evaluator) variationResult(flag *flagmodel.FeatureFlag, index int, reason Reason, defaultValue flagvalue.Value) Detail {
	if index < 0 || index >= len(flag.Variations) {
		return Detail{Value: defaultValue, VariationIndex: -1, Reason: NewErrorReason(ErrorMalformedFlag)}
	}
	return Detail{Value: flag.Variations[index], VariationIndex: index, Reason: reason}
}

// checkPrerequisites recursively evaluates each prerequisite in order (§4.1 step 3).
func (e *Evaluator) checkPrerequisites(flag *flagmodel.FeatureFlag, ctx evalcontext.Context, st *evalState) (Reason, bool) {
	if len(flag.Prerequisites) == 0 {
		return Reason{}, true
	}
	if st.visitedFlags[flag.Key] {
		return NewErrorReason(ErrorMalformedFlag), false
	}
	st.visitedFlags[flag.Key] = true
	defer delete(st.visitedFlags, flag.Key)

	for _, prereq := range flag.Prerequisites {
		prereqFlag, ok := e.data.GetFlag(prereq.Key)
		if !ok || prereqFlag == nil || prereqFlag.Deleted {
			return NewPrerequisiteFailedReason(prereq.Key), false
		}

		prereqDetail := e.evaluateFlag(prereqFlag, ctx, flagvalue.Null(), st)
		ok2 := prereqFlag.On && !prereqDetail.IsDefaultValue() && prereqDetail.VariationIndex == prereq.Variation

		if st.recorder != nil && e.shouldRecordPrerequisiteEvent(flag, prereqFlag) {
			st.recorder(PrerequisiteEvent{PrerequisiteOf: flag.Key, Flag: prereqFlag, Detail: prereqDetail})
		}

		if !ok2 {
			return NewPrerequisiteFailedReason(prereq.Key), false
		}
	}
	return Reason{}, true
}

func (e *Evaluator) shouldRecordPrerequisiteEvent(topLevel, prereq *flagmodel.FeatureFlag) bool {
	if prereq.TrackEvents || prereq.DebugEventsUntilDate != nil {
		return true
	}
	return topLevel.ClientSideAvailability.UsingEnvironmentID
}

// checkTargets checks context-kind targets first, then legacy plain targets (§4.1 step 4).
func (e *Evaluator) checkTargets(flag *flagmodel.FeatureFlag, ctx evalcontext.Context) (Detail, bool) {
	for _, t := range flag.ContextTargets {
		single, ok := ctx.IndividualContext(t.ContextKind)
		if !ok {
			continue
		}
		if t.Values[single.Key()] {
			return e.variationResult(flag, t.Variation, NewTargetMatchReason(), flagvalue.Null()), true
		}
	}
	for _, t := range flag.Targets {
		single, ok := ctx.IndividualContext(evalcontext.DefaultKind)
		if !ok {
			continue
		}
		if t.Values[single.Key()] {
			return e.variationResult(flag, t.Variation, NewTargetMatchReason(), flagvalue.Null()), true
		}
	}
	return Detail{}, false
}

func (e *Evaluator) ruleMatches(rule *flagmodel.FlagRule, ctx evalcontext.Context, st *evalState) bool {
	for i := range rule.Clauses {
		if !e.clauseMatches(&rule.Clauses[i], ctx, st) {
			return false
		}
	}
	return true
}

func (e *Evaluator) clauseMatches(clause *flagmodel.Clause, ctx evalcontext.Context, st *evalState) bool {
	if clause.Op == flagmodel.OperatorSegmentMatch {
		matched := false
		for _, v := range clause.Values {
			if v.Type() != flagvalue.StringType {
				continue
			}
			if e.segmentMatches(v.StringValue(), ctx, st) {
				matched = true
				break
			}
		}
		return maybeNegate(clause, matched)
	}
	return clauseMatchesNoSegments(clause, ctx)
}

func clauseMatchesNoSegments(clause *flagmodel.Clause, ctx evalcontext.Context) bool {
	kind := clause.ContextKind
	if kind == "" {
		kind = evalcontext.DefaultKind
	}
	single, ok := ctx.IndividualContext(kind)
	if !ok {
		return maybeNegate(clause, false)
	}

	var val flagvalue.Value
	if clause.Attribute == "kind" {
		val = flagvalue.String(single.Kind())
	} else {
		val = single.GetValueForRef(evalcontext.NewAttrRef(clause.Attribute))
	}
	if val.IsNull() {
		return maybeNegate(clause, false)
	}

	fn := flagmodel.OperatorFn(clause.Op)
	if val.Type() == flagvalue.ArrayType {
		for i := 0; i < val.Count(); i++ {
			if matchAny(fn, val.GetByIndex(i), clause.Values) {
				return maybeNegate(clause, true)
			}
		}
		return maybeNegate(clause, false)
	}
	return maybeNegate(clause, matchAny(fn, val, clause.Values))
}

func matchAny(fn func(flagvalue.Value, flagvalue.Value) bool, val flagvalue.Value, candidates []flagvalue.Value) bool {
	for _, c := range candidates {
		if fn(val, c) {
			return true
		}
	}
	return false
}

func maybeNegate(clause *flagmodel.Clause, matched bool) bool {
	if clause.Negate {
		return !matched
	}
	return matched
}

// segmentMatches implements §4.1.1: include/exclude lists, rules, and the big-segment fallback.
func (e *Evaluator) segmentMatches(segmentKey string, ctx evalcontext.Context, st *evalState) bool {
	if st.visitedSegments[segmentKey] || len(st.visitedSegments) >= maxSegmentRecursionDepth {
		st.malformed = true
		return false
	}
	segment, ok := e.data.GetSegment(segmentKey)
	if !ok || segment == nil || segment.Deleted {
		return false
	}
	st.visitedSegments[segmentKey] = true
	defer delete(st.visitedSegments, segmentKey)

	single, hasDefault := ctx.IndividualContext(evalcontext.DefaultKind)

	for _, ck := range segment.ExcludedContexts {
		if s, ok := ctx.IndividualContext(ck.ContextKind); ok && ck.Values[s.Key()] {
			return false
		}
	}
	if hasDefault && segment.Excluded[single.Key()] {
		return false
	}

	for _, ck := range segment.IncludedContexts {
		if s, ok := ctx.IndividualContext(ck.ContextKind); ok && ck.Values[s.Key()] {
			return true
		}
	}
	if hasDefault && segment.Included[single.Key()] {
		return true
	}

	for _, rule := range segment.Rules {
		if e.segmentRuleMatches(&rule, ctx, segment.Key, segment.Salt, st) {
			return true
		}
	}

	if segment.Unbounded {
		return e.checkBigSegment(segment, ctx, st)
	}
	return false
}

// segmentRuleMatches evaluates one segment rule's clauses, which may themselves reference other
// segments via a segmentMatch clause (§4.1.1); that recursion is guarded by the same
// visitedSegments/maxSegmentRecursionDepth bookkeeping used for the top-level segment.
func (e *Evaluator) segmentRuleMatches(rule *flagmodel.SegmentRule, ctx evalcontext.Context, segmentKey, salt string, st *evalState) bool {
	for i := range rule.Clauses {
		if !e.clauseMatches(&rule.Clauses[i], ctx, st) {
			return false
		}
	}
	if rule.Weight == nil {
		return true
	}
	bucketKind := rule.RolloutContextKind
	if bucketKind == "" {
		bucketKind = evalcontext.DefaultKind
	}
	bucketBy := "key"
	if rule.HasBucketBy {
		bucketBy = rule.BucketBy
	}
	bucket, ok := computeBucket(ctx, bucketKind, bucketBy, segmentKey, salt, nil)
	if !ok {
		return false
	}
	return bucket < float64(*rule.Weight)/100000.0
}

func (e *Evaluator) checkBigSegment(segment *flagmodel.Segment, ctx evalcontext.Context, st *evalState) bool {
	kind := segment.UnboundedContextKind
	if kind == "" {
		kind = evalcontext.DefaultKind
	}
	single, ok := ctx.IndividualContext(kind)
	if !ok {
		return false
	}
	if e.bigSegments == nil {
		st.bigSegStatus = BigSegmentsNotConfigured
		return false
	}
	entry, cached := st.membershipCache[single.Key()]
	if !cached {
		membership, status := e.bigSegments.GetMembership(single.Key())
		entry = membershipCacheEntry{membership: membership, status: status}
		st.membershipCache[single.Key()] = entry
	}
	if worseStatus(entry.status, st.bigSegStatus) {
		st.bigSegStatus = entry.status
	}
	if entry.status == BigSegmentsStoreError || entry.membership == nil {
		return false
	}
	ref := segmentRef(segment)
	included := entry.membership.CheckMembership(ref)
	return included != nil && *included
}

// segmentRef encodes the generation into the membership lookup key, matching the teacher's
// "segmentRef" convention so that a segment's big-segment membership can be versioned.
func segmentRef(s *flagmodel.Segment) string {
	gen := 0
	if s.Generation != nil {
		gen = *s.Generation
	}
	return s.Key + "." + strconv.Itoa(gen)
}

// worseStatus reports whether candidate is a worse (less healthy) status than current, so that
// the evaluation surfaces the worst status seen across every big segment it consulted.
func worseStatus(candidate, current BigSegmentsStatus) bool {
	rank := func(s BigSegmentsStatus) int {
		switch s {
		case BigSegmentsHealthy:
			return 0
		case BigSegmentsStale:
			return 1
		case BigSegmentsNotConfigured:
			return 2
		case BigSegmentsStoreError:
			return 3
		default:
			return -1
		}
	}
	if current == "" {
		return true
	}
	return rank(candidate) > rank(current)
}

func (e *Evaluator) resolveVariationOrRollout(
	flag *flagmodel.FeatureFlag,
	vr flagmodel.VariationOrRollout,
	ctx evalcontext.Context,
	reason Reason,
	defaultValue flagvalue.Value,
) Detail {
	if vr.Variation != nil {
		return e.variationResult(flag, *vr.Variation, reason, defaultValue)
	}
	if vr.Rollout == nil || len(vr.Rollout.Variations) == 0 {
		return Detail{Value: defaultValue, VariationIndex: -1, Reason: NewErrorReason(ErrorMalformedFlag)}
	}
	bucketKind := vr.Rollout.ContextKind
	if bucketKind == "" {
		bucketKind = evalcontext.DefaultKind
	}
	bucketBy := "key"
	if vr.Rollout.HasBucketBy {
		bucketBy = vr.Rollout.BucketBy
	}
	bucket, ok := computeBucket(ctx, bucketKind, bucketBy, flag.Key, flag.Salt, vr.Rollout.Seed)
	if !ok {
		bucket = 0
	}
	var sum float64
	for _, wv := range vr.Rollout.Variations {
		sum += float64(wv.Weight) / 100000.0
		if bucket < sum {
			return e.variationResult(flag, wv.Variation, reason, defaultValue)
		}
	}
	// Rounding absorb: the last variation covers the remainder of the bucket space (§4.1.2 step 5).
	last := vr.Rollout.Variations[len(vr.Rollout.Variations)-1]
	return e.variationResult(flag, last.Variation, reason, defaultValue)
}

// computeBucket implements §4.1.2: resolve bucketBy on the addressed context, stringify it,
// SHA-1 hash it with the seed or salt, and reduce to a float in [0,1).
func computeBucket(ctx evalcontext.Context, contextKind, bucketBy, key, salt string, seed *int) (float64, bool) {
	single, ok := ctx.IndividualContext(contextKind)
	if !ok {
		return 0, false
	}
	var raw flagvalue.Value
	if bucketBy == "key" {
		raw = flagvalue.String(single.Key())
	} else {
		raw = single.GetValueForRef(evalcontext.NewAttrRef(bucketBy))
	}
	if raw.IsNull() {
		return 0, true
	}
	str, ok := evalcontext.CanonicalKeyForBucketing(raw)
	if !ok {
		return 0, true
	}

	var input string
	if seed != nil {
		input = strconv.Itoa(*seed) + "." + str
	} else {
		input = key + "." + salt + "." + str
	}

	h := sha1.Sum([]byte(input)) //nolint:gosec
	hexStr := hex.EncodeToString(h[:])[:15]
	intVal, err := strconv.ParseUint(hexStr, 16, 64)
	if err != nil {
		return 0, false
	}
	const longScale = float64(0xFFFFFFFFFFFFFFF)
	return float64(intVal) / longScale, true
}

// ShouldSampleEvent applies a flag's sampling ratio: emit with probability 1/ratio (§4.1.2 step 6).
func ShouldSampleEvent(ratio int) bool {
	if ratio <= 1 {
		return true
	}
	return rand.Intn(ratio) == 0 //nolint:gosec // sampling does not need a CSPRNG
}
