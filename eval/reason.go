package eval

import "encoding/json"

// Kind enumerates the reason an evaluation produced its result.
type Kind string

const (
	KindOff               Kind = "OFF"
	KindFallthrough       Kind = "FALLTHROUGH"
	KindTargetMatch       Kind = "TARGET_MATCH"
	KindRuleMatch         Kind = "RULE_MATCH"
	KindPrerequisiteFail  Kind = "PREREQUISITE_FAILED"
	KindError             Kind = "ERROR"
)

// ErrorKind enumerates the failure category for a KindError reason.
type ErrorKind string

const (
	ErrorClientNotReady   ErrorKind = "CLIENT_NOT_READY"
	ErrorFlagNotFound     ErrorKind = "FLAG_NOT_FOUND"
	ErrorMalformedFlag    ErrorKind = "MALFORMED_FLAG"
	ErrorUserNotSpecified ErrorKind = "USER_NOT_SPECIFIED"
	ErrorWrongType        ErrorKind = "WRONG_TYPE"
	ErrorException        ErrorKind = "EXCEPTION"
)

// BigSegmentsStatus describes the freshness of the big-segment membership data consulted during
// an evaluation, surfaced on the evaluation reason per §4.1.1/§4.5.
type BigSegmentsStatus string

const (
	BigSegmentsHealthy      BigSegmentsStatus = "HEALTHY"
	BigSegmentsStale        BigSegmentsStatus = "STALE"
	BigSegmentsStoreError   BigSegmentsStatus = "STORE_ERROR"
	BigSegmentsNotConfigured BigSegmentsStatus = "NOT_CONFIGURED"
)

// Reason is the full explanation of how an evaluation reached its result.
type Reason struct {
	Kind                Kind
	RuleIndex           int
	RuleID              string
	PrerequisiteKey     string
	ErrorKind           ErrorKind
	InExperiment        bool
	BigSegmentsStatus    BigSegmentsStatus
}

// MarshalJSON renders only the fields relevant to the reason's Kind, matching the wire shape
// event payloads and the variation-detail API expose (spec §4.4/§6).
func (r Reason) MarshalJSON() ([]byte, error) {
	m := map[string]any{"kind": r.Kind}
	switch r.Kind {
	case KindRuleMatch:
		m["ruleIndex"] = r.RuleIndex
		if r.RuleID != "" {
			m["ruleId"] = r.RuleID
		}
	case KindPrerequisiteFail:
		m["prerequisiteKey"] = r.PrerequisiteKey
	case KindError:
		m["errorKind"] = r.ErrorKind
	}
	if r.InExperiment {
		m["inExperiment"] = true
	}
	if r.BigSegmentsStatus != "" {
		m["bigSegmentsStatus"] = r.BigSegmentsStatus
	}
	return json.Marshal(m)
}

func NewOffReason() Reason         { return Reason{Kind: KindOff} }
func NewFallthroughReason(inExperiment bool) Reason {
	return Reason{Kind: KindFallthrough, InExperiment: inExperiment}
}
func NewTargetMatchReason() Reason { return Reason{Kind: KindTargetMatch} }
func NewRuleMatchReason(index int, id string, inExperiment bool) Reason {
	return Reason{Kind: KindRuleMatch, RuleIndex: index, RuleID: id, InExperiment: inExperiment}
}
func NewPrerequisiteFailedReason(key string) Reason {
	return Reason{Kind: KindPrerequisiteFail, PrerequisiteKey: key}
}
func NewErrorReason(kind ErrorKind) Reason { return Reason{Kind: KindError, ErrorKind: kind} }

// WithBigSegmentsStatus returns a copy of the reason annotated with a big-segments status.
func (r Reason) WithBigSegmentsStatus(status BigSegmentsStatus) Reason {
	r.BigSegmentsStatus = status
	return r
}
