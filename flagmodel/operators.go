package flagmodel

import (
	"regexp"
	"strings"
	"time"

	"github.com/blang/semver/v4"

	"github.com/flagbridge/go-server-sdk/flagvalue"
)

type opFn func(flagvalue.Value, flagvalue.Value) bool

var versionNumericComponentsRegex = regexp.MustCompile(`^\d+(\.\d+)?(\.\d+)?`)

var allOps = map[Operator]opFn{
	OperatorIn:                 opIn,
	OperatorEndsWith:           opEndsWith,
	OperatorStartsWith:         opStartsWith,
	OperatorMatches:            opMatches,
	OperatorContains:           opContains,
	OperatorLessThan:           opLessThan,
	OperatorLessThanOrEqual:    opLessThanOrEqual,
	OperatorGreaterThan:        opGreaterThan,
	OperatorGreaterThanOrEqual: opGreaterThanOrEqual,
	OperatorBefore:             opBefore,
	OperatorAfter:              opAfter,
	OperatorSemVerEqual:        opSemVerEqual,
	OperatorSemVerLessThan:     opSemVerLessThan,
	OperatorSemVerGreaterThan:  opSemVerGreaterThan,
}

// OperatorFn resolves an operator to its matching function. An unrecognized operator (including
// segmentMatch, which is handled separately by the evaluator) always yields non-match.
func OperatorFn(op Operator) func(flagvalue.Value, flagvalue.Value) bool {
	if fn, ok := allOps[op]; ok {
		return fn
	}
	return opNone
}

func opNone(flagvalue.Value, flagvalue.Value) bool { return false }

func opIn(a, b flagvalue.Value) bool { return a.Equal(b) }

func stringOp(a, b flagvalue.Value, fn func(string, string) bool) bool {
	if a.Type() == flagvalue.StringType && b.Type() == flagvalue.StringType {
		return fn(a.StringValue(), b.StringValue())
	}
	return false
}

func opStartsWith(a, b flagvalue.Value) bool { return stringOp(a, b, strings.HasPrefix) }
func opEndsWith(a, b flagvalue.Value) bool   { return stringOp(a, b, strings.HasSuffix) }
func opContains(a, b flagvalue.Value) bool   { return stringOp(a, b, strings.Contains) }

func opMatches(a, b flagvalue.Value) bool {
	return stringOp(a, b, func(s, pattern string) bool {
		matched, err := regexp.MatchString(pattern, s)
		return err == nil && matched
	})
}

func numericOp(a, b flagvalue.Value, fn func(float64, float64) bool) bool {
	if a.IsNumber() && b.IsNumber() {
		return fn(a.Float64Value(), b.Float64Value())
	}
	return false
}

func opLessThan(a, b flagvalue.Value) bool      { return numericOp(a, b, func(x, y float64) bool { return x < y }) }
func opLessThanOrEqual(a, b flagvalue.Value) bool {
	return numericOp(a, b, func(x, y float64) bool { return x <= y })
}
func opGreaterThan(a, b flagvalue.Value) bool {
	return numericOp(a, b, func(x, y float64) bool { return x > y })
}
func opGreaterThanOrEqual(a, b flagvalue.Value) bool {
	return numericOp(a, b, func(x, y float64) bool { return x >= y })
}

func dateOp(a, b flagvalue.Value, fn func(time.Time, time.Time) bool) bool {
	at, ok := parseDateTime(a)
	if !ok {
		return false
	}
	bt, ok := parseDateTime(b)
	if !ok {
		return false
	}
	return fn(at, bt)
}

func opBefore(a, b flagvalue.Value) bool { return dateOp(a, b, time.Time.Before) }
func opAfter(a, b flagvalue.Value) bool  { return dateOp(a, b, time.Time.After) }

func parseDateTime(v flagvalue.Value) (time.Time, bool) {
	switch v.Type() {
	case flagvalue.StringType:
		if t, err := time.Parse(time.RFC3339Nano, v.StringValue()); err == nil {
			return t.UTC(), true
		}
		return time.Time{}, false
	case flagvalue.NumberType:
		ms := v.Float64Value()
		return time.UnixMilli(int64(ms)).UTC(), true
	default:
		return time.Time{}, false
	}
}

func semVerOp(a, b flagvalue.Value, fn func(semver.Version, semver.Version) bool) bool {
	av, ok := parseSemVer(a)
	if !ok {
		return false
	}
	bv, ok := parseSemVer(b)
	if !ok {
		return false
	}
	return fn(av, bv)
}

func opSemVerEqual(a, b flagvalue.Value) bool {
	return semVerOp(a, b, func(x, y semver.Version) bool { return x.EQ(y) })
}
func opSemVerLessThan(a, b flagvalue.Value) bool {
	return semVerOp(a, b, func(x, y semver.Version) bool { return x.LT(y) })
}
func opSemVerGreaterThan(a, b flagvalue.Value) bool {
	return semVerOp(a, b, func(x, y semver.Version) bool { return x.GT(y) })
}

// parseSemVer parses a loose semver string, filling in missing minor/patch components with zero
// the way the rule language's "abbreviated" semver form requires (e.g. "2" -> "2.0.0").
func parseSemVer(v flagvalue.Value) (semver.Version, bool) {
	if v.Type() != flagvalue.StringType {
		return semver.Version{}, false
	}
	s := v.StringValue()
	if parsed, err := semver.Parse(s); err == nil {
		return parsed, true
	}
	match := versionNumericComponentsRegex.FindStringSubmatch(s)
	if match == nil {
		return semver.Version{}, false
	}
	fixed := match[0]
	for i := 1; i < len(match); i++ {
		if match[i] == "" {
			fixed += ".0"
		}
	}
	fixed += s[len(match[0]):]
	parsed, err := semver.Parse(fixed)
	if err != nil {
		return semver.Version{}, false
	}
	return parsed, true
}
