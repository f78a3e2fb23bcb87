package flagmodel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagbridge/go-server-sdk/flagvalue"
)

const dateStr1 = "2017-12-06T00:00:00.000-07:00"
const dateStr2 = "2017-12-06T00:01:01.000-07:00"
const dateMs1 = 10000000
const dateMs2 = 10000001
const invalidDate = "hey what's this?"

type opTestInfo struct {
	opName      Operator
	userValue   flagvalue.Value
	clauseValue flagvalue.Value
	expected    bool
}

var operatorTests = []opTestInfo{
	// numeric operators
	{OperatorIn, flagvalue.Int(99), flagvalue.Int(99), true},
	{OperatorIn, flagvalue.Float64(99.0001), flagvalue.Float64(99.0001), true},
	{OperatorLessThan, flagvalue.Int(1), flagvalue.Float64(1.99999), true},
	{OperatorLessThan, flagvalue.Float64(1.99999), flagvalue.Int(1), false},
	{OperatorLessThanOrEqual, flagvalue.Int(1), flagvalue.Float64(1), true},
	{OperatorGreaterThan, flagvalue.Int(2), flagvalue.Float64(1.99999), true},
	{OperatorGreaterThan, flagvalue.Float64(1.99999), flagvalue.Int(2), false},
	{OperatorGreaterThanOrEqual, flagvalue.Int(1), flagvalue.Float64(1), true},

	// string operators
	{OperatorIn, flagvalue.String("x"), flagvalue.String("x"), true},
	{OperatorIn, flagvalue.String("x"), flagvalue.String("xyz"), false},
	{OperatorStartsWith, flagvalue.String("xyz"), flagvalue.String("x"), true},
	{OperatorStartsWith, flagvalue.String("x"), flagvalue.String("xyz"), false},
	{OperatorEndsWith, flagvalue.String("xyz"), flagvalue.String("z"), true},
	{OperatorEndsWith, flagvalue.String("z"), flagvalue.String("xyz"), false},
	{OperatorContains, flagvalue.String("xyz"), flagvalue.String("y"), true},
	{OperatorContains, flagvalue.String("y"), flagvalue.String("xyz"), false},

	// mixed strings and numbers never match
	{OperatorIn, flagvalue.String("99"), flagvalue.Int(99), false},
	{OperatorIn, flagvalue.Int(99), flagvalue.String("99"), false},
	{OperatorContains, flagvalue.String("99"), flagvalue.Int(99), false},
	{OperatorLessThanOrEqual, flagvalue.String("99"), flagvalue.Int(99), false},

	// regex
	{OperatorMatches, flagvalue.String("hello world"), flagvalue.String("hello.*rld"), true},
	{OperatorMatches, flagvalue.String("hello world"), flagvalue.String("l+"), true},
	{OperatorMatches, flagvalue.String("hello world"), flagvalue.String("(world|planet)"), true},
	{OperatorMatches, flagvalue.String("hello world"), flagvalue.String("aloha"), false},
	{OperatorMatches, flagvalue.String("hello world"), flagvalue.String("***bad regex"), false},

	// date operators
	{OperatorBefore, flagvalue.String(dateStr1), flagvalue.String(dateStr2), true},
	{OperatorBefore, flagvalue.Int(dateMs1), flagvalue.Int(dateMs2), true},
	{OperatorBefore, flagvalue.String(dateStr2), flagvalue.String(dateStr1), false},
	{OperatorBefore, flagvalue.String(dateStr1), flagvalue.String(dateStr1), false},
	{OperatorBefore, flagvalue.Null(), flagvalue.String(dateStr1), false},
	{OperatorBefore, flagvalue.String(dateStr1), flagvalue.String(invalidDate), false},
	{OperatorAfter, flagvalue.String(dateStr2), flagvalue.String(dateStr1), true},
	{OperatorAfter, flagvalue.Int(dateMs2), flagvalue.Int(dateMs1), true},
	{OperatorAfter, flagvalue.String(dateStr1), flagvalue.String(dateStr2), false},
	{OperatorAfter, flagvalue.Null(), flagvalue.String(dateStr1), false},

	// semver operators
	{OperatorSemVerEqual, flagvalue.String("2.0.0"), flagvalue.String("2.0.0"), true},
	{OperatorSemVerEqual, flagvalue.String("2.0"), flagvalue.String("2.0.0"), true},
	{OperatorSemVerEqual, flagvalue.String("2-rc1"), flagvalue.String("2.0.0-rc1"), true},
	{OperatorSemVerEqual, flagvalue.String("2.0.0"), flagvalue.String("2.0.1"), false},
	{OperatorSemVerLessThan, flagvalue.String("2.0.0"), flagvalue.String("2.0.1"), true},
	{OperatorSemVerLessThan, flagvalue.String("2.0"), flagvalue.String("2.0.1"), true},
	{OperatorSemVerLessThan, flagvalue.String("2.0.1"), flagvalue.String("2.0.0"), false},
	{OperatorSemVerLessThan, flagvalue.String("2.0.1"), flagvalue.String("xbad%ver"), false},
	{OperatorSemVerLessThan, flagvalue.String("2.0.0-rc"), flagvalue.String("2.0.0-rc.beta"), true},
	{OperatorSemVerGreaterThan, flagvalue.String("2.0.1"), flagvalue.String("2.0"), true},
	{OperatorSemVerGreaterThan, flagvalue.String("2.0.0"), flagvalue.String("2.0.1"), false},
	{OperatorSemVerGreaterThan, flagvalue.String("2.0.1"), flagvalue.String("xbad%ver"), false},
	{OperatorSemVerGreaterThan, flagvalue.String("2.0.0-rc.1"), flagvalue.String("2.0.0-rc.0"), true},

	// unrecognized operator never matches
	{Operator("bogus"), flagvalue.String("x"), flagvalue.String("x"), false},
}

func TestAllOperators(t *testing.T) {
	for _, ti := range operatorTests {
		t.Run(fmt.Sprintf("%v %s %v should be %v", ti.userValue, ti.opName, ti.clauseValue, ti.expected), func(t *testing.T) {
			assert.Equal(t, ti.expected, OperatorFn(ti.opName)(ti.userValue, ti.clauseValue))
		})
	}
}

func TestSegmentMatchHasNoOperatorFn(t *testing.T) {
	assert.False(t, OperatorFn(OperatorSegmentMatch)(flagvalue.String("x"), flagvalue.String("x")))
}
