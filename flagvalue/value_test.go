package flagvalue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullValue(t *testing.T) {
	v := Null()
	assert.Equal(t, NullType, v.Type())
	assert.True(t, v.IsNull())
	assert.False(t, v.IsNumber())
	assert.Equal(t, v, Value{})
}

func TestBoolValue(t *testing.T) {
	assert.True(t, Bool(true).BoolValue())
	assert.False(t, Bool(false).BoolValue())
	assert.Equal(t, BoolType, Bool(true).Type())
	assert.False(t, Bool(true).IsNull())
}

func TestIntAndFloatValue(t *testing.T) {
	v := Int(2)
	assert.Equal(t, NumberType, v.Type())
	assert.True(t, v.IsNumber())
	assert.Equal(t, 2, v.IntValue())
	assert.Equal(t, float64(2), v.Float64Value())

	f := Float64(2.75)
	assert.Equal(t, NumberType, f.Type())
	assert.Equal(t, 2, f.IntValue())
	assert.Equal(t, 2.75, f.Float64Value())
}

func TestStringValue(t *testing.T) {
	v := String("x")
	assert.Equal(t, StringType, v.Type())
	assert.Equal(t, "x", v.StringValue())
}

func TestArrayValue(t *testing.T) {
	v := Array(String("a"), String("b"), Int(3))
	assert.Equal(t, ArrayType, v.Type())
	assert.Equal(t, 3, v.Count())
	assert.Equal(t, String("a"), v.GetByIndex(0))
	assert.Equal(t, Int(3), v.GetByIndex(2))
	assert.Equal(t, Null(), v.GetByIndex(99))
	assert.Equal(t, []Value{String("a"), String("b"), Int(3)}, v.AsSlice())
}

func TestArrayAccessorsOnNonArray(t *testing.T) {
	assert.Equal(t, 0, String("x").Count())
	assert.Nil(t, String("x").AsSlice())
	assert.Equal(t, Null(), String("x").GetByIndex(0))
}

func TestObjectValue(t *testing.T) {
	v := Object(map[string]Value{"a": Int(1), "b": String("y")})
	assert.Equal(t, ObjectType, v.Type())
	assert.Equal(t, Int(1), v.GetByKey("a"))
	assert.Equal(t, Null(), v.GetByKey("missing"))
	assert.Equal(t, []string{"a", "b"}, v.Keys())
}

func TestObjectAccessorsOnNonObject(t *testing.T) {
	assert.Equal(t, Null(), Int(1).GetByKey("a"))
	assert.Nil(t, Int(1).Keys())
}

func TestEqual(t *testing.T) {
	assert.True(t, Null().Equal(Null()))
	assert.True(t, Bool(true).Equal(Bool(true)))
	assert.False(t, Bool(true).Equal(Bool(false)))
	assert.True(t, Int(1).Equal(Float64(1.0)))
	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, String("a").Equal(String("b")))
	assert.False(t, Int(1).Equal(String("1")))

	assert.True(t, Array(Int(1), Int(2)).Equal(Array(Int(1), Int(2))))
	assert.False(t, Array(Int(1)).Equal(Array(Int(1), Int(2))))
	assert.False(t, Array(Int(1)).Equal(Array(Int(2))))

	a := Object(map[string]Value{"x": Int(1)})
	b := Object(map[string]Value{"x": Int(1)})
	c := Object(map[string]Value{"x": Int(2)})
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(Object(map[string]Value{"x": Int(1), "y": Int(2)})))
}

func TestMarshalJSON(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		expected string
	}{
		{"null", Null(), "null"},
		{"bool", Bool(true), "true"},
		{"number", Int(3), "3"},
		{"string", String("hi"), `"hi"`},
		{"array", Array(Int(1), Int(2)), "[1,2]"},
		{"object", Object(map[string]Value{"a": Int(1)}), `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.value)
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(b))
		})
	}
}

func TestUnmarshalJSONRoundTrip(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"a":[1,2,"x"],"b":null,"c":true}`), &v))
	assert.Equal(t, ObjectType, v.Type())
	assert.Equal(t, Int(1), v.GetByKey("a").GetByIndex(0))
	assert.Equal(t, String("x"), v.GetByKey("a").GetByIndex(2))
	assert.True(t, v.GetByKey("b").IsNull())
	assert.True(t, v.GetByKey("c").BoolValue())
}

func TestFromInterface(t *testing.T) {
	assert.Equal(t, Null(), FromInterface(nil))
	assert.Equal(t, Bool(true), FromInterface(true))
	assert.Equal(t, Float64(1.5), FromInterface(1.5))
	assert.Equal(t, String("x"), FromInterface("x"))
	assert.Equal(t, Array(Int(1), Int(2)), FromInterface([]interface{}{1.0, 2.0}))
	assert.Equal(t, Object(map[string]Value{"a": Int(1)}), FromInterface(map[string]interface{}{"a": 1.0}))
	// unsupported types fall back to null rather than panicking
	assert.Equal(t, Null(), FromInterface(make(chan int)))
}

func TestCanonicalString(t *testing.T) {
	s, ok := String("foo").CanonicalString()
	assert.True(t, ok)
	assert.Equal(t, "foo", s)

	s, ok = Int(42).CanonicalString()
	assert.True(t, ok)
	assert.Equal(t, "42", s)

	s, ok = Int(-7).CanonicalString()
	assert.True(t, ok)
	assert.Equal(t, "-7", s)

	_, ok = Float64(1.5).CanonicalString()
	assert.False(t, ok)

	_, ok = Bool(true).CanonicalString()
	assert.False(t, ok)
}
