package evalcontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagbridge/go-server-sdk/flagvalue"
)

func TestBuilderRequiresKey(t *testing.T) {
	ctx := NewBuilder("").Build()
	assert.False(t, ctx.IsValid())
	assert.Error(t, ctx.Err())
}

func TestBuilderDefaultsToUserKind(t *testing.T) {
	ctx := NewBuilder("a").Build()
	require.True(t, ctx.IsValid())
	assert.Equal(t, DefaultKind, ctx.Kind())
	assert.Equal(t, "a", ctx.Key())
	assert.False(t, ctx.Multiple())
}

func TestBuilderRejectsInvalidKind(t *testing.T) {
	ctx := NewBuilder("a").Kind("multi").Build()
	assert.False(t, ctx.IsValid())

	ctx = NewBuilder("a").Kind("has space").Build()
	assert.False(t, ctx.IsValid())
}

func TestBuilderRejectsReservedAttributeNames(t *testing.T) {
	for _, name := range []string{"kind", "key", "anonymous", "_meta"} {
		ctx := NewBuilder("a").SetAttribute(name, flagvalue.Bool(true)).Build()
		assert.False(t, ctx.IsValid(), "expected %q to be rejected as a reserved attribute", name)
	}
}

func TestGetValueBuiltins(t *testing.T) {
	ctx := NewBuilder("my-key").Kind("org").Name("Acme").Anonymous(true).Build()
	require.True(t, ctx.IsValid())
	assert.Equal(t, flagvalue.String("org"), ctx.GetValue("kind"))
	assert.Equal(t, flagvalue.String("my-key"), ctx.GetValue("key"))
	assert.Equal(t, flagvalue.Bool(true), ctx.GetValue("anonymous"))
	assert.Equal(t, flagvalue.String("Acme"), ctx.GetValue("name"))
}

func TestGetValueMissingNameIsNull(t *testing.T) {
	ctx := NewBuilder("a").Build()
	assert.True(t, ctx.GetValue("name").IsNull())
}

func TestGetValueCustomAttribute(t *testing.T) {
	ctx := NewBuilder("a").SetAttribute("email", flagvalue.String("a@example.com")).Build()
	require.True(t, ctx.IsValid())
	assert.Equal(t, flagvalue.String("a@example.com"), ctx.GetValue("email"))
	assert.True(t, ctx.GetValue("missing").IsNull())
}

func TestGetValueForRefNestedPath(t *testing.T) {
	address := flagvalue.Object(map[string]flagvalue.Value{
		"street": flagvalue.String("123 Main St"),
	})
	ctx := NewBuilder("a").SetAttribute("address", address).Build()
	require.True(t, ctx.IsValid())

	v := ctx.GetValueForRef(NewAttrRef("/address/street"))
	assert.Equal(t, flagvalue.String("123 Main St"), v)

	v = ctx.GetValueForRef(NewAttrRef("/address/zip"))
	assert.True(t, v.IsNull())
}

func TestGetValueForRefInvalidRefIsNull(t *testing.T) {
	ctx := NewBuilder("a").Build()
	assert.True(t, ctx.GetValueForRef(NewAttrRef("")).IsNull())
}

func TestMultiBuilderSingleChildCollapses(t *testing.T) {
	userCtx := NewBuilder("user-key").Build()
	multi := NewMultiBuilder().Add(userCtx).Build()
	require.True(t, multi.IsValid())
	assert.False(t, multi.Multiple())
	assert.Equal(t, "user-key", multi.Key())
}

func TestMultiBuilderRequiresAtLeastOnePart(t *testing.T) {
	multi := NewMultiBuilder().Build()
	assert.False(t, multi.IsValid())
}

func TestMultiBuilderIndividualContext(t *testing.T) {
	userCtx := NewBuilder("user-key").SetAttribute("email", flagvalue.String("e")).Build()
	orgCtx := NewBuilder("org-key").Kind("org").Build()
	multi := NewMultiBuilder().Add(userCtx).Add(orgCtx).Build()
	require.True(t, multi.IsValid())
	assert.True(t, multi.Multiple())
	assert.Equal(t, MultiKind, multi.Kind())
	assert.Equal(t, []string{"org", "user"}, multi.Kinds())

	single, ok := multi.IndividualContext("user")
	require.True(t, ok)
	assert.Equal(t, "user-key", single.Key())
	assert.Equal(t, flagvalue.String("e"), single.GetValue("email"))

	_, ok = multi.IndividualContext("device")
	assert.False(t, ok)
}

func TestFullyQualifiedKey(t *testing.T) {
	ctx := NewBuilder("a:b").Build()
	assert.Equal(t, "a:b", ctx.FullyQualifiedKey())

	ctx = NewBuilder("a").Kind("org").Build()
	assert.Equal(t, "org:a", ctx.FullyQualifiedKey())

	userCtx := NewBuilder("u1").Build()
	orgCtx := NewBuilder("o1").Kind("org").Build()
	multi := NewMultiBuilder().Add(userCtx).Add(orgCtx).Build()
	assert.Equal(t, "org:o1:user:u1", multi.FullyQualifiedKey())
}

func TestPrivateAttributesAndCustomAttributeNames(t *testing.T) {
	ctx := NewBuilder("a").
		SetAttribute("email", flagvalue.String("e")).
		SetAttribute("age", flagvalue.Int(30)).
		Private("email").
		Build()
	require.True(t, ctx.IsValid())
	assert.Equal(t, []string{"age", "email"}, ctx.CustomAttributeNames())
	require.Len(t, ctx.PrivateAttributes(), 1)
	assert.Equal(t, "email", ctx.PrivateAttributes()[0].CanonicalPath())
}

func TestCanonicalKeyForBucketing(t *testing.T) {
	s, ok := CanonicalKeyForBucketing(flagvalue.String("userkey"))
	assert.True(t, ok)
	assert.Equal(t, "userkey", s)

	s, ok = CanonicalKeyForBucketing(flagvalue.Int(42))
	assert.True(t, ok)
	assert.Equal(t, "42", s)

	_, ok = CanonicalKeyForBucketing(flagvalue.Bool(true))
	assert.False(t, ok)
}
