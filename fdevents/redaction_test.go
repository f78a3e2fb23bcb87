package fdevents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagbridge/go-server-sdk/evalcontext"
	"github.com/flagbridge/go-server-sdk/flagvalue"
)

func TestMarshalContextRedactsPerContextPrivateAttributes(t *testing.T) {
	ctx := evalcontext.NewBuilder("user-key").
		SetAttribute("email", flagvalue.String("a@example.com")).
		SetAttribute("age", flagvalue.Int(30)).
		Private("email").
		Build()
	require.True(t, ctx.IsValid())

	out := marshalContext(ctx, newRedactionPolicy(false, nil))
	assert.Equal(t, "user-key", out["key"])
	_, hasEmail := out["email"]
	assert.False(t, hasEmail)
	assert.Equal(t, flagvalue.Int(30), out["age"])

	meta, ok := out["_meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"email"}, meta["redactedAttributes"])
}

func TestMarshalContextAllAttributesPrivateRedactsEverything(t *testing.T) {
	ctx := evalcontext.NewBuilder("user-key").
		SetAttribute("email", flagvalue.String("a@example.com")).
		SetAttribute("age", flagvalue.Int(30)).
		Build()
	require.True(t, ctx.IsValid())

	out := marshalContext(ctx, newRedactionPolicy(true, nil))
	assert.NotContains(t, out, "email")
	assert.NotContains(t, out, "age")
	meta := out["_meta"].(map[string]any)
	assert.ElementsMatch(t, []string{"age", "email"}, meta["redactedAttributes"])
}

func TestMarshalContextRedactsNestedAttributePath(t *testing.T) {
	address := flagvalue.Object(map[string]flagvalue.Value{
		"street": flagvalue.String("123 Main St"),
		"city":   flagvalue.String("Springfield"),
	})
	ctx := evalcontext.NewBuilder("user-key").
		SetAttribute("address", address).
		Private("/address/street").
		Build()
	require.True(t, ctx.IsValid())

	out := marshalContext(ctx, newRedactionPolicy(false, nil))
	addressOut, ok := out["address"].(flagvalue.Value)
	require.True(t, ok)
	assert.True(t, addressOut.GetByKey("street").IsNull())
	assert.Equal(t, "Springfield", addressOut.GetByKey("city").StringValue())

	meta, ok := out["_meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, []string{"/address/street"}, meta["redactedAttributes"])
}

func TestMarshalContextGlobalPrivateAttributes(t *testing.T) {
	ctx := evalcontext.NewBuilder("user-key").
		SetAttribute("email", flagvalue.String("a@example.com")).
		Build()
	require.True(t, ctx.IsValid())

	out := marshalContext(ctx, newRedactionPolicy(false, []string{"email"}))
	assert.NotContains(t, out, "email")
}

func TestMarshalContextBuiltinAttributesNeverRedacted(t *testing.T) {
	ctx := evalcontext.NewBuilder("user-key").Anonymous(true).Build()
	require.True(t, ctx.IsValid())

	out := marshalContext(ctx, newRedactionPolicy(false, []string{"key", "kind", "anonymous"}))
	assert.Equal(t, "user-key", out["key"])
	assert.Equal(t, true, out["anonymous"])
}

func TestMarshalContextMultiKind(t *testing.T) {
	userCtx := evalcontext.NewBuilder("user-key").Build()
	orgCtx := evalcontext.NewBuilder("org-key").Kind("org").Build()
	multi := evalcontext.NewMultiBuilder().Add(userCtx).Add(orgCtx).Build()
	require.True(t, multi.IsValid())

	out := marshalContext(multi, newRedactionPolicy(false, nil))
	assert.Equal(t, "multi", out["kind"])
	userPart, ok := out["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "user-key", userPart["key"])
	_, hasKind := userPart["kind"]
	assert.False(t, hasKind, "per-kind part should not repeat its own kind field")
}
