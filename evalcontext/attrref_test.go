package evalcontext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAttrRefPlainName(t *testing.T) {
	ref := NewAttrRef("email")
	assert.True(t, ref.IsValid())
	assert.Equal(t, 1, ref.Depth())
	assert.Equal(t, "email", ref.Component(0))
	assert.Equal(t, "email", ref.CanonicalPath())
}

func TestNewAttrRefPath(t *testing.T) {
	ref := NewAttrRef("/address/street")
	assert.True(t, ref.IsValid())
	assert.Equal(t, 2, ref.Depth())
	assert.Equal(t, "address", ref.Component(0))
	assert.Equal(t, "street", ref.Component(1))
	assert.Equal(t, "/address/street", ref.CanonicalPath())
}

func TestNewAttrRefEscaping(t *testing.T) {
	ref := NewAttrRef("/a~1b/c~0d")
	assert.True(t, ref.IsValid())
	assert.Equal(t, "a/b", ref.Component(0))
	assert.Equal(t, "c~d", ref.Component(1))
	assert.Equal(t, "/a~1b/c~0d", ref.CanonicalPath())
}

func TestNewAttrRefInvalidCases(t *testing.T) {
	assert.False(t, NewAttrRef("").IsValid())
	assert.False(t, NewAttrRef("/").IsValid())
	assert.False(t, NewAttrRef("//a").IsValid())
	assert.False(t, NewAttrRef("/a//b").IsValid())
}

func TestNewAttrRefForNameIsAlwaysLiteral(t *testing.T) {
	ref := NewAttrRefForName("/address/street")
	assert.True(t, ref.IsValid())
	assert.Equal(t, 1, ref.Depth())
	assert.Equal(t, "/address/street", ref.Component(0))
	// CanonicalPath escapes the literal name since it contains "/"
	assert.Equal(t, "~1address~1street", ref.CanonicalPath())
}

func TestAttrRefComponentOutOfRange(t *testing.T) {
	ref := NewAttrRef("email")
	assert.Equal(t, "", ref.Component(-1))
	assert.Equal(t, "", ref.Component(1))
}

func TestAttrRefString(t *testing.T) {
	assert.Equal(t, "/address/street", NewAttrRef("/address/street").String())
}
