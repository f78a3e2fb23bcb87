// Package evalcontext implements the evaluation context model: the subject of a flag evaluation,
// either a single-kind record (user, device, account, ...) or a multi-kind composite of several.
package evalcontext

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/flagbridge/go-server-sdk/flagvalue"
)

// DefaultKind is used for a single-kind context that does not specify a kind.
const DefaultKind = "user"

// MultiKind is the reserved kind value for a multi-kind context.
const MultiKind = "multi"

var kindPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var reservedAttrs = map[string]bool{
	"kind": true, "key": true, "anonymous": true, "_meta": true,
}

// Context is an immutable evaluation subject: either single-kind or a multi-kind composite.
type Context struct {
	err        error
	multi      bool
	single     singleKindContext
	parts      map[string]singleKindContext
	partsOrder []string
}

type singleKindContext struct {
	kind        string
	key         string
	name        string
	hasName     bool
	anonymous   bool
	attributes  map[string]flagvalue.Value
	privateAttr []AttrRef
}

// Builder incrementally constructs a single-kind Context.
type Builder struct {
	c singleKindContext
}

// NewBuilder starts building a single-kind context with the given key.
func NewBuilder(key string) *Builder {
	return &Builder{c: singleKindContext{kind: DefaultKind, key: key, attributes: map[string]flagvalue.Value{}}}
}

// Kind sets the context kind.
func (b *Builder) Kind(kind string) *Builder {
	b.c.kind = kind
	return b
}

// Name sets the optional display name.
func (b *Builder) Name(name string) *Builder {
	b.c.name = name
	b.c.hasName = true
	return b
}

// Anonymous marks the context as anonymous.
func (b *Builder) Anonymous(a bool) *Builder {
	b.c.anonymous = a
	return b
}

// SetAttribute sets a custom attribute. Reserved names are rejected at Build().
func (b *Builder) SetAttribute(name string, value flagvalue.Value) *Builder {
	b.c.attributes[name] = value
	return b
}

// Private marks attribute references as private for this context only.
func (b *Builder) Private(refs ...string) *Builder {
	for _, r := range refs {
		b.c.privateAttr = append(b.c.privateAttr, NewAttrRef(r))
	}
	return b
}

// Build finalizes the context, validating invariants from the data model.
func (b *Builder) Build() Context {
	if b.c.key == "" {
		return Context{err: errors.New("context key must not be empty")}
	}
	if b.c.kind == "" {
		b.c.kind = DefaultKind
	}
	if !kindPattern.MatchString(b.c.kind) || b.c.kind == MultiKind {
		return Context{err: errors.New("invalid context kind: " + b.c.kind)}
	}
	for name := range b.c.attributes {
		if reservedAttrs[name] {
			return Context{err: errors.New("attribute name is reserved: " + name)}
		}
	}
	return Context{single: b.c}
}

// MultiBuilder builds a multi-kind context out of single-kind parts.
type MultiBuilder struct {
	parts map[string]Context
}

// NewMultiBuilder returns an empty multi-kind builder.
func NewMultiBuilder() *MultiBuilder {
	return &MultiBuilder{parts: map[string]Context{}}
}

// Add adds a single-kind context as one part of the composite.
func (m *MultiBuilder) Add(c Context) *MultiBuilder {
	if !c.multi && c.err == nil {
		m.parts[c.single.kind] = c
	}
	return m
}

// Build finalizes the multi-kind context.
func (m *MultiBuilder) Build() Context {
	if len(m.parts) == 0 {
		return Context{err: errors.New("multi-kind context must have at least one part")}
	}
	if len(m.parts) == 1 {
		for _, c := range m.parts {
			return c
		}
	}
	order := make([]string, 0, len(m.parts))
	single := make(map[string]singleKindContext, len(m.parts))
	for k, c := range m.parts {
		if c.err != nil {
			return c
		}
		order = append(order, k)
		single[k] = c.single
	}
	sort.Strings(order)
	return Context{multi: true, parts: single, partsOrder: order}
}

// Err returns the construction error, if any.
func (c Context) Err() error { return c.err }

// IsValid reports whether the context was built successfully.
func (c Context) IsValid() bool { return c.err == nil }

// Multiple reports whether this is a multi-kind composite.
func (c Context) Multiple() bool { return c.multi }

// Kind returns the kind ("multi" for a composite).
func (c Context) Kind() string {
	if c.multi {
		return MultiKind
	}
	return c.single.kind
}

// Key returns the single-kind key. For a multi-kind context, use FullyQualifiedKey.
func (c Context) Key() string { return c.single.key }

// Kinds returns the set of kinds present (one kind for single-kind contexts).
func (c Context) Kinds() []string {
	if !c.multi {
		return []string{c.single.kind}
	}
	out := make([]string, len(c.partsOrder))
	copy(out, c.partsOrder)
	return out
}

// IndividualContext returns the single-kind context for the given kind, or the context itself if
// it is already single-kind and matches (or kind is empty and it's the only part).
func (c Context) IndividualContext(kind string) (Context, bool) {
	if !c.multi {
		if kind == "" || kind == c.single.kind {
			return c, true
		}
		return Context{}, false
	}
	single, ok := c.parts[kind]
	if !ok {
		return Context{}, false
	}
	return Context{single: single}, true
}

// Anonymous reports whether a single-kind context is anonymous.
func (c Context) Anonymous() bool { return c.single.anonymous }

// GetValue resolves a plain attribute name (not a path) against a single-kind context, special-
// casing the built-ins kind/key/anonymous/name.
func (c Context) GetValue(name string) flagvalue.Value {
	return c.GetValueForRef(NewAttrRefForName(name))
}

// GetValueForRef resolves an AttrRef (plain name or path) against a single-kind context.
func (c Context) GetValueForRef(ref AttrRef) flagvalue.Value {
	if c.multi || !ref.IsValid() {
		return flagvalue.Null()
	}
	top := ref.Component(0)
	var base flagvalue.Value
	switch top {
	case "kind":
		return flagvalue.String(c.single.kind)
	case "key":
		return flagvalue.String(c.single.key)
	case "anonymous":
		return flagvalue.Bool(c.single.anonymous)
	case "name":
		if c.single.hasName {
			base = flagvalue.String(c.single.name)
		} else {
			return flagvalue.Null()
		}
	default:
		v, ok := c.single.attributes[top]
		if !ok {
			return flagvalue.Null()
		}
		base = v
	}
	for i := 1; i < ref.Depth(); i++ {
		base = base.GetByKey(ref.Component(i))
	}
	return base
}

// FullyQualifiedKey returns the canonical string identity of the context: for single-kind, the key
// (prefixed by "kind:" unless kind is "user"); for multi-kind, the sorted "kind1:key1:kind2:key2..."
// form with ":" and "%" percent-escaped inside keys.
func (c Context) FullyQualifiedKey() string {
	if !c.multi {
		return fullyQualifiedSingle(c.single)
	}
	parts := make([]string, 0, len(c.partsOrder))
	for _, kind := range c.partsOrder {
		sc := c.parts[kind]
		parts = append(parts, kind+":"+percentEscapeKey(sc.key))
	}
	return strings.Join(parts, ":")
}

func fullyQualifiedSingle(sc singleKindContext) string {
	if sc.kind == DefaultKind {
		return sc.key
	}
	return sc.kind + ":" + percentEscapeKey(sc.key)
}

func percentEscapeKey(key string) string {
	if !strings.ContainsAny(key, "%:") {
		return key
	}
	key = strings.ReplaceAll(key, "%", "%25")
	key = strings.ReplaceAll(key, ":", "%3A")
	return key
}

// PrivateAttributes returns the per-context private attribute references.
func (c Context) PrivateAttributes() []AttrRef { return c.single.privateAttr }

// CustomAttributeNames returns the sorted custom attribute names of a single-kind context.
func (c Context) CustomAttributeNames() []string {
	names := make([]string, 0, len(c.single.attributes))
	for n := range c.single.attributes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CanonicalKeyForBucketing stringifies a value the way the bucketing algorithm requires: numbers
// render as a canonical integer decimal, everything else that is not a string fails.
func CanonicalKeyForBucketing(v flagvalue.Value) (string, bool) {
	return v.CanonicalString()
}

// ParseInt converts a decimal string to an int, as strconv.Atoi does.
func ParseInt(s string) (int, error) { return strconv.Atoi(s) }
