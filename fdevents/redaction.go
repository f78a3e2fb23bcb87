package fdevents

import (
	"sort"

	"github.com/flagbridge/go-server-sdk/evalcontext"
	"github.com/flagbridge/go-server-sdk/flagvalue"
)

// redactedContext is the wire form of one single-kind context after private attributes have been
// removed, with the removed references recorded in _meta.redactedAttributes.
type redactedContext struct {
	Kind               string
	Key                string
	Name               string
	HasName            bool
	Anonymous          bool
	Attributes         map[string]flagvalue.Value
	RedactedAttributes []string
}

// redactionPolicy decides which attribute references are stripped from every context, on top of
// whatever private attributes a context declares for itself (spec §4.4).
type redactionPolicy struct {
	allAttributesPrivate bool
	globalPrivate        []evalcontext.AttrRef
}

func newRedactionPolicy(allPrivate bool, globalNames []string) redactionPolicy {
	refs := make([]evalcontext.AttrRef, 0, len(globalNames))
	for _, n := range globalNames {
		refs = append(refs, evalcontext.NewAttrRef(n))
	}
	return redactionPolicy{allAttributesPrivate: allPrivate, globalPrivate: refs}
}

// redactSingle builds the redacted wire form of one single-kind context.
func (p redactionPolicy) redactSingle(c evalcontext.Context) redactedContext {
	out := redactedContext{
		Kind:       c.Kind(),
		Key:        c.Key(),
		Anonymous:  c.Anonymous(),
		Attributes: map[string]flagvalue.Value{},
	}
	private := make([]evalcontext.AttrRef, 0, len(p.globalPrivate)+len(c.PrivateAttributes()))
	private = append(private, p.globalPrivate...)
	private = append(private, c.PrivateAttributes()...)

	redacted := map[string]bool{}
	var nestedPrivate []evalcontext.AttrRef
	names := c.CustomAttributeNames()
	if p.allAttributesPrivate {
		for _, name := range names {
			redacted[name] = true
		}
		if hasName := !c.GetValue("name").IsNull(); hasName {
			redacted["name"] = true
		}
	} else {
		for _, ref := range private {
			if !ref.IsValid() {
				continue
			}
			if ref.Depth() > 1 {
				nestedPrivate = append(nestedPrivate, ref)
				continue
			}
			if top := ref.Component(0); top == "kind" || top == "key" || top == "anonymous" || top == "_meta" || c.GetValueForRef(ref).IsNull() {
				continue
			}
			redacted[ref.CanonicalPath()] = true
		}
	}

	if name := c.GetValue("name"); !name.IsNull() && !redacted["name"] {
		out.Name = name.StringValue()
		out.HasName = true
	}

	for _, name := range names {
		ref := evalcontext.NewAttrRefForName(name)
		if redacted[ref.CanonicalPath()] {
			continue
		}
		value := c.GetValue(name)
		refsUnderName := nestedRefsFor(nestedPrivate, name)
		if len(refsUnderName) > 0 {
			var removed bool
			value, removed = redactNestedValue(value, refsUnderName, 1)
			if removed {
				for _, ref := range refsUnderName {
					redacted[ref.CanonicalPath()] = true
				}
			}
		}
		out.Attributes[name] = value
	}

	redactedList := make([]string, 0, len(redacted))
	for path := range redacted {
		redactedList = append(redactedList, path)
	}
	sort.Strings(redactedList)
	out.RedactedAttributes = redactedList
	return out
}

// nestedRefsFor returns the private path refs whose first component is name.
func nestedRefsFor(refs []evalcontext.AttrRef, name string) []evalcontext.AttrRef {
	var out []evalcontext.AttrRef
	for _, ref := range refs {
		if ref.Component(0) == name {
			out = append(out, ref)
		}
	}
	return out
}

// redactNestedValue removes, from an object-valued attribute, whichever nested keys the refs in
// refs point at depth. depth is the index of the path component to match against this value's own
// keys (1 for the attribute's direct children). Only object values can have nested keys removed;
// any ref pointing through a non-object value simply matches nothing, per spec §4.4.
func redactNestedValue(v flagvalue.Value, refs []evalcontext.AttrRef, depth int) (flagvalue.Value, bool) {
	if v.Type() != flagvalue.ObjectType {
		return v, false
	}
	byKey := map[string][]evalcontext.AttrRef{}
	for _, ref := range refs {
		byKey[ref.Component(depth)] = append(byKey[ref.Component(depth)], ref)
	}
	out := map[string]flagvalue.Value{}
	removed := false
	for _, key := range v.Keys() {
		child := v.GetByKey(key)
		matching, ok := byKey[key]
		if !ok {
			out[key] = child
			continue
		}
		var atLeaf []evalcontext.AttrRef
		var deeper []evalcontext.AttrRef
		for _, ref := range matching {
			if ref.Depth() == depth+1 {
				atLeaf = append(atLeaf, ref)
			} else {
				deeper = append(deeper, ref)
			}
		}
		if len(atLeaf) > 0 {
			removed = true
			continue
		}
		newChild, childRemoved := redactNestedValue(child, deeper, depth+1)
		if childRemoved {
			removed = true
		}
		out[key] = newChild
	}
	return flagvalue.Object(out), removed
}

// marshalContext produces the wire JSON object for c (single- or multi-kind), applying redaction.
func marshalContext(c evalcontext.Context, policy redactionPolicy) map[string]any {
	if !c.Multiple() {
		return redactedSingleToMap(policy.redactSingle(c), true)
	}
	result := map[string]any{"kind": "multi"}
	for _, kind := range c.Kinds() {
		single, _ := c.IndividualContext(kind)
		result[kind] = redactedSingleToMap(policy.redactSingle(single), false)
	}
	return result
}

func redactedSingleToMap(rc redactedContext, includeKind bool) map[string]any {
	m := map[string]any{"key": rc.Key}
	if includeKind {
		m["kind"] = rc.Kind
	}
	if rc.Anonymous {
		m["anonymous"] = true
	}
	if rc.HasName {
		m["name"] = rc.Name
	}
	for name, v := range rc.Attributes {
		m[name] = v
	}
	if len(rc.RedactedAttributes) > 0 {
		m["_meta"] = map[string]any{"redactedAttributes": rc.RedactedAttributes}
	}
	return m
}
