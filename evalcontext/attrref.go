package evalcontext

import "strings"

// AttrRef is a reference to a context attribute, either a plain top-level name or a "/"-delimited
// path into a nested object, using "~0"/"~1" escaping for "~" and "/" the same way JSON Pointer does.
type AttrRef struct {
	raw    string
	isPath bool
	parts  []string
	valid  bool
}

// NewAttrRef parses an attribute reference string.
func NewAttrRef(s string) AttrRef {
	if s == "" {
		return AttrRef{raw: s, valid: false}
	}
	if !strings.HasPrefix(s, "/") {
		return AttrRef{raw: s, parts: []string{s}, valid: true}
	}
	segments := strings.Split(s[1:], "/")
	parts := make([]string, len(segments))
	for i, seg := range segments {
		parts[i] = unescapeRefSegment(seg)
	}
	valid := true
	for _, p := range parts {
		if p == "" {
			valid = false
		}
	}
	return AttrRef{raw: s, isPath: true, parts: parts, valid: valid}
}

// NewAttrRefForName builds a reference that is always treated as a single literal attribute name,
// even if it contains "/", matching the convention used for private-attribute-list entries that
// originate from a plain name rather than a path.
func NewAttrRefForName(name string) AttrRef {
	return AttrRef{raw: name, parts: []string{name}, valid: name != ""}
}

func unescapeRefSegment(seg string) string {
	if !strings.ContainsRune(seg, '~') {
		return seg
	}
	var b strings.Builder
	for i := 0; i < len(seg); i++ {
		if seg[i] == '~' && i+1 < len(seg) {
			switch seg[i+1] {
			case '0':
				b.WriteByte('~')
				i++
				continue
			case '1':
				b.WriteByte('/')
				i++
				continue
			}
		}
		b.WriteByte(seg[i])
	}
	return b.String()
}

func escapeRefSegment(seg string) string {
	if !strings.ContainsAny(seg, "~/") {
		return seg
	}
	seg = strings.ReplaceAll(seg, "~", "~0")
	seg = strings.ReplaceAll(seg, "/", "~1")
	return seg
}

// IsValid reports whether the reference parsed successfully.
func (r AttrRef) IsValid() bool { return r.valid }

// String returns the original reference string.
func (r AttrRef) String() string { return r.raw }

// Depth returns the number of path components (1 for a plain name).
func (r AttrRef) Depth() int { return len(r.parts) }

// Component returns the i'th path component.
func (r AttrRef) Component(i int) string {
	if i < 0 || i >= len(r.parts) {
		return ""
	}
	return r.parts[i]
}

// CanonicalPath renders the reference back into "/"-escaped path form, used when listing redacted
// attributes in _meta.redactedAttributes.
func (r AttrRef) CanonicalPath() string {
	if !r.isPath && len(r.parts) == 1 {
		return escapeRefSegment(r.parts[0])
	}
	var b strings.Builder
	for _, p := range r.parts {
		b.WriteByte('/')
		b.WriteString(escapeRefSegment(p))
	}
	return b.String()
}
