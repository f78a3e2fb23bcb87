package datakinds

import "github.com/flagbridge/go-server-sdk/flagmodel"

// Reference names one dependency edge: a kind and key that the subject item reads during
// evaluation. The data-source change tracker (§4.3) uses this to compute which flags might be
// affected when a segment or prerequisite flag changes.
type Reference struct {
	Kind Kind
	Key  string
}

// FlagDependencies returns every other flag or segment that evaluating f could read: its
// prerequisite flags, and any segment named in a segmentMatch clause anywhere in its rules.
func FlagDependencies(f *flagmodel.FeatureFlag) []Reference {
	var refs []Reference
	for _, p := range f.Prerequisites {
		refs = append(refs, Reference{Kind: Flags, Key: p.Key})
	}
	for _, rule := range f.Rules {
		refs = append(refs, clauseSegmentRefs(rule.Clauses)...)
	}
	return refs
}

// SegmentDependencies returns every other segment a segment's rules reference via segmentMatch,
// supporting the segment-references-segment recursion in §4.1.1.
func SegmentDependencies(s *flagmodel.Segment) []Reference {
	var refs []Reference
	for _, rule := range s.Rules {
		refs = append(refs, clauseSegmentRefs(rule.Clauses)...)
	}
	return refs
}

func clauseSegmentRefs(clauses []flagmodel.Clause) []Reference {
	var refs []Reference
	for _, c := range clauses {
		if c.Op != flagmodel.OperatorSegmentMatch {
			continue
		}
		for _, v := range c.Values {
			if s, ok := v.CanonicalString(); ok {
				refs = append(refs, Reference{Kind: Segments, Key: s})
			}
		}
	}
	return refs
}
