package datasource

import "github.com/flagbridge/go-server-sdk/datakinds"

// reference identifies one flag or segment as a vertex in the dependency graph.
type reference struct {
	kind datakinds.Kind
	key  string
}

// dependencyTracker maintains a bidirectional graph of "what does this item read" so that a
// change to one flag or segment can be expanded to every flag that might be affected by it
// (prerequisites and segmentMatch references), supporting flag-change notifications (§4.3).
type dependencyTracker struct {
	from map[reference]map[reference]bool // item -> items it depends on
	to   map[reference]map[reference]bool // item -> items that depend on it
}

func newDependencyTracker() *dependencyTracker {
	return &dependencyTracker{from: map[reference]map[reference]bool{}, to: map[reference]map[reference]bool{}}
}

func (d *dependencyTracker) reset() {
	d.from = map[reference]map[reference]bool{}
	d.to = map[reference]map[reference]bool{}
}

// updateDependenciesFrom is called whenever an item changes; it recomputes the edges from that
// item and updates the reverse index accordingly.
func (d *dependencyTracker) updateDependenciesFrom(subject reference, dependsOn []reference) {
	old := d.from[subject]
	for dep := range old {
		if back := d.to[dep]; back != nil {
			delete(back, subject)
		}
	}
	newSet := map[reference]bool{}
	for _, dep := range dependsOn {
		newSet[dep] = true
		back := d.to[dep]
		if back == nil {
			back = map[reference]bool{}
			d.to[dep] = back
		}
		back[subject] = true
	}
	d.from[subject] = newSet
}

// addAffected populates out with initial and every item that transitively depends on it.
func (d *dependencyTracker) addAffected(out map[reference]bool, initial reference) {
	if out[initial] {
		return
	}
	out[initial] = true
	for dependent := range d.to[initial] {
		d.addAffected(out, dependent)
	}
}
