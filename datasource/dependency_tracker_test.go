package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flagbridge/go-server-sdk/datakinds"
)

func TestDependencyTrackerAddAffectedIncludesTransitiveDependents(t *testing.T) {
	tracker := newDependencyTracker()

	flagA := reference{datakinds.Flags, "a"}
	flagB := reference{datakinds.Flags, "b"}
	flagC := reference{datakinds.Flags, "c"}
	segX := reference{datakinds.Segments, "x"}

	// c depends on b, b depends on a and segX
	tracker.updateDependenciesFrom(flagC, []reference{flagB})
	tracker.updateDependenciesFrom(flagB, []reference{flagA, segX})

	affected := map[reference]bool{}
	tracker.addAffected(affected, flagA)

	assert.True(t, affected[flagA])
	assert.True(t, affected[flagB])
	assert.True(t, affected[flagC])
	assert.False(t, affected[segX])
}

func TestDependencyTrackerUpdateDropsStaleEdges(t *testing.T) {
	tracker := newDependencyTracker()
	flagA := reference{datakinds.Flags, "a"}
	flagB := reference{datakinds.Flags, "b"}

	tracker.updateDependenciesFrom(flagB, []reference{flagA})
	tracker.updateDependenciesFrom(flagB, nil) // b no longer depends on a

	affected := map[reference]bool{}
	tracker.addAffected(affected, flagA)

	assert.True(t, affected[flagA])
	assert.False(t, affected[flagB])
}

func TestKindAndKeyFromPath(t *testing.T) {
	kind, key := kindAndKeyFromPath("/flags/my-flag")
	assert.Equal(t, datakinds.Flags, kind)
	assert.Equal(t, "my-flag", key)

	kind, key = kindAndKeyFromPath("/segments/my-segment")
	assert.Equal(t, datakinds.Segments, kind)
	assert.Equal(t, "my-segment", key)

	kind, _ = kindAndKeyFromPath("/unknown/thing")
	assert.Equal(t, datakinds.Kind(""), kind)
}
