package bigsegments

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagbridge/go-server-sdk/eval"
	"github.com/flagbridge/go-server-sdk/internal/ldlog"
)

type mockStore struct {
	mu         sync.Mutex
	metadata   Metadata
	metaErr    error
	membership map[string]eval.BigSegmentMembership
	memberErr  error
	queries    int
}

func newMockStore() *mockStore {
	return &mockStore{membership: map[string]eval.BigSegmentMembership{}}
}

func (s *mockStore) GetMetadata() (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metadata, s.metaErr
}

func (s *mockStore) GetMembership(contextHash string) (eval.BigSegmentMembership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	if s.memberErr != nil {
		return nil, s.memberErr
	}
	return s.membership[contextHash], nil
}

func (s *mockStore) Close() error { return nil }

func TestManagerGetMembershipCachesByContextKey(t *testing.T) {
	store := newMockStore()
	store.metadata = Metadata{LastUpToDate: time.Now()}
	hash := HashForContextKey("user-key")
	store.membership[hash] = eval.MapMembership{"seg1": true}

	m := NewManager(store, time.Hour, time.Hour, 100, time.Minute, ldlog.Loggers{})
	defer m.Close()

	membership, status := m.GetMembership("user-key")
	require.NotNil(t, membership)
	assert.Equal(t, eval.BigSegmentsHealthy, status)
	assert.NotNil(t, membership.CheckMembership("seg1"))

	_, _ = m.GetMembership("user-key")
	store.mu.Lock()
	queries := store.queries
	store.mu.Unlock()
	assert.Equal(t, 1, queries, "second lookup should be served from cache")
}

func TestManagerGetMembershipStoreErrorReturnsStoreError(t *testing.T) {
	store := newMockStore()
	store.memberErr = errors.New("boom")

	m := NewManager(store, time.Hour, time.Hour, 100, time.Minute, ldlog.Loggers{})
	defer m.Close()

	membership, status := m.GetMembership("user-key")
	assert.Nil(t, membership)
	assert.Equal(t, eval.BigSegmentsStoreError, status)
}

func TestManagerStatusReflectsStaleness(t *testing.T) {
	store := newMockStore()
	store.metadata = Metadata{LastUpToDate: time.Now().Add(-time.Hour)}

	m := NewManager(store, time.Hour, time.Minute, 100, time.Minute, ldlog.Loggers{})
	defer m.Close()

	status := m.Status()
	assert.True(t, status.Available)
	assert.True(t, status.Stale)
}

func TestManagerStatusUnavailableOnMetadataError(t *testing.T) {
	store := newMockStore()
	store.metaErr = errors.New("unreachable")

	m := NewManager(store, time.Hour, time.Minute, 100, time.Minute, ldlog.Loggers{})
	defer m.Close()

	status := m.Status()
	assert.False(t, status.Available)
}

func TestManagerStatusListenerReceivesUpdate(t *testing.T) {
	store := newMockStore()
	store.metadata = Metadata{LastUpToDate: time.Now()}

	m := NewManager(store, 10*time.Millisecond, time.Hour, 100, time.Minute, ldlog.Loggers{})
	defer m.Close()

	ch := m.AddStatusListener()
	defer m.RemoveStatusListener(ch)

	m.Status() // force an initial poll so there is a baseline status
	<-ch        // drain the initial (healthy) broadcast

	store.mu.Lock()
	store.metaErr = errors.New("now broken")
	store.mu.Unlock()

	select {
	case status := <-ch:
		assert.False(t, status.Available)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for status update")
	}
}

func TestHashForContextKeyIsStableAndDeterministic(t *testing.T) {
	assert.Equal(t, HashForContextKey("abc"), HashForContextKey("abc"))
	assert.NotEqual(t, HashForContextKey("abc"), HashForContextKey("xyz"))
}
