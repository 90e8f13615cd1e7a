package audit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/pkg/audit"
	"github.com/dmitrymomot/labgrid/pkg/logger"
)

type indexServer struct {
	mu      sync.Mutex
	docs    map[string]audit.Record
	failing bool
}

func (s *indexServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	if !strings.Contains(r.URL.Path, "/_doc/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	var rec audit.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.docs[r.URL.Path] = rec
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`{"result":"created"}`))
}

func newMirror(t *testing.T, srv *indexServer) (*audit.OpenSearchMirror, *audit.MemoryStorage) {
	t.Helper()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	client, err := opensearch.NewClient(opensearch.Config{Addresses: []string{ts.URL}, DisableRetry: true})
	require.NoError(t, err)

	primary := audit.NewMemoryStorage()
	return audit.NewOpenSearchMirror(primary, client, "labgrid-audit", logger.Noop()), primary
}

func TestOpenSearchMirror_Store(t *testing.T) {
	t.Parallel()

	rec := audit.Record{
		ID:         "rec-1",
		Action:     audit.ActionCreateGrid,
		EntityType: audit.EntityGrid,
		EntityID:   "g1",
		UserID:     "main-1",
		Details:    audit.Details{ActiveUser: audit.ActiveUser{ID: "main-1", IsMainUser: true}},
		CreatedAt:  now,
	}

	t.Run("copies the record into the index", func(t *testing.T) {
		t.Parallel()
		srv := &indexServer{docs: map[string]audit.Record{}}
		mirror, primary := newMirror(t, srv)

		require.NoError(t, mirror.Store(context.Background(), rec))

		stored, err := primary.Query(context.Background(), audit.Criteria{UserID: "main-1"})
		require.NoError(t, err)
		assert.Len(t, stored, 1)

		srv.mu.Lock()
		defer srv.mu.Unlock()
		assert.Equal(t, "g1", srv.docs["/labgrid-audit/_doc/rec-1"].EntityID)
	})

	t.Run("index failure does not fail the write", func(t *testing.T) {
		t.Parallel()
		srv := &indexServer{docs: map[string]audit.Record{}, failing: true}
		mirror, primary := newMirror(t, srv)

		require.NoError(t, mirror.Store(context.Background(), rec))

		n, err := mirror.Count(context.Background(), audit.Criteria{UserID: "main-1"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		stored, err := primary.Query(context.Background(), audit.Criteria{UserID: "main-1"})
		require.NoError(t, err)
		assert.Len(t, stored, 1)
	})
}
