package opensearch_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/labgrid/pkg/opensearch"
)

type cluster struct {
	status  string
	exists  atomic.Bool
	created atomic.Int32
}

func (c *cluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/_cluster/health":
		_, _ = io.WriteString(w, `{"status":"`+c.status+`"}`)
	case r.Method == http.MethodHead:
		if c.exists.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case r.Method == http.MethodPut:
		c.created.Add(1)
		c.exists.Store(true)
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newCluster(t *testing.T, status string) (*cluster, opensearch.Config) {
	t.Helper()
	c := &cluster{status: status}
	srv := httptest.NewServer(c)
	t.Cleanup(srv.Close)
	return c, opensearch.Config{Addresses: []string{srv.URL}, DisableRetry: true}
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("yellow cluster is accepted", func(t *testing.T) {
		t.Parallel()
		_, cfg := newCluster(t, "yellow")
		client, err := opensearch.New(context.Background(), cfg)
		require.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("red cluster fails", func(t *testing.T) {
		t.Parallel()
		_, cfg := newCluster(t, "red")
		_, err := opensearch.New(context.Background(), cfg)
		assert.ErrorIs(t, err, opensearch.ErrConnectionFailed)
		assert.ErrorIs(t, err, opensearch.ErrUnhealthy)
	})

	t.Run("no addresses", func(t *testing.T) {
		t.Parallel()
		_, err := opensearch.New(context.Background(), opensearch.Config{})
		assert.ErrorIs(t, err, opensearch.ErrConnectionFailed)
	})
}

func TestEnsureIndex(t *testing.T) {
	t.Parallel()

	c, cfg := newCluster(t, "green")
	client, err := opensearch.New(context.Background(), cfg)
	require.NoError(t, err)

	body := []byte(`{"mappings":{}}`)
	require.NoError(t, opensearch.EnsureIndex(context.Background(), client, "labgrid-audit", body))
	require.NoError(t, opensearch.EnsureIndex(context.Background(), client, "labgrid-audit", body))
	assert.Equal(t, int32(1), c.created.Load())
}
