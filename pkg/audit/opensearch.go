package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/opensearch-project/opensearch-go/v2"

	"github.com/dmitrymomot/labgrid/pkg/logger"
	osearch "github.com/dmitrymomot/labgrid/pkg/opensearch"
)

// indexMapping keeps ids and enums as keywords so they filter exactly.
const indexMapping = `{
  "mappings": {
    "properties": {
      "id":         {"type": "keyword"},
      "action":     {"type": "keyword"},
      "entityType": {"type": "keyword"},
      "entityId":   {"type": "keyword"},
      "userId":     {"type": "keyword"},
      "requestId":  {"type": "keyword"},
      "ip":         {"type": "ip"},
      "createdAt":  {"type": "date"},
      "details": {
        "properties": {
          "activeUser": {
            "properties": {
              "id":         {"type": "keyword"},
              "name":       {"type": "text"},
              "email":      {"type": "keyword"},
              "isMainUser": {"type": "boolean"}
            }
          },
          "fields": {"type": "object", "dynamic": true}
        }
      }
    }
  }
}`

// OpenSearchMirror stores records in a primary storage and copies them into
// an OpenSearch index for full-text search. Queries go to the primary storage.
// A failed copy is logged and never fails the write.
type OpenSearchMirror struct {
	Storage
	client *opensearch.Client
	index  string
	log    *slog.Logger
}

// NewOpenSearchMirror wraps primary with an index mirror.
func NewOpenSearchMirror(primary Storage, client *opensearch.Client, index string, log *slog.Logger) *OpenSearchMirror {
	if primary == nil || client == nil {
		panic("audit: primary storage and opensearch client are required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &OpenSearchMirror{Storage: primary, client: client, index: index, log: log}
}

// EnsureIndex creates the mirror index with the audit mapping if it is missing.
func (m *OpenSearchMirror) EnsureIndex(ctx context.Context) error {
	return osearch.EnsureIndex(ctx, m.client, m.index, []byte(indexMapping))
}

func (m *OpenSearchMirror) Store(ctx context.Context, r Record) error {
	if err := m.Storage.Store(ctx, r); err != nil {
		return err
	}
	if err := m.indexRecord(ctx, r); err != nil {
		m.log.WarnContext(ctx, "audit mirror write failed",
			logger.Component("audit"),
			slog.String("record_id", r.ID),
			logger.Error(err),
		)
	}
	return nil
}

// Count delegates to the primary storage when it counts natively.
func (m *OpenSearchMirror) Count(ctx context.Context, c Criteria) (int64, error) {
	return NewReader(m.Storage).Count(ctx, c)
}

func (m *OpenSearchMirror) indexRecord(ctx context.Context, r Record) error {
	body, err := json.Marshal(r)
	if err != nil {
		return err
	}
	res, err := m.client.Index(m.index, bytes.NewReader(body),
		m.client.Index.WithContext(ctx),
		m.client.Index.WithDocumentID(r.ID),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("opensearch index: %s", res.Status())
	}
	return nil
}
