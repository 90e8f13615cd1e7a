package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2"
)

var (
	// ErrConnectionFailed means the client could not be built or the cluster
	// did not answer.
	ErrConnectionFailed = errors.New("opensearch: connection failed")
	// ErrUnhealthy means the cluster answered with a red status or an error.
	ErrUnhealthy = errors.New("opensearch: cluster is unhealthy")
	// ErrIndexSetup means an index could not be checked or created.
	ErrIndexSetup = errors.New("opensearch: index setup failed")
)

// New creates a client and checks cluster health once.
func New(ctx context.Context, cfg Config) (*opensearch.Client, error) {
	if !cfg.Enabled() {
		return nil, errors.Join(ErrConnectionFailed, errors.New("no addresses configured"))
	}
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DisableRetry: cfg.DisableRetry,
	})
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	if err := Healthcheck(client)(ctx); err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}
	return client, nil
}

// Healthcheck returns a readiness check that fails on a red cluster.
// Yellow is accepted since single-node clusters never allocate replicas.
func Healthcheck(client *opensearch.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		res, err := client.Cluster.Health(client.Cluster.Health.WithContext(ctx))
		if err != nil {
			return errors.Join(ErrUnhealthy, err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("%w: %s", ErrUnhealthy, res.Status())
		}

		var body struct {
			Status string `json:"status"`
		}
		if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
			return errors.Join(ErrUnhealthy, err)
		}
		if body.Status == "red" {
			return fmt.Errorf("%w: status red", ErrUnhealthy)
		}
		return nil
	}
}

// EnsureIndex creates index with the given settings and mappings unless it
// already exists. Concurrent creation by another replica is not an error.
func EnsureIndex(ctx context.Context, client *opensearch.Client, index string, body []byte) error {
	res, err := client.Indices.Exists([]string{index}, client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.Join(ErrIndexSetup, err)
	}
	res.Body.Close()
	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("%w: %s: %s", ErrIndexSetup, index, res.Status())
	}

	res, err = client.Indices.Create(index,
		client.Indices.Create.WithContext(ctx),
		client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return errors.Join(ErrIndexSetup, err)
	}
	defer res.Body.Close()
	if !res.IsError() {
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	if strings.Contains(string(msg), "resource_already_exists_exception") {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrIndexSetup, index, res.Status())
}
