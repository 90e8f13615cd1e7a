// Package opensearch connects to an OpenSearch cluster with
// github.com/opensearch-project/opensearch-go/v2 and prepares the indexes the
// audit mirror writes to.
//
// New builds the client and checks cluster health once so that a
// misconfigured cluster fails at startup rather than on the first indexed
// audit record:
//
//	var cfg opensearch.Config
//	config.MustLoad(&cfg)
//	if cfg.Enabled() {
//		client, err := opensearch.New(ctx, cfg)
//		if err != nil {
//			return err
//		}
//		mirror := audit.NewOpenSearchMirror(storage, client, cfg.AuditIndex, log)
//		if err := mirror.EnsureIndex(ctx); err != nil {
//			return err
//		}
//	}
package opensearch
