// Package httpserver runs an http.Server bound to a context.
//
// Run blocks until the context is cancelled or the listener fails, then shuts
// the server down within ShutdownTimeout. Signal handling belongs to the
// caller (see cmd/labgrid), which keeps Run composable with errgroup:
//
//	srv := httpserver.NewFromConfig(cfg, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// LivenessHandler and ReadinessHandler serve the /health/live and
// /health/ready endpoints.
package httpserver
