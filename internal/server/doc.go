// Package server assembles the gate's HTTP boundary and owns its
// lifecycle.
//
// A Server wires the middleware chain (request ID, access logging,
// recovery, security headers, CORS, rate limiting, authentication,
// authorization) in front of the login endpoints and the reverse proxy
// to the upstream, and serves the result through a gin engine's NoRoute
// handler. A second listener exposes Prometheus metrics and the health
// probes.
//
// Usage:
//
//	srv, err := server.New(cfg,
//		server.WithLogger(logger),
//		server.WithEngine(engine),
//		server.WithAuthenticator(authn),
//	)
//	if err != nil {
//		return err
//	}
//	if err := srv.Start(ctx); err != nil {
//		return err
//	}
//	defer srv.Stop(context.Background())
//
// Start and Stop drive an atomic state machine
// (stopped/starting/running/stopping); Reload swaps the rule table and
// policies on a running server without dropping connections.
package server
