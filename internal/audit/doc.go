// Package audit emits an append-only log of security decisions.
//
// Every event is one JSON object on its own line, written to stdout,
// stderr, or a file. Events are queued on a bounded channel and written
// by a single background goroutine, so recording never blocks request
// handling: when the queue is full the event is dropped and counted
// instead of stalling the caller.
//
// Create a logger from configuration and record events:
//
//	logger, err := audit.NewLogger(&audit.Config{
//	    Enabled: true,
//	    Output:  "/var/log/authgate/audit.jsonl",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Close()
//
//	logger.Record(ctx, audit.Authorization("alice", audit.DecisionDeny, "forbidden").
//	    WithRoute(http.MethodGet, "/admin/users").
//	    WithClientIP("192.0.2.7"))
//
// Audit logging is disabled by default. A nil or disabled *Logger is
// safe to call everywhere; Record and Close become no-ops.
package audit
