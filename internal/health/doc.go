// Package health aggregates dependency probes into the gate's
// liveness and readiness endpoints.
//
// Liveness (/livez, /healthz) reports on the process itself.
// Readiness (/readyz) runs the registered probes: a failing critical
// probe makes the gate unready, anything else degrades the response
// while the gate keeps serving.
//
//	checker := health.NewChecker(version)
//	checker.Register("directory", dir.Ping)
//	checker.Register("token_store", store.Ping)
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("/healthz", checker.HealthHandler())
//	mux.HandleFunc("/readyz", checker.ReadinessHandler())
//	mux.HandleFunc("/livez", checker.LivenessHandler())
package health
