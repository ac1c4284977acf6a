// Package observability provides logging and tracing for the auth gate.
//
// Structured logging is provided through the Logger interface backed by
// zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("decision rendered",
//	    observability.String("path", "/orders/42"),
//	    observability.Bool("allowed", false),
//	)
//
// Distributed tracing uses OpenTelemetry with OTLP gRPC export:
//
//	tracer, err := observability.NewTracer(observability.TracerConfig{
//	    ServiceName:  "avauthgate",
//	    OTLPEndpoint: "localhost:4317",
//	    Enabled:      true,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tracer.Shutdown(ctx)
//
// Per-package Prometheus metrics live next to the code they measure; this
// package only carries the request/trace correlation helpers shared by all
// of them.
package observability
