// Package observability provides OpenTelemetry tracing and metrics for the
// HTTP client.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("my-service"))
//	defer tp.Shutdown(ctx)
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, &meterCfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewClientMetrics(observability.Meter())
//	client, err := httpclient.NewClient(cfg, httpclient.WithMetrics(metrics))
package observability
