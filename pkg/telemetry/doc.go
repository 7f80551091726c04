// Package telemetry provides logging, tracing and metrics for factory tooling.
//
// Logging uses zerolog, tracing uses OpenTelemetry with OTLP or stdout
// exporters, and metrics are Prometheus collectors on a private registry.
//
// # Usage
//
//	tel, err := telemetry.NewTelemetry(telemetry.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(ctx)
//
//	reg := factory.NewRegistry(
//	    factory.WithLogger(tel.Logger.Zerolog()),
//	    factory.WithMetrics(tel.Metrics),
//	    factory.WithTracer(tel.Tracer.Tracer()),
//	)
//
// # Metrics
//
// With the default namespace "factory" the following series are exported:
//
//	factory_builds_total{factory}
//	factory_creates_total{factory,status}
//	factory_create_duration_seconds{factory}
//	factory_errors_total{kind}
//	factory_definitions
//	factory_definition_files_loaded_total{format,status}
//
// Every Metrics method is safe on a nil receiver, so instrumented code does
// not need to check whether metrics were configured.
package telemetry
