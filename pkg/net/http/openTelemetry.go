package http

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

// OpenTelemetryNewHandler wraps the handler with tracing spans named by the API.
func OpenTelemetryNewHandler(handler http.Handler, apiName string) http.Handler {
	return otelhttp.NewHandler(handler, apiName, otelhttp.WithTracerProvider(otel.GetTracerProvider()))
}
