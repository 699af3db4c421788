package otel

import (
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Protocol represents OTLP transport protocol
type Protocol string

const (
	ProtocolGRPC         Protocol = "grpc"
	ProtocolHTTPProtobuf Protocol = "http/protobuf"
	ProtocolHTTPJSON     Protocol = "http/json"
)

// SignalType represents the OTEL signal type
type SignalType string

const (
	SignalTraces  SignalType = "traces"
	SignalMetrics SignalType = "metrics"
)

// ExporterConfig holds parsed OTLP exporter configuration for a signal
type ExporterConfig struct {
	Endpoint    string
	Protocol    Protocol
	Headers     map[string]string
	Timeout     time.Duration
	Insecure    bool
	Compression string
}

// lookupEnv is swapped in tests.
var lookupEnv = os.Getenv

// IsTracingEnabled returns true if OTEL tracing is enabled
func IsTracingEnabled() bool {
	return IsTrue(env("OTEL_TRACING_ENABLED", "false"))
}

// IsMetricsEnabled returns true if OTEL metrics is enabled
func IsMetricsEnabled() bool {
	return IsTrue(env("OTEL_METRICS_ENABLED", "false"))
}

// GetExporterConfig resolves the exporter configuration for a signal from the
// standard OTEL_EXPORTER_OTLP_* variables. Signal-specific variables
// (OTEL_EXPORTER_OTLP_TRACES_ENDPOINT, ...) win over the generic ones.
func GetExporterConfig(signal SignalType) ExporterConfig {
	r := signalEnv{prefix: "OTEL_EXPORTER_OTLP_" + strings.ToUpper(string(signal)) + "_"}

	cfg := ExporterConfig{
		Protocol:    parseProtocol(r.get("PROTOCOL", "http/protobuf")),
		Headers:     parseHeaders(r.get("HEADERS", "")),
		Timeout:     parseDuration(r.get("TIMEOUT", "10s"), 10*time.Second),
		Compression: r.get("COMPRESSION", ""),
	}
	cfg.Endpoint = resolveEndpoint(signal, r, cfg.Protocol)

	if insecure := r.get("INSECURE", ""); insecure != "" {
		cfg.Insecure = IsTrue(insecure)
	} else {
		cfg.Insecure = strings.HasPrefix(cfg.Endpoint, "http://")
	}

	return cfg
}

// signalEnv reads a signal-specific variable, falling back to the generic one.
type signalEnv struct {
	prefix string
}

func (s signalEnv) get(suffix, defaultValue string) string {
	if v := lookupEnv(s.prefix + suffix); v != "" {
		return v
	}
	return env("OTEL_EXPORTER_OTLP_"+suffix, defaultValue)
}

func (s signalEnv) specific(suffix string) string {
	return lookupEnv(s.prefix + suffix)
}

func parseProtocol(s string) Protocol {
	switch strings.ToLower(s) {
	case "grpc":
		return ProtocolGRPC
	case "http/json":
		return ProtocolHTTPJSON
	default:
		return ProtocolHTTPProtobuf
	}
}

// resolveEndpoint uses a signal-specific endpoint as-is, appends the signal
// path to a base endpoint, and otherwise falls back to the local collector.
func resolveEndpoint(signal SignalType, r signalEnv, protocol Protocol) string {
	if endpoint := r.specific("ENDPOINT"); endpoint != "" {
		return normalizeEndpoint(endpoint, protocol)
	}

	if base := lookupEnv("OTEL_EXPORTER_OTLP_ENDPOINT"); base != "" {
		return appendSignalPath(normalizeEndpoint(base, protocol), signal, protocol)
	}

	if protocol == ProtocolGRPC {
		return "localhost:4317"
	}
	return "http://localhost:4318/v1/" + string(signal)
}

// normalizeEndpoint strips scheme and path for gRPC (host:port only) and adds
// an https scheme to bare HTTP endpoints.
func normalizeEndpoint(endpoint string, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		endpoint = strings.TrimPrefix(endpoint, "https://")
		if idx := strings.Index(endpoint, "/"); idx != -1 {
			endpoint = endpoint[:idx]
		}
		return endpoint
	}

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return endpoint
}

func appendSignalPath(endpoint string, signal SignalType, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		return endpoint
	}

	signalPath := "/v1/" + string(signal)

	u, err := url.Parse(endpoint)
	if err != nil {
		return strings.TrimSuffix(endpoint, "/") + signalPath
	}
	if strings.HasSuffix(u.Path, signalPath) {
		return endpoint
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + signalPath
	return u.String()
}

func env(key, defaultValue string) string {
	if value := lookupEnv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsTrue checks if a string represents a true value
func IsTrue(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseHeaders parses "key1=value1,key2=value2". Values are kept verbatim
// after the first '=' so base64 credentials survive.
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}

	for _, pair := range strings.Split(headerStr, ",") {
		pair = strings.TrimSpace(pair)
		if idx := strings.Index(pair, "="); idx > 0 {
			key := strings.TrimSpace(pair[:idx])
			headers[key] = pair[idx+1:]
			slog.Debug("Parsed OTEL header", "key", key, "value_length", len(pair)-idx-1)
		}
	}

	return headers
}

// parseDuration accepts Go durations ("10s") and OTEL-style milliseconds ("10000").
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
