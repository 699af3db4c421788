package otel

import (
	"testing"
	"time"
)

func withEnv(t *testing.T, vars map[string]string) {
	t.Helper()
	prev := lookupEnv
	lookupEnv = func(key string) string { return vars[key] }
	t.Cleanup(func() { lookupEnv = prev })
}

func TestGetExporterConfig(t *testing.T) {
	tests := []struct {
		name         string
		env          map[string]string
		signal       SignalType
		wantEndpoint string
		wantProtocol Protocol
		wantInsecure bool
	}{
		{
			name:         "defaults",
			env:          map[string]string{},
			signal:       SignalTraces,
			wantEndpoint: "http://localhost:4318/v1/traces",
			wantProtocol: ProtocolHTTPProtobuf,
			wantInsecure: true,
		},
		{
			name:         "grpc default",
			env:          map[string]string{"OTEL_EXPORTER_OTLP_PROTOCOL": "grpc"},
			signal:       SignalMetrics,
			wantEndpoint: "localhost:4317",
			wantProtocol: ProtocolGRPC,
		},
		{
			name:         "base endpoint gets signal path",
			env:          map[string]string{"OTEL_EXPORTER_OTLP_ENDPOINT": "otlp.example.com/otlp"},
			signal:       SignalMetrics,
			wantEndpoint: "https://otlp.example.com/otlp/v1/metrics",
			wantProtocol: ProtocolHTTPProtobuf,
		},
		{
			name: "signal endpoint used as-is",
			env: map[string]string{
				"OTEL_EXPORTER_OTLP_ENDPOINT":        "https://ignored.example.com",
				"OTEL_EXPORTER_OTLP_TRACES_ENDPOINT": "http://collector:4318/custom",
			},
			signal:       SignalTraces,
			wantEndpoint: "http://collector:4318/custom",
			wantProtocol: ProtocolHTTPProtobuf,
			wantInsecure: true,
		},
		{
			name: "grpc strips scheme and path",
			env: map[string]string{
				"OTEL_EXPORTER_OTLP_TRACES_PROTOCOL": "grpc",
				"OTEL_EXPORTER_OTLP_ENDPOINT":        "https://collector:4317/ignored",
				"OTEL_EXPORTER_OTLP_INSECURE":        "true",
			},
			signal:       SignalTraces,
			wantEndpoint: "collector:4317",
			wantProtocol: ProtocolGRPC,
			wantInsecure: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.env)
			cfg := GetExporterConfig(tt.signal)

			if cfg.Endpoint != tt.wantEndpoint {
				t.Errorf("Endpoint = %q, want %q", cfg.Endpoint, tt.wantEndpoint)
			}
			if cfg.Protocol != tt.wantProtocol {
				t.Errorf("Protocol = %q, want %q", cfg.Protocol, tt.wantProtocol)
			}
			if cfg.Insecure != tt.wantInsecure {
				t.Errorf("Insecure = %v, want %v", cfg.Insecure, tt.wantInsecure)
			}
		})
	}
}

func TestParseHeaders(t *testing.T) {
	headers := parseHeaders("Authorization=Basic abc==, X-Scope-OrgID=tenant1,broken")
	if headers["Authorization"] != "Basic abc==" {
		t.Errorf("Authorization = %q, want value with padding preserved", headers["Authorization"])
	}
	if headers["X-Scope-OrgID"] != "tenant1" {
		t.Errorf("X-Scope-OrgID = %q, want tenant1", headers["X-Scope-OrgID"])
	}
	if len(headers) != 2 {
		t.Errorf("expected 2 headers, got %v", headers)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"5s", 5 * time.Second},
		{"2500", 2500 * time.Millisecond},
		{"", 10 * time.Second},
		{"soon", 10 * time.Second},
	}

	for _, tt := range tests {
		if got := parseDuration(tt.in, 10*time.Second); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsTrue(t *testing.T) {
	for _, s := range []string{"true", "1", "YES", " on "} {
		if !IsTrue(s) {
			t.Errorf("IsTrue(%q) = false, want true", s)
		}
	}
	for _, s := range []string{"", "false", "0", "off", "nope"} {
		if IsTrue(s) {
			t.Errorf("IsTrue(%q) = true, want false", s)
		}
	}
}
