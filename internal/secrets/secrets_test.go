package secrets

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestEnvKeyFor(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"database_url", "ALERTCONV_SECRET_DATABASE_URL"},
		{"redis_url", "ALERTCONV_SECRET_REDIS_URL"},
		{"api-token", "ALERTCONV_SECRET_API_TOKEN"},
	}

	for _, tt := range tests {
		if got := envKeyFor(tt.name); got != tt.want {
			t.Errorf("envKeyFor(%q): got %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestEnvResolver(t *testing.T) {
	t.Setenv("ALERTCONV_SECRET_DATABASE_URL", "postgres://vault:pw@db/alertconv")

	r := NewEnvResolver()

	got, err := r.Resolve(context.Background(), SecretDatabaseURL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "postgres://vault:pw@db/alertconv" {
		t.Errorf("Resolve: got %q", got)
	}

	// Unset names resolve to empty with no error.
	got, err = r.Resolve(context.Background(), "unset_secret")
	if err != nil {
		t.Fatalf("Resolve unset: %v", err)
	}
	if got != "" {
		t.Errorf("Resolve unset: got %q, want empty", got)
	}

	if err := r.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestNewResolverEnvBackend(t *testing.T) {
	r, err := NewResolver(Config{Backend: "env"}, testLogger())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, ok := r.(*EnvResolver); !ok {
		t.Errorf("expected *EnvResolver, got %T", r)
	}
}

func TestNewResolverAutoFallsBackToEnv(t *testing.T) {
	// No Connect host/token configured: auto must not fail, it must fall
	// back to the environment backend.
	r, err := NewResolver(Config{Backend: "auto"}, testLogger())
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	if _, ok := r.(*EnvResolver); !ok {
		t.Errorf("expected *EnvResolver fallback, got %T", r)
	}
}

func TestNewResolverOnePasswordIncomplete(t *testing.T) {
	_, err := NewResolver(Config{Backend: "1password"}, testLogger())
	if err == nil {
		t.Fatal("expected error for incomplete 1Password config, got nil")
	}
}

func TestNewResolverUnknownBackend(t *testing.T) {
	_, err := NewResolver(Config{Backend: "consul"}, testLogger())
	if err == nil {
		t.Fatal("expected error for unknown backend, got nil")
	}
}
