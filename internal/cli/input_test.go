package cli

import (
	"errors"
	"testing"
)

func TestParseInvocationResolvesRelativePaths(t *testing.T) {
	inv, err := ParseInvocation([]string{
		"-workdir", "/alloc/job42",
		"-config", "batch.yaml",
		"-log-dir", "out/logs",
		"-trace", "/var/trace/run.jsonl",
	})
	if err != nil {
		t.Fatal(err)
	}
	if inv.ConfigPath != "/alloc/job42/batch.yaml" {
		t.Errorf("config path = %q", inv.ConfigPath)
	}
	if inv.LogDir != "/alloc/job42/out/logs" {
		t.Errorf("log dir = %q", inv.LogDir)
	}
	// Absolute paths pass through untouched.
	if inv.TracePath != "/var/trace/run.jsonl" {
		t.Errorf("trace path = %q", inv.TracePath)
	}
}

func TestParseInvocationOptionalOverridesDefaultEmpty(t *testing.T) {
	inv, err := ParseInvocation([]string{"-workdir", "/alloc", "-config", "b.yaml"})
	if err != nil {
		t.Fatal(err)
	}
	if inv.LogDir != "" || inv.TracePath != "" {
		t.Errorf("overrides not empty: log-dir=%q trace=%q", inv.LogDir, inv.TracePath)
	}
}

func TestParseInvocationRejections(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"missing workdir", []string{"-config", "b.yaml"}},
		{"relative workdir", []string{"-workdir", "work", "-config", "b.yaml"}},
		{"missing config", []string{"-workdir", "/alloc"}},
		{"unknown flag", []string{"-workdir", "/alloc", "-config", "b.yaml", "-bogus"}},
		{"positional args", []string{"-workdir", "/alloc", "-config", "b.yaml", "extra"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseInvocation(tc.args)
			if err == nil {
				t.Fatal("expected error")
			}
			var invErr *InvocationError
			if !errors.As(err, &invErr) {
				t.Fatalf("err = %T, want *InvocationError", err)
			}
			if got := ExitCode(err); got != ExitInvalidInvocation {
				t.Errorf("exit code = %d, want %d", got, ExitInvalidInvocation)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != ExitSuccess {
		t.Errorf("nil error = %d, want 0", got)
	}
	if got := ExitCode(errors.New("boom")); got != ExitInternalError {
		t.Errorf("plain error = %d, want %d", got, ExitInternalError)
	}
}
