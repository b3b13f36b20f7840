package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestHelperProcess stands in for the gateway when re-executed by the
// supervisor tests.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("LINKPULSE_GATEWAY_HELPER") != "1" {
		return
	}
	fmt.Println("gateway listening")
	fmt.Fprintln(os.Stderr, "session restored")
	time.Sleep(time.Minute)
	os.Exit(0)
}

// deadURL returns a URL nothing listens on.
func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func helperConfig(healthURL string) Config {
	return Config{
		Enabled:      true,
		HealthURL:    healthURL,
		Command:      []string{os.Args[0], "-test.run=^TestHelperProcess$"},
		Env:          []string{"LINKPULSE_GATEWAY_HELPER=1"},
		CheckTimeout: 500 * time.Millisecond,
		StopTimeout:  2 * time.Second,
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSupervisor_HealthyOnAnyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewSupervisor(Config{HealthURL: srv.URL}, nil)
	if !s.Healthy(context.Background()) {
		t.Error("Healthy() = false for a server answering 500, want true")
	}

	s = NewSupervisor(Config{HealthURL: deadURL(t), CheckTimeout: 200 * time.Millisecond}, nil)
	if s.Healthy(context.Background()) {
		t.Error("Healthy() = true with nothing listening")
	}
}

func TestSupervisor_DoesNotStartWhenHealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	defer srv.Close()

	cfg := helperConfig(srv.URL)
	cfg.Command = []string{"/nonexistent/gateway"}
	s := NewSupervisor(cfg, nil)

	started, err := s.EnsureRunning(context.Background())
	if err != nil || started {
		t.Errorf("EnsureRunning() = %v, %v, want false, nil", started, err)
	}
	if s.Running() {
		t.Error("Running() = true without a started child")
	}
}

func TestSupervisor_StartsPipesOutputAndStops(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewSupervisor(helperConfig(deadURL(t)), zap.New(core))

	started, err := s.EnsureRunning(context.Background())
	if err != nil || !started {
		t.Fatalf("EnsureRunning() = %v, %v, want true, nil", started, err)
	}
	if !s.Running() || s.PID() == 0 {
		t.Fatal("child not reported as running")
	}

	// The child is alive but the health URL still fails: no second start.
	again, err := s.EnsureRunning(context.Background())
	if err != nil || again {
		t.Errorf("second EnsureRunning() = %v, %v, want false, nil", again, err)
	}

	waitFor(t, "gateway stdout in the log", func() bool {
		return logs.FilterMessage("gateway listening").Len() == 1
	})
	waitFor(t, "gateway stderr in the log", func() bool {
		return logs.FilterMessage("session restored").FilterLevelExact(zapcore.WarnLevel).Len() == 1
	})
	entry := logs.FilterMessage("gateway listening").All()[0]
	if entry.ContextMap()["stream"] != "stdout" {
		t.Errorf("stream field = %v, want stdout", entry.ContextMap()["stream"])
	}

	s.Stop(context.Background())
	if s.Running() || s.PID() != 0 {
		t.Error("child still running after Stop")
	}
}

func TestSupervisor_RestartsExitedChild(t *testing.T) {
	cfg := helperConfig(deadURL(t))
	cfg.Command = []string{os.Args[0], "-test.run=^$"} // exits at once
	s := NewSupervisor(cfg, nil)

	if started, err := s.EnsureRunning(context.Background()); err != nil || !started {
		t.Fatalf("EnsureRunning() = %v, %v", started, err)
	}
	waitFor(t, "child to exit", func() bool { return !s.Running() })

	if started, err := s.EnsureRunning(context.Background()); err != nil || !started {
		t.Errorf("EnsureRunning() after exit = %v, %v, want a restart", started, err)
	}
}

func TestSupervisor_StartErrors(t *testing.T) {
	tests := []struct {
		name    string
		command []string
		wantErr error
	}{
		{name: "no command", command: nil, wantErr: ErrNoCommand},
		{name: "empty program", command: []string{""}, wantErr: ErrNoCommand},
		{name: "missing binary", command: []string{"/nonexistent/gateway"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := helperConfig(deadURL(t))
			cfg.Command = tt.command
			s := NewSupervisor(cfg, nil)

			started, err := s.EnsureRunning(context.Background())
			if err == nil || started {
				t.Fatalf("EnsureRunning() = %v, %v, want an error", started, err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSupervisor_StopWithoutChild(t *testing.T) {
	s := NewSupervisor(DefaultConfig(), nil)
	s.Stop(context.Background())
}
