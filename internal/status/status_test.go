package status_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anvik/docstream/internal/status"
)

func TestReport_MixedVerdicts(t *testing.T) {
	s := status.NewService()
	s.AddHealthProbe("postgresql", func(ctx context.Context) error { return nil })
	s.AddHealthProbe("qdrant", func(ctx context.Context) error { return errors.New("dial refused") })
	s.AddConnectionProbe("nats", func(ctx context.Context) error { return nil })
	s.AddConnectionProbe("broker-b", func(ctx context.Context) error { return errors.New("down") })

	services := s.Report(context.Background())

	want := map[string]string{
		"postgresql": status.Healthy,
		"qdrant":     status.Unhealthy,
		"nats":       status.Connected,
		"broker-b":   status.Disconnected,
	}
	for name, verdict := range want {
		if services[name] != verdict {
			t.Errorf("%s got %q, want %q", name, services[name], verdict)
		}
	}
	if len(services) != len(want) {
		t.Errorf("Report entries got %d, want %d", len(services), len(want))
	}
}

// One dependency that only answers at its deadline must not change the
// verdict of the others.
func TestReport_SlowProbeIsolated(t *testing.T) {
	s := status.NewService()
	s.AddHealthProbe("cache", func(ctx context.Context) error { return nil })
	s.AddHealthProbe("storage", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	services := s.Report(context.Background())
	elapsed := time.Since(start)

	if services["cache"] != status.Healthy {
		t.Errorf("cache got %q, want %q", services["cache"], status.Healthy)
	}
	if services["storage"] != status.Unhealthy {
		t.Errorf("storage got %q, want %q", services["storage"], status.Unhealthy)
	}
	// Probes run concurrently, the slow one bounds the total.
	if elapsed > 5*time.Second {
		t.Errorf("Report took %v, probes are not bounded", elapsed)
	}
}

func TestReport_NoProbes(t *testing.T) {
	s := status.NewService()
	services := s.Report(context.Background())
	if len(services) != 0 {
		t.Errorf("Report got %v, want empty", services)
	}
}
