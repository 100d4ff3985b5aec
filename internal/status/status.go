package status

import (
	"context"
	"sync"
	"time"

	"github.com/anvik/docstream/internal/config"
	"github.com/anvik/docstream/pkg/logger_i"
)

const (
	Healthy      = "healthy"
	Unhealthy    = "unhealthy"
	Connected    = "connected"
	Disconnected = "disconnected"
)

// Probe checks one dependency. It must respect the context deadline; a probe
// that hangs only costs its own slot.
type Probe func(ctx context.Context) error

type namedProbe struct {
	name      string
	probe     Probe
	okValue   string
	downValue string
}

// Service reports per-dependency health. Probes run concurrently and
// independently, so one dead store never taints another's verdict.
type Service struct {
	probes []namedProbe
	logger *logger_i.Logger
}

func NewService() *Service {
	return &Service{
		logger: logger_i.NewLogger("Status"),
	}
}

func (s *Service) AddHealthProbe(name string, probe Probe) {
	s.probes = append(s.probes, namedProbe{
		name: name, probe: probe, okValue: Healthy, downValue: Unhealthy,
	})
}

func (s *Service) AddConnectionProbe(name string, probe Probe) {
	s.probes = append(s.probes, namedProbe{
		name: name, probe: probe, okValue: Connected, downValue: Disconnected,
	})
}

func (s *Service) Report(ctx context.Context) map[string]string {
	services := make(map[string]string, len(s.probes))
	var mu sync.Mutex
	var waitGroup sync.WaitGroup

	for _, entry := range s.probes {
		waitGroup.Add(1)
		go func(entry namedProbe) {
			defer waitGroup.Done()

			probeCtx, cancel := context.WithTimeout(ctx, config.ProbeTimeout)
			defer cancel()

			verdict := entry.okValue
			start := time.Now()
			if err := entry.probe(probeCtx); err != nil {
				s.logger.Warn("Probe failed", "service", entry.name, "error", err, "elapsed", time.Since(start))
				verdict = entry.downValue
			}

			mu.Lock()
			services[entry.name] = verdict
			mu.Unlock()
		}(entry)
	}

	waitGroup.Wait()
	return services
}
