// In file: cmd/gateway/health.go
package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"

	"github.com/dileep-u-k/tool-router/internal/llm"
)

// providerSource is the part of the gateway the health checker probes through.
type providerSource interface {
	Providers() []string
	Client(name string) (llm.LLMClient, error)
}

// healthRecorder stores probe results. *llm.Profiler implements it.
type healthRecorder interface {
	RecordHealthCheck(ctx context.Context, provider string, healthy bool)
}

// HealthChecker proactively probes every provider on a cron schedule.
type HealthChecker struct {
	source   providerSource
	recorder healthRecorder
	cfg      HealthCheckConfig
	schedule cron.Schedule
	cron     *cron.Cron
}

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewHealthChecker parses the schedule up front so a typo fails at startup.
// recorder may be nil, in which case results are only logged.
func NewHealthChecker(cfg HealthCheckConfig, source providerSource, recorder healthRecorder) (*HealthChecker, error) {
	sched, err := scheduleParser.Parse(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("invalid health check schedule %q: %w", cfg.Schedule, err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &HealthChecker{
		source:   source,
		recorder: recorder,
		cfg:      cfg,
		schedule: sched,
		cron:     cron.New(),
	}, nil
}

// Start runs one round immediately and then follows the schedule.
func (h *HealthChecker) Start() {
	h.cron.Schedule(h.schedule, cron.FuncJob(func() { h.RunOnce(context.Background()) }))
	h.cron.Start()
	log.Info().Str("schedule", h.cfg.Schedule).Msg("🩺 Health checker started.")
	go h.RunOnce(context.Background())
}

// Stop halts the schedule and waits for a running round to finish or ctx to end.
func (h *HealthChecker) Stop(ctx context.Context) {
	select {
	case <-h.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// RunOnce probes every provider in parallel and returns each one's health.
func (h *HealthChecker) RunOnce(ctx context.Context) map[string]bool {
	log.Debug().Msg("🩺 Running proactive health checks...")

	var mu sync.Mutex
	results := make(map[string]bool)

	p := pool.New().WithMaxGoroutines(h.cfg.Concurrency)
	for _, name := range h.source.Providers() {
		p.Go(func() {
			healthy := h.probe(ctx, name)
			mu.Lock()
			results[name] = healthy
			mu.Unlock()
			if h.recorder != nil {
				h.recorder.RecordHealthCheck(ctx, name, healthy)
			}
			log.Info().Str("provider", name).Bool("healthy", healthy).Msg("Health check")
		})
	}
	p.Wait()
	return results
}

func (h *HealthChecker) probe(ctx context.Context, name string) bool {
	client, err := h.source.Client(name)
	if err != nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, h.cfg.Timeout)
	defer cancel()

	prompt := []llm.Message{{Role: llm.RoleUser, Content: h.cfg.Prompt}}
	_, err = client.Generate(ctx, prompt, &llm.GenerationConfig{MaxTokens: 5}, nil)
	if err != nil {
		log.Warn().Str("provider", name).Err(err).Msg("Health probe failed")
		return false
	}
	return true
}
