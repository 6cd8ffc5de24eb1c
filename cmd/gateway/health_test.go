package main

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileep-u-k/tool-router/internal/llm"
	"github.com/dileep-u-k/tool-router/internal/tools"
)

type probeClient struct {
	name     string
	err      error
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (p *probeClient) Name() string { return p.name }

func (p *probeClient) Generate(ctx context.Context, msgs []llm.Message, cfg *llm.GenerationConfig, offered []tools.Tool) (*llm.GenerationResult, error) {
	if p.inFlight != nil {
		n := p.inFlight.Add(1)
		defer p.inFlight.Add(-1)
		for {
			peak := p.peak.Load()
			if n <= peak || p.peak.CompareAndSwap(peak, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	if len(msgs) != 1 || cfg.MaxTokens != 5 || offered != nil {
		return nil, errors.New("unexpected probe shape")
	}
	if p.err != nil {
		return nil, p.err
	}
	return &llm.GenerationResult{Content: "New Delhi"}, nil
}

type clientMap map[string]llm.LLMClient

func (m clientMap) Providers() []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (m clientMap) Client(name string) (llm.LLMClient, error) {
	c, ok := m[name]
	if !ok {
		return nil, errors.New("no client")
	}
	return c, nil
}

type healthLog struct {
	mu      sync.Mutex
	results map[string]bool
}

func (h *healthLog) RecordHealthCheck(_ context.Context, provider string, healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.results[provider] = healthy
}

func testHealthConfig() HealthCheckConfig {
	return HealthCheckConfig{
		Enabled:     true,
		Schedule:    "@every 5m",
		Timeout:     time.Second,
		Concurrency: 2,
		Prompt:      "What is the capital of India?",
	}
}

func TestHealthChecker_RunOnce(t *testing.T) {
	source := clientMap{
		"openai":    &probeClient{name: "openai"},
		"anthropic": &probeClient{name: "anthropic", err: errors.New("overloaded")},
		"gemini":    &probeClient{name: "gemini"},
	}
	rec := &healthLog{results: map[string]bool{}}

	checker, err := NewHealthChecker(testHealthConfig(), source, rec)
	require.NoError(t, err)

	got := checker.RunOnce(context.Background())
	want := map[string]bool{"openai": true, "anthropic": false, "gemini": true}
	assert.Equal(t, want, got)
	assert.Equal(t, want, rec.results)
}

func TestHealthChecker_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	source := clientMap{}
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		source[n] = &probeClient{name: n, inFlight: &inFlight, peak: &peak}
	}

	cfg := testHealthConfig()
	cfg.Concurrency = 2
	checker, err := NewHealthChecker(cfg, source, nil)
	require.NoError(t, err)

	got := checker.RunOnce(context.Background())
	assert.Len(t, got, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestNewHealthChecker_RejectsBadSchedule(t *testing.T) {
	cfg := testHealthConfig()
	cfg.Schedule = "every five minutes"
	_, err := NewHealthChecker(cfg, clientMap{}, nil)
	assert.ErrorContains(t, err, "invalid health check schedule")

	cfg.Schedule = "*/10 * * * *"
	_, err = NewHealthChecker(cfg, clientMap{}, nil)
	assert.NoError(t, err)
}

func TestHealthChecker_StartStop(t *testing.T) {
	rec := &healthLog{results: map[string]bool{}}
	checker, err := NewHealthChecker(testHealthConfig(), clientMap{"openai": &probeClient{name: "openai"}}, rec)
	require.NoError(t, err)

	checker.Start()
	assert.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return rec.results["openai"]
	}, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	checker.Stop(ctx)
}
