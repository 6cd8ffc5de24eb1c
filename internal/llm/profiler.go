// In file: internal/llm/profiler.go
package llm

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dileep-u-k/tool-router/internal/api"
)

// Provider status values stored in a profile.
const (
	StatusOnline   = "online"
	StatusDegraded = "degraded"
	StatusOffline  = "offline"
)

// latencyAlpha weights the newest sample in the latency moving average.
const latencyAlpha = 0.1

// ProviderProfile tracks reliability and latency for one provider.
// It is an operational view only; routing never consults it.
type ProviderProfile struct {
	Provider          string    `json:"provider" redis:"provider"`
	AvgLatencyMS      int64     `json:"avg_latency_ms" redis:"avg_latency_ms"`
	Status            string    `json:"status" redis:"status"`
	ErrorRate         float64   `json:"error_rate" redis:"error_rate"`
	TotalSuccesses    int64     `json:"total_successes" redis:"total_successes"`
	TotalFailures     int64     `json:"total_failures" redis:"total_failures"`
	TotalInputTokens  int64     `json:"total_input_tokens" redis:"total_input_tokens"`
	TotalOutputTokens int64     `json:"total_output_tokens" redis:"total_output_tokens"`
	LastHealthCheck   time.Time `json:"last_health_check" redis:"-"`
}

// Profiler persists provider profiles as Redis hashes.
type Profiler struct {
	rdb    *redis.Client
	prefix string
}

// NewProfiler creates a profiler. prefix namespaces the keys, e.g. "toolrouter".
func NewProfiler(rdb *redis.Client, prefix string) *Profiler {
	if prefix == "" {
		prefix = "toolrouter"
	}
	return &Profiler{rdb: rdb, prefix: prefix}
}

func (p *Profiler) profileKey(provider string) string {
	return fmt.Sprintf("%s:profile:%s", p.prefix, provider)
}

// GetProfile retrieves a provider's profile. A provider never recorded gets an empty online profile.
func (p *Profiler) GetProfile(ctx context.Context, provider string) (*ProviderProfile, error) {
	data, err := p.rdb.HGetAll(ctx, p.profileKey(provider)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read profile for %s: %w", provider, err)
	}

	profile := &ProviderProfile{Provider: provider, Status: StatusOnline}
	if len(data) == 0 {
		return profile, nil
	}
	profile.AvgLatencyMS, _ = strconv.ParseInt(data["avg_latency_ms"], 10, 64)
	if s := data["status"]; s != "" {
		profile.Status = s
	}
	profile.ErrorRate, _ = strconv.ParseFloat(data["error_rate"], 64)
	profile.TotalSuccesses, _ = strconv.ParseInt(data["total_successes"], 10, 64)
	profile.TotalFailures, _ = strconv.ParseInt(data["total_failures"], 10, 64)
	profile.TotalInputTokens, _ = strconv.ParseInt(data["total_input_tokens"], 10, 64)
	profile.TotalOutputTokens, _ = strconv.ParseInt(data["total_output_tokens"], 10, 64)
	profile.LastHealthCheck, _ = time.Parse(time.RFC3339Nano, data["last_health_check"])
	return profile, nil
}

// RecordSuccess folds a successful call into the provider's profile.
func (p *Profiler) RecordSuccess(ctx context.Context, provider string, latency time.Duration, usage api.Usage) {
	key := p.profileKey(provider)

	err := p.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, key, "avg_latency_ms").Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		next := latency.Milliseconds()
		if current > 0 {
			next = int64(latencyAlpha*float64(latency.Milliseconds()) + (1-latencyAlpha)*float64(current))
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "avg_latency_ms", next)
			return nil
		})
		return err
	}, key)
	if err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("Failed to update provider latency")
	}

	pipe := p.rdb.Pipeline()
	successes := pipe.HIncrBy(ctx, key, "total_successes", 1)
	failures := pipe.HGet(ctx, key, "total_failures")
	pipe.HIncrBy(ctx, key, "total_input_tokens", int64(usage.PromptTokens))
	pipe.HIncrBy(ctx, key, "total_output_tokens", int64(usage.CompletionTokens))
	pipe.HSet(ctx, key, "provider", provider, "status", StatusOnline)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("provider", provider).Msg("Failed to record provider success")
		return
	}

	totalFailures, _ := strconv.ParseInt(failures.Val(), 10, 64)
	p.updateErrorRate(ctx, key, successes.Val(), totalFailures)
}

// RecordFailure marks the provider degraded and updates its error rate.
func (p *Profiler) RecordFailure(ctx context.Context, provider string) {
	key := p.profileKey(provider)
	pipe := p.rdb.Pipeline()
	failures := pipe.HIncrBy(ctx, key, "total_failures", 1)
	successes := pipe.HGet(ctx, key, "total_successes")
	pipe.HSet(ctx, key, "provider", provider, "status", StatusDegraded)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		log.Warn().Err(err).Str("provider", provider).Msg("Failed to record provider failure")
		return
	}

	totalSuccesses, _ := strconv.ParseInt(successes.Val(), 10, 64)
	p.updateErrorRate(ctx, key, totalSuccesses, failures.Val())
}

// RecordHealthCheck stores the outcome of a proactive probe.
func (p *Profiler) RecordHealthCheck(ctx context.Context, provider string, healthy bool) {
	status := StatusOffline
	if healthy {
		status = StatusOnline
	}
	err := p.rdb.HSet(ctx, p.profileKey(provider),
		"provider", provider,
		"status", status,
		"last_health_check", time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		log.Warn().Err(err).Str("provider", provider).Msg("Failed to record health check")
	}
}

func (p *Profiler) updateErrorRate(ctx context.Context, key string, successes, failures int64) {
	total := successes + failures
	if total == 0 {
		return
	}
	if err := p.rdb.HSet(ctx, key, "error_rate", float64(failures)/float64(total)).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Failed to update error rate")
	}
}
