// Package worker drains the job queue and evaluates signals (spec.md
// §4.8): load, cooldown-gate, compile-or-cache, fan out per chain, and on
// trigger commit timestamps before calling the notifier.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flare-signals/signal-engine/internal/compiler"
	"github.com/flare-signals/signal-engine/internal/evaluator"
	"github.com/flare-signals/signal-engine/internal/fetcher"
	"github.com/flare-signals/signal-engine/internal/notifier"
	"github.com/flare-signals/signal-engine/internal/queue"
	"github.com/flare-signals/signal-engine/internal/registry"
	"github.com/flare-signals/signal-engine/internal/signaldsl"
	"github.com/flare-signals/signal-engine/internal/store"
)

// Config holds the processor's tunables.
type Config struct {
	// ChainConcurrency bounds how many chains are evaluated concurrently
	// for a single signal (spec.md §5: "bounded concurrency primitive to
	// cap RPC fan-out").
	ChainConcurrency int
}

// DefaultChainConcurrency is used when Config.ChainConcurrency is unset.
const DefaultChainConcurrency = 4

// Processor evaluates one job end to end.
type Processor struct {
	store      store.Store
	fetchers   map[string]fetcher.Fetcher
	registries map[string]*registry.Registry
	evaluator  *evaluator.SignalEvaluator
	notifier   *notifier.Notifier
	cache      *CompiledCache
	config     Config
	logger     *slog.Logger
}

// NewProcessor builds a Processor. fetchers and registries are keyed by
// protocol (spec.md §4.5 fetchers are protocol bindings).
func NewProcessor(
	st store.Store,
	fetchers map[string]fetcher.Fetcher,
	registries map[string]*registry.Registry,
	eval *evaluator.SignalEvaluator,
	notif *notifier.Notifier,
	cache *CompiledCache,
	config Config,
	logger *slog.Logger,
) *Processor {
	if config.ChainConcurrency == 0 {
		config.ChainConcurrency = DefaultChainConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		store: st, fetchers: fetchers, registries: registries,
		evaluator: eval, notifier: notif, cache: cache, config: config, logger: logger,
	}
}

// ProcessJob implements the six steps of spec.md §4.8.
func (p *Processor) ProcessJob(ctx context.Context, job queue.Job) error {
	def, err := p.store.LoadSignal(ctx, job.SignalID)
	if err != nil {
		return fmt.Errorf("worker: loading signal %s: %w", job.SignalID, err)
	}
	if def == nil || !def.IsActive {
		p.logger.Info("dropping job for missing or inactive signal", "signal_id", job.SignalID)
		processorMetrics.jobsSkipped.Add(ctx, 1)
		return nil
	}

	now := time.Now()
	if inCooldown(def, now) {
		p.logger.Debug("signal in cooldown, skipping evaluation", "signal_id", def.ID)
		processorMetrics.jobsSkipped.Add(ctx, 1)
		return p.store.MarkEvaluated(ctx, def.ID, now)
	}

	reg, ok := p.registries[def.Protocol]
	if !ok {
		return fmt.Errorf("worker: no metric registry configured for protocol %q", def.Protocol)
	}
	compiled, err := p.cache.GetOrCompile(def, reg)
	if err != nil {
		return fmt.Errorf("worker: compiling signal %s: %w", def.ID, err)
	}

	f, ok := p.fetchers[def.Protocol]
	if !ok {
		return fmt.Errorf("worker: no fetcher configured for protocol %q", def.Protocol)
	}

	windowDuration, err := signaldsl.ParseDuration(def.WindowDuration)
	if err != nil {
		return fmt.Errorf("worker: parsing window duration for signal %s: %w", def.ID, err)
	}

	results, err := p.evaluateChains(ctx, def, compiled, f, windowDuration, now)
	if err != nil {
		return fmt.Errorf("worker: evaluating signal %s: %w", def.ID, err)
	}

	processorMetrics.jobsProcessed.Add(ctx, 1)

	triggered := triggeredChains(results)
	if len(triggered) == 0 {
		return p.store.MarkEvaluated(ctx, def.ID, now)
	}
	processorMetrics.jobsTriggered.Add(ctx, 1)

	// Commit the trigger timestamp before calling the notifier: cooldown is
	// enforced regardless of delivery outcome (spec.md §4.8 step 6).
	if err := p.store.MarkTriggered(ctx, def.ID, now); err != nil {
		return fmt.Errorf("worker: committing trigger for signal %s: %w", def.ID, err)
	}

	payload := buildPayload(def, triggered, results, now)
	result, err := p.notifier.Dispatch(ctx, def.WebhookURL, payload)
	if err != nil {
		return fmt.Errorf("worker: dispatching notification for signal %s: %w", def.ID, err)
	}
	if !result.Success {
		p.logger.Warn("notifier delivery failed, trigger already committed",
			"signal_id", def.ID, "attempts", result.Attempts, "error", result.Error)
	}
	return nil
}

// evaluateChains runs one evaluation per chain in def.Chains, bounded to
// config.ChainConcurrency concurrent fetcher calls (spec.md §5: per-chain
// evaluations may run concurrently but must join before the trigger/
// dispatch step). A NotFound or Schema leaf error leaves that chain out of
// the results; any other error fails the whole evaluation.
func (p *Processor) evaluateChains(
	ctx context.Context,
	def *signaldsl.SignalDefinition,
	compiled *compiler.CompiledSignal,
	f fetcher.Fetcher,
	windowDuration time.Duration,
	now time.Time,
) (map[int64]*evaluator.GroupResult, error) {
	results := make(map[int64]*evaluator.GroupResult, len(def.Chains))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.ChainConcurrency)

	for _, chainID := range def.Chains {
		chainID := chainID
		g.Go(func() error {
			ectx := evaluator.NewEvalContext(chainID, windowDuration, now, f)
			result, err := p.evaluator.Evaluate(gctx, compiled, ectx)
			if err != nil {
				var notFound *fetcher.ErrNotFound
				var schema *fetcher.ErrSchema
				if errors.As(err, &notFound) || errors.As(err, &schema) {
					p.logger.Warn("chain omitted from evaluation",
						"signal_id", def.ID, "chain_id", chainID, "error", err)
					return nil
				}
				return fmt.Errorf("chain %d: %w", chainID, err)
			}
			mu.Lock()
			results[chainID] = result
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// inCooldown implements spec.md §4.8 step 2.
func inCooldown(def *signaldsl.SignalDefinition, now time.Time) bool {
	if def.LastTriggeredAt == nil {
		return false
	}
	cooldown := time.Duration(def.CooldownMinutes) * time.Minute
	return now.Sub(*def.LastTriggeredAt) < cooldown
}

func triggeredChains(results map[int64]*evaluator.GroupResult) []int64 {
	var out []int64
	for chainID, r := range results {
		if r.Triggered {
			out = append(out, chainID)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
