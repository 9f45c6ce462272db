// Package pipeline wires one ingest cycle: fetch a raw payload, normalize
// it, append it to the hash chain, queue it for anchoring, and run the
// integrity rules against the previous observation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/electoral-watch/sentinel/pkg/anchor"
	"github.com/electoral-watch/sentinel/pkg/model"
	"github.com/electoral-watch/sentinel/pkg/normalize"
	"github.com/electoral-watch/sentinel/pkg/rules"
	"github.com/electoral-watch/sentinel/pkg/schema"
	"github.com/electoral-watch/sentinel/pkg/store"
)

// DataSource fetches one raw tally payload per scope. Implementations wrap
// the upstream publication endpoint or a capture directory.
type DataSource interface {
	Fetch(ctx context.Context, scope string) (map[string]any, error)
}

// CycleResult is the outcome of a single scope's ingest cycle.
type CycleResult struct {
	Entry model.ChainEntry
	Rules model.RulesResult
}

// Pipeline drives ingest cycles. Cycles for the same scope are serialized;
// different scopes may run concurrently.
type Pipeline struct {
	source  DataSource
	store   store.SnapshotStore
	engine  *rules.Engine
	batcher *anchor.Batcher // nil disables anchoring
	opts    normalize.Options
	logger  *slog.Logger

	mu       sync.Mutex
	scopeMu  map[string]*sync.Mutex
	previous map[string]*rules.Record
}

// Options assembles a Pipeline.
type Options struct {
	Source    DataSource
	Store     store.SnapshotStore
	Engine    *rules.Engine
	Batcher   *anchor.Batcher
	Normalize normalize.Options
	Logger    *slog.Logger
}

func New(o Options) *Pipeline {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		source:   o.Source,
		store:    o.Store,
		engine:   o.Engine,
		batcher:  o.Batcher,
		opts:     o.Normalize,
		logger:   logger,
		scopeMu:  make(map[string]*sync.Mutex),
		previous: make(map[string]*rules.Record),
	}
}

func (p *Pipeline) lock(scope string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.scopeMu[scope]; !ok {
		p.scopeMu[scope] = &sync.Mutex{}
	}
	return p.scopeMu[scope]
}

// RunCycle ingests one snapshot for a scope, given by department name. The
// snapshot is stored even when rules raise alerts; the audit trail must
// capture suspicious data, not reject it.
func (p *Pipeline) RunCycle(ctx context.Context, scope string) (CycleResult, error) {
	lock := p.lock(scope)
	lock.Lock()
	defer lock.Unlock()

	raw, err := p.source.Fetch(ctx, scope)
	if err != nil {
		return CycleResult{}, fmt.Errorf("fetch %s: %w", scope, err)
	}

	record := rules.ParseRecord(raw)

	opts := p.opts
	opts.DepartmentName = scope
	if opts.TimestampUTC == "" {
		// Prefer the payload's own publication time so replays of the same
		// payload stay idempotent.
		if record.HasTimestamp {
			opts.TimestampUTC = record.Timestamp.UTC().Format(time.RFC3339)
		} else {
			opts.TimestampUTC = time.Now().UTC().Format(time.RFC3339)
		}
	}
	snap := normalize.Normalize(raw, opts)

	entry, err := p.store.Store(ctx, snap)
	if err != nil {
		return CycleResult{}, fmt.Errorf("store %s: %w", scope, err)
	}
	if err := schema.ValidateSnapshotJSON(entry.CanonicalJSON); err != nil {
		// Validation is advisory: the entry is already part of the chain.
		p.logger.Warn("stored snapshot fails schema validation",
			"scope", entry.Scope, "timestamp", entry.TimestampUTC, "error", err)
	}
	p.logger.Info("snapshot stored",
		"scope", entry.Scope,
		"timestamp", entry.TimestampUTC,
		"hash", entry.Hash,
		"total_votes", entry.Totals.TotalVotes)

	if p.batcher != nil {
		p.batcher.Add(entry.Scope, entry.Hash)
		if err := p.batcher.Flush(ctx); err != nil {
			p.logger.Warn("anchor flush failed", "scope", entry.Scope, "error", err)
		}
	}

	result := CycleResult{Entry: entry}
	if p.engine != nil {
		record.Scope = entry.Scope
		result.Rules = p.engine.Evaluate(ctx, record, p.previous[entry.Scope])
		p.previous[entry.Scope] = record
	}
	return result, nil
}

// RunAll runs one cycle for every scope in order. A failing scope is logged
// and does not stop the others.
func (p *Pipeline) RunAll(ctx context.Context, scopes []string) []CycleResult {
	results := make([]CycleResult, 0, len(scopes))
	for _, scope := range scopes {
		res, err := p.RunCycle(ctx, scope)
		if err != nil {
			p.logger.Error("ingest cycle failed", "scope", scope, "error", err)
			continue
		}
		results = append(results, res)
	}
	return results
}
