package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-engine/internal/repository"
	"github.com/spec-kit/ticket-engine/internal/service"
)

// AutoCloseWorker periodically closes open tickets whose last activity
// predates the tenant's auto-close window. It is a thin caller into the
// normal close flow; every ticket failure is isolated and logged.
type AutoCloseWorker struct {
	configs     repository.TenantConfigStore
	tickets     repository.TicketStore
	transcripts *service.TranscriptService
	interval    time.Duration
	actorID     string
	logger      *zap.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewAutoCloseWorker constructs the worker. actorID is recorded as the
// closer on auto-closed tickets.
func NewAutoCloseWorker(configs repository.TenantConfigStore, tickets repository.TicketStore, transcripts *service.TranscriptService, interval time.Duration, actorID string, logger *zap.Logger) *AutoCloseWorker {
	return &AutoCloseWorker{
		configs:     configs,
		tickets:     tickets,
		transcripts: transcripts,
		interval:    interval,
		actorID:     actorID,
		logger:      logger,
	}
}

// Start launches the scan loop. Calling Start twice is a no-op.
func (w *AutoCloseWorker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(ctx)
	w.logger.Info("auto-close worker started", zap.Duration("interval", w.interval))
}

// Stop halts the scan loop and waits for an in-flight scan to finish.
func (w *AutoCloseWorker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	w.wg.Wait()
}

func (w *AutoCloseWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single scan. Overlapping scans are skipped.
func (w *AutoCloseWorker) RunOnce(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	configs, err := w.configs.ListAutoClose(ctx)
	if err != nil {
		w.logger.Error("auto-close scan failed", zap.Error(err))
		return
	}

	for _, cfg := range configs {
		cutoff := time.Now().Add(-time.Duration(cfg.AutoCloseHours) * time.Hour)
		stale, err := w.tickets.FindStaleOpen(ctx, cfg.TenantID, cutoff)
		if err != nil {
			w.logger.Error("failed to list stale tickets",
				zap.String("tenant_id", cfg.TenantID), zap.Error(err))
			continue
		}
		if len(stale) > 0 {
			w.logger.Info("auto-closing stale tickets",
				zap.String("tenant_id", cfg.TenantID),
				zap.Int("count", len(stale)))
		}

		for _, ticket := range stale {
			if err := w.transcripts.Close(ctx, cfg.TenantID, ticket.ID, w.actorID, "auto-closed due to inactivity"); err != nil {
				w.logger.Error("failed to auto-close ticket",
					zap.String("ticket_id", ticket.ID), zap.Error(err))
			}
		}
	}
}
