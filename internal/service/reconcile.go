package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tudbom/counter-api/internal/database"
	"github.com/tudbom/counter-api/internal/enum"
)

// OutboxStore reads and settles stock movements on the order side.
// Satisfied by *database.Queries.
type OutboxStore interface {
	ListPendingStockMovements(ctx context.Context, arg database.ListPendingStockMovementsParams) ([]database.StockMovement, error)
	UpdateStockMovementStatus(ctx context.Context, arg database.UpdateStockMovementStatusParams) error
}

// ReconcilerConfig tunes a Reconciler. Zero values take defaults.
type ReconcilerConfig struct {
	Interval time.Duration
	// Grace skips movements younger than this, leaving them to the
	// submission that wrote them.
	Grace       time.Duration
	BatchSize   int32
	LockTimeout time.Duration
	Now         func() time.Time
}

// ReconcileStats counts what one pass did.
type ReconcileStats struct {
	Checked        int
	Applied        int
	AlreadyApplied int
	Failed         int
}

// Reconciler settles stock movements left pending when the catalog lives in
// its own database and its commit did not follow the order commit.
type Reconciler struct {
	outbox     OutboxStore
	catalogDB  TxBeginner
	newCatalog NewCatalogStore
	cfg        ReconcilerConfig
}

func NewReconciler(outbox OutboxStore, catalogDB TxBeginner, newCatalog NewCatalogStore, cfg ReconcilerConfig) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Grace <= 0 {
		cfg.Grace = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = defaultLockTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Reconciler{outbox: outbox, catalogDB: catalogDB, newCatalog: newCatalog, cfg: cfg}
}

// Run reconciles on every tick until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := r.RunOnce(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Stock reconciliation failed")
				continue
			}
			if stats.Checked > 0 {
				log.Info().
					Int("checked", stats.Checked).
					Int("applied", stats.Applied).
					Int("already_applied", stats.AlreadyApplied).
					Int("failed", stats.Failed).
					Msg("Stock reconciliation pass")
			}
		}
	}
}

// RunOnce settles one batch of pending movements older than the grace
// period. A movement whose catalog marker exists is only marked applied;
// otherwise its decrements are replayed with the marker in one catalog
// transaction.
func (r *Reconciler) RunOnce(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats

	pending, err := r.outbox.ListPendingStockMovements(ctx, database.ListPendingStockMovementsParams{
		CreatedBefore: r.cfg.Now().Add(-r.cfg.Grace),
		Limit:         r.cfg.BatchSize,
	})
	if err != nil {
		return stats, fmt.Errorf("list pending stock movements: %w", err)
	}

	for _, m := range pending {
		stats.Checked++
		status, err := r.reconcile(ctx, m)
		if err != nil {
			// Left pending for the next pass.
			log.Warn().Err(err).Str("movement_id", m.ID.String()).Int64("order_id", m.OrderID).
				Msg("Could not reconcile stock movement")
			continue
		}

		if err := r.outbox.UpdateStockMovementStatus(ctx, database.UpdateStockMovementStatusParams{
			ID:     m.ID,
			Status: status.outboxStatus(),
		}); err != nil {
			return stats, fmt.Errorf("update stock movement %s: %w", m.ID, err)
		}
		switch status {
		case settledApplied:
			stats.Applied++
		case settledAlreadyApplied:
			stats.AlreadyApplied++
		case settledFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

type settlement int

const (
	settledApplied settlement = iota
	settledAlreadyApplied
	settledFailed
)

func (s settlement) outboxStatus() string {
	if s == settledFailed {
		return enum.StockMovementFailed
	}
	return enum.StockMovementApplied
}

func (r *Reconciler) reconcile(ctx context.Context, m database.StockMovement) (settlement, error) {
	var mv stockMovement
	if err := json.Unmarshal(m.Payload, &mv); err != nil {
		log.Error().Err(err).Str("movement_id", m.ID.String()).Msg("Unreadable stock movement payload")
		return settledFailed, nil
	}

	tx, err := r.catalogDB.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin catalog tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	catalog := r.newCatalog(tx)
	if err := catalog.SetLockTimeout(ctx, fmt.Sprintf("%dms", r.cfg.LockTimeout.Milliseconds())); err != nil {
		return 0, fmt.Errorf("set lock timeout: %w", err)
	}

	applied, err := catalog.StockMovementApplied(ctx, m.ID)
	if err != nil {
		return 0, fmt.Errorf("check applied marker: %w", err)
	}
	if applied {
		return settledAlreadyApplied, nil
	}

	shortages, err := applyStockMovement(ctx, catalog, mv)
	if err != nil {
		return 0, err
	}
	if len(shortages) > 0 {
		log.Error().
			Str("movement_id", m.ID.String()).
			Int64("order_id", m.OrderID).
			Str("shortages", joinShortages(shortages)).
			Msg("Stock movement cannot be applied, order needs staff attention")
		return settledFailed, nil
	}

	if err := catalog.CreateAppliedStockMovement(ctx, m.ID); err != nil {
		return 0, fmt.Errorf("create applied marker: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit catalog tx: %w", err)
	}
	return settledApplied, nil
}
