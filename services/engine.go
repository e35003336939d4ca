package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"gamification-engine/config"
	"gamification-engine/models"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Engine owns every write to progression and wallet state. Each public
// operation runs in one transaction that locks the acting user's row first.
type Engine struct {
	DB      *gorm.DB
	Catalog *Catalog
	Ledger  *StarLedger
	Badges  *BadgeService
	Levels  LevelTable
	Economy config.Economy
	Log     *slog.Logger

	// Now is the engine clock; tests replace it.
	Now func() time.Time

	milestones map[int]string
	tracer     trace.Tracer
}

func NewEngine(db *gorm.DB, econ config.Economy, logger *slog.Logger) (*Engine, error) {
	if err := econ.Validate(); err != nil {
		return nil, err
	}
	milestones, err := econ.Milestones()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	catalog := NewCatalog(db)
	return &Engine{
		DB:         db,
		Catalog:    catalog,
		Ledger:     &StarLedger{},
		Badges:     &BadgeService{Catalog: catalog},
		Levels:     NewLevelTable(econ.LevelThresholds),
		Economy:    econ,
		Log:        logger,
		Now:        func() time.Time { return time.Now().UTC() },
		milestones: milestones,
		tracer:     otel.Tracer("gamification-engine/services"),
	}, nil
}

func (e *Engine) now() time.Time {
	return e.Now().UTC()
}

// inTx runs fn in a transaction, retrying on serialization failures,
// deadlocks and lock timeouts. Once retries are exhausted the error is a Conflict.
func (e *Engine) inTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) (err error) {
	ctx, span := e.tracer.Start(ctx, "engine."+op)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	base := e.Economy.ConflictBackoff
	if base <= 0 {
		base = time.Millisecond
	}
	backoff := retry.WithMaxRetries(e.Economy.ConflictRetries, retry.NewExponential(base))

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		txErr := e.DB.WithContext(ctx).Transaction(fn)
		if isRetryable(txErr) {
			e.Log.Warn("transaction conflict, retrying", "op", op, "attempt", attempt, "error", txErr)
			return retry.RetryableError(txErr)
		}
		return txErr
	})
	if isRetryable(err) {
		e.Log.Error("transaction conflict, giving up", "op", op, "attempts", attempt, "error", err)
		return conflict(err)
	}
	return err
}

// isRetryable reports whether err is a transient concurrency failure.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", // serialization_failure
		"40P01", // deadlock_detected
		"55P03": // lock_not_available
		return true
	}
	return false
}

// lockForUpdate adds FOR UPDATE. sqlite has no row locks and serializes
// writers itself, so the clause is skipped there.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockUser loads and row-locks the user; it is always the first lock taken.
func lockUser(tx *gorm.DB, userID string) (*models.User, error) {
	var u models.User
	if err := lockForUpdate(tx).Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", userID)
		}
		return nil, err
	}
	return &u, nil
}

// GetUser reads a user without locking.
func (e *Engine) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := e.DB.WithContext(ctx).Where("id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("user", userID)
		}
		return nil, err
	}
	return &u, nil
}
