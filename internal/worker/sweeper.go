package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// SweepStore is the slice of the job store contract the sweeper needs.
type SweepStore interface {
	FailStale(ctx context.Context, olderThan time.Duration) (int64, error)
	PruneCompleted(ctx context.Context, keep int, maxAge time.Duration) (int64, error)
	PruneFailed(ctx context.Context, keep int) (int64, error)
}

// SweeperConfig holds staleness and retention settings.
type SweeperConfig struct {
	Logger *slog.Logger
	Store  SweepStore

	// Jobs stuck processing longer than this are failed.
	StaleAfter time.Duration

	// Retention bounds; operability only, never correctness.
	CompletedKeep   int
	CompletedMaxAge time.Duration
	FailedKeep      int

	StaleSchedule     string
	RetentionSchedule string
}

// Sweeper runs the staleness and retention sweeps on a cron schedule.
type Sweeper struct {
	logger *slog.Logger
	store  SweepStore
	cfg    *SweeperConfig
	cron   *cron.Cron
}

// NewSweeper creates a sweeper with defaults filled in.
func NewSweeper(cfg *SweeperConfig) *Sweeper {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Minute
	}
	if cfg.CompletedKeep <= 0 {
		cfg.CompletedKeep = 1000
	}
	if cfg.CompletedMaxAge <= 0 {
		cfg.CompletedMaxAge = 24 * time.Hour
	}
	if cfg.FailedKeep <= 0 {
		cfg.FailedKeep = 5000
	}
	if cfg.StaleSchedule == "" {
		cfg.StaleSchedule = "@every 1m"
	}
	if cfg.RetentionSchedule == "" {
		cfg.RetentionSchedule = "@every 15m"
	}

	return &Sweeper{
		logger: cfg.Logger,
		store:  cfg.Store,
		cfg:    cfg,
		cron:   cron.New(),
	}
}

// Start schedules the sweeps and starts the cron runner.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.StaleSchedule, s.sweepStale); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.RetentionSchedule, s.sweepRetention); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("Sweeper started",
		slog.String("stale_schedule", s.cfg.StaleSchedule),
		slog.String("retention_schedule", s.cfg.RetentionSchedule),
		slog.Duration("stale_after", s.cfg.StaleAfter),
	)
	return nil
}

// Stop halts the cron runner and waits for running sweeps.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Sweeper stopped")
}

func (s *Sweeper) sweepStale() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.store.FailStale(ctx, s.cfg.StaleAfter); err != nil {
		s.logger.Error("Stale sweep failed",
			slog.String("error", err.Error()),
		)
	}
}

func (s *Sweeper) sweepRetention() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	completed, err := s.store.PruneCompleted(ctx, s.cfg.CompletedKeep, s.cfg.CompletedMaxAge)
	if err != nil {
		s.logger.Error("Completed-job retention sweep failed",
			slog.String("error", err.Error()),
		)
	}

	failed, err := s.store.PruneFailed(ctx, s.cfg.FailedKeep)
	if err != nil {
		s.logger.Error("Failed-job retention sweep failed",
			slog.String("error", err.Error()),
		)
	}

	if completed > 0 || failed > 0 {
		s.logger.Info("Retention sweep pruned jobs",
			slog.Int64("completed", completed),
			slog.Int64("failed", failed),
		)
	}
}
