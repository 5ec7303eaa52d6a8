package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-identity-api/internal/models"
	"github.com/noah-isme/lms-identity-api/internal/tenant"
	"github.com/noah-isme/lms-identity-api/pkg/jobs"
)

type tenantLister interface {
	ListActive(ctx context.Context) ([]models.Tenant, error)
}

type tokenPruner interface {
	DeleteExpired(ctx context.Context, db *sqlx.DB, cutoff time.Time) (int64, error)
}

// PruneService periodically removes expired and revoked tokens from every
// active tenant partition. Each tenant is pruned as its own job so one slow
// partition does not block the rest.
type PruneService struct {
	tenants  tenantLister
	tokens   tokenPruner
	router   *tenant.Router
	queue    *jobs.Queue
	metrics  *MetricsService
	logger   *zap.Logger
	interval time.Duration
	now      func() time.Time
}

func NewPruneService(tenants tenantLister, tokens tokenPruner, router *tenant.Router, metrics *MetricsService, logger *zap.Logger, interval time.Duration) *PruneService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	s := &PruneService{
		tenants:  tenants,
		tokens:   tokens,
		router:   router,
		metrics:  metrics,
		logger:   logger,
		interval: interval,
		now:      func() time.Time { return time.Now().UTC() },
	}
	s.queue = jobs.NewQueue("token-prune", s.pruneTenant, jobs.QueueConfig{
		Workers:    2,
		MaxRetries: 2,
		RetryDelay: 30 * time.Second,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers and the scheduling loop. It returns
// immediately; Stop drains the workers.
func (s *PruneService) Start(ctx context.Context) {
	s.queue.Start(ctx)
	go s.loop(ctx)
}

func (s *PruneService) Stop() {
	s.queue.Stop()
}

func (s *PruneService) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scheduleAll(ctx)
		}
	}
}

func (s *PruneService) scheduleAll(ctx context.Context) {
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		s.logger.Warn("failed to list tenants for pruning", zap.Error(err))
		return
	}
	for _, t := range tenants {
		job := jobs.Job{ID: uuid.NewString(), Type: "prune", Payload: t.Slug}
		if err := s.queue.Enqueue(job); err != nil {
			s.logger.Warn("failed to enqueue prune job", zap.String("tenant", t.Slug), zap.Error(err))
		}
	}
}

func (s *PruneService) pruneTenant(ctx context.Context, job jobs.Job) error {
	slug, ok := job.Payload.(string)
	if !ok {
		s.logger.Error("prune job with unexpected payload", zap.Any("payload", job.Payload))
		return nil
	}

	db, _, err := s.router.Resolve(ctx, slug)
	if err != nil {
		return err
	}

	n, err := s.tokens.DeleteExpired(ctx, db, s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		s.metrics.RecordPrunedTokens(n)
		s.logger.Info("pruned expired tokens", zap.String("tenant", slug), zap.Int64("removed", n))
	}
	return nil
}
