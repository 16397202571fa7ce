package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"finview/internal/analytics"
	"finview/internal/cache"
	"finview/internal/core"
	"finview/internal/log"
	"finview/internal/ports"
)

// DashboardService loads both collections and feeds them through the
// analytics engine. Results are memoized per period, minute and store
// version when a cache is configured.
type DashboardService struct {
	store     ports.TransactionLister
	engine    *analytics.Engine
	dashboard cache.Cache[analytics.Dashboard]
	history   cache.Cache[[]analytics.HistoryEntry]
	logger    *log.Logger
}

// DashboardOption configures a DashboardService.
type DashboardOption func(*DashboardService)

// WithDashboardCache memoizes dashboards.
func WithDashboardCache(c cache.Cache[analytics.Dashboard]) DashboardOption {
	return func(s *DashboardService) { s.dashboard = c }
}

// WithHistoryCache memoizes merged history.
func WithHistoryCache(c cache.Cache[[]analytics.HistoryEntry]) DashboardOption {
	return func(s *DashboardService) { s.history = c }
}

// WithDashboardLogger sets the service logger.
func WithDashboardLogger(l *log.Logger) DashboardOption {
	return func(s *DashboardService) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewDashboardService(store ports.TransactionLister, engine *analytics.Engine, opts ...DashboardOption) *DashboardService {
	s := &DashboardService{
		store:  store,
		engine: engine,
		logger: log.Default(log.ComponentDashboard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dashboard aggregates both collections for period as of the current
// minute.
func (s *DashboardService) Dashboard(ctx context.Context, period core.Period) (analytics.Dashboard, error) {
	return s.DashboardAt(ctx, period, s.minute())
}

// DashboardAt aggregates both collections for period as of now.
func (s *DashboardService) DashboardAt(ctx context.Context, period core.Period, now time.Time) (analytics.Dashboard, error) {
	if !period.Valid() {
		period = core.PeriodWeek
	}
	key, cacheable := s.cacheKey(ctx, string(period), now)
	if cacheable && s.dashboard != nil {
		if d, ok := s.dashboard.Get(key); ok {
			s.logger.DebugContext(ctx, "Dashboard served from cache",
				log.FieldPeriod, string(period),
				log.FieldCacheHit, true)
			return d, nil
		}
	}

	expenses, incomes, err := s.load(ctx)
	if err != nil {
		return analytics.Dashboard{}, err
	}

	d := s.engine.Dashboard(expenses, incomes, period, now)
	s.logger.DebugContext(ctx, "Dashboard computed",
		log.FieldOperation, log.OpAggregate,
		log.FieldPeriod, string(period),
		log.FieldCount, len(expenses)+len(incomes))

	if cacheable && s.dashboard != nil {
		s.dashboard.Set(key, d)
	}
	return d, nil
}

// History returns the merged history, newest first.
func (s *DashboardService) History(ctx context.Context) ([]analytics.HistoryEntry, error) {
	now := s.minute()
	key, cacheable := s.cacheKey(ctx, "history", now)
	if cacheable && s.history != nil {
		if h, ok := s.history.Get(key); ok {
			s.logger.DebugContext(ctx, "History served from cache", log.FieldCacheHit, true)
			return h, nil
		}
	}

	expenses, incomes, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	h := s.engine.MergeAt(expenses, incomes, now)
	s.logger.DebugContext(ctx, "History merged",
		log.FieldOperation, log.OpMerge,
		log.FieldCount, len(h))

	if cacheable && s.history != nil {
		s.history.Set(key, h)
	}
	return h, nil
}

// load lists expenses and incomes concurrently.
func (s *DashboardService) load(ctx context.Context) (expenses, incomes []core.Transaction, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		expenses, err = s.store.ListTransactions(gctx, core.KindExpense)
		if err != nil {
			return fmt.Errorf("list expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		incomes, err = s.store.ListTransactions(gctx, core.KindIncome)
		if err != nil {
			return fmt.Errorf("list incomes: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to load transactions",
			log.FieldOperation, log.OpList,
			log.FieldError, err)
		return nil, nil, err
	}
	return expenses, incomes, nil
}

func (s *DashboardService) minute() time.Time {
	return s.engine.Normalizer().Now().Truncate(time.Minute)
}

// cacheKey is only available when the store reports a version; otherwise a
// cached value could outlive a write.
func (s *DashboardService) cacheKey(ctx context.Context, scope string, now time.Time) (string, bool) {
	v, ok := s.store.(ports.Versioner)
	if !ok {
		return "", false
	}
	version, err := v.Version(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Store version unavailable, bypassing cache", log.FieldError, err)
		return "", false
	}
	return fmt.Sprintf("%s|%d|%d", scope, now.UnixMilli(), version), true
}
