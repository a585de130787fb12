package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"storefront/internal/cache"
	"storefront/internal/logging"
	"storefront/internal/repository"
)

const (
	dashboardCacheKey = "dashboard:overview"
	dashboardCacheTTL = 5 * time.Minute
)

// DashboardOverview сводка для админки. Поле остаётся нулевым, если его запрос упал.
type DashboardOverview struct {
	Users      int64           `json:"totalUsers"`
	Products   int64           `json:"totalProducts"`
	Orders     int64           `json:"totalOrders"`
	TotalSales decimal.Decimal `json:"totalSales"`
	Partial    bool            `json:"partial"`
}

type DashboardService struct {
	repos  repository.Repositories
	store  cache.Store
	logger *zap.Logger
}

func NewDashboardService(repos repository.Repositories, store cache.Store, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{repos: repos, store: store, logger: logger}
}

// Overview четыре независимых запроса выполняются параллельно; ошибка одного не отменяет остальные
func (s *DashboardService) Overview(ctx context.Context) (*DashboardOverview, error) {
	var cached DashboardOverview
	if ok, err := s.store.Get(ctx, dashboardCacheKey, &cached); err == nil && ok {
		return &cached, nil
	}

	var (
		out    DashboardOverview
		failed [4]bool
		g      errgroup.Group
	)

	run := func(i int, name string, fn func(ctx context.Context) error) {
		g.Go(func() error {
			if err := fn(ctx); err != nil {
				failed[i] = true
				logging.Warn(ctx, s.logger, "Dashboard query failed", zap.String("query", name), zap.Error(err))
			}
			return nil
		})
	}
	run(0, "users", func(ctx context.Context) (err error) {
		out.Users, err = s.repos.Users.Count(ctx)
		return err
	})
	run(1, "products", func(ctx context.Context) (err error) {
		out.Products, err = s.repos.Products.Count(ctx)
		return err
	})
	run(2, "orders", func(ctx context.Context) (err error) {
		out.Orders, err = s.repos.Orders.Count(ctx)
		return err
	})
	run(3, "sales", func(ctx context.Context) (err error) {
		out.TotalSales, err = s.repos.Orders.TotalSales(ctx)
		return err
	})
	_ = g.Wait()

	for _, f := range failed {
		out.Partial = out.Partial || f
	}

	// неполную сводку не кэшируем
	if !out.Partial {
		if err := s.store.Set(ctx, dashboardCacheKey, out, dashboardCacheTTL); err != nil {
			logging.Debug(ctx, s.logger, "Failed to cache dashboard overview", zap.Error(err))
		}
	}
	return &out, nil
}
