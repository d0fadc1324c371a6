package main

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"AfriArt-Gallery/internal/api"
	"AfriArt-Gallery/internal/observability/metrics"
	"AfriArt-Gallery/internal/scheduler"
)

// runServe 启动 API 服务、结算处理器、定时任务与可选的独立指标端口，
// 任一组件异常退出都会停止整个进程。
func runServe(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	a, err := buildApp(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := api.NewServer(api.Options{
		Address:        cfg.Server.Address,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StaticDir:      cfg.Server.StaticDir,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		RateLimit: api.RateLimit{
			RequestsPerMinute: cfg.Auth.RateLimit.RequestsPerMinute,
			Burst:             cfg.Auth.RateLimit.Burst,
		},
		ExposeMetrics: cfg.Metrics.Address == "",
	}, api.Services{
		Auth:      a.auth,
		TwoFactor: a.twoFactor,
		Gallery:   a.gallery,
		Payments:  a.payments,
	})
	if err != nil {
		return err
	}

	var sched *scheduler.Scheduler
	if !cfg.Scheduler.Disabled {
		sched = scheduler.New()
		err := sched.AddGalleryJobs(scheduler.Specs{
			ExhibitionStatuses: cfg.Scheduler.ExhibitionStatuses,
			ExpirePayments:     cfg.Scheduler.ExpirePayments,
			PurgeCodes:         cfg.Scheduler.PurgeCodes,
		}, a.gallery, a.payments, a.codes)
		if err != nil {
			return err
		}
		if a.tasks != nil {
			if err := sched.AddSettlementRecovery(cfg.Scheduler.RequeueSettlements, a.tasks); err != nil {
				return err
			}
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	run := func(name string, fn func(context.Context) error) {
		g.Go(func() error {
			err := fn(ctx)
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			a.log.Error("组件异常退出", slog.String("component", name), slog.Any("error", err))
			return err
		})
	}

	if a.processor != nil {
		run("settlement_processor", a.processor.Start)
	}
	if sched != nil {
		run("scheduler", sched.Start)
	}
	if cfg.Metrics.Address != "" {
		run("metrics", func(ctx context.Context) error {
			return metrics.StartServer(ctx, cfg.Metrics.Address)
		})
	}
	run("api", server.Start)

	a.log.Info("afriartd 已启动",
		slog.String("address", cfg.Server.Address),
		slog.String("storage", cfg.Storage.Driver),
		slog.String("payment_provider", cfg.Payment.Provider),
	)
	return g.Wait()
}
