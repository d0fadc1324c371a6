package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"AfriArt-Gallery/internal/auth"
	"AfriArt-Gallery/internal/config"
	"AfriArt-Gallery/internal/gallery"
	"AfriArt-Gallery/internal/mail"
	"AfriArt-Gallery/internal/observability/alerting"
	"AfriArt-Gallery/internal/payment"
	"AfriArt-Gallery/internal/scheduler"
	"AfriArt-Gallery/internal/storage/mysql"
	redisstore "AfriArt-Gallery/internal/storage/redis"
	"AfriArt-Gallery/internal/task"
	"AfriArt-Gallery/pkg/logger"
)

// accountStore 同时满足认证与画廊对账户表的需求。
type accountStore interface {
	auth.AccountStore
	gallery.AccountDirectory
}

// app 持有一次进程运行所需的全部组件。
type app struct {
	cfg *config.Config
	log *slog.Logger

	db    *sql.DB
	redis *goredis.Client

	accounts  accountStore
	auth      *auth.Service
	twoFactor *auth.TwoFactor
	codes     scheduler.CodePurger
	gallery   *gallery.Service
	payments  *payment.Service
	mailer    mail.Sender
	alerts    alerting.Dispatcher

	taskStore task.Store
	queue     task.Queue
	tasks     *task.Service
	processor *task.Processor

	closers []io.Closer
}

// buildApp 按配置装配存储、队列、邮件与支付网关。withWorkers 为 false 时不创建
// 结算队列，支付在请求内同步结算，适用于 create-admin、seed 等一次性命令。
func buildApp(ctx context.Context, cfg *config.Config, withWorkers bool) (_ *app, err error) {
	a := &app{cfg: cfg, log: logger.Named("afriartd")}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		a.log.Warn("JWT_SECRET_KEY 未配置，正在使用开发用默认密钥")
	}

	galleryStore, paymentStore, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Address != "" && (cfg.Auth.TwoFactor.Store == "redis" || cfg.Queue.Driver == "redis") {
		client, err := redisstore.NewClient(ctx, redisstore.Config{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		a.redis = client
		a.closers = append(a.closers, client)
	}

	a.mailer, err = newMailer(cfg.Mail)
	if err != nil {
		return nil, err
	}
	a.alerts = newAlerts(cfg.Mail, a.mailer)

	a.auth, err = auth.NewService(auth.Config{Secret: cfg.Auth.JWTSecret, TokenTTL: cfg.Auth.TokenTTL}, a.accounts)
	if err != nil {
		return nil, err
	}

	var codeStore auth.CodeStore
	switch cfg.Auth.TwoFactor.Store {
	case "redis":
		codeStore = redisstore.NewCodeStore(a.redis, "afriart:2fa:")
	default:
		memory := auth.NewMemoryCodeStore()
		codeStore = memory
		a.codes = memory
	}
	a.twoFactor = auth.NewTwoFactor(codeStore, a.mailer, cfg.Auth.TwoFactor.CodeTTL)

	a.gallery, err = gallery.NewService(galleryStore, a.accounts)
	if err != nil {
		return nil, err
	}

	provider, err := newPaymentProvider(cfg.Payment)
	if err != nil {
		return nil, err
	}
	paymentOpts := []payment.Option{
		payment.WithMailer(a.mailer),
		payment.WithAlertDispatcher(a.alerts),
		payment.WithPendingExpiry(cfg.Payment.PendingExpiry),
	}
	if withWorkers {
		if err := a.openQueue(); err != nil {
			return nil, err
		}
		paymentOpts = append(paymentOpts, payment.WithSettlements(a.tasks))
	}
	a.payments, err = payment.NewService(paymentStore, provider, a.gallery, paymentOpts...)
	if err != nil {
		return nil, err
	}
	if a.queue != nil {
		a.processor = task.NewProcessor(a.taskStore, a.queue, a.queue,
			task.WithWorkerCount(cfg.Queue.Workers),
			task.WithHandler(task.KindPaymentSettlement, a.payments.Settle),
			task.WithProcessorLogger(logger.Named("task")),
			task.WithAlertDispatcher(a.alerts),
		)
	}
	return a, nil
}

// openStores 根据 storage.driver 创建账户、画廊与支付存储。
func (a *app) openStores(ctx context.Context) (gallery.Store, payment.Store, error) {
	switch a.cfg.Storage.Driver {
	case "mysql":
		db, err := a.openDB(ctx)
		if err != nil {
			return nil, nil, err
		}
		applied, err := mysql.Migrate(ctx, db)
		if err != nil {
			return nil, nil, err
		}
		if len(applied) > 0 {
			a.log.Info("已执行数据库迁移", slog.Int("count", len(applied)))
		}
		a.accounts = mysql.NewAccountStore(db)
		return mysql.NewGalleryStore(db), mysql.NewPaymentStore(db), nil
	default:
		a.log.Warn("使用内存存储，进程退出后数据会丢失")
		a.accounts = auth.NewMemoryStore()
		return gallery.NewMemoryStore(), payment.NewMemoryStore(), nil
	}
}

func (a *app) openDB(ctx context.Context) (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	m := a.cfg.Storage.MySQL
	db, err := mysql.Open(ctx, mysql.Config{
		DSN:             m.DSN,
		MaxOpenConns:    m.MaxOpenConns,
		MaxIdleConns:    m.MaxIdleConns,
		ConnMaxLifetime: m.ConnMaxLifetime,
		ConnMaxIdleTime: m.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db)
	return db, nil
}

// openQueue 创建结算任务的存储与队列，MySQL 部署下任务状态与业务数据同库。
func (a *app) openQueue() error {
	q := a.cfg.Queue

	var store task.Store = task.NewMemoryStore()
	if a.db != nil {
		mysqlStore, err := task.NewMySQLStore(a.db)
		if err != nil {
			return err
		}
		store = mysqlStore
	}

	var queue task.Queue
	switch q.Driver {
	case "redis":
		if a.redis == nil {
			return errors.New("queue.driver=redis 需要 redis.address")
		}
		redisQueue, err := task.NewRedisQueue(a.redis, task.RedisQueueConfig{Queue: q.Redis.Queue, BlockWait: q.Redis.BlockWait})
		if err != nil {
			return err
		}
		queue = redisQueue
	case "rabbitmq":
		rabbit, err := task.NewRabbitMQQueue(task.RabbitMQConfig{
			URL:        q.RabbitMQ.URL,
			Queue:      q.RabbitMQ.Queue,
			Prefetch:   q.RabbitMQ.Prefetch,
			Durable:    q.RabbitMQ.Durable,
			AutoDelete: q.RabbitMQ.AutoDelete,
		})
		if err != nil {
			return err
		}
		queue = rabbit
	default:
		queue = task.NewMemoryQueue(1024)
	}
	a.closers = append(a.closers, queue)

	a.taskStore = store
	a.queue = queue
	a.tasks = task.NewService(store, queue, q.MaxAttempts)
	a.log.Info("结算队列已就绪", slog.String("driver", q.Driver), slog.Int("workers", q.Workers))
	return nil
}

func newMailer(cfg config.MailConfig) (mail.Sender, error) {
	switch cfg.Provider {
	case "resend":
		return mail.NewResendSender(cfg.APIKey, cfg.From)
	default:
		return mail.NewLogSender(), nil
	}
}

// newAlerts 总是写审计日志，配置了收件人时同时发邮件。
func newAlerts(cfg config.MailConfig, sender mail.Sender) alerting.Dispatcher {
	notifiers := []alerting.Notifier{alerting.LogNotifier{}}
	if len(cfg.AlertRecipients) > 0 {
		notifiers = append(notifiers, &alerting.EmailNotifier{
			Sender:        sender,
			To:            cfg.AlertRecipients,
			SubjectPrefix: "[AfriArt] ",
		})
	}
	return alerting.NewFanout(notifiers...)
}

func newPaymentProvider(cfg config.PaymentConfig) (payment.Provider, error) {
	switch cfg.Provider {
	case "daraja":
		return payment.NewDarajaClient(payment.DarajaConfig{
			BaseURL:        cfg.Daraja.BaseURL,
			ConsumerKey:    cfg.Daraja.ConsumerKey,
			ConsumerSecret: cfg.Daraja.ConsumerSecret,
			ShortCode:      cfg.Daraja.ShortCode,
			PassKey:        cfg.Daraja.PassKey,
			CallbackURL:    cfg.Daraja.CallbackURL,
			Timeout:        cfg.Daraja.Timeout,
		})
	default:
		return payment.NewSandboxProvider(cfg.SandboxDelay), nil
	}
}

// Close 按创建的逆序释放资源。
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.log.Warn("释放资源失败", slog.String("error", err.Error()))
		}
	}
	a.closers = nil
	_ = logger.Sync()
}
