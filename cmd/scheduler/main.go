package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/order"
	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/proration"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/gateway"
	"github.com/billforge/billforge/internal/logger"
	"github.com/billforge/billforge/internal/plugin"
	"github.com/billforge/billforge/internal/queue"
	"github.com/billforge/billforge/internal/repository/postgres"
	"github.com/billforge/billforge/internal/service"
	"github.com/billforge/billforge/internal/types"
)

func init() {
	// All billing period math assumes UTC.
	time.Local = time.UTC
}

func main() {
	// Load .env file if present
	godotenv.Load()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			logger.NewLogger,
			types.RealClock,

			// Postgres
			postgres.NewClient,
			postgres.NewSubscriptionRepository,
			postgres.NewOrderRepository,
			postgres.NewPaymentRepository,

			// Boundary collaborators
			gateway.NewSandboxGateway,
			queue.NewWatermillQueue,
			func(q *queue.WatermillQueue) queue.Queue { return q },

			// Plugins
			plugin.NewScheduleRegistryFromConfig,
			func() *plugin.TypeRegistry {
				return plugin.NewTypeRegistry(plugin.NewProductHandler())
			},
			proration.NewTimeBasedProrater,

			// Services
			newServiceParams,
			service.NewRecurringOrderManager,
			service.NewJobHandlerService,
			func(h *service.JobHandlerService) queue.Handler { return h },
			service.NewCronService,
			newWorker,
		),
		fx.Invoke(start),
	)
	app.Run()
}

func newServiceParams(
	log *logger.Logger,
	cfg *config.Configuration,
	clock types.Clock,
	subscriptionRepo subscription.Repository,
	orderRepo order.Repository,
	paymentRepo payment.Repository,
	paymentGateway payment.Gateway,
	jobQueue queue.Queue,
	schedules *plugin.ScheduleRegistry,
	subscriptionTypes *plugin.TypeRegistry,
	prorater proration.Prorater,
) service.ServiceParams {
	return service.ServiceParams{
		Logger:            log,
		Config:            cfg,
		Clock:             clock,
		SubscriptionRepo:  subscriptionRepo,
		OrderRepo:         orderRepo,
		PaymentRepo:       paymentRepo,
		PaymentGateway:    paymentGateway,
		JobQueue:          jobQueue,
		Schedules:         schedules,
		SubscriptionTypes: subscriptionTypes,
		Prorater:          prorater,
	}
}

func newWorker(q *queue.WatermillQueue, handler queue.Handler, cfg *config.Configuration, log *logger.Logger) *queue.Worker {
	return queue.NewWorker(q, handler, cfg.Worker, log)
}

func start(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	cron service.CronService,
	worker *queue.Worker,
	jobQueue *queue.WatermillQueue,
	log *logger.Logger,
) {
	mode := cfg.Deployment.Mode
	if mode == "" {
		mode = types.ModeLocal
	}

	switch mode {
	case types.ModeLocal:
		startWorker(lc, worker, log)
		startSweeper(lc, cfg, cron, log)
	case types.ModeScheduler:
		startSweeper(lc, cfg, cron, log)
	case types.ModeWorker:
		startWorker(lc, worker, log)
	default:
		log.Fatalf("unknown deployment mode: %s", mode)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return jobQueue.Close()
		},
	})
}

// startSweeper runs the cron sweep on a fixed interval until shutdown.
func startSweeper(lc fx.Lifecycle, cfg *config.Configuration, cron service.CronService, log *logger.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Infow("starting billing sweeper", "interval", cfg.Cron.SweepInterval.String())
			go func() {
				defer close(done)
				ticker := time.NewTicker(cfg.Cron.SweepInterval)
				defer ticker.Stop()
				for {
					if err := cron.Sweep(ctx); err != nil {
						log.Errorw("billing sweep failed", "error", err)
					}
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}

// startWorker consumes billing jobs until shutdown.
func startWorker(lc fx.Lifecycle, worker *queue.Worker, log *logger.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Infow("starting billing worker")
			go func() {
				defer close(done)
				if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
					log.Errorw("billing worker stopped", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
