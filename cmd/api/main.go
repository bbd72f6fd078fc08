package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/deskflow/service-desk/internal/api/http"
	"github.com/deskflow/service-desk/internal/api/http/handlers"
	"github.com/deskflow/service-desk/internal/auth"
	"github.com/deskflow/service-desk/internal/config"
	"github.com/deskflow/service-desk/internal/events"
	"github.com/deskflow/service-desk/internal/idgen"
	"github.com/deskflow/service-desk/internal/observability"
	"github.com/deskflow/service-desk/internal/persistence"
	"github.com/deskflow/service-desk/internal/repository"
	"github.com/deskflow/service-desk/internal/repository/memory"
	"github.com/deskflow/service-desk/internal/service"
	"github.com/deskflow/service-desk/internal/worker"
)

const shutdownTimeout = 10 * time.Second

type repositories struct {
	customers repository.CustomerRepository
	agents    repository.AgentRepository
	tickets   repository.TicketRepository
	messages  repository.TicketMessageRepository
	history   repository.TicketHistoryRepository
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dependencies := map[string]handlers.Pinger{}
	var repos repositories

	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		defer pg.Close()

		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		pool := pg.PoolHandle()
		repos = repositories{
			customers: repository.NewCustomerRepository(pool),
			agents:    repository.NewAgentRepository(pool),
			tickets:   repository.NewTicketRepository(pool),
			messages:  repository.NewTicketMessageRepository(pool),
			history:   repository.NewTicketHistoryRepository(pool),
		}
		dependencies["postgres"] = pg
	case config.StoreDriverMemory:
		ids, err := idgen.New(cfg.Store.IDStrategy, cfg.Store.SnowflakeNode)
		if err != nil {
			logger.Fatal("failed to init id generator", zap.Error(err))
		}
		store := memory.NewStore(ids)
		repos = repositories{
			customers: store.Customers(),
			agents:    store.Agents(),
			tickets:   store.Tickets(),
			messages:  store.Messages(),
			history:   store.History(),
		}
		logger.Warn("using in-memory store; data is lost on restart", zap.String("id_strategy", cfg.Store.IDStrategy))
	}

	var revocations auth.RevocationStore
	if redis := persistence.NewRedis(ctx, cfg.Redis, logger); redis != nil {
		defer redis.Close()
		revocations = auth.NewRedisRevocationStore(redis.Client)
		dependencies["redis"] = redis
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, metrics, cfg.Notification)

	var sink *events.KafkaSink
	if cfg.Kafka.Enabled() {
		sink = events.NewKafkaSink(cfg.Kafka, logger)
		defer func() {
			if err := sink.Close(); err != nil {
				logger.Warn("close kafka sink", zap.Error(err))
			}
		}()
	}
	worker.StartNotificationWorker(dispatcher, notificationService, sink)

	directory := service.NewDirectory(service.DirectoryDependencies{
		CustomerRepo: repos.customers,
		AgentRepo:    repos.agents,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:       repos.tickets,
		MessageRepo:      repos.messages,
		HistoryRepo:      repos.history,
		Directory:        directory,
		Policy:           service.NewLeastLoadedPolicy(nil),
		Dispatcher:       dispatcher,
		Logger:           logger,
		UnassignedPolicy: cfg.Tickets.UnassignedPolicy,
	})
	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Directory:   directory,
		Revocations: revocations,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), authService.Revocations(), directory)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		AgentTickets:   handlers.NewAgentTicketsHandler(ticketService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("fiber shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
