package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-backend/internal/auth"
	"chat-backend/internal/config"
	"chat-backend/internal/db"
	grpcserver "chat-backend/internal/grpc"
	"chat-backend/internal/handlers"
	"chat-backend/internal/notify"
	"chat-backend/internal/observability"
	"chat-backend/internal/rabbitmq"
	"chat-backend/internal/repositories"
	"chat-backend/internal/repositories/memory"
	"chat-backend/internal/repositories/mongo"
	"chat-backend/internal/repositories/postgres"
	"chat-backend/internal/services"
	"chat-backend/internal/telemetry"
	"chat-backend/internal/ws"
)

func main() {
	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	log.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", "err", err)
	}
	if cfg.Environment != "development" {
		logger.SetFormatter(log.JSONFormatter)
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		log.Fatal("failed to init tracing", "err", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal("failed to open store", "driver", cfg.DBDriver, "err", err)
	}

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	log.Info("event publisher ready", "mode", rabbitmq.PublisherMode(publisher))

	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)
	hub := ws.NewHub(publisher)
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	authenticator := services.NewAuthenticator(store, tokens)

	deps := services.Deps{
		Store:    store,
		Notifier: notify.NewBrokerNotifier(publisher, cfg.PushRoutingKey),
		Hub:      hub,
		Audit:    audit,
	}
	chatService := services.NewChatService(deps)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		otelgin.Middleware(cfg.ServiceName),
		observability.HTTPMetricsMiddleware(),
		observability.RequestLogger(logger),
	)
	router.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	handlers.Routes{
		Auth:      handlers.NewAuthHandler(services.NewAuthService(deps, tokens)),
		Users:     handlers.NewUserHandler(services.NewUserService(deps)),
		Chats:     handlers.NewChatHandler(chatService),
		Messages:  handlers.NewMessageHandler(services.NewMessageService(deps)),
		WebSocket: ws.NewChatWebSocketHandler(hub, chatService, authenticator).Handle,
		Verifier:  authenticator,
		Store:     store,
	}.Register(router)
	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	healthServer := grpcserver.NewHealthServer(store, cfg.ServiceName)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		log.Fatal("failed to listen for grpc", "port", cfg.GRPCPort, "err", err)
	}
	go healthServer.Watch(ctx)
	go func() {
		if err := healthServer.Serve(lis); err != nil {
			log.Error("grpc server stopped", "err", err)
		}
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("http listening", "addr", srv.Addr, "driver", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	healthServer.Stop()
	if err := publisher.Close(); err != nil {
		log.Warn("publisher close", "err", err)
	}
	if err := store.Close(shutdownCtx); err != nil {
		log.Warn("store close", "err", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("tracing shutdown", "err", err)
	}
}

func openStore(ctx context.Context, cfg config.Config) (repositories.Store, error) {
	switch cfg.DBDriver {
	case config.DriverMongo:
		s, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDB, cfg.MongoTransactions)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverMemory:
		log.Warn("using in-memory store, data is lost on restart")
		return memory.NewStore(), nil
	default:
		database, err := db.Connect(ctx, cfg.DBDSN)
		if err != nil {
			return nil, err
		}
		return postgres.NewStore(database), nil
	}
}
