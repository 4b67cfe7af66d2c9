package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	chatsvc "tourchat-service/internal/chat"
	"tourchat-service/internal/config"
	"tourchat-service/internal/db"
	"tourchat-service/internal/events"
	"tourchat-service/internal/handlers"
	"tourchat-service/internal/middleware"
	"tourchat-service/internal/observability"
	"tourchat-service/internal/rabbitmq"
	"tourchat-service/internal/ratelimit"
	"tourchat-service/internal/repositories"
	"tourchat-service/internal/telemetry"
	"tourchat-service/internal/ws"
)

const serviceName = "tourchat-service"

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.OTLPEndpoint, serviceName)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	auditEmitter := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)

	if cfg.AMQPURL != "" {
		wsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Printf("ws event publisher unavailable: %v", err)
		} else {
			observability.SetPublisher(wsPublisher)
			defer wsPublisher.Close()
		}
	}

	bookingRepo := repositories.NewBookingRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)

	var limiter ratelimit.Limiter
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimit, cfg.RateWindow)
		log.Printf("rate limiter backend=redis addr=%s", cfg.RedisAddr)
	} else {
		limiter = ratelimit.NewStoreLimiter(messageRepo, cfg.RateLimit, cfg.RateWindow)
		log.Printf("rate limiter backend=store")
	}

	hub := ws.NewHub()
	service := chatsvc.NewService(bookingRepo, chatRepo, messageRepo, limiter, hub)

	chatHandler := handlers.NewChatHandler(service, auditEmitter)
	notificationHandler := handlers.NewNotificationHandler(notificationRepo)
	chatWS := ws.NewChatSocketHandler(hub, service, cfg.JWTSecret)
	userWS := ws.NewUserSocketHandler(hub, cfg.JWTSecret)

	if cfg.AMQPURL != "" {
		processor := events.NewBookingProcessor(bookingRepo, chatRepo, notificationRepo, hub)
		consumer, err := events.NewBookingConsumer(cfg.AMQPURL, cfg.AMQPExchange, cfg.BookingEventsQueue, processor)
		if err != nil {
			log.Fatalf("failed to start booking event consumer: %v", err)
		}
		defer consumer.Close()
		go func() {
			if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("booking event consumer stopped: %v", err)
			}
		}()
	} else {
		log.Printf("AMQP_URL not set, booking event consumer disabled")
	}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := router.Group("/", middleware.AuthMiddleware(cfg.JWTSecret))
	{
		authed.GET("/chats", chatHandler.ListChats)
		authed.GET("/chats/direct/:tourist_id/:guide_id", chatHandler.OpenDirectChat)
		authed.GET("/chats/booking/:booking_id", chatHandler.OpenBookingChat)
		authed.GET("/chats/:chat_id/messages", chatHandler.GetChatMessages)
		authed.GET("/chats/booking/:booking_id/messages", chatHandler.GetBookingMessages)
		authed.POST("/chats/:chat_id/messages", chatHandler.PostChatMessage)
		authed.POST("/chats/booking/:booking_id/messages", chatHandler.PostBookingMessage)

		authed.GET("/notifications", notificationHandler.List)
		authed.POST("/notifications/:notification_id/read", notificationHandler.MarkRead)
	}

	router.GET("/ws/chats/:chat_id", chatWS.Handle)
	router.GET("/ws/me", userWS.Handle)

	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.DebugRoutes)

	log.Printf("tourchat service listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
