package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"roomie-chat/internal/config"
	"roomie-chat/internal/db"
	"roomie-chat/internal/handlers"
	"roomie-chat/internal/middleware"
	"roomie-chat/internal/observability"
	"roomie-chat/internal/rabbitmq"
	"roomie-chat/internal/repositories"
	"roomie-chat/internal/telemetry"
	"roomie-chat/internal/ws"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	shutdownTracer, err := telemetry.InitTracer(ctx, "roomie-chat", cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			log.Printf("tracer shutdown: %v", err)
		}
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))
	auditor := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, "roomie-chat", cfg.Env)

	if eventsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Printf("ws event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(eventsPublisher)
		defer eventsPublisher.Close()
	}

	messageRepo := repositories.NewMessageRepo(database)
	hub := ws.NewHub()

	messageHandler := handlers.NewMessageHandler(messageRepo, hub, auditor)
	chatWS := ws.NewChatWebSocketHandler(hub, messageRepo)

	router := gin.Default()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("roomie-chat"))
	router.Use(observability.HTTPMetricsMiddleware())

	identity := middleware.Identity()

	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Chat server is running.")
	})
	router.GET("/healthz", func(c *gin.Context) {
		if err := database.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/messages", messageHandler.GetMessages)
	router.POST("/messages", identity, messageHandler.PostMessage)
	router.POST("/messages/read", identity, messageHandler.MarkConversationRead)

	router.GET("/ws/chat", chatWS.Handle)

	handlers.RegisterDebugRoutes(router, auditor, cfg.DebugRoutes)

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
