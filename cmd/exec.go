package cmd

import (
	"log"
	"log/slog"
	"os"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"

	"ticketing/config"
	"ticketing/internal/handlers"
	"ticketing/internal/services"
	"ticketing/internal/services/stripe"
	"ticketing/security"
	"ticketing/utils"
)

func Start() error {
	app := pocketbase.New()

	cfg := config.LoadConfig()

	logLevel := slog.LevelInfo
	if cfg.Environment == "development" {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	redisClient := utils.NewRedisClient(cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	defer redisClient.Close()

	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey
	pn := pubnub.NewPubNub(pnConfig)

	provider := stripe.NewClient(cfg.StripeBaseURL, cfg.StripeAPIKey)

	ticketStore := services.NewTicketStore(app)
	eventStore := services.NewEventStore(app)
	paymentService := services.NewPaymentService(provider, redisClient, cfg.SuccessURL, cfg.SessionCacheTTL, cfg.CheckoutTimeout)
	notifier := services.NewPubNubNotifier(pn)
	ticketService := services.NewTicketService(ticketStore, eventStore, paymentService, redisClient, notifier)

	webhookHandler := handlers.NewWebhookHandler(ticketService, cfg.StripeWebhookSecret, cfg.WebhookTolerance)
	ticketHandler := handlers.NewTicketHandler(ticketService, ticketStore)
	eventHandler := handlers.NewEventHandler(app, eventStore, paymentService)
	eventTypeHandler := handlers.NewEventTypeHandler(app)
	userHandler := handlers.NewUserHandler(app, paymentService)

	limiter := security.NewRateLimiter(redisClient, cfg.PublicRequestsPerMinute)

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		api := e.Router.Group("/api/v1")
		api.BindFunc(security.BotGuard())
		api.BindFunc(limiter.PublicLimit())

		// the provider signs the raw body; no auth middleware in front
		api.POST("/payments/webhook", webhookHandler.HandleWebhook)

		api.GET("/tickets", ticketHandler.List)
		api.GET("/tickets/{id}", ticketHandler.Get)
		api.POST("/tickets", ticketHandler.Create)

		api.GET("/events", eventHandler.List)
		api.GET("/events/{id}", eventHandler.Get)
		api.POST("/events", eventHandler.Create)
		api.PATCH("/events/{id}", eventHandler.Update)
		api.DELETE("/events/{id}", eventHandler.Delete)

		api.GET("/event-types", eventTypeHandler.List)
		api.POST("/event-types", eventTypeHandler.Create)
		api.PATCH("/event-types/{id}", eventTypeHandler.Update)
		api.DELETE("/event-types/{id}", eventTypeHandler.Delete)

		api.POST("/users", userHandler.Register)
		api.GET("/users", userHandler.List)
		api.GET("/users/{id}", userHandler.Get)
		api.DELETE("/users/{id}", userHandler.Delete)

		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		if cfg.EnableMetrics {
			e.Router.GET("/metrics", apis.WrapStdHandler(promhttp.Handler()))
		}

		log.Println("Server routes registered")

		return e.Next()
	})

	return app.Start()
}
