package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carelineai/concierge/internal/api/router"
	appconfig "github.com/carelineai/concierge/internal/config"
	"github.com/carelineai/concierge/internal/dialogue"
	"github.com/carelineai/concierge/internal/http/handlers"
	"github.com/carelineai/concierge/internal/llm"
	"github.com/carelineai/concierge/internal/messaging"
	observemetrics "github.com/carelineai/concierge/internal/observability/metrics"
	"github.com/carelineai/concierge/internal/places"
	"github.com/carelineai/concierge/internal/telephony"
	"github.com/carelineai/concierge/pkg/logging"
)

func main() {
	// Load .env for local development; the file is absent in deployment.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting concierge API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store := buildSessionStore(ctx, cfg, logger)
	callMetrics := observemetrics.NewCallMetrics(nil)

	sender, provider, reason := messaging.BuildTextSender(messaging.ProviderSelectionConfig{
		Preference:       cfg.SMSProvider,
		TelnyxAPIKey:     cfg.TelnyxAPIKey,
		TelnyxProfileID:  cfg.TelnyxMessagingProfileID,
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		FromNumber:       cfg.TwilioFromNumber,
	}, logger)
	if sender == nil {
		logger.Warn("SMS follow-up disabled", "reason", reason)
	} else {
		logger.Info("SMS sender ready", "provider", provider)
	}

	notifier := dialogue.NewDispatcher(sender, logger.WithComponent("notify"))
	retries := dialogue.NewRetryScheduler(notifier, logger.WithComponent("retry"))

	placer := buildCallPlacer(cfg, logger)
	fallback := buildFallbackResponder(ctx, cfg, logger)

	engine := dialogue.NewEngine(dialogue.EngineOptions{
		Store:    store,
		Placer:   placer,
		Fallback: fallback,
		Notifier: notifier,
		Retries:  retries,
		Metrics:  callMetrics,
		Logger:   logger.WithComponent("dialogue"),
		Config: dialogue.EngineConfig{
			CallDurationCeiling: cfg.CallDurationCeiling,
			HoldDurationCeiling: cfg.HoldDurationCeiling,
			ListenTimeout:       cfg.ListenTimeout,
			HoldListenTimeout:   cfg.ListenTimeout,
			HoldPause:           cfg.HoldPause,
			RetryDefaultDelay:   cfg.RetryDefaultDelay,
			MaxDeclines:         cfg.MaxDeclines,
		},
	})
	retries.SetStarter(engine)

	bookingCfg := handlers.BookingHandlerConfig{
		Engine: engine,
		Store:  store,
		Logger: logger.WithComponent("bookings"),
	}
	// The nil check happens before the interface assignment so an absent
	// searcher stays a nil interface inside the handler.
	if searcher := buildClinicSearcher(cfg, logger); searcher != nil {
		bookingCfg.Searcher = searcher
	}

	routerCfg := &router.Config{
		Logger:   logger,
		Bookings: handlers.NewBookingHandler(bookingCfg),
		VoiceWebhooks: handlers.NewVoiceWebhookHandler(handlers.VoiceWebhookConfig{
			Engine:        engine,
			AuthToken:     cfg.TwilioAuthToken,
			PublicBaseURL: cfg.PublicBaseURL,
			Metrics:       callMetrics,
			Logger:        logger.WithComponent("voice"),
		}),
		SMSWebhooks: handlers.NewSMSWebhookHandler(handlers.SMSWebhookConfig{
			Retries:       retries,
			ShortDelay:    cfg.RetryShortDelay,
			DefaultDelay:  cfg.RetryDefaultDelay,
			AuthToken:     cfg.TwilioAuthToken,
			PublicBaseURL: cfg.PublicBaseURL,
			Metrics:       callMetrics,
			Logger:        logger.WithComponent("sms"),
		}),
		MetricsHandler: promhttp.Handler(),
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.New(routerCfg),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

// buildSessionStore prefers Redis so calls survive restarts; the in-memory
// store with its idle janitor backs local development.
func buildSessionStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) dialogue.SessionStore {
	if cfg.UseRedisStore && cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb := redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("redis unreachable, falling back to memory store", "error", err)
		} else {
			logger.Info("using redis session store", "addr", cfg.RedisAddr)
			return dialogue.NewRedisStore(rdb, cfg.SessionIdleTTL)
		}
	}
	store := dialogue.NewMemoryStore(cfg.SessionIdleTTL)
	store.StartJanitor(ctx, time.Minute)
	return store
}

func buildCallPlacer(cfg *appconfig.Config, logger *logging.Logger) dialogue.CallPlacer {
	client, err := telephony.NewTwilioClient(telephony.TwilioClientConfig{
		AccountSID:  cfg.TwilioAccountSID,
		AuthToken:   cfg.TwilioAuthToken,
		From:        cfg.TwilioFromNumber,
		WebhookBase: cfg.PublicBaseURL,
		Logger:      logger.WithComponent("telephony"),
	})
	if err != nil {
		logger.Warn("outbound calling disabled", "reason", err.Error())
		return nil
	}
	return client
}

// buildFallbackResponder wires Bedrock as the primary model with Gemini as
// the secondary. Either side may be absent; with neither, unclassified
// utterances get the scripted clarification line.
func buildFallbackResponder(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) dialogue.FallbackResponder {
	var primary, secondary llm.Client

	if cfg.BedrockModelID != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			logger.Error("AWS config load failed", "error", err)
		} else {
			primary = llm.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
		}
	}

	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("gemini client init failed", "error", err)
		} else {
			secondary = gemini
		}
	}

	var client llm.Client
	switch {
	case primary != nil && secondary != nil && !cfg.FallbackDisabled:
		client = llm.NewFallbackClient(primary, secondary, logger.Logger)
	case primary != nil:
		client = primary
	case secondary != nil:
		client = secondary
	default:
		logger.Warn("no language model configured, using scripted clarifications only")
		return nil
	}
	return llm.NewResponder(client, cfg.BedrockModelID)
}

func buildClinicSearcher(cfg *appconfig.Config, logger *logging.Logger) *places.Client {
	if cfg.GoogleMapsAPIKey == "" {
		return nil
	}
	client, err := places.NewClient(places.ClientConfig{
		APIKey: cfg.GoogleMapsAPIKey,
		Logger: logger.WithComponent("places"),
	})
	if err != nil {
		logger.Warn("clinic search disabled", "reason", err.Error())
		return nil
	}
	return client
}
