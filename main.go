package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/satriahrh/white-fusion/adapters/extractor"
	"github.com/satriahrh/white-fusion/adapters/hasher"
	httpapi "github.com/satriahrh/white-fusion/adapters/http"
	"github.com/satriahrh/white-fusion/adapters/llm"
	"github.com/satriahrh/white-fusion/adapters/mailer"
	"github.com/satriahrh/white-fusion/adapters/message_broker"
	"github.com/satriahrh/white-fusion/adapters/search"
	"github.com/satriahrh/white-fusion/adapters/speech"
	"github.com/satriahrh/white-fusion/adapters/storage/sqlite"
	"github.com/satriahrh/white-fusion/adapters/tts"
	"github.com/satriahrh/white-fusion/adapters/websocket"
	"github.com/satriahrh/white-fusion/config"
	"github.com/satriahrh/white-fusion/domain"
	"github.com/satriahrh/white-fusion/usecase"
	"github.com/satriahrh/white-fusion/utils/log"
)

func main() {
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.With().Fatal("Failed to load config", zap.Error(err))
	}

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		log.With().Fatal("Failed to open database", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	defer store.Close()

	var searcher domain.WebSearcher
	if cfg.Tavily.APIKey != "" {
		searcher = search.NewTavily(cfg.Tavily.APIKey, cfg.Tavily.Timeout, search.WithBaseURL(cfg.Tavily.BaseURL))
	} else {
		log.With().Warn("TAVILY_API_KEY not set, web search disabled")
	}

	registry := llm.NewRegistry(cfg.LLM)
	for _, p := range cfg.Catalog.Providers() {
		if !registry.Supports(domain.Provider(p)) {
			log.With().Fatal("Model catalog names an unsupported provider", zap.String("provider", p))
		}
	}

	router := usecase.NewRouter(registry, searcher,
		usecase.WithProviderTimeout(cfg.LLM.ProviderTimeout),
		usecase.WithMaxToolCalls(cfg.LLM.MaxToolCalls),
	)

	members := make([]usecase.FusionMember, 0, len(cfg.Catalog.Members))
	for _, m := range cfg.Catalog.Members {
		members = append(members, usecase.FusionMember{
			Label: m.Label,
			Spec:  domain.ProviderSpec{Provider: domain.Provider(m.Provider), Model: m.Model},
		})
	}
	fusion := usecase.NewFusion(router, members, specOf(cfg.Catalog.Synthesizer), cfg.Fusion.Parallel)

	broker := message_broker.NewChannelMessageBroker()
	defer broker.Close()

	wsServer := websocket.NewServer(broker)
	if err := wsServer.Listen(ctx); err != nil {
		log.With().Fatal("Failed to start answer listener", zap.Error(err))
	}

	auth := usecase.NewAuthService(store, store, mailer.NewSMTP(cfg.SMTP), hasher.New([]byte(cfg.JWT.Secret)), cfg.JWT)
	chats := usecase.NewChatService(store, router, fusion, broker, usecase.ChatOptions{
		AllowsModel:         cfg.Catalog.Allows,
		TitleModel:          specOf(cfg.Catalog.Title),
		DefaultSystemPrompt: cfg.LLM.DefaultSystem,
	})

	genaiClient, err := llm.NewGenaiClient(ctx, cfg.LLM.GoogleAPIKey)
	if err != nil {
		log.With().Fatal("Failed to create Gemini client", zap.Error(err))
	}
	documents := usecase.NewDocumentService(store, extractor.New(extractor.NewGeminiOCR(genaiClient, cfg.LLM.OCRModel)))

	var (
		transcriber domain.Transcriber
		synthesizer domain.Synthesizer
	)
	if cfg.Speech.Enabled {
		googleSpeech, err := speech.NewGoogleSpeech(ctx, cfg.Speech)
		if err != nil {
			log.With().Fatal("Failed to create speech client", zap.Error(err))
		}
		defer googleSpeech.Close()
		googleTTS, err := tts.NewGoogleTTS(ctx, cfg.Speech.LanguageCode)
		if err != nil {
			log.With().Fatal("Failed to create text-to-speech client", zap.Error(err))
		}
		defer googleTTS.Close()
		transcriber, synthesizer = googleSpeech, googleTTS
	}

	handler := httpapi.NewHandler(auth, chats, documents, transcriber, synthesizer)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.RequestID())
	e.Use(httpapi.LogContext)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(float64(cfg.HTTP.RatePerMinute) / 60),
		Burst:     cfg.HTTP.RatePerMinute,
		ExpiresIn: 3 * time.Minute,
	})))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			echo.HeaderXRequestID,
		},
		MaxAge: 86400,
	}))
	e.Use(middleware.BodyLimit(cfg.HTTP.BodyLimit))

	handler.Register(e, wsServer.Handler)

	go func() {
		log.With().Info("Starting server",
			zap.String("addr", cfg.HTTP.Addr),
			zap.Bool("voice", handler.VoiceEnabled()),
			zap.Bool("search", searcher != nil))
		if err := e.Start(cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.With().Fatal("Server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.With().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.With().Error("Graceful shutdown failed", zap.Error(err))
	}
}

func specOf(pm config.ProviderModel) domain.ProviderSpec {
	return domain.ProviderSpec{Provider: domain.Provider(pm.Provider), Model: pm.Model}
}
