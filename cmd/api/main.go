package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"perfumevisual/internal/bootstrap"
	"perfumevisual/internal/http/handlers"
	httpapi "perfumevisual/internal/http/httpapi"
	"perfumevisual/internal/infra"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	services, err := bootstrap.Build(ctx, cfg, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to build services")
	}
	defer services.Close()

	app := &handlers.App{
		Pipeline:  services.Pipeline,
		Products:  services.Products,
		Settings:  services.Settings,
		History:   services.History,
		Sources:   services.Sources,
		Generated: services.Generated,
		Videos:    services.Videos,
		Search:    services.Search,
		Config:    cfg,
		Logger:    &logger,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.AllowedOrigins(),
		RateLimitPerMin: cfg.RateLimitPerMin,
		MaxConcurrent:   cfg.MaxConcurrentPipelines,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().
			Str("image_provider", services.Pipeline.EditorName()).
			Bool("image_configured", services.Pipeline.ImageConfigured()).
			Bool("telegram_configured", services.Pipeline.PublishConfigured()).
			Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
