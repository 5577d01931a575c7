package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/DmytroKolisnyk2/keyboard-races/internal/config"
	"github.com/DmytroKolisnyk2/keyboard-races/internal/game"
	"github.com/DmytroKolisnyk2/keyboard-races/internal/gateway"
	"github.com/DmytroKolisnyk2/keyboard-races/internal/texts"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg("could not load .env file")
	}

	cfg, err := config.Load(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	setupLogging(cfg.Log.Level)

	corpus, err := texts.Load(cfg.Texts.Path)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load text corpus")
	}

	log.Info().
		Str("addr", cfg.Server.Addr).
		Int("room_capacity", cfg.Game.RoomCapacity).
		Int("seconds_before_start", cfg.Game.SecondsBeforeStart).
		Int("seconds_for_game", cfg.Game.SecondsForGame).
		Int("corpus_size", corpus.Count()).
		Msg("starting keyboard races server")

	gw := setupGateway(cfg, corpus)
	server := setupServer(cfg, gw, corpus)

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("server shutdown complete")
}

func setupGateway(cfg config.Config, corpus *texts.Corpus) *gateway.Gateway {
	gameCfg := game.Config{
		RoomCapacity:       cfg.Game.RoomCapacity,
		SecondsBeforeStart: cfg.Game.SecondsBeforeStart,
		SecondsForGame:     cfg.Game.SecondsForGame,
		CorpusSize:         corpus.Count(),
	}

	gw := gateway.New(gateway.DefaultConfig())
	g := game.New(gameCfg, gw, clockwork.NewRealClock())
	gw.Bind(g)
	return gw
}

func setupServer(cfg config.Config, gw *gateway.Gateway, corpus *texts.Corpus) *http.Server {
	r := mux.NewRouter()
	r.HandleFunc("/ws", gw.HandleConnection)
	corpus.RegisterRoutes(r)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"connections": gw.Stats(),
		})
	}).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodHead, http.MethodGet, http.MethodPost},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h2c.NewHandler(c.Handler(r), &http2.Server{}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		log.Warn().Str("level", level).Msg("unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
