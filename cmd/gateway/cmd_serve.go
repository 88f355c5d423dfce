package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/assistkit/gateway/internal/audio"
	"github.com/assistkit/gateway/internal/chat"
	"github.com/assistkit/gateway/internal/config"
	"github.com/assistkit/gateway/internal/feedback"
	"github.com/assistkit/gateway/internal/tracing"
	"github.com/assistkit/gateway/internal/webapi"
	"github.com/assistkit/gateway/internal/webserver"
)

func newServeCommand() *cobra.Command {
	var configPath string
	var port int
	var audioDir string
	var mock bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway HTTP server",
		Long: `Start the gateway HTTP server.

Endpoints:
  POST  /chat/invoke       Run one buffered chat turn
  POST  /chat/stream       Run one chat turn, streamed as server-sent events
  POST  /feedback          Record feedback for a run
  PATCH /feedback          Update an existing feedback record
  POST  /get_trace         Resolve the shareable trace URL for a run
  POST  /transcribe_audio  Transcribe an uploaded audio file
  POST  /text_to_speech    Synthesize speech for a message
  GET   /health            Health check

Credentials are read from the environment (LANGSMITH_API_KEY,
OPENAI_API_KEY), with a .env file loaded if present.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env file is fine; env vars may be set directly.
			godotenv.Load() //nolint:errcheck

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if audioDir != "" {
				cfg.Audio.Dir = audioDir
			}

			return serve(cmd.Context(), cfg, mock)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "gateway.yaml", "Path to the config file")
	cmd.Flags().IntVar(&port, "port", 0, "Port to listen on (overrides config)")
	cmd.Flags().StringVar(&audioDir, "audio-dir", "", "Directory for audio artifacts (overrides config)")
	cmd.Flags().BoolVar(&mock, "mock", false, "Use a mock answer pipeline instead of the live one")

	return cmd
}

func serve(ctx context.Context, cfg *config.Config, mock bool) error {
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracingClient := tracing.NewClient(tracing.ClientOptions{
		Endpoint: cfg.Tracing.Endpoint,
		APIKey:   cfg.Tracing.APIKey,
		Timeout:  cfg.CallTimeoutDuration(),
	})
	resolver := tracing.NewShareResolver(tracingClient, nil)
	feedbackManager := feedback.NewManager(tracingClient)

	store := audio.NewStore(cfg.Audio.Dir)
	providerCfg := audio.ProviderConfig{
		APIKey:             cfg.Speech.APIKey,
		TranscriptionModel: cfg.Speech.TranscriptionModel,
		SpeechModel:        cfg.Speech.SpeechModel,
		Voice:              cfg.Speech.Voice,
	}
	transcriber := audio.NewTranscriber(providerCfg)
	synthesizer := audio.NewSynthesizer(providerCfg, store)

	var engine chat.Engine
	if mock {
		logger.Info("using mock answer pipeline")
		engine = chat.NewMockEngine(cfg.Chat.Model)
	} else {
		engine = chat.NewCopilotEngine(cfg.Chat.Model, nil)
	}

	if err := engine.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize answer pipeline: %w", err)
	}
	defer func() {
		if err := engine.Shutdown(context.Background()); err != nil {
			logger.Error("pipeline shutdown error", "error", err)
		}
	}()

	handlers := webapi.NewHandlers(engine, feedbackManager, resolver, store, transcriber, synthesizer, logger)
	mux := http.NewServeMux()
	webapi.RegisterRoutes(mux, handlers)

	server := webserver.New(webserver.Config{
		Host:   cfg.Server.Host,
		Port:   cfg.Server.Port,
		Logger: logger,
	}, webapi.CORSMiddleware(mux))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return server.ListenAndServe(ctx)
	})
	if ttl := cfg.ArtifactTTLDuration(); ttl > 0 {
		group.Go(func() error {
			return store.Janitor(ctx, cfg.SweepIntervalDuration(), ttl)
		})
	}

	return group.Wait()
}
