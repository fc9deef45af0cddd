package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/m2tx/live_bridge/internal/agent"
	"github.com/m2tx/live_bridge/internal/config"
	"github.com/m2tx/live_bridge/internal/credentials"
	"github.com/m2tx/live_bridge/internal/functions"
	"github.com/m2tx/live_bridge/internal/live"
	"github.com/m2tx/live_bridge/internal/repository"
	"github.com/m2tx/live_bridge/internal/server"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var version = "dev"

var configFile string

var rootCmd = &cobra.Command{
	Use:           "live-bridge",
	Short:         "live-bridge streams conversations to the Gemini Live API",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the websocket, history and metrics endpoints",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (text, json)")
	rootCmd.PersistentFlags().String("log-file", "", "Also write rotated logs to this file")
	rootCmd.PersistentFlags().String("http-port", "", "HTTP port")
	rootCmd.PersistentFlags().String("model", "", "Live model name")
	rootCmd.PersistentFlags().String("docs-dir", "", "Directory indexed for search_docs")

	rootCmd.AddCommand(serveCmd, versionCmd)
}

// loadConfig merges defaults, config file, environment and the flags that
// were set explicitly, in increasing order of precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := config.New(configFile)
	if err != nil {
		return nil, err
	}

	for flag, key := range map[string]string{
		"log-level":  "log_level",
		"log-format": "log_format",
		"log-file":   "log_file",
		"http-port":  "http_port",
		"model":      "model",
		"docs-dir":   "docs_dir",
	} {
		if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}

	return config.Load(v)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if err := initLogger(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openTranscripts(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	connector := live.NewGenAIConnector(log.Logger,
		live.WithAPIVersion(cfg.APIVersion),
		live.WithBaseURL(cfg.BaseURL),
	)
	bridge := live.New(connector,
		live.WithModel(cfg.Model),
		live.WithPluginKey(credentials.PluginKey{Key: cfg.GeminiAPIKey, DisableEnv: cfg.DisableEnvKey}),
	)

	a := agent.New(bridge, agent.WithTranscripts(repo))

	var embedder *agent.Embedder
	if cfg.DocsDir != "" {
		embedder = agent.NewEmbedder(log.Logger)
		if err := embedder.Index(cfg.DocsDir); err != nil {
			return err
		}
	}
	if err := functions.Register(a, embedder); err != nil {
		return err
	}

	log.Info().
		Str("version", version).
		Str("model", cfg.Model).
		Str("config", configFile).
		Msg("starting live bridge")

	return server.New(a, log.Logger).Serve(ctx, ":"+cfg.HTTPPort)
}

// openTranscripts returns the MongoDB store when a URI is configured and an
// in-memory store otherwise.
func openTranscripts(ctx context.Context, cfg *config.Config) (repository.TranscriptRepository, func(), error) {
	if cfg.MongoURI == "" {
		log.Info().Msg("no MONGODB_URI set, keeping transcripts in memory")
		return repository.NewMemoryTranscriptRepository(), func() {}, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, errors.Wrap(err, "ping mongodb")
	}

	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Warn().Err(err).Msg("mongodb disconnect")
		}
	}

	repo := repository.NewMongoTranscriptRepository(client.Database(cfg.MongoDB), cfg.MongoCollection)
	return repo, closeFn, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("live-bridge failed")
		os.Exit(1)
	}
}
