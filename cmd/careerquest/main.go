package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pavelanni/careerquest/internal/analysis"
	"github.com/pavelanni/careerquest/internal/handler"
	appI18n "github.com/pavelanni/careerquest/internal/i18n"
	"github.com/pavelanni/careerquest/internal/knowledge"
	"github.com/pavelanni/careerquest/internal/llm"
	"github.com/pavelanni/careerquest/internal/llm/prompts"
	"github.com/pavelanni/careerquest/internal/model"
	"github.com/pavelanni/careerquest/internal/quest"
	"github.com/pavelanni/careerquest/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "careerquest",
		Short: "CareerQuest quest and career analysis API",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `careerquest --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addStoreFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("data-dir", "data", "Directory for per-user JSON records (file store)")
	f.String("store", "file", "User record backend (file, sqlite)")
	f.String("db", "careerquest.db", "SQLite database path (sqlite store)")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write logs to this file, rotated by size")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":5001", "HTTP listen address")
	f.String("prompts-dir", "", "Directory with prompt templates (default: built-in)")
	f.String("llm-provider", "gemini", "Text provider (gemini, openai, anthropic, mock)")
	f.String("llm-model", "", "Model name (default depends on provider)")
	f.String("llm-url", "", "Base URL for OpenAI-compatible APIs")
	f.String("llm-key", "", "API key (or set GOOGLE_API_KEY, OPENAI_API_KEY, ANTHROPIC_API_KEY)")
	f.StringP("lang", "l", "en", "Default message language (en, ru)")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins")
	f.String("wiki-url", knowledge.DefaultWikipediaURL, "Wikipedia REST summary endpoint")
	f.String("topic-tree-url", knowledge.DefaultTopicTreeURL, "Learning video topic tree URL")
	addStoreFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export one user's record as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("name", "", "User name to export (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addStoreFlags(cmd)
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// setupLogging installs the default logger and returns a function that
// releases the log file, if any.
func setupLogging(cmd *cobra.Command) func() {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	if path := v.GetString("log-file"); path != "" {
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(os.Stderr, rotator)
		closeFn = func() { _ = rotator.Close() }
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
	return closeFn
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CAREERQUEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("careerquest")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/careerquest")
	v.AddConfigPath("/etc/careerquest")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// providerKeyEnv lists the conventional API key variables per provider, in
// lookup order.
var providerKeyEnv = map[string][]string{
	"gemini":    {"GOOGLE_API_KEY", "GEMINI_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
}

func resolveAPIKey(provider, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	for _, name := range providerKeyEnv[provider] {
		if key := os.Getenv(name); key != "" {
			return key
		}
	}
	return ""
}

func serverConfig(v *viper.Viper) model.ServerConfig {
	return model.ServerConfig{
		DataDir:      v.GetString("data-dir"),
		Store:        strings.ToLower(v.GetString("store")),
		DBPath:       v.GetString("db"),
		PromptsDir:   v.GetString("prompts-dir"),
		Lang:         v.GetString("lang"),
		CORSOrigins:  v.GetStringSlice("cors-origins"),
		WikiURL:      v.GetString("wiki-url"),
		TopicTreeURL: v.GetString("topic-tree-url"),
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	closeLog := setupLogging(cmd)
	defer closeLog()
	v := viperForCmd(cmd)
	cfg := serverConfig(v)

	// Create the text provider first: a missing key must stop startup.
	llmCfg := llm.Config{
		Provider: strings.ToLower(v.GetString("llm-provider")),
		Model:    v.GetString("llm-model"),
		BaseURL:  v.GetString("llm-url"),
	}
	llmCfg.APIKey = resolveAPIKey(llmCfg.Provider, v.GetString("llm-key"))
	provider, err := llm.New(context.Background(), llmCfg)
	if err != nil {
		slog.Error("cannot start without a text provider", "provider", llmCfg.Provider, "error", err)
		return fmt.Errorf("create text provider: %w", err)
	}

	if err := appI18n.Init(cfg.Lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	st, err := store.Open(cfg.Store, cfg.DataDir, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open user store: %w", err)
	}
	defer st.Close()
	if counter, ok := st.(interface{ Count() (int, error) }); ok {
		if n, err := counter.Count(); err == nil {
			slog.Info("user store ready", "backend", cfg.Store, "records", n)
		}
	}

	promptStore := prompts.Default()
	if cfg.PromptsDir != "" {
		promptStore = prompts.Dir(cfg.PromptsDir)
	}

	topics := knowledge.NewTopicTree(cfg.TopicTreeURL)
	generator := quest.NewGenerator(provider, promptStore, topics)
	engine := analysis.NewEngine(st, promptStore, provider, knowledge.NewWikipedia(cfg.WikiURL))

	h, err := handler.New(st, generator, engine)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware())
	h.Routes(r)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Accept-Language"},
	})

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"provider", provider.Name(),
		"model", provider.ModelID(),
		"store", cfg.Store,
		"data_dir", cfg.DataDir,
		"prompts_dir", cfg.PromptsDir,
		"lang", cfg.Lang,
		"cors_origins", cfg.CORSOrigins,
	)
	srv := &http.Server{
		Addr:              addr,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func runExport(cmd *cobra.Command, _ []string) error {
	closeLog := setupLogging(cmd)
	defer closeLog()
	v := viperForCmd(cmd)
	cfg := serverConfig(v)

	st, err := store.Open(cfg.Store, cfg.DataDir, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open user store: %w", err)
	}
	defer st.Close()

	export, err := store.Export(st, v.GetString("name"), time.Now().UTC())
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	return nil
}
