// Command api is the service's composition root: it wires the storage,
// embedding, extraction, and retrieval packages into one HTTP server,
// the same dependency-ordered assembly grapher.go once did for the
// teacher's document pipeline, now built over the graph domain.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/siherrmann/grapher/constructor"
	"github.com/siherrmann/grapher/embedding"
	"github.com/siherrmann/grapher/extraction"
	"github.com/siherrmann/grapher/graphops"
	"github.com/siherrmann/grapher/graphstore"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/interfaces/http"
	"github.com/siherrmann/grapher/model"
	"github.com/siherrmann/grapher/rag"
	"github.com/siherrmann/grapher/retrieval"
	"github.com/siherrmann/grapher/schema"
	"github.com/siherrmann/grapher/userservice"
)

func main() {
	// A missing .env is not an error: production deployments set real
	// environment variables instead of shipping a file.
	_ = godotenv.Load()

	logger := helper.NewPrettyLogger(os.Stdout, slog.LevelInfo)

	if err := run(logger); err != nil {
		logger.Error("service exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	dbConfig, err := helper.NewDatabaseConfiguration()
	if err != nil {
		return helper.NewError("load database configuration", err)
	}

	db, err := helper.Open("graph", dbConfig, logger)
	if err != nil {
		return helper.NewError("connect to database", err)
	}
	defer db.Close()

	dimension := getEnvInt("EMBEDDING_DIMENSION", 1536)

	store := graphstore.NewStore(db, dimension)
	if err := store.Initialize(context.Background()); err != nil {
		return helper.NewError("initialize graph store", err)
	}

	embedder, err := buildEmbedder(dimension)
	if err != nil {
		return helper.NewError("build embedder", err)
	}
	if closer, ok := embedder.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	extractorModel := getEnv("EXTRACTION_MODEL", "gpt-4o-mini")
	provider := extraction.NewOpenAIProvider(getEnv("OPENAI_API_KEY", ""), getEnv("OPENAI_BASE_URL", ""), extractorModel)

	registry := schema.NewPostgresRegistry(db)
	ops := graphops.New(store, store, embedder)
	retriever := retrieval.NewContextRetriever(ops)

	lockTimeout := time.Duration(getEnvInt("INGEST_LOCK_TIMEOUT_SECONDS", 60)) * time.Second
	ctor := constructor.New(ops, retriever, registry, provider, lockTimeout)

	ragInterface := rag.New(retriever, provider)
	users := userservice.New(store, registry)

	queryConfig := defaultQueryConfig()
	handler := rest.NewHandler(users, ctor, ops, ragInterface, registry, logger, queryConfig)
	router := rest.NewRouter(handler)

	addr := getEnv("HTTP_ADDR", ":8080")
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrs := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrs <- err
			return
		}
		serverErrs <- nil
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serverErrs:
		if err != nil {
			return helper.NewError("serve", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return helper.NewError("shutdown server", err)
	}
	return <-serverErrs
}

// buildEmbedder selects the Embedder implementation by EMBEDDER_PROVIDER:
// "openai" (default, matching dimension's conventional 1536 width) or
// "hugot" (a local model, for deployments without an OpenAI API key).
func buildEmbedder(dimension int) (embedding.Embedder, error) {
	switch getEnv("EMBEDDER_PROVIDER", "openai") {
	case "hugot":
		modelName := getEnv("EMBEDDING_MODEL", "sentence-transformers/all-MiniLM-L6-v2")
		return embedding.NewHugotEmbedder(modelName, dimension)
	default:
		modelName := getEnv("EMBEDDING_MODEL", embedding.DefaultOpenAIModel)
		return embedding.NewOpenAIEmbedder(getEnv("OPENAI_API_KEY", ""), getEnv("OPENAI_BASE_URL", ""), modelName, dimension), nil
	}
}

func defaultQueryConfig() model.QueryConfig {
	cfg := model.DefaultQueryConfig()
	cfg.TopK = getEnvInt("QUERY_TOP_K", cfg.TopK)
	cfg.MaxHops = getEnvInt("QUERY_MAX_HOPS", cfg.MaxHops)
	return cfg
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
