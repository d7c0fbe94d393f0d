package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/caiga/companion/internal/api"
	"github.com/caiga/companion/internal/classifier"
	"github.com/caiga/companion/internal/codec"
	"github.com/caiga/companion/internal/config"
	"github.com/caiga/companion/internal/engine"
	"github.com/caiga/companion/internal/formatter"
	"github.com/caiga/companion/internal/gamelink"
	"github.com/caiga/companion/internal/poller"
	"github.com/caiga/companion/internal/retrieval"
	"github.com/caiga/companion/internal/state"
	"github.com/caiga/companion/internal/telemetry"
	"github.com/caiga/companion/internal/tips"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the poll loop and the control API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// #region serve

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	for _, dir := range []string{cfg.LogsDir, cfg.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log %s: %w", cfg.LogPath(), err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName: "companion",
		Version:     Version,
		Endpoint:    cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Printf("[MAIN] tracing shutdown: %v", err)
		}
	}()

	store, err := state.Open(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open state: %w", err)
	}
	defer store.Close()

	provider := tips.NewProvider(cfg.Tips())
	tipStore := tips.NewStore(nil)
	info := provider.Refresh(ctx, tipStore)
	log.Printf("[MAIN] tip bank: %d labels, %d candidates (%s)", info.Labels, info.Candidates, info.Source)

	clsCfg := classifier.Config{ColumnsPath: cfg.FeatureColumnsPath, ModelTimeout: classifier.DefaultModelTimeout}
	if cfg.ModelAddr != "" {
		mc, err := codec.NewModelClient(cfg.ModelAddr)
		if err != nil {
			log.Printf("[MAIN] model service %s unavailable, using rules: %v", cfg.ModelAddr, err)
		} else {
			defer mc.Close()
			clsCfg.Model = mc
		}
	}

	eng, err := engine.New(cfg.Engine(), engine.Deps{
		Classifier: classifier.New(clsCfg),
		Tips:       tipStore,
		Enricher:   newEnricher(cfg),
		Dispatcher: gamelink.NewTipClient(cfg.PostTipURL, gamelink.DefaultTimeout),
		Store:      store,
	})
	if err != nil {
		return err
	}

	hub := api.NewHub()
	eng.Subscribe(hub.Publish)
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewServer(eng, hub).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	p := poller.New(cfg.Poller(), gamelink.NewStateClient(cfg.StateURL, gamelink.DefaultTimeout), eng)

	log.Printf("[MAIN] companion %s listening on %s, polling %s", Version, srv.Addr, cfg.StateURL)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.Run(gctx) })
	g.Go(func() error { return provider.Run(gctx, tipStore) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Printf("[MAIN] stopped")
	return err
}

// newEnricher picks the formatter and snippet source from config. A missing knowledge
// file or API key degrades to the local fallback rather than stopping startup.
func newEnricher(cfg config.Config) *formatter.Enricher {
	var f formatter.Formatter = formatter.Fallback{MaxLength: formatter.DefaultMaxLength}
	if cfg.LLMEnabled {
		llm, err := formatter.NewLLM(formatter.LLMConfig{
			APIKey:  cfg.LLMAPIKey,
			BaseURL: cfg.LLMBaseURL,
			Model:   cfg.LLMModel,
		})
		if err != nil {
			log.Printf("[MAIN] external formatter disabled: %v", err)
		} else {
			f = llm
		}
	}

	var snippets formatter.Snippeter
	if cfg.RAGEnabled {
		kb, err := retrieval.LoadKnowledge(cfg.KnowledgePath)
		if err != nil {
			log.Printf("[MAIN] retrieval disabled: %v", err)
		} else {
			log.Printf("[MAIN] knowledge base: %d entries", kb.Len())
			snippets = retrieval.NewRetriever(kb, retrieval.DefaultConfig())
		}
	}
	return formatter.NewEnricher(f, snippets, tips.RecipePlaceholder)
}

// #endregion serve
