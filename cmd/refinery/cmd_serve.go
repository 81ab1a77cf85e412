package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"refinery/internal/logging"
	"refinery/internal/refine"
	"refinery/internal/server"
	"refinery/internal/store"
)

const shutdownTimeout = 10 * time.Second

var serveAddr string

// serveCmd runs the reference backend
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the refinery backend",
	Long: `Serves the chat API used by the client:

  GET  /                    health
  POST /chat                start a refinement
  GET  /chat/{id}           refinement history
  POST /chat/{id}/message   continue a refinement
  GET  /chats               recent refinements of the user

Storage and LLM provider come from the storage and llm config sections.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(ctxOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := appCfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	st, err := store.Open(ctx, appCfg.Storage.Driver, appCfg.Storage.DSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	refiner, err := refine.New(ctx, refine.Options{
		Provider:    appCfg.LLM.Provider,
		APIKey:      appCfg.LLM.APIKey,
		Model:       appCfg.LLM.Model,
		BaseURL:     appCfg.LLM.BaseURL,
		Temperature: &appCfg.LLM.Temperature,
		MaxTokens:   appCfg.LLM.MaxTokens,
		Timeout:     appCfg.GetLLMTimeout(),
		Logger:      logger.Named("refine"),
	})
	if err != nil {
		return fmt.Errorf("failed to create refiner: %w", err)
	}
	if appCfg.LLM.Provider != "mock" && appCfg.LLM.APIKey == "" {
		logger.Warn("no API key configured, refinements will fail", zap.String("provider", appCfg.LLM.Provider))
	}

	srv := server.New(server.Config{
		Store:             st,
		Refiner:           refiner,
		UserRatePerMinute: appCfg.Server.UserRatePerMinute,
		Logger:            logger.Named("server"),
	})
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.Boot("serving on %s (store=%s, provider=%s)", addr, appCfg.Storage.Driver, appCfg.LLM.Provider)
	logger.Info("backend listening",
		zap.String("addr", addr),
		zap.String("store", appCfg.Storage.Driver),
		zap.String("provider", appCfg.LLM.Provider),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
