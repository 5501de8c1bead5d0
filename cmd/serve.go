package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/interview-assistant/internal/metrics"
	"github.com/spigell/interview-assistant/internal/review"
	"github.com/spigell/interview-assistant/internal/roster"
)

const shutdownTimeout = 5 * time.Second

type rosterWatcher interface {
	Watch(ctx context.Context) (<-chan roster.Event, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only review API and metrics",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		serve(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "listen address (default is review.listen from config)")
	viper.BindPFlag("review.listen", serveCmd.Flags().Lookup("listen"))
}

func serve(parent context.Context) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt := newRuntime(ctx)
	defer rt.close()
	logger := rt.logger

	reload := func(ctx context.Context) error {
		if err := rt.store.Load(ctx); err != nil {
			return err
		}
		metrics.RosterCandidates.Set(float64(rt.store.Len()))
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	// Redis pushes changes, so reads can use memory. Files are re-read per request.
	var perRequest review.Reloader = reload
	if watcher, ok := rt.backend.(rosterWatcher); ok {
		events, err := watcher.Watch(ctx)
		if err != nil {
			logger.Fatal("watching roster changes", zap.Error(err))
		}
		perRequest = nil
		g.Go(func() error {
			for ev := range events {
				if err := reload(ctx); err != nil {
					logger.Warn("reloading the roster", zap.Error(err), zap.String("event", string(ev.Kind)))
					continue
				}
				logger.Debug("roster reloaded", zap.String("event", string(ev.Kind)), zap.String("candidate_id", ev.CandidateID))
			}
			return nil
		})
	}

	srv := &http.Server{
		Addr:              rt.config.Review.Listen,
		Handler:           review.NewServer(rt.store, perRequest, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info("serving the review api", zap.String("listen", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("serving", zap.Error(err))
	}
	logger.Info("exiting", zap.String("reason", "shutdown"))
}
