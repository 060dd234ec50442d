package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ChrisHK/label-printer/internal/handler"
	"github.com/ChrisHK/label-printer/internal/logging"
	"github.com/ChrisHK/label-printer/internal/middleware"
	"github.com/ChrisHK/label-printer/internal/router"
	"github.com/ChrisHK/label-printer/internal/service"

	"github.com/spf13/cobra"
)

func newServeCommand(opts *globalOptions) *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the maintenance scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			log := logging.Component("Server")
			log.WithField("env", cfg.App.Environment).Info("starting " + cfg.App.Name)

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			var sched *service.Scheduler
			if !noScheduler {
				if sched, err = a.scheduler(); err != nil {
					return err
				}
				sched.Start()
			}

			logSvc := a.logService()
			r := router.New(router.Config{
				Handler:       handler.New(cfg.App.Name, cfg.App.Version, a.store),
				IngestHandler: handler.NewIngestHandler(a.ingestor(), cfg.Server.MaxBodyBytes),
				LogHandler:    handler.NewLogHandler(logSvc, a.archiver()),
				RecordHandler: handler.NewRecordHandler(service.NewRecordService(a.store, a.records)),
				AdminHandler:  handler.NewAdminHandler(logSvc, a.store, cfg.Store.Driver),
				AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{
					APIKeys: cfg.App.APIKeys,
				}),
			})
			if !cfg.App.AuthEnabled() {
				log.Warn("API_KEYS is empty, authentication is disabled")
			}

			srv := &http.Server{
				Addr:         cfg.Server.Address(),
				Handler:      r,
				ReadTimeout:  cfg.Server.ReadTimeout,
				WriteTimeout: cfg.Server.WriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				log.WithField("addr", srv.Addr).Info("server listening")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			// Graceful shutdown
			quit := make(chan os.Signal, 1)
			signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(quit)

			var serveErr error
			select {
			case <-quit:
			case serveErr = <-errCh:
				log.WithError(serveErr).Error("server error")
			}
			log.Info("shutting down server")

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				log.WithError(err).Error("server shutdown error")
			}
			if sched != nil {
				sched.Stop(ctx)
			}

			log.Info("server stopped")
			return serveErr
		},
	}
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run archive and reconcile jobs")
	return cmd
}
