package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"librarian/jobs"
	"librarian/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp()
			if err != nil {
				return err
			}
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	lm, err := a.openManager(ctx)
	if err != nil {
		return err
	}
	defer lm.Close()

	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := web.NewRouter(lm, a.log, web.Options{
		AllowedOrigins:     a.cfg.HTTP.AllowedOrigins,
		CookieName:         a.cfg.Session.CookieName,
		SecureCookie:       a.cfg.Session.SecureCookie,
		SessionTTL:         a.cfg.Session.TTL,
		LoginRatePerMinute: a.cfg.Auth.LoginRatePerMinute,
		LoginBurst:         a.cfg.Auth.LoginBurst,
	})

	sched, err := jobs.NewScheduler(lm, a.cfg.Jobs.SessionSweepSpec, a.log.WithPrefix("jobs"))
	if err != nil {
		return err
	}
	sched.Start()

	srv := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server ready", "addr", srv.Addr, "env", a.cfg.Env, "driver", a.cfg.DB.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			sched.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		a.log.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	sched.Stop(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
