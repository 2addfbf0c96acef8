package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nuturetable/nuturetable/internal/config"
	"github.com/nuturetable/nuturetable/internal/database"
	"github.com/nuturetable/nuturetable/internal/email"
	"github.com/nuturetable/nuturetable/internal/logging"
	"github.com/nuturetable/nuturetable/internal/push"
	"github.com/nuturetable/nuturetable/internal/server"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid-keys" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("NUTURE_VAPID_PUBLIC_KEY=%s\nNUTURE_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.SeedDemo {
		user, err := server.SeedDemo(context.Background(), db, time.Now())
		if err != nil {
			slog.Error("failed to seed demo data", "error", err)
			os.Exit(1)
		}
		slog.Info("demo account ready", "email", user.Email)
	}

	emailClient := email.NewClient(cfg.PostmarkToken, cfg.FromEmail, cfg.SupportEmail)
	if !emailClient.Configured() {
		slog.Warn("postmark token not set, inquiries will not be forwarded")
	}

	srv := server.New(db, cfg, emailClient, logger)
	if sched := srv.Scheduler(); sched != nil {
		sched.Start(context.Background())
		defer sched.Stop()
	} else {
		slog.Warn("vapid keys not set, push notifications disabled")
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("nuturetable starting", "addr", cfg.Addr(), "dev", cfg.Dev)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
