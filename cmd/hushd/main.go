package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"hushd/internal/audit"
	"hushd/internal/config"
	"hushd/internal/hush"
	"hushd/internal/notify"
	"hushd/internal/store"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

func Run(ctx context.Context) error {

	opts, err := config.Parse()
	if err != nil {
		return err
	}

	handler := log.NewWithOptions(os.Stdout, log.Options{
		Level:           log.DebugLevel,
		TimeFormat:      time.RFC3339,
		ReportTimestamp: true,
		TimeFunction:    log.NowUTC,
		ReportCaller:    true,
	})

	slog.SetDefault(slog.New(handler))

	// Ensure data directory is absolute for easier debugging.
	absDataDir, err := filepath.Abs(opts.DataPath)
	if err != nil {
		return fmt.Errorf("failed to resolve data directory: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var objects store.ObjectStore
	switch opts.Backend {
	case "", "local":
		objects, err = store.NewLocal(absDataDir)
	case "s3":
		objects, err = store.NewS3(ctx, store.S3Config{
			Endpoint:  opts.S3.Endpoint,
			AccessKey: opts.S3.AccessKey,
			SecretKey: opts.S3.SecretKey,
			Bucket:    opts.S3.Bucket,
			Secure:    opts.S3.Secure,
		})
	default:
		return fmt.Errorf("unknown storage backend: %q", opts.Backend)
	}
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}

	var notifier notify.Notifier = notify.Disabled{}
	if opts.Admin.SendEmail {
		notifier = notify.NewMailer(notify.MailerConfig{
			Host:       opts.SMTP.Host,
			Port:       opts.SMTP.Port,
			User:       opts.SMTP.User,
			Password:   opts.SMTP.Password,
			Sender:     opts.EmailSender,
			AdminName:  opts.Admin.Name,
			AdminEmail: opts.Admin.Email,
		})
	}

	var auditLog *audit.Log
	if opts.AuditLog != "" {
		auditLog, err = audit.Open(opts.AuditLog)
		if err != nil {
			return fmt.Errorf("failed to open audit log: %w", err)
		}
		defer auditLog.Close()
	}

	server, err := hush.NewServer(hush.NewConfig(
		hush.WithStore(objects),
		hush.WithNotifier(notifier),
		hush.WithAudit(auditLog),
		hush.WithMaxUploadBytes(opts.MaxUploadBytes),
	))
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	router := server.Handler()

	httpServer := &http.Server{
		Addr:              opts.Listen,
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
	}

	httpsServer := &http.Server{
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
		Addr:              ":8443",
		Handler:           router,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		<-ctx.Done()
		return httpsServer.Shutdown(context.Background())
	})

	eg.Go(func() error {
		<-ctx.Done()
		return httpServer.Shutdown(context.Background())
	})

	eg.Go(func() error {
		if opts.TLSCert == "" || opts.TLSKey == "" {
			slog.Debug("Skipping HTTPS service because no certificate was provided")
			return nil
		}

		slog.Info("Starting hushd HTTPS server", "addr", httpsServer.Addr)
		err := httpsServer.ListenAndServeTLS(opts.TLSCert, opts.TLSKey)
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	eg.Go(func() error {
		slog.Info("Starting hushd HTTP server", "addr", opts.Listen)
		err := httpServer.ListenAndServe()
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	slog.Info("hushd started", "data_dir", absDataDir, "backend", opts.Backend)
	return eg.Wait()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := Run(ctx); err != nil {
		slog.Error("hushd exited with error", "error", err)
	}
}
