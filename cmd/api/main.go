package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	app "github.com/mohammadpnp/collaborator-import/internal/application/collaborator"
	"github.com/mohammadpnp/collaborator-import/internal/bootstrap"
	"github.com/mohammadpnp/collaborator-import/internal/config"
	domain "github.com/mohammadpnp/collaborator-import/internal/domain/collaborator"
	"github.com/mohammadpnp/collaborator-import/internal/infrastructure/db"
	infrafile "github.com/mohammadpnp/collaborator-import/internal/infrastructure/file"
	"github.com/mohammadpnp/collaborator-import/internal/infrastructure/mail"
	"github.com/mohammadpnp/collaborator-import/internal/infrastructure/repository"
	"github.com/mohammadpnp/collaborator-import/internal/logging"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.Open(cfg.Database.URL, cfg.Database.LogMode)
	if err != nil {
		return err
	}
	if err := db.Migrate(ctx, gormDB); err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	sessions := repository.NewImportSessionRepository(gormDB)
	uploads := infrafile.NewLocalSource(cfg.Import.BaseDir)

	var delivery domain.Notifier = mail.LogNotifier{}
	if cfg.Mail.MailEnabled() {
		delivery = mail.NewSMTPNotifier(mail.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	}
	notifier := mail.NewAsyncNotifier(delivery, mail.AsyncConfig{})

	worker := app.NewImportWorker(
		sessions,
		uploads,
		repository.NewCollaboratorRepository(pool),
		repository.NewUserRepository(gormDB),
		notifier,
		app.ImportWorkerConfig{
			Workers:             cfg.Import.Workers,
			PollInterval:        cfg.Import.PollInterval(),
			LeaseDuration:       cfg.Import.LeaseDuration(),
			MaxAttempts:         cfg.Import.MaxAttempts,
			CountMismatchedRows: cfg.Import.CountMismatchedRows,
		},
	)

	server := bootstrap.NewHTTPServer(bootstrap.ServerDeps{
		Sessions:     sessions,
		Uploads:      uploads,
		JWTSecret:    cfg.Auth.JWTSecret,
		MaxFileBytes: cfg.Import.MaxFileBytes,
	})

	g, gctx := errgroup.WithContext(ctx)

	// Workers may still notify while they wind down, so the notifier outlives them.
	notifyCtx, stopNotifier := context.WithCancel(context.WithoutCancel(gctx))
	defer stopNotifier()
	g.Go(func() error {
		return notifier.Run(notifyCtx)
	})

	worker.Start(gctx)
	g.Go(func() error {
		<-gctx.Done()
		worker.Wait()
		stopNotifier()
		return nil
	})

	g.Go(func() error {
		slog.Info("http server listening", "addr", cfg.Server.Addr())
		if err := server.Start(cfg.Server.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	slog.Info("import workers started", "workers", cfg.Import.Workers)
	return g.Wait()
}
