package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/hickar/mailchew/internal/app/chew"
	"github.com/hickar/mailchew/internal/app/config"
	"github.com/hickar/mailchew/internal/app/daemon"
	"github.com/hickar/mailchew/internal/app/headers"
	"github.com/hickar/mailchew/internal/app/mailrep"
	"github.com/hickar/mailchew/internal/app/retriever"
	"github.com/hickar/mailchew/internal/app/sanitizer"
	"github.com/hickar/mailchew/internal/app/syncer"
	"github.com/hickar/mailchew/internal/pkg/kvstore"
	ctxlogger "github.com/hickar/mailchew/internal/pkg/logger"
)

var (
	configFilepath = flag.String("config", "./config.yaml", "Filepath to configuration file. Default is './config.yaml'")
	envFilepath    = flag.String("env-file", "./.env", "Filepath to environment variables file. Default is './.env'")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig(*configFilepath, *envFilepath)
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}

	logger := slog.New(ctxlogger.NewContextHandler(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       slog.Level(cfg.LogLevel),
		ReplaceAttr: ctxlogger.ReplaceAttr,
	})))

	for _, account := range cfg.Accounts {
		logger.Info("account configured",
			slog.String("login", account.Login),
			slog.Any("folders", account.Folders),
			slog.Any("snippet_bytes", account.SnippetBytes),
			slog.Any("max_body_bytes", account.MaxBodyBytes),
			slog.Bool("download_bodies", account.DownloadBodies),
		)
	}

	imapRetriever := retriever.NewIMAPRetriever(
		retriever.ImapDialerFunc(imapclient.DialTLS),
		logger.With(slog.String("module", "retriever")),
	)

	chewer := chew.NewChewer(
		headers.NewParser(),
		sanitizer.NewProcessor(logger.With(slog.String("module", "sanitizer"))),
		logger.With(slog.String("module", "chew")),
	)

	runner := syncer.NewRunner(
		syncer.MailRetrieverFunc(func(ctx context.Context, account config.AccountConfig) (syncer.Session, error) {
			session, err := imapRetriever.Open(ctx, account)
			if err != nil {
				return nil, err
			}
			return session, nil
		}),
		chewer,
		kvstore.New[string, retriever.FolderState](),
		kvstore.New[string, mailrep.Message](),
		logger.With(slog.String("module", "syncer")),
	)

	mailchew := daemon.NewDaemon(
		cfg,
		&daemon.Scheduler{},
		runner,
		logger.With(slog.String("module", "daemon")),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGABRT, syscall.SIGQUIT, syscall.SIGTERM)
	defer cancel()

	if err = mailchew.Start(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			logger.Error(fmt.Sprintf("Application exited with error: %s", err), slog.String("module", "main"))
			cancel()
			//nolint:gocritic
			os.Exit(1)
		}
	}

	cancel()
}
