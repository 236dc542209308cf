package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hickar/mailchew/internal/app/config"
	"github.com/hickar/mailchew/internal/pkg/logger"
)

type Daemon struct {
	cfg       config.Config
	logger    *slog.Logger
	scheduler scheduler
	runner    AccountRunner
}

type scheduler interface {
	ScheduleWithCtx(context.Context, schedulerSettings) error
	Stop()
}

// AccountRunner synchronizes a single account.
type AccountRunner interface {
	Run(context.Context, config.AccountConfig) error
}

func NewDaemon(
	cfg config.Config,
	scheduler scheduler,
	runner AccountRunner,
	logger *slog.Logger,
) *Daemon {
	return &Daemon{
		cfg:       cfg,
		scheduler: scheduler,
		runner:    runner,
		logger:    logger,
	}
}

// Start launches scheduler, which utilizes built-in Ticker (https://pkg.go.dev/time#Ticker),
// and synchronizes configured accounts with graceful shutdown.
//
// A failing account is logged and retried on the next tick; it never stops
// the other accounts or the daemon.
func (d *Daemon) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		err := d.scheduler.ScheduleWithCtx(ctx, schedulerSettings{
			LaunchInitially: true,
			Interval:        d.cfg.SyncInterval,
			Callback:        func() { d.syncAll(ctx) },
		})
		if err != nil {
			errCh <- fmt.Errorf("error occurred while launching the scheduler: %w", err)
		}
	}()
	defer d.scheduler.Stop()

	// Graceful termination and error handling
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (d *Daemon) syncAll(ctx context.Context) {
	tctx := ctx
	if d.cfg.SyncTaskTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, d.cfg.SyncTaskTimeout)
		defer cancel()
	}

	for _, account := range d.cfg.Accounts {
		if tctx.Err() != nil {
			return
		}

		if err := d.runner.Run(tctx, account); err != nil {
			actx := logger.WithAttrs(tctx, slog.String("account", account.Login))
			d.logger.ErrorContext(actx, "account synchronization failed", slog.Any("error", err))
		}
	}
}
