package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/liststore"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/logger"
	"github.com/Rajarajeshwaripandikumar/Rent-a-Ride-Frontend-sub000/internal/signal"
)

const shutdownTimeout = 5 * time.Second

func newWatchCmd(appFn func() *app) *cobra.Command {
	var flags viewFlags
	cmd := &cobra.Command{
		Use:   "watch <resource>",
		Short: "Print a resource list and reprint it whenever a change is announced",
		Long: `Loads the list, prints it, then reloads and reprints it every time the
"<resource>.changed" signal arrives over Redis (see "rentctl notify").
Runs until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return watch(ctx, appFn(), args[0], &flags, cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	return cmd
}

func watch(ctx context.Context, a *app, name string, flags *viewFlags, out io.Writer) error {
	svc, err := a.service(name)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)

	stopMetrics, err := a.startMetrics()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := stopMetrics(shutdownCtx); err != nil {
			log.Warn("stopping metrics exporter", zap.Error(err))
		}
	}()

	board := signal.NewBoard()
	relay, closeRedis, err := a.relay(board)
	if err != nil {
		return err
	}
	defer func() { _ = closeRedis() }()

	stopRelay, err := relay.Start(ctx)
	if err != nil {
		return &commandError{message: "could not subscribe to change announcements", err: err}
	}
	defer func() { _ = stopRelay() }()

	s := a.store(svc)
	defer s.Close()
	if err := flags.apply(s); err != nil {
		return err
	}

	columns := svc.Definition().Schema.Names()
	var mu sync.Mutex
	unsubscribe := s.Subscribe(func(snap liststore.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		switch snap.Status {
		case liststore.StatusLoaded:
			skipped, err := render(out, flags.output, columns, snap)
			if err != nil {
				log.Warn("rendering list", zap.Error(err))
			}
			if skipped > 0 {
				log.Warn(skippedNote(skipped, snap.Name))
			}
		case liststore.StatusError:
			fmt.Fprintln(out, errorStyle.Render("error: "+snap.Err))
		}
	})
	defer unsubscribe()

	unwatch := a.container.Subscribe(func(resource string) {
		log.Debug("shared state updated", zap.String("resource", resource), zap.Int("items", len(a.container.Select(resource))))
	}, svc.Definition().Name)
	defer unwatch()

	sig := board.Get(signal.Changed(svc.Definition().Name))
	sig.Raise()

	refetcher := liststore.NewRefetcher(s, svc.List, sig,
		liststore.WithDebounce(a.cfg.Store.RefetchDebounce, 0),
		liststore.WithRefetchLogger(a.logger),
	)
	log.Info("watching for changes", zap.String("resource", svc.Definition().Name), zap.String("signal", sig.Name()))

	err = refetcher.Run(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func newNotifyCmd(appFn func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "notify <resource>",
		Short: "Announce that a resource list changed, so watchers reload it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appFn()
			svc, err := a.service(args[0])
			if err != nil {
				return err
			}
			relay, closeRedis, err := a.relay(signal.NewBoard())
			if err != nil {
				return err
			}
			defer func() { _ = closeRedis() }()

			name := signal.Changed(svc.Definition().Name)
			if err := relay.Publish(cmd.Context(), name); err != nil {
				return &commandError{message: "could not announce the change", err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "announced %s\n", name)
			return nil
		},
	}
}
