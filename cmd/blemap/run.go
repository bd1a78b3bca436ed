package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blemap/internal/central"
	"github.com/srg/blemap/internal/consumer"
	goble "github.com/srg/blemap/internal/device/go-ble"
	"github.com/srg/blemap/internal/groutine"
	"github.com/srg/blemap/internal/report"
	"github.com/srg/blemap/pkg/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan for the target, connect, and map its service",
	Long: `Scans until a device advertises the target name, connects to it, discovers
the target service and its characteristics, and prints the handle map.

Examples:
  # Map service 1234 on the first device named "Christmas display"
  blemap run --name "Christmas display" --service 1234

  # Same, as JSON, then write "hello" to characteristic 0001
  blemap run --name "Christmas display" --service 1234 --format json --write-hex 68656c6c6f

  # Keep trying after connection failures, give up after a minute
  blemap run -c blemap.yaml --rescan --timeout 1m`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

// runFlags holds the run overrides. Zero values defer to the config file.
type runFlags struct {
	name     string
	service  string
	format   string
	timeout  time.Duration
	rescan   bool
	writeHex string
	verbose  bool
}

var runOpts runFlags

func init() {
	runCmd.Flags().StringVar(&runOpts.name, "name", "", "Advertised name to look for (exact, case-sensitive)")
	runCmd.Flags().StringVar(&runOpts.service, "service", "", "Primary service UUID to map")
	runCmd.Flags().StringVar(&runOpts.format, "format", "", "Output format: table, json or yaml")
	runCmd.Flags().DurationVar(&runOpts.timeout, "timeout", 0, "Give up after this long; 0 waits until interrupted")
	runCmd.Flags().BoolVar(&runOpts.rescan, "rescan", false, "Resume scanning after a failed or lost connection")
	runCmd.Flags().StringVar(&runOpts.writeHex, "write-hex", "", "Hex payload to write to the configured characteristic once mapped")
	runCmd.Flags().BoolVar(&runOpts.verbose, "verbose", false, "Debug logging")
}

func (f runFlags) apply(cfg *config.Config) {
	if f.name != "" {
		cfg.Target.Name = f.name
	}
	if f.service != "" {
		cfg.Target.ServiceUUID = f.service
	}
	if f.format != "" {
		cfg.OutputFormat = f.format
	}
	if f.rescan {
		cfg.Policy.RescanOnDisconnect = true
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	runOpts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	target, err := cfg.TargetSpec()
	if err != nil {
		return err
	}
	format, err := report.ParseFormat(cfg.OutputFormat)
	if err != nil {
		return err
	}

	var payload []byte
	if runOpts.writeHex != "" {
		if payload, err = parseHex(runOpts.writeHex); err != nil {
			return err
		}
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runOpts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runOpts.timeout)
		defer cancel()
	}

	res, transport, done, err := discover(ctx, target, cfg, logger)
	defer done()
	if err != nil {
		return err
	}

	if err := report.Render(cmd.OutOrStdout(), res, format); err != nil {
		return fmt.Errorf("failed to render result: %w", err)
	}

	if payload == nil {
		return nil
	}
	writer, err := consumer.NewWriter(transport, payload, cfg.WriterOptions(), logger)
	if err != nil {
		return err
	}
	if err := writer.Write(ctx, res); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d bytes to %s\n", len(payload), cfg.Write.CharacteristicUUID)
	return nil
}

// discover drives one session until a discovery result arrives or a failure
// ends the attempt. The returned cleanup stops the dispatcher and closes the
// transport; it must be called even on error.
func discover(ctx context.Context, target central.TargetSpec, cfg *config.Config, logger *logrus.Logger) (central.Result, *goble.Transport, func(), error) {
	loop := central.NewLoop(0, logger)
	transport := goble.NewTransport(loop, logger)

	progress := NewProgressPrinter(fmt.Sprintf("Looking for %q", target.Name))

	results := make(chan central.Result, 1)
	failures := make(chan error, 16)
	obs := central.ObserverFuncs{
		OnDiscoveryComplete: func(r central.Result) {
			select {
			case results <- r:
			default:
			}
		},
		OnFailure: func(err error) {
			select {
			case failures <- err:
			default:
				logger.WithError(err).Warn("Failure dropped, queue full")
			}
		},
		OnPhaseChanged: progress.Phase,
	}

	session, err := central.NewSession(target, transport, loop, obs, cfg.Options(), logger)
	if err != nil {
		_ = transport.Close()
		return central.Result{}, nil, func() {}, err
	}

	loopCtx, cancelLoop := context.WithCancel(ctx)
	groutine.Go(loopCtx, "blemap-dispatch", func(ctx context.Context) {
		_ = loop.Run(ctx, session)
	})

	progress.Start()
	cleanup := func() {
		progress.Stop()
		cancelLoop()
		<-loop.Done()
		if err := transport.Close(); err != nil {
			logger.WithError(err).Debug("Transport close failed")
		}
	}

	if err := loop.Call(func(s *central.Session) error { return s.StartScan() }); err != nil {
		return central.Result{}, nil, cleanup, err
	}

	for {
		select {
		case res := <-results:
			progress.Stop()
			return res, transport, cleanup, nil

		case err := <-failures:
			if !retryable(err, cfg) {
				return central.Result{}, nil, cleanup, err
			}
			logger.WithError(err).Info("Attempt failed, scanning again")

		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return central.Result{}, nil, cleanup, ErrTargetNotFound
			}
			return central.Result{}, nil, cleanup, ctx.Err()
		}
	}
}

// retryable reports whether the session will scan again by itself after err.
func retryable(err error, cfg *config.Config) bool {
	if !cfg.Policy.RescanOnDisconnect {
		return false
	}
	switch {
	case errors.Is(err, central.ErrRadioUnavailable), errors.Is(err, central.ErrScanStopFailed):
		return false
	case errors.Is(err, central.ErrDiscoveryRequestFailed):
		// the link stays up with no discovery in flight
		return false
	case errors.Is(err, central.ErrServiceNotFound):
		// the link stays up unless the disconnect policy tears it down
		return cfg.Policy.DisconnectOnServiceNotFound
	}
	return true
}
