// Command holyiot-sim advertises HolyIot frames from a local adapter so the
// gateway can be exercised without a beacon. The battery drains by one point
// every --drain-every.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"holyiot-gateway/internal/ble"
	"holyiot-gateway/internal/config"
	"holyiot-gateway/internal/holyiot"
	"holyiot-gateway/internal/logging"
)

var version = "dev"
var appName = "holyiot-sim"

type simFlags struct {
	adapter    string
	name       string
	variant    string
	battery    int
	unknown    bool
	interval   time.Duration
	drainEvery time.Duration
	logLevel   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &simFlags{}
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Advertise simulated HolyIot battery frames",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVar(&f.adapter, "adapter", "hci0", "BLE adapter")
	cmd.Flags().StringVar(&f.name, "name", "Holy-IOT", "advertised local name")
	cmd.Flags().StringVar(&f.variant, "variant", holyiot.Strict.Name, "frame layout: strict or permissive")
	cmd.Flags().IntVar(&f.battery, "battery", 100, "initial battery level, 0-254")
	cmd.Flags().BoolVar(&f.unknown, "unknown", false, "report the battery as unknown (0xFF)")
	cmd.Flags().DurationVar(&f.interval, "interval", 100*time.Millisecond, "advertising interval")
	cmd.Flags().DurationVar(&f.drainEvery, "drain-every", time.Minute, "battery drain period, 0 disables")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return cmd
}

func run(ctx context.Context, f *simFlags) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", f.logLevel, err)
	}
	logger := logging.NewWithWriter(os.Stderr, config.Config{AppEnv: "dev", LogLevel: level}, version, appName)

	variant, err := holyiot.LookupVariant(f.variant)
	if err != nil {
		return err
	}
	levels, err := newDrain(f.battery, f.unknown)
	if err != nil {
		return err
	}

	adv := ble.NewAdvertiser(ble.AdvertiserOptions{
		Adapter:   f.adapter,
		LocalName: f.name,
		Interval:  f.interval,
		Logger:    logger,
	})
	address, err := adv.Enable()
	if err != nil {
		return err
	}
	defer func() {
		if err := adv.Stop(); err != nil {
			logger.Warn("stop advertising", "error", err)
		}
	}()
	logger.Info("simulating holyiot beacon", "addr", address, "variant", variant.Name)

	publish := func() error {
		frame, err := holyiot.Encode(variant, address, levels.current())
		if err != nil {
			return err
		}
		if err := adv.Advertise(variant.ServiceUUID, frame); err != nil {
			return err
		}
		logger.Info("advertising frame", "battery", levels.String(), "frame", fmt.Sprintf("% X", frame))
		return nil
	}
	if err := publish(); err != nil {
		return err
	}

	if f.drainEvery <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(f.drainEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !levels.drain() {
				continue
			}
			if err := publish(); err != nil {
				return err
			}
		}
	}
}
