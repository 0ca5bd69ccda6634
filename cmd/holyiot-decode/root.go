package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"holyiot-gateway/internal/config"
	"holyiot-gateway/internal/holyiot"
	"holyiot-gateway/internal/logging"
)

type rootFlags struct {
	variant  string
	logLevel string
	logger   *slog.Logger
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Decode and replay HolyIot BLE advertisements",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := parseLevel(flags.logLevel)
			if err != nil {
				return err
			}
			cfg := config.Config{AppEnv: "dev", LogLevel: level}
			flags.logger = logging.NewWithWriter(cmd.ErrOrStderr(), cfg, version, appName)
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&flags.variant, "variant", "auto", "payload variant: auto, strict or permissive")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	cmd.AddCommand(
		newDecodeCmd(flags),
		newVariantsCmd(),
		newReplayCmd(flags),
		newAddressesCmd(flags),
		newMigrateCmd(flags),
		newPruneCmd(flags),
	)
	return cmd
}

func (f *rootFlags) decoder() (holyiot.PayloadDecoder, error) {
	logger := f.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return holyiot.New(f.variant, holyiot.WithLogger(logger))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("invalid --log-level %q: %w", s, err)
	}
	return level, nil
}

// parseHex accepts "0050aabb", "00 50 AA BB" and "00:50:aa:bb".
func parseHex(s string) ([]byte, error) {
	clean := strings.NewReplacer(" ", "", ":", "", "-", "").Replace(strings.TrimSpace(s))
	clean = strings.TrimPrefix(strings.ToLower(clean), "0x")
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex payload %q: %w", s, err)
	}
	return b, nil
}
