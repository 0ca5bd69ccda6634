package main

import (
	"context"
	"database/sql"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"holyiot-gateway/internal/capture"
	"holyiot-gateway/internal/db"
	"holyiot-gateway/internal/holyiot"
	"holyiot-gateway/internal/migrate"
	"holyiot-gateway/internal/utils"
)

func addDBFlag(cmd *cobra.Command, path *string) {
	cmd.Flags().StringVar(path, "db", "", "capture journal path (CAPTURE_SQLITE_PATH of the gateway)")
	_ = cmd.MarkFlagRequired("db")
}

// openJournal opens and migrates the journal so a fresh path is usable too.
func openJournal(ctx context.Context, flags *rootFlags, path string) (*sql.DB, capture.Repository, error) {
	conn, err := db.Open(path, flags.logger)
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Run(ctx, conn, flags.logger); err != nil {
		_ = db.Close(conn)
		return nil, nil, err
	}
	return conn, capture.NewRepository(conn), nil
}

func newReplayCmd(flags *rootFlags) *cobra.Command {
	var (
		path    string
		address string
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-decode journaled sightings with the selected variant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, repo, err := openJournal(cmd.Context(), flags, path)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			dec, err := flags.decoder()
			if err != nil {
				return err
			}
			sightings, err := repo.GetSightings(cmd.Context(), address, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SEEN\tADDRESS\tPAYLOAD\tWAS\tNOW\tBATTERY\tREASON")
			var changed int
			for _, s := range sightings {
				res := decodeOne(dec, sightingRecord(s))
				if res.Accepted != s.Accepted {
					changed++
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					s.SeenAt.Format(time.RFC3339),
					s.Address,
					utils.BytesToHex(s.Payload),
					verdict(s.Accepted, s.Variant),
					verdict(res.Accepted, res.Variant),
					batteryText(res.Battery),
					res.Reason,
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d sightings, %d changed verdict\n", len(sightings), changed)
			return err
		},
	}
	addDBFlag(cmd, &path)
	cmd.Flags().StringVar(&address, "address", "", "only replay this device")
	cmd.Flags().IntVar(&limit, "limit", 100, "newest sightings to replay")
	return cmd
}

func newAddressesCmd(flags *rootFlags) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "addresses",
		Short: "Summarize journaled devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, repo, err := openJournal(cmd.Context(), flags, path)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			summaries, err := repo.GetAddresses(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ADDRESS\tTOTAL\tACCEPTED\tLAST SEEN")
			for _, a := range summaries {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", a.Address, a.Total, a.Accepted, a.LastSeen.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	addDBFlag(cmd, &path)
	return cmd
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the capture journal schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			conn, _, err := openJournal(cmd.Context(), flags, path)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return err
		},
	}
	addDBFlag(cmd, &path)
	return cmd
}

func newPruneCmd(flags *rootFlags) *cobra.Command {
	var (
		path      string
		olderThan time.Duration
	)
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete journaled sightings older than --older-than",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive, got %v", olderThan)
			}
			conn, repo, err := openJournal(cmd.Context(), flags, path)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close(conn) }()

			n, err := repo.DeleteBefore(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d sightings\n", n)
			return err
		},
	}
	addDBFlag(cmd, &path)
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age cutoff")
	return cmd
}

func sightingRecord(s capture.Sighting) holyiot.Record {
	uuid := s.ServiceUUID
	if uuid == "" {
		uuid = holyiot.ServiceUUID
	}
	return holyiot.Advertisement{
		Addr:      s.Address,
		LocalName: s.Name,
		Services:  map[string][]byte{uuid: s.Payload},
	}
}

func verdict(accepted bool, variant string) string {
	if !accepted {
		return "rejected"
	}
	return variant
}

func batteryText(b *int) string {
	if b == nil {
		return "-"
	}
	return fmt.Sprintf("%d%%", *b)
}
