package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"holyiot-gateway/internal/holyiot"
)

type explainer interface {
	Explain(r holyiot.Record) error
}

// result is the JSON shape printed for every decoded advertisement.
type result struct {
	Address  string `json:"address"`
	Accepted bool   `json:"accepted"`
	Battery  *int   `json:"battery"`
	Variant  string `json:"variant,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func newDecodeCmd(flags *rootFlags) *cobra.Command {
	var (
		address     string
		name        string
		serviceUUID string
	)
	cmd := &cobra.Command{
		Use:   "decode <hex-payload>",
		Short: "Decode one service-data payload",
		Example: "  holyiot-decode decode --address AA:BB:CC:DD:EE:FF 0001020304" +
			"50AABBCCDDEEFF0000000000",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := parseHex(args[0])
			if err != nil {
				return err
			}
			dec, err := flags.decoder()
			if err != nil {
				return err
			}
			adv := holyiot.Advertisement{
				Addr:      address,
				LocalName: name,
				Services:  map[string][]byte{strings.ToLower(serviceUUID): payload},
			}
			res := decodeOne(dec, adv)
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Accepted {
				return fmt.Errorf("advertisement rejected: %s", res.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "advertiser address, AA:BB:CC:DD:EE:FF")
	cmd.Flags().StringVar(&name, "name", "", "advertised local name")
	cmd.Flags().StringVar(&serviceUUID, "service-uuid", holyiot.ServiceUUID, "service data UUID the payload was carried under")
	_ = cmd.MarkFlagRequired("address")
	return cmd
}

func decodeOne(dec holyiot.PayloadDecoder, r holyiot.Record) result {
	upd, ok := dec.Decode(r)
	res := result{Address: r.Address(), Accepted: ok}
	if ok {
		res.Battery = upd.Battery
		res.Variant = upd.Variant
		return res
	}
	if ex, isEx := dec.(explainer); isEx {
		if err := ex.Explain(r); err != nil {
			res.Reason = err.Error()
		}
	}
	return res
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVariantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "variants",
		Short: "List the built-in payload variants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, v := range holyiot.Variants() {
				mac := "-"
				if v.ValidateMAC {
					mac = fmt.Sprintf("@%d", v.MACOffset)
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%-11s uuid=%s min=%d exact=%d battery=@%d mac=%s\n",
					v.Name, v.ServiceUUID, v.MinLength, v.ExactLength, v.BatteryOffset, mac); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
