package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/srg/blemap/internal/central"
	"github.com/srg/blemap/internal/device"
)

var matchCmd = &cobra.Command{
	Use:   "match <adv-hex>",
	Short: "Check a raw advertising payload against the target name",
	Long: `Parses a raw advertising payload (length-type-value elements, hex encoded)
and reports whether it would be selected by the name filter.

Examples:
  blemap match --name "Christmas display" 020106120943687269737...
  blemap match -c blemap.yaml "02 01 06 05 09 4c 61 6d 70"`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

var matchName string

func init() {
	matchCmd.Flags().StringVar(&matchName, "name", "", "Target name (overrides target.name from config)")
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	name := cfg.Target.Name
	if matchName != "" {
		name = matchName
	}
	if name == "" {
		return fmt.Errorf("target name required: use --name or target.name in config")
	}
	if len(name) > central.MaxNameLen {
		return fmt.Errorf("target name %q is longer than %d bytes", name, central.MaxNameLen)
	}

	payload, err := parseHex(args[0])
	if err != nil {
		return err
	}
	elems, err := device.ParseAdvertisingData(payload)
	if err != nil {
		return fmt.Errorf("invalid advertising payload: %w", err)
	}
	cmd.SilenceUsage = true

	report := device.AdvertisementReport{AdvType: device.AdvInd, Elements: elems}
	out := cmd.OutOrStdout()
	if central.NewNameFilter(name).Match(report) {
		fmt.Fprintf(out, "MATCH: %q\n", name)
		return nil
	}
	if advertised := device.LocalName(report); advertised != "" {
		fmt.Fprintf(out, "NO MATCH: advertised name %q\n", advertised)
	} else {
		fmt.Fprintln(out, "NO MATCH: no name element")
	}
	return nil
}

// parseHex decodes hex with common separators removed.
func parseHex(s string) ([]byte, error) {
	cleaned := strings.ReplaceAll(s, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ":", "")
	cleaned = strings.ReplaceAll(cleaned, "-", "")
	cleaned = strings.ReplaceAll(cleaned, "0x", "")

	data, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid hex data: %w", err)
	}
	return data, nil
}
