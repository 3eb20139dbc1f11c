// Package main implements mrtdterm, a command line client for reading
// ICAO Doc 9303 electronic travel documents over a PC/SC reader.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mrtdterm/output"
	"mrtdterm/pcsc"
)

var (
	version = "1.0.0"

	// Persistent flags available to every subcommand.
	readerIndex int
	configPath  string
	outputJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "mrtdterm",
	Short: "ICAO 9303 MRTD card reader",
	Long: `mrtdterm v` + version + `
Read ICAO Doc 9303 electronic travel documents (electronic passports and
ID cards) over a PC/SC reader.

This tool supports:
  - BAC and PACE (v2, Generic/Chip-Authentication Mapping; Integrated
    Mapping is not supported)
  - Reading EF.COM, EF.SOD, and the numbered data groups
Extended Access Control is not performed by the read command.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&readerIndex, "reader", "r", -1,
		"Reader index (use 'mrtdterm read --list' to see available readers)")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"Path to a session config JSON file (see 'mrtdterm info --sample-config')")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false,
		"Suppress table and status output (no JSON document is printed)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// selectReader resolves readerIndex against the attached PC/SC readers,
// auto-selecting when exactly one is present.
func selectReader() (string, error) {
	readers, err := pcsc.ListReaders()
	if err != nil {
		return "", fmt.Errorf("failed to list readers: %w", err)
	}
	if len(readers) == 0 {
		return "", fmt.Errorf("no smart card readers found")
	}

	if readerIndex < 0 {
		if len(readers) == 1 {
			if !outputJSON {
				output.PrintSuccess(fmt.Sprintf("Auto-selected reader: %s", readers[0]))
			}
			return readers[0], nil
		}
		output.PrintReaderList(readers)
		return "", fmt.Errorf("multiple readers found, use -r <index> to select one")
	}

	if readerIndex >= len(readers) {
		return "", fmt.Errorf("reader index %d out of range (%d readers attached)", readerIndex, len(readers))
	}
	return readers[readerIndex], nil
}

// listAllReaders returns every attached PC/SC reader's name.
func listAllReaders() ([]string, error) {
	return pcsc.ListReaders()
}

// connectReader opens a PC/SC transport to the resolved reader and prints
// its identity unless JSON output was requested.
func connectReader() (*pcsc.Transport, error) {
	name, err := selectReader()
	if err != nil {
		return nil, err
	}

	transport, err := pcsc.Open(name)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	if !outputJSON {
		output.PrintReaderInfo(transport.Reader(), fmt.Sprintf("%X", transport.ATR()))
	}
	return transport, nil
}
