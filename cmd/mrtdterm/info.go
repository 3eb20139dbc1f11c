package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mrtdterm/mrz"
	"mrtdterm/output"
	"mrtdterm/session"
)

var sampleConfigPath string

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show reader and session config information",
	Long: `Show attached PC/SC readers, or write a sample session config.

Examples:
  # List attached readers
  mrtdterm info --list

  # Write a sample session config to edit by hand
  mrtdterm info --sample-config session.json`,
	RunE: runInfo,
}

func init() {
	infoCmd.Flags().BoolVarP(&listReadersFlag, "list", "l", false,
		"List available smart card readers")
	infoCmd.Flags().StringVar(&sampleConfigPath, "sample-config", "",
		"Write a sample session config JSON file to this path and exit")
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	if sampleConfigPath != "" {
		sample := session.Config{
			MRZ: mrz.Key{
				DocumentNumber: "L898902C3",
				DateOfBirth:    "740812",
				DateOfExpiry:   "120415",
			},
			PasswordSource:   session.PasswordMRZ,
			PreferredPaceOID: "",
			DataGroups:       []int{1, 2, 11},
		}
		if err := sample.Save(sampleConfigPath); err != nil {
			return err
		}
		output.PrintSuccess(fmt.Sprintf("wrote sample config to %s", sampleConfigPath))
		return nil
	}

	readers, err := listAllReaders()
	if err != nil {
		return err
	}
	output.PrintReaderList(readers)
	return nil
}
