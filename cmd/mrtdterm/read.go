package main

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mrtdterm/lds"
	"mrtdterm/mrz"
	"mrtdterm/output"
	"mrtdterm/pcsc"
	"mrtdterm/session"
)

var (
	listReadersFlag bool
	documentNumber  string
	dateOfBirth     string
	dateOfExpiry    string
	canCode         string
	pinCode         string
	paceOID         string
	dataGroupsFlag  string
	showRaw         bool
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Authenticate and read data groups from a document",
	Long: `Authenticate to a document over BAC or PACE and read back its
data groups.

Examples:
  # List available readers
  mrtdterm read --list

  # Read via BAC using MRZ fields
  mrtdterm read --doc L898902C3 --dob 740812 --doe 120415 --dg 1,2,11

  # Read via PACE using a CAN and a preferred algorithm OID
  mrtdterm read --can 123456 --pace-oid 0.4.0.127.0.7.2.2.4.2.2

  # Read using a saved session config
  mrtdterm read -c session.json`,
	RunE: runRead,
}

func init() {
	readCmd.Flags().BoolVarP(&listReadersFlag, "list", "l", false,
		"List available smart card readers and exit")
	readCmd.Flags().StringVar(&documentNumber, "doc", "",
		"Document number (MRZ key material)")
	readCmd.Flags().StringVar(&dateOfBirth, "dob", "",
		"Date of birth, YYMMDD (MRZ key material)")
	readCmd.Flags().StringVar(&dateOfExpiry, "doe", "",
		"Date of expiry, YYMMDD (MRZ key material)")
	readCmd.Flags().StringVar(&canCode, "can", "",
		"Card Access Number, used as the PACE password (PACE itself is selected by --pace-oid)")
	readCmd.Flags().StringVar(&pinCode, "pin", "",
		"PACE PIN, used as the PACE password (PACE itself is selected by --pace-oid)")
	readCmd.Flags().StringVar(&paceOID, "pace-oid", "",
		"PACE algorithm OID; presence of this flag selects PACE over BAC")
	readCmd.Flags().StringVar(&dataGroupsFlag, "dg", "1,2",
		"Comma separated data group numbers to read, e.g. 1,2,11")
	readCmd.Flags().BoolVar(&showRaw, "raw", false,
		"Also print raw hex dumps of every file read")
	rootCmd.AddCommand(readCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	if listReadersFlag {
		readers, err := pcsc.ListReaders()
		if err != nil {
			return err
		}
		output.PrintReaderList(readers)
		return nil
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	transport, err := connectReader()
	if err != nil {
		return err
	}
	defer transport.Close()

	result, err := session.Run(transport, *cfg)
	if err != nil {
		output.PrintError(err.Error())
		return err
	}

	if !outputJSON {
		output.PrintSessionSummary(output.SessionSummary{
			Protocol: result.Protocol,
			PaceOID:  result.PaceOID,
			Cipher:   result.Cipher,
		})
		output.PrintDataGroups(dumpSummaries(result.Files))
		if showRaw {
			output.PrintRawData(result.Files)
		}
		output.PrintSuccess(fmt.Sprintf("read %d files", len(result.Files)))
	}
	return nil
}

func buildConfig() (*session.Config, error) {
	if configPath != "" {
		return session.LoadConfig(configPath)
	}

	cfg := &session.Config{
		MRZ: mrz.Key{
			DocumentNumber: documentNumber,
			DateOfBirth:    dateOfBirth,
			DateOfExpiry:   dateOfExpiry,
		},
		PasswordSource:   session.PasswordMRZ,
		PreferredPaceOID: paceOID,
	}
	switch {
	case canCode != "":
		cfg.PasswordSource = session.PasswordCAN
		cfg.CAN = canCode
	case pinCode != "":
		cfg.PasswordSource = session.PasswordPIN
		cfg.PIN = pinCode
	}

	groups, err := parseDataGroups(dataGroupsFlag)
	if err != nil {
		return nil, err
	}
	cfg.DataGroups = groups
	return cfg, nil
}

func parseDataGroups(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var groups []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid data group %q: %w", part, err)
		}
		if _, ok := lds.DGFileID(n); !ok {
			return nil, fmt.Errorf("unknown data group %d", n)
		}
		groups = append(groups, n)
	}
	return groups, nil
}

func dumpSummaries(files map[string][]byte) []output.DataGroupDump {
	dumps := make([]output.DataGroupDump, 0, len(files))
	for name, data := range files {
		n, fid := dgNumber(name)
		sum := sha256.Sum256(data)
		dumps = append(dumps, output.DataGroupDump{
			Number: n,
			FileID: fid,
			Length: len(data),
			SHA256: fmt.Sprintf("%X", sum),
		})
	}
	return dumps
}

// dgNumber recovers a data group number and file ID for display purposes,
// giving EF.COM and EF.SOD the sentinel numbers 0 and -1 so they sort
// ahead of the numbered data groups.
func dgNumber(name string) (int, uint16) {
	switch name {
	case "EF.COM":
		return 0, lds.EFCOM
	case "EF.SOD":
		return -1, lds.EFSOD
	}
	var n int
	fmt.Sscanf(name, "DG%d", &n)
	fid, _ := lds.DGFileID(n)
	return n, fid
}
