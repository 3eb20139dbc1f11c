// Package output renders MRTD read-session results as terminal tables
// and status lines.
package output

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"mrtdterm/lds"
)

// Color styles
var (
	colorHeader  = text.Colors{text.FgCyan, text.Bold}
	colorLabel   = text.Colors{text.FgYellow}
	colorValue   = text.Colors{text.FgWhite}
	colorSuccess = text.Colors{text.FgGreen}
	colorError   = text.Colors{text.FgRed}
	colorWarn    = text.Colors{text.FgYellow}
)

// getTableStyle returns the default table style
func getTableStyle() table.Style {
	style := table.StyleRounded
	style.Color.Header = colorHeader
	style.Color.Row = text.Colors{text.FgWhite}
	style.Color.RowAlternate = text.Colors{text.FgHiWhite}
	style.Options.SeparateRows = false
	return style
}

// newTable creates a new table writer with default settings
func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(getTableStyle())
	t.Style().Options.SeparateRows = false
	return t
}

// PrintReaderInfo prints the connected reader's name and ATR.
func PrintReaderInfo(readerName, atr string) {
	fmt.Println()
	t := newTable()
	t.SetTitle("READER & CARD INFO")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 15},
		{Number: 2, Colors: colorValue, WidthMin: 50},
	})
	t.AppendRow(table.Row{"Reader", readerName})
	t.AppendRow(table.Row{"ATR", atr})
	t.Render()
}

// PrintReaderList prints available PC/SC readers.
func PrintReaderList(readers []string) {
	fmt.Println()
	t := newTable()
	t.SetTitle("AVAILABLE SMART CARD READERS")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 8},
		{Number: 2, Colors: colorValue, WidthMin: 50},
	})

	if len(readers) == 0 {
		t.AppendRow(table.Row{"Status", colorWarn.Sprint("No readers found")})
	} else {
		for i, r := range readers {
			t.AppendRow(table.Row{fmt.Sprintf("[%d]", i), r})
		}
	}
	t.Render()
}

// SessionSummary is the result of a completed authentication run, for
// PrintSessionSummary.
type SessionSummary struct {
	Protocol    string // "BAC", "PACE", or "PACE+EAC"
	PaceOID     string // empty for BAC
	Cipher      string // "3DES" or "AES-128/192/256"
	ChipAuthRan bool
}

// PrintSessionSummary prints the negotiated protocol and cipher for a
// completed session.
func PrintSessionSummary(s SessionSummary) {
	fmt.Println()
	t := newTable()
	t.SetTitle("SESSION ESTABLISHED")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 20},
		{Number: 2, Colors: colorValue, WidthMin: 50},
	})
	t.AppendRow(table.Row{"Protocol", s.Protocol})
	if s.PaceOID != "" {
		t.AppendRow(table.Row{"PACE OID", s.PaceOID})
	}
	t.AppendRow(table.Row{"Secure messaging cipher", s.Cipher})
	t.AppendRow(table.Row{"Chip Authentication", fmt.Sprintf("%v", s.ChipAuthRan)})
	t.Render()
}

// DataGroupDump is one data group's raw contents, for PrintDataGroups.
type DataGroupDump struct {
	Number int
	FileID uint16
	Length int
	SHA256 string
}

// PrintDataGroups prints a summary table of the data groups read back
// from a chip, sorted by data group number.
func PrintDataGroups(dumps []DataGroupDump) {
	fmt.Println()
	t := newTable()
	t.SetTitle("DATA GROUPS")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 6},
		{Number: 2, Colors: colorValue, WidthMin: 10},
		{Number: 3, Colors: colorValue, WidthMin: 10},
		{Number: 4, Colors: colorValue, WidthMin: 64},
	})
	t.AppendHeader(table.Row{"DG", "File ID", "Bytes", "SHA-256"})

	sorted := append([]DataGroupDump{}, dumps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Number < sorted[j].Number })
	for _, d := range sorted {
		t.AppendRow(table.Row{fmt.Sprintf("DG%d", d.Number), fmt.Sprintf("0x%04X", d.FileID), d.Length, d.SHA256})
	}
	t.Render()
}

// PrintMRZ prints the MRZ fields used to derive the access key.
func PrintMRZ(documentNumber, dateOfBirth, dateOfExpiry string) {
	fmt.Println()
	t := newTable()
	t.SetTitle("MRZ KEY MATERIAL")
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: colorLabel, WidthMin: 18},
		{Number: 2, Colors: colorValue, WidthMin: 30},
	})
	t.AppendRow(table.Row{"Document number", documentNumber})
	t.AppendRow(table.Row{"Date of birth", dateOfBirth})
	t.AppendRow(table.Row{"Date of expiry", dateOfExpiry})
	t.Render()
}

// PrintRawData prints raw hex dumps of data groups, for debugging.
func PrintRawData(rawFiles map[string][]byte) {
	fmt.Println()
	names := make([]string, 0, len(rawFiles))
	for name := range rawFiles {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := newTable()
		t.SetTitle(name)
		t.AppendRow(table.Row{hex.EncodeToString(rawFiles[name])})
		t.Render()
	}
}

// PrintError prints an error message
func PrintError(msg string) {
	fmt.Println(colorError.Sprintf("x Error: %s", msg))
}

// PrintSuccess prints a success message
func PrintSuccess(msg string) {
	fmt.Println(colorSuccess.Sprintf("+ %s", msg))
}

// PrintWarning prints a warning message
func PrintWarning(msg string) {
	fmt.Println(colorWarn.Sprintf("! %s", msg))
}

// FileIDName renders a data group's file identifier using the lookup
// table's naming, falling back to a generic label.
func FileIDName(n int) string {
	fid, ok := lds.DGFileID(n)
	if !ok {
		return fmt.Sprintf("DG%d", n)
	}
	return fmt.Sprintf("DG%d (0x%04X)", n, fid)
}
