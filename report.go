package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
)

// formatLeaderTime renders an elapsed time in seconds as m:ss.
func formatLeaderTime(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// renderTable writes the accepted segments as a console table.
func renderTable(w io.Writer, details []SegmentDetail) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Segment", "Distance", "Attempts", "Leader", "Time", "HR", "Power", "URL"})
	table.SetAutoWrapText(false)

	for _, d := range details {
		hrText := ""
		if d.LeaderHR != nil {
			hrText = fmt.Sprintf("%d bpm", *d.LeaderHR)
		}
		powerText := ""
		if d.LeaderPower != nil {
			powerText = fmt.Sprintf("%dW", *d.LeaderPower)
			if d.PowerVerified {
				powerText = "⚡" + powerText
			}
		}
		table.Append([]string{
			d.Name,
			fmt.Sprintf("%.0fm", d.DistanceM),
			fmt.Sprintf("%d", d.AttemptCount),
			d.LeaderName,
			formatLeaderTime(d.LeaderTimeS),
			hrText,
			powerText,
			d.URL,
		})
	}
	table.Render()
}

// writeResults serializes the accepted segments to a JSON file. Absent
// leader readings serialize as null so every record carries the same keys.
func writeResults(path string, details []SegmentDetail) error {
	b, err := json.MarshalIndent(details, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	b = append(b, '\n')
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
