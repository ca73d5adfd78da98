package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	servercommon "github.com/hylla/ewtrail/internal/adapters/server/common"
)

var (
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	brokenStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(20)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("62"))

	severityStyles = map[string]lipgloss.Style{
		"HIGH":   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		"MEDIUM": lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		"LOW":    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
	}
)

// renderVerification formats one chain verification as a labelled block.
func renderVerification(v servercommon.ChainVerification) string {
	status := okStyle.Render("INTACT")
	if !v.OK {
		status = brokenStyle.Render("BROKEN")
	}
	lines := []string{
		line("entity", v.EntityType+"/"+v.EntityID),
		line("status", status),
		line("entries", strconv.Itoa(v.Entries)),
	}
	if !v.OK {
		lines = append(lines,
			line("broken at entry", v.BrokenAtEntryID),
			line("expected prev hash", v.ExpectedPrevHash),
			line("actual prev hash", v.ActualPrevHash),
			line("expected hash", v.ExpectedHash),
			line("actual hash", v.ActualHash),
		)
	}
	return strings.Join(lines, "\n")
}

func line(label, value string) string {
	if value == "" {
		value = "-"
	}
	return labelStyle.Render(label) + value
}

func renderAnomalies(rows []servercommon.Anomaly) string {
	if len(rows) == 0 {
		return "no anomalies"
	}
	t := newTable("Created", "Severity", "Type", "Entity", "Variance kg")
	for _, row := range rows {
		severity := row.Severity
		if style, ok := severityStyles[severity]; ok {
			severity = style.Render(severity)
		}
		t.Row(
			row.CreatedAt.UTC().Format("2006-01-02 15:04"),
			severity,
			row.Type,
			row.EntityType+"/"+row.EntityID,
			fmt.Sprint(payloadValue(row.Payload, "varianceKg")),
		)
	}
	return t.String()
}

func renderLots(rows []servercommon.Lot) string {
	if len(rows) == 0 {
		return "no lots"
	}
	t := newTable("Code", "Status", "Hub", "Recycler", "Category", "Updated")
	for _, row := range rows {
		t.Row(row.Code, row.Status, row.HubID, row.RecyclerID, row.MaterialCategoryID, row.UpdatedAt.UTC().Format("2006-01-02 15:04"))
	}
	return t.String()
}

func renderCredits(rows []servercommon.EprCredit) string {
	if len(rows) == 0 {
		return "no epr credits"
	}
	t := newTable("Period", "Brand", "Lot", "Category", "Weight kg", "Generated")
	for _, row := range rows {
		t.Row(row.ReportingPeriod, row.BrandID, row.LotID, row.MaterialCategoryID, row.WeightKg, row.GeneratedAt.UTC().Format("2006-01-02 15:04"))
	}
	return t.String()
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
}

func payloadValue(payload map[string]any, key string) any {
	if v, ok := payload[key]; ok && v != nil {
		return v
	}
	return "-"
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
