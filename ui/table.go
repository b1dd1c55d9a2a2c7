package ui

import (
	"strconv"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"spothunter/aggregate"
)

var spotColumns = []string{"#", "Time", "Freq", "Mode", "Prog", "Ref", "Activator", "Comment", "Locator", "Dist [km]", "Source"}

// spotRow returns the table cells for one spot, aligned with spotColumns.
func spotRow(s aggregate.DisplaySpot) []string {
	return []string{
		strconv.Itoa(s.Index),
		s.Time,
		s.Frequency,
		s.Mode,
		s.Programme,
		s.Reference,
		s.Activator,
		truncate(s.Comment, 40),
		s.Locator,
		s.Distance,
		s.Origin,
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-1]) + "…"
}

func isNumericColumn(col int) bool {
	switch spotColumns[col] {
	case "#", "Freq", "Dist [km]":
		return true
	}
	return false
}

// fillSpotTable replaces the table contents with a header row and one row per
// spot. Must run on the UI goroutine.
func fillSpotTable(table *tview.Table, spots []aggregate.DisplaySpot) {
	table.Clear()
	for col, name := range spotColumns {
		table.SetCell(0, col, tview.NewTableCell(name).
			SetTextColor(uiTitleColor).
			SetSelectable(false).
			SetAttributes(tcell.AttrBold))
	}
	for i, s := range spots {
		for col, text := range spotRow(s) {
			cell := tview.NewTableCell(tview.Escape(text))
			if isNumericColumn(col) {
				cell.SetAlign(tview.AlignRight)
			}
			if spotColumns[col] == "Comment" {
				cell.SetExpansion(1)
			}
			table.SetCell(i+1, col, cell)
		}
	}
	table.ScrollToBeginning()
}
