package ui

import (
	"strings"
	"testing"

	"github.com/rivo/tview"

	"spothunter/aggregate"
)

func TestSpotRowMatchesColumns(t *testing.T) {
	s := aggregate.DisplaySpot{
		Index: 3, Time: "2 minutes ago", Frequency: "14250.0", Mode: "SSB",
		Programme: "POTA 🏞", Reference: "US-0001", Activator: "K1ABC",
		Comment: "cq", Locator: "FN31pr", Distance: "5821", Origin: "POTA",
	}
	row := spotRow(s)
	if len(row) != len(spotColumns) {
		t.Fatalf("row has %d cells, want %d", len(row), len(spotColumns))
	}
	if row[0] != "3" || row[2] != "14250.0" || row[9] != "5821" || row[10] != "POTA" {
		t.Fatalf("unexpected row %v", row)
	}
}

func TestTruncateKeepsShortText(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	got := truncate(strings.Repeat("x", 50), 10)
	if len([]rune(got)) != 10 || !strings.HasSuffix(got, "…") {
		t.Fatalf("got %q", got)
	}
}

func TestFillSpotTable(t *testing.T) {
	table := tview.NewTable()
	fillSpotTable(table, []aggregate.DisplaySpot{{Index: 1, Activator: "K1ABC"}, {Index: 2, Activator: "VK9[XX]"}})
	if table.GetRowCount() != 3 {
		t.Fatalf("expected header + 2 rows, got %d", table.GetRowCount())
	}
	if got := table.GetCell(0, 6).Text; got != "Activator" {
		t.Fatalf("header cell = %q", got)
	}
	if got := table.GetCell(1, 6).Text; got != "K1ABC" {
		t.Fatalf("row cell = %q", got)
	}

	fillSpotTable(table, nil)
	if table.GetRowCount() != 1 {
		t.Fatalf("expected header only after clear, got %d rows", table.GetRowCount())
	}
}

func TestLineWriterSplitsAndHoldsPartial(t *testing.T) {
	var got []string
	w := &lineWriter{emit: func(s string) { got = append(got, s) }}

	_, _ = w.Write([]byte("one\r\ntw"))
	_, _ = w.Write([]byte("o\nthree"))
	if len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("unexpected lines %v", got)
	}
	_, _ = w.Write([]byte("\n"))
	if len(got) != 3 || got[2] != "three" {
		t.Fatalf("partial line not completed: %v", got)
	}
}

func TestAppendLogBoundsRetention(t *testing.T) {
	d := &Dashboard{scheduler: newFrameScheduler(func(func()) {}, 60, 0)}
	for i := 0; i < maxLogLines+5; i++ {
		d.AppendLog("line")
	}
	if len(d.logLines) != maxLogLines {
		t.Fatalf("retained %d lines, want %d", len(d.logLines), maxLogLines)
	}
}
