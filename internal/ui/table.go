package ui

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// FileRow describes one file for table rendering.
type FileRow struct {
	Index int
	Name  string
	Size  int64
	Type  string
}

// RenderFileTable prints the files queued for transfer.
func RenderFileTable(rows []FileRow) {
	if len(rows) == 0 {
		fmt.Println(MutedStyle.Render("No files"))
		return
	}

	t := newTable()
	t.AppendHeader(table.Row{"#", "Name", "Size", "Type"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Index, truncate(r.Name, 50), FormatBytes(r.Size), truncate(r.Type, 20)})
	}
	t.Render()
}

// PeerRow describes one room participant for table rendering.
type PeerRow struct {
	Name   string
	ID     string
	Status string
}

// RenderPeerTable prints the participants currently visible in the room.
func RenderPeerTable(rows []PeerRow) {
	if len(rows) == 0 {
		fmt.Println(MutedStyle.Render("No peers connected"))
		return
	}

	t := newTable()
	t.AppendHeader(table.Row{"Peer", "ID", "Status"})
	for _, r := range rows {
		t.AppendRow(table.Row{r.Name, truncate(r.ID, 20), r.Status})
	}
	t.Render()
}

// TransferSummary holds the final stats of one completed transfer.
type TransferSummary struct {
	Status    string
	File      string
	TotalSize string
	Duration  string
	Speed     string
}

// RenderTransferSummary prints the post-transfer stats table.
func RenderTransferSummary(title string, summary TransferSummary) {
	fmt.Println(TitleStyle.Render(title))

	t := newTable()
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Status", summary.Status},
		{"File", summary.File},
		{"Total Size", summary.TotalSize},
		{"Duration", summary.Duration},
		{"Avg Speed", summary.Speed},
	})
	t.Render()
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Header = text.FormatDefault
	return t
}

// RenderRoomInfo prints the shareable room box after room entry.
func RenderRoomInfo(roomCode, roomLink string) {
	content := fmt.Sprintf("%s Room Ready!\n\n%s Room Code:  %s\n%s Room Link:  %s",
		IconSuccess,
		IconCopy, BoldStyle.Foreground(Primary).Render(roomCode),
		IconWeb, MutedStyle.Render(roomLink),
	)
	fmt.Println(SuccessBoxStyle.Render(content))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
