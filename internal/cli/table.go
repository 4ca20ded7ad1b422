package cli

import (
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"bialign/internal/align"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func statsTable(stats align.Stats, interactive bool) string {
	tw := table.NewWriter()
	if interactive {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}

	tw.AppendHeader(table.Row{"method", "pairs"})
	for _, method := range sortedMethods(stats.Methods) {
		tw.AppendRow(table.Row{method, stats.Methods[method]})
	}
	tw.AppendFooter(table.Row{"matched", stats.Matched})
	tw.AppendFooter(table.Row{"unmatched", stats.Unmatched})
	tw.AppendFooter(table.Row{"total", stats.Total})
	if stats.LLMMatched > 0 {
		tw.AppendFooter(table.Row{"llm matched", stats.LLMMatched})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}
