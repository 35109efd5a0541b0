package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"arbiter/internal/gateway/backend"
	"arbiter/internal/pkg/jsonutil"
	"arbiter/internal/session"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// resolveFormat honours an explicit flag, otherwise picks table for terminals and json for pipes.
func resolveFormat(flag string, out io.Writer) string {
	switch strings.ToLower(strings.TrimSpace(flag)) {
	case formatJSON:
		return formatJSON
	case formatTable:
		return formatTable
	}
	if f, ok := out.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return formatTable
	}
	return formatJSON
}

func writeResult(w io.Writer, res session.Result, format string) error {
	if format == formatJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "session %s\nquestion: %s\n", res.SessionID, res.Question)
	if res.PromptID != "" {
		fmt.Fprintf(w, "prompt: %s@%s (%s)\n", res.PromptID, res.PromptVersion, shortHash(res.PromptHash))
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.Style().Options.SeparateRows = true
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignCenter},
		{Number: 2, Align: text.AlignCenter, AlignHeader: text.AlignCenter},
		{Number: 3, Align: text.AlignRight, AlignHeader: text.AlignCenter},
		{Number: 4, Align: text.AlignLeft, AlignHeader: text.AlignCenter, WidthMax: detailWidth(w)},
	})
	tw.AppendHeader(table.Row{"Model", "Status", "Latency", "Detail"})
	for _, rec := range res.Responses {
		tw.AppendRow(recordRow(rec))
	}
	if len(res.Responses) == 0 {
		tw.AppendRow(table.Row{"-", "-", "-", "(no responses)"})
	}
	tw.Render()

	switch {
	case res.Aggregator != nil:
		fmt.Fprintf(w, "aggregator:\n%s\n", jsonutil.Pretty(string(res.Aggregator.Raw)))
	case res.AggregatorError != "":
		fmt.Fprintf(w, "aggregator unavailable: %s\n", res.AggregatorError)
	}
	return nil
}

func recordRow(rec session.Record) table.Row {
	switch r := rec.(type) {
	case session.Success:
		lines := make([]string, 0, len(r.Points))
		for _, p := range r.Points {
			line := "- " + p.Text
			if p.Confidence != "" {
				line += " [" + p.Confidence + "]"
			}
			lines = append(lines, line)
		}
		return table.Row{r.ModelID, r.Status(), formatLatency(r.Latency.Seconds()), strings.Join(lines, "\n")}
	case session.ParseFailure:
		return table.Row{r.ModelID, r.Status(), formatLatency(r.Latency.Seconds()), r.ParseError + "\n" + escapeNewlines(r.RawText)}
	case session.Failure:
		detail := r.ErrorMessage
		if r.IsTimeout {
			detail = "timeout: " + detail
		}
		return table.Row{r.ModelID, r.Status(), formatLatency(r.Latency.Seconds()), detail}
	default:
		return table.Row{rec.Model(), rec.Status(), "-", ""}
	}
}

func writeModels(w io.Writer, models []backend.Descriptor, defaults []string, format string) error {
	if format == formatJSON {
		if models == nil {
			models = []backend.Descriptor{}
		}
		if defaults == nil {
			defaults = []string{}
		}
		return writeJSON(w, map[string]any{"models": models, "default": defaults})
	}
	isDefault := make(map[string]bool, len(defaults))
	for _, id := range defaults {
		isDefault[id] = true
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "Kind", "Model", "Status", "Default"})
	for _, m := range models {
		mark := ""
		if isDefault[m.ID] {
			mark = "*"
		}
		tw.AppendRow(table.Row{m.ID, m.Kind, m.Model, m.Status, mark})
	}
	if len(models) == 0 {
		tw.AppendRow(table.Row{"-", "-", "-", "(no backends)", ""})
	}
	tw.Render()
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func detailWidth(w io.Writer) int {
	width := 120
	if f, ok := w.(*os.File); ok {
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}
	// model, status and latency columns plus borders
	width -= 40
	if width < 30 {
		width = 30
	}
	return width
}

func formatLatency(seconds float64) string {
	return strconv.FormatFloat(seconds, 'f', 2, 64) + "s"
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func escapeNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", "\\n")
}
