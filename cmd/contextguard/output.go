package main

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"

	"github.com/Tributary-ai-services/ContextGuard/pkg/action"
	"github.com/Tributary-ai-services/ContextGuard/pkg/pipeline"
	"github.com/Tributary-ai-services/ContextGuard/pkg/scan"
)

var (
	criticalColor = color.New(color.FgRed, color.Bold)
	highColor     = color.New(color.FgRed)
	mediumColor   = color.New(color.FgYellow)
	lowColor      = color.New(color.FgCyan)
	cleanColor    = color.New(color.FgGreen, color.Bold)
	dimColor      = color.New(color.FgHiBlack)
)

func severityColor(s scan.Severity) *color.Color {
	switch s {
	case scan.SeverityCritical:
		return criticalColor
	case scan.SeverityHigh:
		return highColor
	case scan.SeverityMedium:
		return mediumColor
	default:
		return lowColor
	}
}

func actionColor(a action.ActionType) *color.Color {
	switch a {
	case action.ActionBlock:
		return criticalColor
	case action.ActionWarn:
		return mediumColor
	case action.ActionLog:
		return lowColor
	default:
		return cleanColor
	}
}

type row struct {
	severity  scan.Severity
	location  string
	signature string
	category  string
	masked    string
}

// printResult writes one line per finding in reading order, then a summary.
// Columns are padded before coloring so escape codes do not skew alignment.
func printResult(w io.Writer, text string, res *pipeline.Result) {
	if res.Clean() {
		cleanColor.Fprintln(w, "No sensitive content found.")
		return
	}

	findings := slices.Clone(res.Findings)
	slices.SortStableFunc(findings, func(a, b scan.Finding) int {
		return a.Start - b.Start
	})

	rows := make([]row, len(findings))
	locW, sigW, catW := len("LOCATION"), len("SIGNATURE"), len("CATEGORY")
	for i, f := range findings {
		line, col := position(text, f.Start)
		rows[i] = row{
			severity:  f.Severity,
			location:  fmt.Sprintf("%d:%d", line, col),
			signature: f.Signature,
			category:  string(f.Category),
			masked:    f.Masked,
		}
		locW = max(locW, len(rows[i].location))
		sigW = max(sigW, len(rows[i].signature))
		catW = max(catW, len(rows[i].category))
	}

	dimColor.Fprintf(w, "%-8s  %-*s  %-*s  %-*s  %s\n", "SEVERITY", locW, "LOCATION", sigW, "SIGNATURE", catW, "CATEGORY", "VALUE")
	for _, r := range rows {
		severityColor(r.severity).Fprintf(w, "%-8s", r.severity)
		fmt.Fprintf(w, "  %-*s  %-*s  %-*s  %s\n", locW, r.location, sigW, r.signature, catW, r.category, r.masked)
	}

	rep := res.Report
	fmt.Fprintf(w, "\n%d finding(s): %d critical, %d high, %d medium, %d low\n",
		rep.Total, rep.Critical, rep.High, rep.Medium, rep.Low)
	if d := res.Decision; d != nil {
		fmt.Fprint(w, "Policy: ")
		actionColor(d.Action).Fprint(w, strings.ToUpper(string(d.Action)))
		if d.Reason != "" {
			fmt.Fprintf(w, " (%s)", d.Reason)
		}
		fmt.Fprintln(w)
	}
}

// position converts a byte offset to a 1-based line and column.
func position(text string, offset int) (int, int) {
	offset = min(offset, len(text))
	before := text[:offset]
	line := strings.Count(before, "\n") + 1
	col := offset - strings.LastIndexByte(before, '\n')
	return line, col
}
