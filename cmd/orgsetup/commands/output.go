package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"orgsetup/internal/executor"
	"orgsetup/internal/progress"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func printResult(w io.Writer, r *executor.Result, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	printSummary(w, r)
	return nil
}

func printSummary(w io.Writer, r *executor.Result) {
	status := green(string(r.Status))
	if r.Status != executor.StatusOK {
		status = red(string(r.Status))
	}
	fmt.Fprintf(w, "%s %s %s %s\n", bold("Run"), cyan(r.RunID), gray(string(r.Kind)), status)

	for _, rec := range r.Records {
		line := fmt.Sprintf("  %s %-7s %s", outcomeLabel(rec.Outcome), rec.Entity, rec.Key)
		if rec.Name != "" {
			line += gray(" " + rec.Name)
		}
		if rec.Error != "" {
			line += " " + red(rec.Error)
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintf(w, "%s created %d, updated %d, skipped %d, failed %d, aborted %d in %s\n",
		bold("Summary:"), r.Created, r.Updated, r.Skipped, r.Failed, r.Aborted, r.Duration().Round(time.Second))
	if len(r.Screenshots) > 0 {
		fmt.Fprintf(w, "%s %d screenshots in %s\n", bold("Evidence:"), len(r.Screenshots), gray(filepath.Dir(r.Screenshots[0])))
	}
	if r.Error != "" {
		fmt.Fprintf(w, "%s %s\n", red("Error:"), r.Error)
	}
}

func outcomeLabel(o progress.Outcome) string {
	label := fmt.Sprintf("%-8s", o)
	switch o {
	case progress.OutcomeCreated, progress.OutcomeUpdated:
		return green(label)
	case progress.OutcomeSkipped:
		return gray(label)
	case progress.OutcomeAborted:
		return yellow(label)
	default:
		return red(label)
	}
}
