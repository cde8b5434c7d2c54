package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/username/tradejournal/backend/src/models"
	"github.com/username/tradejournal/backend/src/parsers"
	"github.com/username/tradejournal/backend/src/processors"
)

type reconcileCmd struct {
	file   string
	source string
	plain  bool
}

func (*reconcileCmd) Name() string     { return "reconcile" }
func (*reconcileCmd) Synopsis() string { return "reconcile a brokerage export into positions without storing it" }
func (*reconcileCmd) Usage() string {
	return `journalctl reconcile -f <file.csv> [-source fidelity] [-plain]

  Parses the export, matches openings with closings and prints the
  resulting positions, the realized P&L summary and every rejected row.
`
}

func (c *reconcileCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "f", "", "brokerage CSV export to reconcile")
	f.StringVar(&c.source, "source", parsers.DefaultSource, "broker the export comes from")
	f.BoolVar(&c.plain, "plain", false, "print raw markdown instead of rendering it")
}

func (c *reconcileCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		fmt.Fprintln(os.Stderr, "Error: -f is required")
		return subcommands.ExitUsageError
	}
	parser, err := parsers.GetParser(c.source)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}

	file, err := os.Open(c.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer file.Close()

	report, err := reconcileExport(parser, file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, models.ErrEmptyInput) || errors.Is(err, models.ErrNoParsableRows) {
			printIssues(report.Issues)
		}
		return subcommands.ExitFailure
	}

	md := report.Markdown(c.file)
	if c.plain {
		fmt.Print(md)
		return subcommands.ExitSuccess
	}
	printMarkdown(md)
	return subcommands.ExitSuccess
}

func printIssues(issues []models.ImportIssue) {
	for _, issue := range issues {
		fmt.Fprintf(os.Stderr, "  line %d [%s] %s\n", issue.Line, issue.Kind, issue.Message)
	}
}

// printMarkdown renders md for the terminal, falling back to the raw text.
func printMarkdown(md string) {
	renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(120))
	if err != nil {
		fmt.Print(md)
		return
	}
	out, err := renderer.Render(md)
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

// reconcileExport runs the parse, hash and reconcile stages on an export with no prior state.
func reconcileExport(parser parsers.Parser, file io.Reader) (reconcileReport, error) {
	parsed, err := parser.Parse(file)
	if err != nil {
		return reconcileReport{Issues: parsed.Issues}, err
	}
	rows := processors.NewTransactionProcessor().Process(parsed.Rows)
	reconciled := processors.NewPositionReconciler().Reconcile(rows, nil)

	issues := append(append([]models.ImportIssue{}, parsed.Issues...), reconciled.Issues...)
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Line < issues[j].Line })

	_, fees := processors.NewFeeProcessor().Process(reconciled.Positions)
	return reconcileReport{
		Rows:        len(rows),
		SkippedRows: parsed.SkippedRows,
		Positions:   reconciled.Positions,
		Issues:      issues,
		Metrics:     processors.NewMetricsProcessor().Calculate(reconciled.Positions),
		Fees:        fees,
	}, nil
}
