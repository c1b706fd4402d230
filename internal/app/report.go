package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	chart "github.com/wcharczuk/go-chart/v2"

	"fintrack/internal/report"
)

// Report generates a report for the window and prints it, optionally
// exporting the monthly buckets as CSV and/or a PNG chart.
func (a *App) Report(ctx context.Context, opts ReportOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store, nil)

	window := report.Window{Start: opts.From.UTC(), End: opts.To.UTC()}
	target := a.Config.ResolveTargetCurrency(opts.Currency)

	rep, err := svc.GenerateReport(ctx, window, target, opts.Notes)
	if err != nil {
		return err
	}

	printReport(rep)

	if opts.CSVPath != "" {
		if err := writeBucketsCSV(opts.CSVPath, rep); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Msg("report exported as CSV")
	}

	if opts.PNGPath != "" {
		if err := a.writeBucketsPNG(opts.PNGPath, rep); err != nil {
			return err
		}
	}

	return nil
}

func printReport(rep report.Report) {
	snap := rep.Snapshot

	fmt.Fprintf(os.Stdout, "Report %s — %s (in %s), generated %s\n",
		rep.Window.Start.Format("2006-01-02"),
		rep.Window.End.Format("2006-01-02"),
		snap.TargetCurrency,
		rep.GeneratedAt.Format(time.RFC3339),
	)
	if rep.Notes != "" {
		fmt.Fprintf(os.Stdout, "Notes: %s\n", rep.Notes)
	}
	fmt.Fprintln(os.Stdout)

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "Total income\t%s\n", formatDecimal(snap.TotalIncome, 2))
	fmt.Fprintf(writer, "Total expense\t%s\n", formatDecimal(snap.TotalExpense, 2))
	fmt.Fprintf(writer, "Balance\t%s\n", formatDecimal(snap.Balance, 2))
	writer.Flush()

	if len(snap.CategoryTotals) > 0 {
		fmt.Fprintln(os.Stdout, "\nBy category:")
		writer = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		for _, name := range sortedCategories(snap.CategoryTotals) {
			fmt.Fprintf(writer, "%s\t%s\n", name, formatDecimal(snap.CategoryTotals[name], 2))
		}
		writer.Flush()
	}

	if len(snap.Buckets) > 0 {
		fmt.Fprintln(os.Stdout, "\nBy month:")
		writer = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(writer, "Month\tIncome\tExpense")
		for _, bucket := range snap.Buckets {
			fmt.Fprintf(writer, "%s\t%s\t%s\n",
				bucket.Label,
				formatDecimal(bucket.Income, 2),
				formatDecimal(bucket.Expense, 2),
			)
		}
		writer.Flush()
	}
}

func sortedCategories(totals map[string]decimal.Decimal) []string {
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func writeBucketsCSV(path string, rep report.Report) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"month", "income", "expense", "currency"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, bucket := range rep.Snapshot.Buckets {
		record := []string{
			bucket.Label,
			bucket.Income.String(),
			bucket.Expense.String(),
			rep.Snapshot.TargetCurrency,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func (a *App) writeBucketsPNG(path string, rep report.Report) error {
	buckets := rep.Snapshot.Buckets
	if len(buckets) < 2 {
		a.Logger.Warn().Int("buckets", len(buckets)).Msg("not enough monthly buckets to chart; skipping PNG")
		return nil
	}
	if max := a.Config.Report.MaxChartPoints; len(buckets) > max {
		buckets = buckets[len(buckets)-max:]
	}

	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(buckets))
	income := make([]float64, len(buckets))
	expense := make([]float64, len(buckets))
	for i, bucket := range buckets {
		month, err := time.Parse("2006-01", bucket.Label)
		if err != nil {
			return fmt.Errorf("parse bucket label %q: %w", bucket.Label, err)
		}
		x[i] = month
		income[i] = bucket.Income.InexactFloat64()
		expense[i] = bucket.Expense.InexactFloat64()
	}

	amountFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.2f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           fmt.Sprintf("Amount (%s)", rep.Snapshot.TargetCurrency),
			ValueFormatter: amountFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Income",
				XValues: x,
				YValues: income,
			},
			chart.TimeSeries{
				Name:    "Expense",
				XValues: x,
				YValues: expense,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := graph.Render(chart.PNG, file); err != nil {
		return err
	}
	a.Logger.Info().Str("path", path).Msg("report exported as PNG chart")
	return nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
