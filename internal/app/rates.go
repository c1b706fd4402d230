package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// Rates prints the stored samples for a base currency.
func (a *App) Rates(ctx context.Context, opts RatesOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	base := strings.ToUpper(strings.TrimSpace(opts.Base))
	if base == "" {
		base = strings.ToUpper(a.Config.Rates.PivotCurrency)
	}

	samples, err := store.ListRates(ctx, base)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		fmt.Fprintf(os.Stdout, "no rate samples stored for %s\n", base)
		return nil
	}

	maxAge := a.Config.Rates.MaxSampleAge
	now := time.Now()

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Pair\tRate\tObserved (UTC)\tFresh")
	for _, sample := range samples {
		fresh := "yes"
		if sample.Age(now) >= maxAge {
			fresh = "no"
		}
		fmt.Fprintf(writer, "%s/%s\t%s\t%s\t%s\n",
			sample.FromCurrency,
			sample.ToCurrency,
			sample.Rate.String(),
			sample.ObservedAt.UTC().Format(time.RFC3339),
			fresh,
		)
	}
	writer.Flush()
	return nil
}
