package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ternarybob/specula/internal/app"
	"github.com/ternarybob/specula/internal/signals"
)

func runSingleCycle(ctx context.Context, application *app.App) error {
	report, err := application.IngestService.RunCycle(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func printTopAnalyses(ctx context.Context, application *app.App, n int) error {
	records, err := application.StorageManager.AnalysisStorage().ListTopAnalyses(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to list analyses: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No analyses yet. Run with -once to produce some.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INSTRUMENT\tRATING\tDIRECTION\tCONFIDENCE\tTARGET\tSUMMARY")
	for _, r := range records {
		target := "-"
		if r.PriceTargetLow != nil && r.PriceTargetHigh != nil {
			target = fmt.Sprintf("%.2f-%.2f", *r.PriceTargetLow, *r.PriceTargetHigh)
		}
		fmt.Fprintf(w, "%s\t%.1f\t%s\t%.2f\t%s\t%s\n",
			r.InstrumentID, r.PotentialRating, r.PredictedDirection, r.Confidence, target, truncate(r.Summary, 80))
	}
	return w.Flush()
}

func printTopLosers(ctx context.Context, application *app.App, industry string, n int) error {
	instruments, err := application.StorageManager.InstrumentStorage().ListInstruments(ctx)
	if err != nil {
		return fmt.Errorf("failed to list instruments: %w", err)
	}

	losers := signals.TopLosers(instruments, industry, n)
	if len(losers) == 0 {
		fmt.Println("No instruments with a negative daily change.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "INSTRUMENT\tNAME\tCHANGE\tMOOD\tRISK\tTIER")
	for _, inst := range losers {
		mood := signals.MoodFromChange(inst.PriceChangePercent)
		fmt.Fprintf(w, "%s\t%s\t%.2f%%\t%s\t%s\t%s\n",
			inst.Identifier, inst.DisplayName, *inst.PriceChangePercent, mood.Label, mood.Risk, signals.MarketCapTier(inst.MarketCap))
	}
	return w.Flush()
}

func printDigest(ctx context.Context, application *app.App) error {
	d, err := application.DigestService.Build(ctx)
	if err != nil {
		return err
	}
	fmt.Print(d.Markdown)
	return nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
