// Package main provides the filament tracker CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/devadigapratham/filamentlog/config"
	"github.com/devadigapratham/filamentlog/inference"
	"github.com/devadigapratham/filamentlog/logger"
	"github.com/devadigapratham/filamentlog/models"
	"github.com/devadigapratham/filamentlog/raft"
	"github.com/devadigapratham/filamentlog/report"
	"github.com/devadigapratham/filamentlog/store"
	"github.com/devadigapratham/filamentlog/tracker"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "filament",
		Short: "Track 3D printer filament usage",
		Long: `filament records filament consumption in a local sqlite file.

Fields left out of an entry are filled in from the most recent matching
entry, so a repeat spool can be logged with just its weight.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("FILAMENT_CONFIG"), "YAML config file")
	rootCmd.PersistentFlags().String("db", "", "sqlite data file (overrides config)")
	rootCmd.PersistentFlags().Bool("journal", false, "write entries through the raft journal")
	rootCmd.PersistentFlags().String("log-mode", "", "log mode: dev or prod")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "filament v%s (%s)\n", version, commit)
		},
	})

	addCmd := &cobra.Command{
		Use:   "add [maker] [type] [color] weight [date]",
		Short: "Log a filament entry",
		Long: `Log a filament entry. The last argument is read as the date when it is a
YYYY-MM-DD date, otherwise as the weight in grams and the date defaults to
today. Missing maker, type or color are inferred from past entries.
Put "--" before the positional arguments to pass a value starting with "-".`,
		Args: cobra.MaximumNArgs(5),
		RunE: runAdd,
	}
	addCmd.SetFlagErrorFunc(addFlagError)
	addCmd.Flags().String("date", "", "entry date YYYY-MM-DD (overrides a positional date)")
	rootCmd.AddCommand(addCmd)

	matchCmd := &cobra.Command{
		Use:   "match",
		Short: "Show the entry that best matches the given fields",
		Args:  cobra.NoArgs,
		RunE:  runMatch,
	}
	matchCmd.Flags().String("maker", "", "spool maker")
	matchCmd.Flags().String("type", "", "material type")
	matchCmd.Flags().String("color", "", "filament color")
	rootCmd.AddCommand(matchCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent entries",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}
	listCmd.Flags().Int("limit", 20, "number of entries (0 for all)")
	rootCmd.AddCommand(listCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Render the usage chart to a PNG file",
		Args:  cobra.NoArgs,
		RunE:  runReport,
	}
	reportCmd.Flags().String("out", "", "output PNG path (overrides config)")
	reportCmd.Flags().Int("days", 0, "history window in days (overrides config)")
	rootCmd.AddCommand(reportCmd)

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Print total grams per filament",
		Args:  cobra.NoArgs,
		RunE:  runSummary,
	}
	summaryCmd.Flags().Int("days", 0, "history window in days (overrides config)")
	rootCmd.AddCommand(summaryCmd)

	return rootCmd
}

// app holds the resources of one invocation
type app struct {
	cfg   *config.Config
	log   *logger.Logger
	store *store.Store
	node  *raft.Node
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("db") {
		cfg.DBPath, _ = cmd.Flags().GetString("db")
	}
	if cmd.Flags().Changed("journal") {
		cfg.Journal.Enabled, _ = cmd.Flags().GetBool("journal")
	}
	if cmd.Flags().Changed("log-mode") {
		cfg.LogMode, _ = cmd.Flags().GetString("log-mode")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	st, err := store.Open(cfg.DBPath, logg)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, log: logg, store: st}, nil
}

// appender returns the write path: the journal when enabled, the store
// otherwise.
func (a *app) appender() (tracker.Appender, error) {
	if !a.cfg.Journal.Enabled {
		return a.store, nil
	}
	node, err := raft.NewNode(&raft.Config{
		NodeID:   a.cfg.Journal.NodeID,
		Dir:      a.cfg.Journal.Dir,
		LogLevel: a.cfg.Journal.LogLevel,
	}, a.store, a.log)
	if err != nil {
		return nil, err
	}
	a.node = node
	return node, nil
}

func (a *app) Close() {
	if a.node != nil {
		if err := a.node.Shutdown(); err != nil {
			a.log.Warn("error shutting down journal", "error", err)
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("error closing store", "error", err)
	}
	a.log.Sync()
}

// addFlagError reports a negative weight, which pflag reads as an unknown
// shorthand flag, as an invalid weight.
func addFlagError(cmd *cobra.Command, err error) error {
	_, shorthands, ok := strings.Cut(err.Error(), " in -")
	if !ok || !strings.HasPrefix(err.Error(), "unknown shorthand flag") {
		return err
	}
	if _, perr := decimal.NewFromString("-" + shorthands); perr != nil {
		return err
	}
	return fmt.Errorf("%w: -%s", models.ErrInvalidWeight, shorthands)
}

func runAdd(cmd *cobra.Command, args []string) error {
	req, err := tracker.ParseArgs(args)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("date") {
		req.Date, _ = cmd.Flags().GetString("date")
		if _, err := tracker.ResolveDate(req.Date, time.Now()); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v, using today's date\n", err)
		}
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	appender, err := a.appender()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	eng := inference.NewEngine(a.store, a.log)
	entry, err := tracker.New(eng, appender, a.log).AddEntry(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Entry added: %s, %s, %s, %gg on %s\n",
		entry.Maker, entry.Type, entry.Color, entry.Weight, entry.Date)
	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	var c models.Criteria
	c.Maker, _ = cmd.Flags().GetString("maker")
	c.Type, _ = cmd.Flags().GetString("type")
	c.Color, _ = cmd.Flags().GetString("color")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entry, err := inference.NewEngine(a.store, a.log).FindBestMatch(cmd.Context(), c)
	if errors.Is(err, models.ErrNotFound) {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching entry.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "#%d %s, %s, %s, %gg on %s\n",
		entry.ID, entry.Maker, entry.Type, entry.Color, entry.Weight, entry.Date)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	entries, err := a.store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No entries.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tMAKER\tTYPE\tCOLOR\tWEIGHT")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%g\n", e.ID, e.Date, e.Maker, e.Type, e.Color, e.Weight)
	}
	return w.Flush()
}

func reportGenerator(cmd *cobra.Command, a *app) *report.Generator {
	opts := report.Options{
		Days:   a.cfg.Report.Days,
		Width:  a.cfg.Report.Width,
		Height: a.cfg.Report.Height,
	}
	if days, _ := cmd.Flags().GetInt("days"); days > 0 {
		opts.Days = days
	}
	return report.NewGenerator(a.store, opts, a.log)
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	out := a.cfg.Report.Path
	if cmd.Flags().Changed("out") {
		out, _ = cmd.Flags().GetString("out")
	}

	series, err := reportGenerator(cmd, a).Save(cmd.Context(), time.Now(), out)
	if errors.Is(err, models.ErrNoData) {
		fmt.Fprintln(cmd.OutOrStdout(), "No filament data available in the database for the requested period.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Report with %d filaments saved to %s\n", len(series), out)
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	series, err := reportGenerator(cmd, a).Load(cmd.Context(), time.Now())
	if errors.Is(err, models.ErrNoData) {
		fmt.Fprintln(cmd.OutOrStdout(), "No filament data available in the database for the requested period.")
		return nil
	}
	if err != nil {
		return err
	}

	totals := report.Summarize(series)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FILAMENT\tENTRIES\tGRAMS\tFIRST\tLAST")
	for _, t := range totals {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			t.Label, t.Entries, t.Grams.StringFixed(1), models.FormatDate(t.First), models.FormatDate(t.Last))
	}
	fmt.Fprintf(w, "TOTAL\t\t%s\t\t\n", report.GrandTotal(totals).StringFixed(1))
	return w.Flush()
}
