package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"trial-sponsor-tracker/pkg/config"
	"trial-sponsor-tracker/pkg/database"
	"trial-sponsor-tracker/pkg/logging"
	"trial-sponsor-tracker/pkg/monitoring"
	"trial-sponsor-tracker/pkg/pipeline"
	"trial-sponsor-tracker/pkg/pipeline/types"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "data-pipeline",
	Short:         "Fetch clinical trials and flag publicly traded sponsors",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	runPages   int
	runOutput  string
	runFilters []string
)

// runCmd paginates the registry, enriches every row and writes the sinks
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one aggregation and export the result",
	Long: `Fetch every page of matching studies from the registry, check whether
each lead sponsor is publicly traded and write the merged rows to the
configured sinks.

Filters from the config file can be overridden with --filter key=value.
Setting a filter to "0" drops it from the query.`,
	RunE: runAggregation,
}

// checkCmd resolves a single company
var checkCmd = &cobra.Command{
	Use:   "check <company>",
	Short: "Check whether a company is publicly traded",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCheck,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to the config file")

	runCmd.Flags().IntVar(&runPages, "pages", -1, "maximum pages to fetch; 0 fetches all, negative uses the config")
	runCmd.Flags().StringVar(&runOutput, "output", "", "CSV output path (overrides the config)")
	runCmd.Flags().StringArrayVar(&runFilters, "filter", nil, "registry filter as key=value (repeatable)")

	rootCmd.AddCommand(runCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Monitoring.Logging)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func runAggregation(cmd *cobra.Command, args []string) error {
	filters, err := parseFilters(runFilters)
	if err != nil {
		return err
	}

	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	if runOutput != "" {
		cfg.Export.CSVPath = runOutput
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conns, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer conns.Close(context.Background())

	orchestrator, err := pipeline.NewOrchestrator(conns.Postgres, conns.Redis, conns.Neo4j, monitoring.NewMetricsCollector(), cfg, logger)
	if err != nil {
		return err
	}

	report, err := orchestrator.Run(ctx, filters, runPages)
	if err != nil {
		return err
	}

	printReport(cmd.OutOrStdout(), report, cfg.Export.CSVPath)
	if len(report.SinkErrors) > 0 {
		return fmt.Errorf("%d sink(s) failed: %s", len(report.SinkErrors), strings.Join(report.SinkErrors, "; "))
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	orchestrator, err := pipeline.NewOrchestrator(nil, nil, nil, nil, cfg, logger)
	if err != nil {
		return err
	}

	company := strings.Join(args, " ")
	printResolution(cmd.OutOrStdout(), company, orchestrator.CheckSponsor(cmd.Context(), company))
	return nil
}

// parseFilters turns repeated key=value flags into a filter map
func parseFilters(pairs []string) (map[string]string, error) {
	filters := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q, want key=value", pair)
		}
		filters[key] = value
	}
	if _, err := pipeline.QueryParams(filters); err != nil {
		return nil, err
	}
	return filters, nil
}

func printReport(w io.Writer, report *types.RunReport, csvPath string) {
	fmt.Fprintf(w, "Run %s\n", report.ID)
	fmt.Fprintf(w, "  pages:       %d\n", report.Pages)
	fmt.Fprintf(w, "  rows:        %d\n", report.Rows)
	fmt.Fprintf(w, "  public rows: %d\n", report.PublicRows)
	fmt.Fprintf(w, "  sponsors:    %d\n", report.Sponsors)
	fmt.Fprintf(w, "  stopped:     %s\n", report.StopReason)
	if report.LastError != "" {
		fmt.Fprintf(w, "  last error:  %s\n", report.LastError)
	}
	if csvPath != "" {
		fmt.Fprintf(w, "  csv:         %s\n", csvPath)
	}
	fmt.Fprintf(w, "  duration:    %s\n", report.Duration())
}

func printResolution(w io.Writer, company string, res types.SponsorResolution) {
	if !res.IsPublic() {
		fmt.Fprintf(w, "%s is not publicly traded", company)
		if res.Diagnostic != nil {
			fmt.Fprintf(w, " (%s)", *res.Diagnostic)
		}
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "%s is publicly traded\n", company)
	fmt.Fprintf(w, "  ticker:     %s\n", res.TickerOrEmpty())
	if q := res.Quote; q != nil {
		fmt.Fprintf(w, "  name:       %s\n", q.ShortName)
		fmt.Fprintf(w, "  exchange:   %s\n", q.Exchange)
		fmt.Fprintf(w, "  sector:     %s\n", q.Sector)
		fmt.Fprintf(w, "  market cap: %.0f\n", q.MarketCap)
	}
}
