package main

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/otelvault/otelvault/internal/query"
)

// timestampFormat is the table timestamp layout.
const timestampFormat = "2006-01-02 15:04:05"

var (
	// listing command flags
	queryText   string
	queryLimit  int
	queryOffset int
)

func init() {
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(spansCmd)
	rootCmd.AddCommand(metricsCmd)
	rootCmd.AddCommand(traceCmd)

	// Shared listing flags. Only one command runs per invocation, so the
	// commands can bind the same variables.
	for _, cmd := range []*cobra.Command{logsCmd, spansCmd, metricsCmd} {
		cmd.Flags().StringVarP(&queryText, "query", "q", "", "Case-insensitive substring filter")
		cmd.Flags().IntVar(&queryLimit, "limit", 50, "Maximum number of records to return")
		cmd.Flags().IntVar(&queryOffset, "offset", 0, "Number of records to skip")
	}
}

// logsCmd lists stored log records
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List stored log records",
	Long: `List log records stored in otelvault, newest first.

Examples:
  # Show the 50 most recent logs
  ovctl logs

  # Search log bodies and attributes
  ovctl logs -q "connection refused"

  # Page through older records
  ovctl logs --limit 20 --offset 40

  # Output as JSON
  ovctl logs --json`,
	RunE: runLogs,
}

// spansCmd lists stored spans
var spansCmd = &cobra.Command{
	Use:   "spans",
	Short: "List stored spans",
	Long: `List spans stored in otelvault, most recently started first.

Examples:
  # Show the 50 most recent spans
  ovctl spans

  # Search span names and attributes
  ovctl spans -q "checkout"

  # Output as JSON
  ovctl spans --json`,
	RunE: runSpans,
}

// metricsCmd lists stored metric points
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List stored metric points",
	Long: `List metric data points stored in otelvault, newest first.

Examples:
  # Show the 50 most recent points
  ovctl metrics

  # Search metric names and attributes
  ovctl metrics -q "cpu"

  # Output as JSON
  ovctl metrics --json`,
	RunE: runMetrics,
}

// traceCmd reassembles one trace
var traceCmd = &cobra.Command{
	Use:   "trace <trace-id>",
	Short: "Show all spans of a trace",
	Long: `Show every stored span of a trace, ordered by start time.

Examples:
  # Show a trace
  ovctl trace 0123456789abcdef0123456789abcdef

  # Output as JSON
  ovctl trace 0123456789abcdef0123456789abcdef --json`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

// runLogs handles the logs command
func runLogs(cmd *cobra.Command, args []string) error {
	var resp query.LogsResponse
	if err := fetchJSON(listPath("/api/v1/logs"), &resp); err != nil {
		return err
	}

	if outputAsJSON {
		return outputJSON(resp.Logs)
	}

	if len(resp.Logs) == 0 {
		fmt.Println("No log records found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tSEVERITY\tSERVICE\tBODY")
	for _, lr := range resp.Logs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			lr.Timestamp.Format(timestampFormat),
			lr.Severity,
			truncate(lr.Attributes.ServiceName(), 24),
			truncate(lr.Body, 80),
		)
	}
	w.Flush()

	return nil
}

// runSpans handles the spans command
func runSpans(cmd *cobra.Command, args []string) error {
	var resp query.SpansResponse
	if err := fetchJSON(listPath("/api/v1/spans"), &resp); err != nil {
		return err
	}

	if outputAsJSON {
		return outputJSON(resp.Spans)
	}

	if len(resp.Spans) == 0 {
		fmt.Println("No spans found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRACE\tNAME\tSERVICE\tSTART\tDURATION\tSTATUS")
	for _, sr := range resp.Spans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(sr.TraceID, 16),
			truncate(sr.Name, 40),
			truncate(sr.Attributes.ServiceName(), 24),
			sr.StartTime.Format(timestampFormat),
			sr.Duration(),
			truncate(sr.Status, 20),
		)
	}
	w.Flush()

	return nil
}

// runMetrics handles the metrics command
func runMetrics(cmd *cobra.Command, args []string) error {
	var resp query.MetricsResponse
	if err := fetchJSON(listPath("/api/v1/metrics"), &resp); err != nil {
		return err
	}

	if outputAsJSON {
		return outputJSON(resp.Metrics)
	}

	if len(resp.Metrics) == 0 {
		fmt.Println("No metric points found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tNAME\tVALUE\tSERVICE")
	for _, mr := range resp.Metrics {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			mr.Timestamp.Format(timestampFormat),
			truncate(mr.Name, 48),
			strconv.FormatFloat(mr.Value, 'g', -1, 64),
			truncate(mr.Attributes.ServiceName(), 24),
		)
	}
	w.Flush()

	return nil
}

// runTrace handles the trace command
func runTrace(cmd *cobra.Command, args []string) error {
	traceID := args[0]

	var resp query.TraceResponse
	if err := fetchJSON("/api/v1/traces/"+url.PathEscape(traceID), &resp); err != nil {
		return err
	}

	if outputAsJSON {
		return outputJSON(resp)
	}

	if len(resp.Spans) == 0 {
		fmt.Printf("No spans found for trace %s\n", traceID)
		return nil
	}

	fmt.Printf("Trace %s: %d span(s)\n\n", resp.TraceID, len(resp.Spans))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SPAN\tPARENT\tNAME\tSTART\tDURATION\tSTATUS")
	for _, sr := range resp.Spans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(sr.SpanID, 16),
			truncate(sr.ParentSpanID, 16),
			truncate(sr.Name, 40),
			sr.StartTime.Format(timestampFormat),
			sr.Duration(),
			truncate(sr.Status, 20),
		)
	}
	w.Flush()

	return nil
}

// listPath appends the shared search and pagination flags to a listing
// endpoint path.
func listPath(base string) string {
	params := url.Values{}
	if queryText != "" {
		params.Set("q", queryText)
	}
	if queryLimit > 0 {
		params.Set("limit", strconv.Itoa(queryLimit))
	}
	if queryOffset > 0 {
		params.Set("offset", strconv.Itoa(queryOffset))
	}
	if len(params) == 0 {
		return base
	}
	return base + "?" + params.Encode()
}
