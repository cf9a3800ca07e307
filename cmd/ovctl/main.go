// Package main implements the ovctl CLI for querying an otelvault server.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/otelvault/otelvault/internal/query"
)

var (
	// serverURL is the base URL for the otelvault query API
	serverURL string
	// outputAsJSON switches every command from tables to raw JSON
	outputAsJSON bool
	// version information
	version = "dev"
)

// requestTimeout bounds every query API call.
const requestTimeout = 10 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ovctl",
	Short: "CLI for querying stored telemetry in otelvault",
	Long: `ovctl is a command-line interface for the otelvault query API.
It lists stored logs, spans, and metrics, reassembles traces, and checks
server health.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "otelvault server URL")
	rootCmd.PersistentFlags().BoolVar(&outputAsJSON, "json", false, "Output results as JSON")
	rootCmd.AddCommand(healthCmd)
}

// healthCmd checks server health
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check otelvault server health",
	Long: `Check the health status of the otelvault server.

Examples:
  # Check health
  ovctl health

  # Check health on a different server
  ovctl health --server http://localhost:9090`,
	RunE: runHealth,
}

// runHealth handles the health command
func runHealth(cmd *cobra.Command, args []string) error {
	var healthResp query.HealthResponse
	if err := fetchJSON("/health", &healthResp); err != nil {
		return err
	}

	if outputAsJSON {
		return outputJSON(healthResp)
	}

	fmt.Printf("Server Status: %s\n", healthResp.Status)
	fmt.Printf("Server URL: %s\n", serverURL)

	return nil
}

// fetchJSON issues a GET against the query API and decodes the JSON
// response into out. Non-200 responses become errors carrying the
// response body.
func fetchJSON(path string, out any) error {
	url := serverURL + path

	client := &http.Client{
		Timeout: requestTimeout,
	}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return fmt.Errorf("server returned status %d (failed to read response body: %w)", resp.StatusCode, readErr)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
