// Command gdelt-ingest runs the GDELT translation archive ingestion
// worker.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gdelt-collective/ingest/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gdelt-ingest",
	Short: "`gdelt-ingest`",
	Long:  "`gdelt-ingest`",
	Run: func(cmd *cobra.Command, args []string) {
		// nolint:errcheck
		cmd.Usage()
	},
}

var showVersion bool

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show the version and exit")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		if showVersion {
			version.FprintVersion(os.Stdout, os.Args[0])
			os.Exit(0)
		}
	}
}
