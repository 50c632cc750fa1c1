package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/lexrag/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "lexrag",
	Short: "Bilingual legal question answering over Moroccan law",
	Long: `lexrag answers legal questions in Arabic and French from an indexed
corpus of Moroccan legal texts, combining vector and lexical retrieval.`,
	SilenceUsage: true,
	Version:      fmt.Sprintf("%s (commit %s, built %s)", version.Version, version.Commit, version.Date),
}

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
