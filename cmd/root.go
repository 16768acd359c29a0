package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "eventphoto",
	Short: "A local-first event-photo ingestion and clustering engine",
	Long: `eventphoto watches a filesystem drop zone for delivered photographs,
normalizes each image, detects and clusters faces into per-person folders,
mirrors the result to a remote object store, and lets guests self-enroll
a name against their own photos via a selfie.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
