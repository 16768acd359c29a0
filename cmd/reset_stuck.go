package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/eventphoto/internal/config"
	"github.com/kozaktomas/eventphoto/internal/store"
	"github.com/spf13/cobra"
)

var resetStuckCmd = &cobra.Command{
	Use:   "reset-stuck",
	Short: "Reset photos/uploads stuck mid-processing back to pending",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := newLogger(cfg.Logging)
		ctx := context.Background()

		st, err := store.Open(ctx, cfg.Paths.DBPath, 5*time.Second, log)
		if err != nil {
			return err
		}
		defer st.Close()

		olderThan := time.Duration(mustGetInt(cmd, "older-than")) * time.Second

		photos, err := st.ResetStuckProcessing(ctx, olderThan)
		if err != nil {
			return fmt.Errorf("resetting stuck photos: %w", err)
		}
		uploads, err := st.ResetStuckUploads(ctx, olderThan)
		if err != nil {
			return fmt.Errorf("resetting stuck uploads: %w", err)
		}

		fmt.Printf("Reset %d stuck photo(s) and %d stuck upload(s)\n", photos, uploads)
		return nil
	},
}

func init() {
	resetStuckCmd.Flags().Int("older-than", 600, "age in seconds before a processing/uploading row is considered stuck")
	rootCmd.AddCommand(resetStuckCmd)
}
