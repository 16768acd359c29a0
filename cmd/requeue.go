package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kozaktomas/eventphoto/internal/config"
	"github.com/kozaktomas/eventphoto/internal/store"
	"github.com/spf13/cobra"
)

var requeueCmd = &cobra.Command{
	Use:   "requeue <photo-id>",
	Short: "Force a completed or errored photo back to pending for reprocessing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		photoID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid photo id %q: %w", args[0], err)
		}

		cfg := config.Load()
		log := newLogger(cfg.Logging)
		ctx := context.Background()

		st, err := store.Open(ctx, cfg.Paths.DBPath, 5*time.Second, log)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.RequeuePhoto(ctx, photoID); err != nil {
			return fmt.Errorf("requeueing photo %d: %w", photoID, err)
		}

		fmt.Printf("Photo %d requeued to pending\n", photoID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(requeueCmd)
}
