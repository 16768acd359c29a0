package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/eventphoto/internal/config"
	"github.com/kozaktomas/eventphoto/internal/store"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print a snapshot of photo, person, and upload-queue counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := newLogger(cfg.Logging)
		ctx := context.Background()

		st, err := store.Open(ctx, cfg.Paths.DBPath, 5*time.Second, log)
		if err != nil {
			return err
		}
		defer st.Close()

		counts, err := st.PhotoCounts(ctx)
		if err != nil {
			return fmt.Errorf("reading photo counts: %w", err)
		}
		persons, err := st.AllPersons(ctx)
		if err != nil {
			return fmt.Errorf("reading persons: %w", err)
		}
		enrollments, err := st.AllEnrollments(ctx)
		if err != nil {
			return fmt.Errorf("reading enrollments: %w", err)
		}
		pendingUploads, err := st.PendingUploadCount(ctx)
		if err != nil {
			return fmt.Errorf("reading pending upload count: %w", err)
		}

		fmt.Println("Photos by status:")
		for _, status := range []store.PhotoStatus{
			store.PhotoPending, store.PhotoProcessing, store.PhotoCompleted, store.PhotoError, store.PhotoNoFaces,
		} {
			fmt.Printf("  %-12s %d\n", status, counts[status])
		}
		fmt.Printf("Persons: %d (%d enrolled)\n", len(persons), len(enrollments))
		fmt.Printf("Pending uploads: %d\n", pendingUploads)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
