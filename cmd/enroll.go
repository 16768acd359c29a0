package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/eventphoto/internal/config"
	"github.com/kozaktomas/eventphoto/internal/enroll"
	"github.com/kozaktomas/eventphoto/internal/faceanalyzer"
	"github.com/kozaktomas/eventphoto/internal/remotestore"
	"github.com/kozaktomas/eventphoto/internal/router"
	"github.com/kozaktomas/eventphoto/internal/store"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Match a guest's selfie to a person cluster and record their enrollment",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log := newLogger(cfg.Logging)
		ctx := context.Background()

		st, err := store.Open(ctx, cfg.Paths.DBPath, 5*time.Second, log)
		if err != nil {
			return err
		}
		defer st.Close()

		analyzer, err := faceanalyzer.NewHTTPAnalyzer(
			cfg.Analyzer.BaseURL,
			time.Duration(cfg.Analyzer.TimeoutConnectSeconds)*time.Second,
			time.Duration(cfg.Analyzer.TimeoutReadSeconds)*time.Second,
		)
		if err != nil {
			return fmt.Errorf("initializing face analyzer: %w", err)
		}

		var remote remotestore.RemoteStore
		if cfg.Remote.CredentialsFile != "" {
			drive, err := remotestore.NewDriveStore(ctx, cfg.Remote.CredentialsFile, cfg.Remote.RootFolderID)
			if err != nil {
				return fmt.Errorf("initializing remote store: %w", err)
			}
			remote = drive
		} else {
			log.Warn().Msg("no remote credentials configured; folder rename mirroring will be skipped")
			remote = remotestore.NewFake()
		}

		rt := router.New(cfg.Paths.EventRoot, cfg.Pipeline.UseHardlinks)
		enroller := enroll.New(enroll.StoreAdapter{Store: st}, analyzer, remote, rt, cfg.Pipeline.ClusterThreshold, log)

		outcome, err := enroller.Enroll(ctx, enroll.Request{
			SelfiePath:   mustGetString(cmd, "selfie"),
			UserName:     mustGetString(cmd, "name"),
			Phone:        mustGetString(cmd, "phone"),
			Email:        mustGetString(cmd, "email"),
			ConsentGiven: mustGetBool(cmd, "consent"),
		})
		if err != nil {
			return fmt.Errorf("enrollment failed: %w", err)
		}

		fmt.Printf("Enrolled person %d into folder %q (enrollment %d, match confidence %.2f)\n",
			outcome.PersonID, outcome.FolderName, outcome.EnrollmentID, outcome.MatchConfidence)
		return nil
	},
}

func init() {
	enrollCmd.Flags().String("selfie", "", "path to the guest's selfie image (required)")
	enrollCmd.Flags().String("name", "", "the name to enroll the matched person under (required)")
	enrollCmd.Flags().String("phone", "", "the guest's phone number")
	enrollCmd.Flags().String("email", "", "the guest's email address")
	enrollCmd.Flags().Bool("consent", false, "record that the guest consented to enrollment")
	_ = enrollCmd.MarkFlagRequired("selfie")
	_ = enrollCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(enrollCmd)
}
