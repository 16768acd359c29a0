package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kozaktomas/eventphoto/internal/config"
	"github.com/spf13/cobra"
)

var resetAllCmd = &cobra.Command{
	Use:   "reset-all",
	Short: "Wipe the database and all People/Admin folders under the event root",
	Long: `reset-all deletes the SQLite database file and removes the People/ and
Admin/ trees under the event root. Incoming/ is left untouched so nothing
already delivered is lost, and Processed/ is not removed either. Never wired into serve; this is an operator-invoked,
destructive command and requires --yes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !mustGetBool(cmd, "yes") {
			return fmt.Errorf("refusing to reset without --yes")
		}

		cfg := config.Load()

		if err := os.Remove(cfg.Paths.DBPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database file: %w", err)
		}
		for _, dir := range []string{"People", "Admin"} {
			if err := os.RemoveAll(filepath.Join(cfg.Paths.EventRoot, dir)); err != nil {
				return fmt.Errorf("removing %s: %w", dir, err)
			}
		}

		fmt.Println("Reset complete: database and People/Admin folders removed.")
		return nil
	},
}

func init() {
	resetAllCmd.Flags().Bool("yes", false, "confirm the destructive reset")
	rootCmd.AddCommand(resetAllCmd)
}
