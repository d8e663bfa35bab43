package cmd

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"echobench/internal/report"
	"echobench/internal/storage"
)

var historyCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "List recorded runs, or print one run as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := viper.GetString("history")
		if path == "" {
			return errors.New("no history database configured")
		}
		store, err := storage.NewStore(path)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			item, err := store.Get(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(item)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		items, err := store.List(limit)
		if err != nil {
			return err
		}
		return report.WriteHistory(os.Stdout, items)
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "number of runs to list (0 lists all)")
}
