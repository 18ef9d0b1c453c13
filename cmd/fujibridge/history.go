package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nerrad567/fujitsu-bridge/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recorded climate history",
	Long: `Print the climate states recorded in the bridge database, newest first.

Entries come from the unit (reported state) or from control requests
(desired state at the time of the request).`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", history.DefaultLimit,
		fmt.Sprintf("Number of entries (max %d)", history.MaxLimit))
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := history.NewStore(db.DB).List(ctx, cfg.Bridge.ID, history.ClampLimit(historyLimit))
	if err != nil {
		return fmt.Errorf("listing history: %w", err)
	}
	if len(entries) == 0 {
		fmt.Println("No history recorded")
		return nil
	}

	return writeHistory(entries)
}

func writeHistory(entries []history.Entry) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSOURCE\tMODE\tTARGET\tCURRENT\tFAN\tPRESET")
	for _, e := range entries {
		fan := string(e.State.FanMode)
		if fan == "" {
			fan = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.0f\t%s\t%s\n",
			e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			e.Source,
			e.State.Mode,
			e.State.TargetTemperature,
			e.State.CurrentTemperature,
			fan,
			e.State.Preset,
		)
	}
	return w.Flush()
}
