package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var deadletterLimit int

var deadletterCmd = &cobra.Command{
	Use:   "deadletter",
	Short: "Inspect records the watcher gave up on",
}

var deadletterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead letters, newest first",
	Run:   runDeadletterList,
}

var deadletterRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a dead letter by id",
	Args:  cobra.ExactArgs(1),
	Run:   runDeadletterRm,
}

func init() {
	deadletterListCmd.Flags().IntVar(&deadletterLimit, "limit", 50, "maximum entries to show")
	deadletterCmd.AddCommand(deadletterListCmd)
	deadletterCmd.AddCommand(deadletterRmCmd)
	rootCmd.AddCommand(deadletterCmd)
}

func runDeadletterList(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	_, deadLetters, cleanup, err := openRepos(cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	dls, err := deadLetters.List(context.Background(), cfg.Chain.ChainID, deadletterLimit)
	if err != nil {
		slog.Error("failed to list dead letters", "error", err)
		os.Exit(1)
	}

	if len(dls) == 0 {
		fmt.Println("No dead letters.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	fmt.Fprintln(w, "ID\tKIND\tBLOCK\tTX\tNONCE\tAGE\tREASON")
	for _, dl := range dls {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\t%s\n",
			dl.ID,
			dl.Kind,
			dl.BlockNumber,
			shorten(dl.TxHash),
			dl.Nonce,
			time.Since(dl.CreatedAt).Round(time.Second),
			shorten(dl.Reason),
		)
	}
	w.Flush()
}

func runDeadletterRm(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	_, deadLetters, cleanup, err := openRepos(cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := deadLetters.Delete(context.Background(), args[0]); err != nil {
		slog.Error("failed to delete dead letter", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted %s\n", args[0])
}

func shorten(s string) string {
	const max = 48
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
