package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/segura08m/InnerNode/internal/infra/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the checkpoint and dead letter state of the watched chain",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	checkpoints, deadLetters, cleanup, err := openRepos(cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	ctx := context.Background()
	chainID := cfg.Chain.ChainID

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	fmt.Fprintln(w, "CHAIN\tCURSOR\tAGE\tDEAD LETTERS")

	cursorCol, ageCol := "-", "-"
	cp, err := checkpoints.Get(ctx, chainID)
	switch {
	case err == nil:
		cursorCol = fmt.Sprintf("%d", cp.Height)
		ageCol = time.Since(cp.UpdatedAt).Round(time.Second).String()
	case errors.Is(err, storage.ErrCheckpointNotFound):
		// fresh deployment, keep the dashes
	default:
		slog.Error("failed to read checkpoint", "error", err)
		os.Exit(1)
	}

	count, err := deadLetters.Count(ctx, chainID)
	if err != nil {
		slog.Error("failed to count dead letters", "error", err)
		os.Exit(1)
	}

	fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", chainID, cursorCol, ageCol, count)
	w.Flush()
}
