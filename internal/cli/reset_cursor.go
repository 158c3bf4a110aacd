package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var resetForce bool

var resetCursorCmd = &cobra.Command{
	Use:   "reset-cursor [chain_id] [block_height]",
	Short: "Reset the cursor to a given block height",
	Long: `Overwrites the persisted checkpoint, bypassing the monotonic guard.
Rewinding re-scans and re-delivers everything above the new height; the
attestation API dedups re-deliveries by nonce.`,
	Args: cobra.ExactArgs(2),
	Run:  runResetCursor,
}

func init() {
	resetCursorCmd.Flags().BoolVar(&resetForce, "force", false, "skip the confirmation prompt")
	rootCmd.AddCommand(resetCursorCmd)
}

func runResetCursor(cmd *cobra.Command, args []string) {
	chainID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fmt.Printf("Invalid chain id: %v\n", err)
		os.Exit(1)
	}
	height, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Printf("Invalid block height: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if !resetForce {
		fmt.Printf("Reset cursor for chain %d to height %d? [y/N]: ", chainID, height)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y") {
			fmt.Println("Aborted.")
			return
		}
	}

	checkpoints, _, cleanup, err := openRepos(cfg)
	if err != nil {
		slog.Error("failed to open storage", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	if err := checkpoints.Reset(context.Background(), chainID, height); err != nil {
		slog.Error("failed to reset cursor", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Cursor for chain %d reset to height %d\n", chainID, height)
}
