// Package cmd implements BlockBard's command-line entrypoint.
package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nac-codes/Block-Bard/internal/config"
	"github.com/nac-codes/Block-Bard/internal/node"
)

var rootCmd = &cobra.Command{
	Use:   "blockbard <port> [tracker_addr]",
	Short: "BlockBard is a peer-to-peer node for collaborative, branch-structured storytelling",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runNode,
}

// Execute runs the root command, exiting non-zero on failure. cobra
// already prints the error and usage string itself on a RunE failure, so
// Execute only needs to set the exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runNode(cmd *cobra.Command, args []string) error {
	port := args[0]
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("blockbard: invalid port %q: must be an unsigned 16-bit number", port)
	}

	var trackerAddr string
	if len(args) == 2 {
		trackerAddr = args[1]
	}

	listenAddr := net.JoinHostPort("0.0.0.0", port)
	nodeID := port

	cfg := config.Load()

	n, err := node.New(nodeID, listenAddr, trackerAddr, cfg)
	if err != nil {
		return fmt.Errorf("blockbard: %w", err)
	}

	return n.Run(context.Background())
}
