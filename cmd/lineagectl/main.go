// Command lineagectl is a debugging and inspection tool for the per-key
// version graph store: it replays a newline-delimited JSON dump of wire
// messages through a registry.Registry and prints the resulting state.
// It implements no transport, no wire encoding of its own, and no
// persistence by default — it is not the production log-transport CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lineagedb/lineage/registry"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "lineagectl",
		Short: "Inspect a per-key version graph built from a dump of log messages",
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("lineagectl %s\n", version)
		},
	})

	replayCmd := &cobra.Command{
		Use:   "replay <file.jsonl>",
		Short: "Replay a dump file and print the frontier of every object",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
	replayCmd.Flags().String("snapshot-dir", "", "optional Badger directory for a warm-start hint cache")
	rootCmd.AddCommand(replayCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect <file.jsonl> <object-id>",
		Short: "Replay a dump file and print one object's full history",
		Args:  cobra.ExactArgs(2),
		RunE:  runInspect,
	}
	rootCmd.AddCommand(inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openRegistry(snapshotDir string) (*registry.Registry, func(), error) {
	if snapshotDir == "" {
		return registry.New(), func() {}, nil
	}

	cache, err := registry.OpenSnapshotCache(registry.SnapshotOptions{DataDir: snapshotDir})
	if err != nil {
		return nil, nil, fmt.Errorf("lineagectl: open snapshot cache: %w", err)
	}
	reg := registry.New(registry.WithSnapshotCache(cache))
	return reg, func() { cache.Close() }, nil
}
