package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lineagedb/lineage/registry"
	"github.com/lineagedb/lineage/wire"
)

type objectRef struct {
	partitionKey string
	objectID     wire.UUID
}

func runReplay(cmd *cobra.Command, args []string) error {
	snapshotDir, _ := cmd.Flags().GetString("snapshot-dir")
	reg, closeReg, err := openRegistry(snapshotDir)
	if err != nil {
		return err
	}
	defer closeReg()

	refs, err := replayFile(reg, args[0])
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "replayed %d objects across %d containers\n", len(refs), reg.Len())
	printFrontiers(cmd, reg, refs)
	return nil
}

// replayFile feeds every record in path through reg, returning each
// distinct object seen in first-encountered order.
func replayFile(reg *registry.Registry, path string) ([]objectRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lineagectl: open dump: %w", err)
	}
	defer f.Close()

	var refs []objectRef
	seen := make(map[objectRef]struct{})

	err = readDump(f, func(rec dumpRecord) error {
		c := reg.Container(rec.PartitionKey, rec.ObjectID)
		c.Add(rec.message(), rec.meta())

		ref := objectRef{partitionKey: rec.PartitionKey, objectID: rec.ObjectID}
		if _, ok := seen[ref]; !ok {
			seen[ref] = struct{}{}
			refs = append(refs, ref)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return refs, nil
}

func printFrontiers(cmd *cobra.Command, reg *registry.Registry, refs []objectRef) {
	out := cmd.OutOrStdout()
	for _, ref := range refs {
		c, ok := reg.Lookup(ref.partitionKey, ref.objectID)
		if !ok {
			continue
		}
		leaves := c.Leaves()
		versions := make([]wire.UUID, len(leaves))
		for i, n := range leaves {
			versions[i] = n.Version()
		}
		fmt.Fprintf(out, "%s/%s: %d leaf version(s) %v\n", ref.partitionKey, ref.objectID, len(versions), versions)
	}
}
