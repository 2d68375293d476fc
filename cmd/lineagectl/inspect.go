package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]
	objectID, err := uuid.Parse(args[1])
	if err != nil {
		return fmt.Errorf("lineagectl: invalid object id %q: %w", args[1], err)
	}

	reg, closeReg, err := openRegistry("")
	if err != nil {
		return err
	}
	defer closeReg()

	refs, err := replayFile(reg, path)
	if err != nil {
		return err
	}

	var found bool
	var partitionKey string
	for _, ref := range refs {
		if ref.objectID == objectID {
			found = true
			partitionKey = ref.partitionKey
			break
		}
	}
	if !found {
		return fmt.Errorf("lineagectl: object %s not found in %s", objectID, path)
	}

	c, ok := reg.Lookup(partitionKey, objectID)
	if !ok {
		return fmt.Errorf("lineagectl: object %s vanished after replay", objectID)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "object:        %s\n", objectID)
	fmt.Fprintf(out, "partition:     %s\n", partitionKey)
	fmt.Fprintf(out, "payload class: %s\n", c.PayloadClass())
	fmt.Fprintf(out, "immutable:     %v\n", c.Immutable())
	fmt.Fprintf(out, "has payload:   %v\n", c.HasPayload())
	fmt.Fprintln(out, "history:")
	for i, meta := range c.History() {
		fmt.Fprintf(out, "  [%d] partition=%d offset=%d ts=%d\n", i, meta.Partition, meta.Offset, meta.TimestampMillis)
	}
	return nil
}
