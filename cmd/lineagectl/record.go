package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/lineagedb/lineage/wire"
)

// dumpRecord is the newline-delimited JSON shape lineagectl reads: one
// wire.Message plus its wire.Meta, flattened for readability on the command
// line. This is a debugging format only — production log transports supply
// collab.Serializer with their own wire encoding.
type dumpRecord struct {
	PartitionKey    string      `json:"partition_key"`
	ObjectID        wire.UUID   `json:"object_id"`
	Version         wire.UUID   `json:"version"`
	PreviousVersion *wire.UUID  `json:"previous_version,omitempty"`
	Merges          []wire.UUID `json:"merges,omitempty"`
	PayloadClass    string      `json:"payload_class,omitempty"`
	InheritWrite    bool        `json:"inherit_write,omitempty"`
	AllowWrite      []string    `json:"allow_write,omitempty"`
	Payload         []byte      `json:"payload,omitempty"`
	Partition       int64       `json:"partition"`
	Offset          int64       `json:"offset"`
	TimestampMillis int64       `json:"timestamp_millis"`
}

func (r dumpRecord) message() wire.Message {
	return wire.Message{
		Header: wire.Header{
			ObjectID:        r.ObjectID,
			Version:         r.Version,
			PreviousVersion: r.PreviousVersion,
			Merges:          wire.NewVersionSet(r.Merges...),
			PayloadClass:    r.PayloadClass,
			InheritWrite:    r.InheritWrite,
			AllowWrite:      r.AllowWrite,
		},
		Payload: r.Payload,
	}
}

func (r dumpRecord) meta() *wire.Meta {
	return &wire.Meta{
		Partition:       r.Partition,
		Offset:          r.Offset,
		TimestampMillis: r.TimestampMillis,
	}
}

// readDump scans a newline-delimited JSON file of dumpRecord values,
// invoking fn for each in file order. A blank line is skipped.
func readDump(r io.Reader, fn func(dumpRecord) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var rec dumpRecord
		if err := json.Unmarshal(text, &rec); err != nil {
			return fmt.Errorf("lineagectl: line %d: %w", line, err)
		}
		if err := fn(rec); err != nil {
			return fmt.Errorf("lineagectl: line %d: %w", line, err)
		}
	}
	return scanner.Err()
}
