// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package durability

import (
	"bytes"
	"fmt"
	"time"

	"github.com/linkedin/goavro/v2"

	"github.com/hdds-io/hdds/pkg/log"
)

// sampleSchema is the fixed Avro schema a durable_sample row is
// encoded against. Unlike the teacher's avroCheckpoint.go, which infers
// a schema per metric batch because metric fields vary by sensor, a
// durable sample's shape is fixed by the durable_sample table, so one
// static schema suffices.
const sampleSchema = `{
  "type": "record",
  "name": "DurableSample",
  "fields": [
    {"name": "topic_name", "type": "string"},
    {"name": "type_name", "type": "string"},
    {"name": "writer_guid", "type": "string"},
    {"name": "sequence_number", "type": "long"},
    {"name": "instance_hash", "type": "long"},
    {"name": "instance_key", "type": "bytes"},
    {"name": "payload", "type": ["null", "bytes"], "default": null},
    {"name": "disposed", "type": "boolean"},
    {"name": "source_timestamp", "type": "long"},
    {"name": "received_at", "type": "long"}
  ]
}`

// CheckpointAged moves every sample older than cutoff from the hot
// sqlite store into one Avro OCF file per call, writes it to tier, and
// evicts the rows on success — the same "checkpoint then evict"
// two-phase shape as the teacher's AvroStore.ToCheckpoint, simplified
// from its per-metric-resolution fan-out to a single flat batch since a
// durabilityd instance serves one domain's samples, not a hierarchy of
// cluster/node/metric levels.
func CheckpointAged(store *Store, tier ColdTier, cutoff time.Time) (int, error) {
	rows, err := store.AgedBefore(cutoff)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	codec, err := goavro.NewCodec(sampleSchema)
	if err != nil {
		return 0, fmt.Errorf("durability: build avro codec: %w", err)
	}

	var buf bytes.Buffer
	writer, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               &buf,
		Codec:           codec,
		CompressionName: goavro.CompressionDeflateLabel,
	})
	if err != nil {
		return 0, fmt.Errorf("durability: new OCF writer: %w", err)
	}

	records := make([]map[string]any, 0, len(rows))
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		records = append(records, map[string]any{
			"topic_name":       r.TopicName,
			"type_name":        r.TypeName,
			"writer_guid":      r.WriterGUID,
			"sequence_number":  r.SequenceNumber,
			"instance_hash":    r.InstanceHash,
			"instance_key":     r.InstanceKey,
			"payload":          goavro.Union("bytes", r.Payload),
			"disposed":         r.Disposed,
			"source_timestamp": r.SourceTimestamp,
			"received_at":      r.ReceivedAt,
		})
		ids = append(ids, r.ID)
	}
	if err := writer.Append(records); err != nil {
		return 0, fmt.Errorf("durability: append avro records: %w", err)
	}

	name := fmt.Sprintf("durable-samples-%d.avro", cutoff.UnixNano())
	if err := tier.WriteFile(name, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("durability: write cold tier file %q: %w", name, err)
	}
	if err := store.Evict(ids); err != nil {
		return 0, fmt.Errorf("durability: evict checkpointed rows: %w", err)
	}

	log.Infof("durability: checkpointed %d samples to %s", len(rows), name)
	return len(rows), nil
}
