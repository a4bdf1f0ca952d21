// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package durability

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	sqlite3drv "github.com/mattn/go-sqlite3"
	"github.com/qustavo/sqlhooks/v2"

	"github.com/hdds-io/hdds/internal/rtpstypes"
	"github.com/hdds-io/hdds/pkg/log"
)

//go:embed migrations/sqlite3
var migrationFiles embed.FS

// registerDriverOnce guards sql.Register, which panics if the same
// driver name is registered twice in one process.
var registerDriverOnce sync.Once

// DurableSample is one persisted, durability-qualified sample, shaped
// for the durable_sample table rather than reusing rtpstypes.Sample
// directly: the core's Sample carries a GUID struct and an InstanceKey
// struct, neither of which sqlx can scan into a column on its own.
type DurableSample struct {
	ID              int64     `db:"id"`
	TopicName       string    `db:"topic_name"`
	TypeName        string    `db:"type_name"`
	WriterGUID      string    `db:"writer_guid"`
	SequenceNumber  int64     `db:"sequence_number"`
	InstanceHash    int64     `db:"instance_hash"`
	InstanceKey     []byte    `db:"instance_key"`
	Payload         []byte    `db:"payload"`
	Disposed        bool      `db:"disposed"`
	SourceTimestamp int64     `db:"source_timestamp"`
	ReceivedAt      int64     `db:"received_at"`
}

// Store is the hot-tier persistence layer of one durabilityd process.
// It is constructed explicitly by main rather than held behind a
// package singleton (the teacher's internal/repository.Connect/
// GetConnection shape is a poor fit here: a durabilityd could in
// principle serve several domains from one process, each with its own
// Store).
type Store struct {
	db *sqlx.DB
}

// OpenStore opens (creating if necessary) the sqlite-backed hot store
// at driver/dsn and brings its schema up to the latest migration,
// following the same sqlhooks-wrapped sqlite3 registration and
// golang-migrate/iofs embed pattern as the teacher's
// internal/repository/dbConnection.go and migration.go.
func OpenStore(driver, dsn string) (*Store, error) {
	if driver != "sqlite3" {
		return nil, fmt.Errorf("durability: unsupported db driver %q (only sqlite3)", driver)
	}

	registerDriverOnce.Do(func() {
		sql.Register("hddsSqlite3WithHooks", sqlhooks.Wrap(&sqlite3drv.SQLiteDriver{}, &queryLogHooks{}))
	})
	db, err := sqlx.Open("hddsSqlite3WithHooks", fmt.Sprintf("%s?_foreign_keys=on", dsn))
	if err != nil {
		return nil, fmt.Errorf("durability: open sqlite3 %q: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)

	if err := migrateUp(db.DB); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("durability: migration driver: %w", err)
	}
	src, err := iofs.New(migrationFiles, "migrations/sqlite3")
	if err != nil {
		return fmt.Errorf("durability: migration source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("durability: migration setup: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("durability: migrate up: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// Persist writes one durable sample, ignoring a duplicate
// (writer_guid, sequence_number) pair rather than erroring: the same
// sample can legitimately arrive twice across a reconnect.
func (s *Store) Persist(rec DurableSample) error {
	q, args, err := sq.Insert("durable_sample").
		Columns("topic_name", "type_name", "writer_guid", "sequence_number",
			"instance_hash", "instance_key", "payload", "disposed",
			"source_timestamp", "received_at").
		Values(rec.TopicName, rec.TypeName, rec.WriterGUID, rec.SequenceNumber,
			rec.InstanceHash, rec.InstanceKey, rec.Payload, rec.Disposed,
			rec.SourceTimestamp, rec.ReceivedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("durability: build insert: %w", err)
	}
	if _, err := s.db.Exec(q, args...); err != nil {
		log.Debugf("durability: persist %s#%d ignored: %v", rec.TopicName, rec.SequenceNumber, err)
	}
	return nil
}

// Replay returns every sample persisted for topic in writer-sequence
// order, the set a late-joining reader's writer should re-publish.
func (s *Store) Replay(topic string) ([]DurableSample, error) {
	q, args, err := sq.Select("id", "topic_name", "type_name", "writer_guid",
		"sequence_number", "instance_hash", "instance_key", "payload", "disposed",
		"source_timestamp", "received_at").
		From("durable_sample").
		Where(sq.Eq{"topic_name": topic}).
		OrderBy("sequence_number ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("durability: build select: %w", err)
	}

	var out []DurableSample
	if err := s.db.Select(&out, q, args...); err != nil {
		return nil, fmt.Errorf("durability: replay %q: %w", topic, err)
	}
	return out, nil
}

// AgedBefore returns every sample received before cutoff, the input to
// CheckpointAged's Avro OCF export.
func (s *Store) AgedBefore(cutoff time.Time) ([]DurableSample, error) {
	q, args, err := sq.Select("id", "topic_name", "type_name", "writer_guid",
		"sequence_number", "instance_hash", "instance_key", "payload", "disposed",
		"source_timestamp", "received_at").
		From("durable_sample").
		Where(sq.Lt{"received_at": cutoff.UnixNano()}).
		OrderBy("received_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("durability: build select: %w", err)
	}

	var out []DurableSample
	if err := s.db.Select(&out, q, args...); err != nil {
		return nil, fmt.Errorf("durability: select aged: %w", err)
	}
	return out, nil
}

// Evict removes the given rows, called after CheckpointAged has
// durably written them to the cold tier.
func (s *Store) Evict(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sq.Delete("durable_sample").Where(sq.Eq{"id": ids}).ToSql()
	if err != nil {
		return fmt.Errorf("durability: build delete: %w", err)
	}
	_, err = s.db.Exec(q, args...)
	return err
}

// toSample converts a hot-store row back into the core's wire-level
// sample shape for replay through Writer.Write.
func (r DurableSample) toSample() (rtpstypes.InstanceKey, []byte) {
	return rtpstypes.InstanceKey{Hash: uint64(r.InstanceHash), Canonical: string(r.InstanceKey)}, r.Payload
}

// queryLogHooks mirrors the teacher's sqlhooks.Hooks usage in
// internal/repository/dbConnection.go: a debug-level breadcrumb per
// query, nothing else.
type queryLogHooks struct{}

func (h *queryLogHooks) Before(ctx context.Context, query string, args ...any) (context.Context, error) {
	log.Debugf("durability: sql %q %v", query, args)
	return ctx, nil
}

func (h *queryLogHooks) After(ctx context.Context, query string, args ...any) (context.Context, error) {
	return ctx, nil
}
