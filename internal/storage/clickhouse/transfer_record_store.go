package clickhouse

import (
	"context"
	"fmt"
	"time"

	"circles-flow/internal/domain"
	"circles-flow/internal/observability"
	"circles-flow/internal/storage"
)

// TransferRecordStore implements storage.TransferRecordStore using
// ClickHouse. The audit log is append-only; MergeTree does not enforce
// uniqueness, so callers rely on deterministic operation ids for
// idempotent inserts.
type TransferRecordStore struct {
	conn *Conn
}

// NewTransferRecordStore creates a new TransferRecordStore.
func NewTransferRecordStore(conn *Conn) *TransferRecordStore {
	return &TransferRecordStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TransferRecordStore = (*TransferRecordStore)(nil)

// Insert appends one audit row.
func (s *TransferRecordStore) Insert(ctx context.Context, rec *domain.TransferRecord) error {
	if rec == nil || rec.OperationID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO transfer_records (
			operation_id, from_addr, to_addr, requested, actual,
			steps, vertices, shrunk, duration_ms, created_at
		)
	`

	start := time.Now()
	err := s.insert(ctx, query, rec)
	observability.RecordDBQuery("clickhouse", "transfer_record_insert", time.Since(start).Seconds(), err)
	return err
}

func (s *TransferRecordStore) insert(ctx context.Context, query string, rec *domain.TransferRecord) error {
	batch, err := s.conn.PrepareBatch(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	var shrunk uint8
	if rec.Shrunk {
		shrunk = 1
	}

	err = batch.Append(
		rec.OperationID, rec.From, rec.To, rec.Requested, rec.Actual,
		uint32(rec.Steps), uint32(rec.Vertices), shrunk,
		uint64(rec.DurationMs), uint64(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTimeRange retrieves records created within [start, end]
// (inclusive, unix ms), ordered by creation time ASC.
func (s *TransferRecordStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TransferRecord, error) {
	query := `
		SELECT operation_id, from_addr, to_addr, requested, actual,
		       steps, vertices, shrunk, duration_ms, created_at
		FROM transfer_records
		WHERE created_at >= ? AND created_at <= ?
		ORDER BY created_at ASC
	`

	began := time.Now()
	rows, err := s.conn.Query(ctx, query, uint64(start), uint64(end))
	observability.RecordDBQuery("clickhouse", "transfer_record_range", time.Since(began).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("query by time range: %w", err)
	}
	defer rows.Close()

	return scanTransferRecords(rows)
}

// chRows abstracts driver.Rows for scanning helpers.
type chRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTransferRecords(rows chRows) ([]*domain.TransferRecord, error) {
	var recs []*domain.TransferRecord

	for rows.Next() {
		var rec domain.TransferRecord
		var steps, vertices uint32
		var shrunk uint8
		var durationMs, createdAt uint64

		err := rows.Scan(
			&rec.OperationID, &rec.From, &rec.To, &rec.Requested, &rec.Actual,
			&steps, &vertices, &shrunk, &durationMs, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transfer record row: %w", err)
		}

		rec.Steps = int(steps)
		rec.Vertices = int(vertices)
		rec.Shrunk = shrunk != 0
		rec.DurationMs = int64(durationMs)
		rec.CreatedAt = int64(createdAt)
		recs = append(recs, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfer record rows: %w", err)
	}

	return recs, nil
}
