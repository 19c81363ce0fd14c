package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sensorwatch-go/internal/domain"
	"sensorwatch-go/internal/metrics"
)

// RecordRepository implements store.RecordRepository using PostgreSQL.
// Record bodies are stored as JSONB; List returns them as raw JSON.
type RecordRepository struct {
	db *DB
}

// NewRecordRepository creates a new PostgreSQL-backed record archive.
func NewRecordRepository(db *DB) *RecordRepository {
	return &RecordRepository{db: db}
}

// Save stores a record as its envelope.
func (r *RecordRepository) Save(ctx context.Context, rec domain.Record) (err error) {
	defer observe("write", time.Now(), &err)

	env := domain.NewEnvelope(rec)
	data, err := json.Marshal(env.Data)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `
		INSERT INTO sensor_records (id, kind, topic, node_id, received_at, data)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.db.pool.Exec(ctx, query,
		env.ID,
		env.Kind,
		env.Topic,
		nullableString(env.NodeID),
		env.ReceivedAt,
		data,
	)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

// List retrieves archived envelopes matching the filter criteria.
func (r *RecordRepository) List(ctx context.Context, filter domain.RecordFilter) (envs []domain.Envelope, err error) {
	defer observe("read", time.Now(), &err)

	query, args := listQuery(filter)

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	return scanEnvelopes(rows)
}

// listQuery builds the filtered, newest-first archive query.
func listQuery(filter domain.RecordFilter) (string, []interface{}) {
	query := `
		SELECT id, kind, topic, node_id, received_at, data
		FROM sensor_records
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argNum)
		args = append(args, filter.Kind)
		argNum++
	}

	if filter.NodeID != "" {
		query += fmt.Sprintf(" AND node_id = $%d", argNum)
		args = append(args, filter.NodeID)
		argNum++
	}

	query += " ORDER BY received_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
		argNum++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argNum)
		args = append(args, filter.Offset)
	}

	return query, args
}

// scanEnvelopes scans multiple rows into envelopes.
func scanEnvelopes(rows pgx.Rows) ([]domain.Envelope, error) {
	envs := make([]domain.Envelope, 0)

	for rows.Next() {
		var env domain.Envelope
		var nodeID *string
		var data []byte

		if err := rows.Scan(&env.ID, &env.Kind, &env.Topic, &nodeID, &env.ReceivedAt, &data); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		if nodeID != nil {
			env.NodeID = *nodeID
		}
		env.Data = json.RawMessage(data)
		envs = append(envs, env)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return envs, nil
}

// nullableString converts an empty string to nil for nullable columns.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func observe(op string, start time.Time, err *error) {
	status := "success"
	if *err != nil {
		status = "failure"
	}
	metrics.StorageOperationLatency.WithLabelValues("postgres", op).Observe(time.Since(start).Seconds())
	metrics.StorageOperationsTotal.WithLabelValues("postgres", op, status).Inc()
}
