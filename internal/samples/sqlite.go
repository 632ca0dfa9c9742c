package samples

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/miradorstack/pingwatch/internal/models"
	"github.com/miradorstack/pingwatch/internal/utils"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS samples (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    timestamp           TEXT NOT NULL,
    target              TEXT NOT NULL,
    rtt_ms              REAL,
    packet_loss_percent REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_target ON samples(target, timestamp);
`

type sampleRow struct {
	Timestamp         string          `db:"timestamp"`
	Target            string          `db:"target"`
	RTTMs             sql.NullFloat64 `db:"rtt_ms"`
	PacketLossPercent float64         `db:"packet_loss_percent"`
}

// SQLiteStore keeps the sample log in an append-only SQLite table.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, utils.Wrap(err, utils.CodePersistenceFailure, "connect to sqlite", "path", path)
	}
	// A single writer avoids SQLITE_BUSY when probes run concurrently.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, utils.Wrap(err, utils.CodePersistenceFailure, "migrate sample schema", "path", path)
	}
	return &SQLiteStore{db: db}, nil
}

// Append inserts one sample row.
func (s *SQLiteStore) Append(ctx context.Context, sample models.Sample) error {
	row := sampleRow{
		Timestamp:         sample.Timestamp.Format(time.RFC3339Nano),
		Target:            sample.Target,
		PacketLossPercent: sample.PacketLossPercent,
	}
	if sample.HasRTT() {
		row.RTTMs = sql.NullFloat64{Float64: sample.RTT(), Valid: true}
	}

	query := `INSERT INTO samples (timestamp, target, rtt_ms, packet_loss_percent)
		VALUES (:timestamp, :target, :rtt_ms, :packet_loss_percent)`
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return utils.Wrap(err, utils.CodePersistenceFailure, "insert sample", "target", sample.Target)
	}
	return nil
}

// ReadAll returns every recorded sample in insertion order. Rows with an
// unparsable timestamp are skipped.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]models.Sample, error) {
	var rows []sampleRow
	query := `SELECT timestamp, target, rtt_ms, packet_loss_percent FROM samples ORDER BY id`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, utils.Wrap(err, utils.CodePersistenceFailure, "select samples")
	}

	out := make([]models.Sample, 0, len(rows))
	for _, row := range rows {
		ts, err := utils.ParseTimestamp(row.Timestamp)
		if err != nil {
			continue
		}
		sample := models.Sample{Timestamp: ts, Target: row.Target, PacketLossPercent: row.PacketLossPercent}
		if row.RTTMs.Valid {
			sample.RTTMs = models.Float(row.RTTMs.Float64)
		}
		out = append(out, sample)
	}
	return out, nil
}

// Close closes the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
