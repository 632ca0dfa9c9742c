package samples

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/miradorstack/pingwatch/internal/models"
	"github.com/miradorstack/pingwatch/internal/utils"
)

var csvHeader = []string{"timestamp", "target_ip", "rtt_ms", "packet_loss_percent"}

// CSVStore is the flat-file sample log: one line per sample, header written once.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSVStore prepares the log at path, writing the header if the file does not exist.
func NewCSVStore(path string) (*CSVStore, error) {
	if path == "" {
		return nil, errors.New("sample log path is required")
	}
	s := &CSVStore{path: path}
	if err := s.ensureHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVStore) ensureHeader() error {
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return utils.Wrap(err, utils.CodePersistenceFailure, "create sample log", "path", s.path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return utils.Wrap(err, utils.CodePersistenceFailure, "write sample log header", "path", s.path)
	}
	w.Flush()
	return w.Error()
}

// Append writes one line for sample. The file is opened per call so external
// rotation or truncation between ticks is tolerated.
func (s *CSVStore) Append(_ context.Context, sample models.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return utils.Wrap(err, utils.CodePersistenceFailure, "open sample log", "path", s.path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(encodeRow(sample)); err != nil {
		return utils.Wrap(err, utils.CodePersistenceFailure, "append sample", "target", sample.Target)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return utils.Wrap(err, utils.CodePersistenceFailure, "flush sample", "target", sample.Target)
	}
	return nil
}

// ReadAll parses every sample in the log. Malformed rows are skipped.
func (s *CSVStore) ReadAll(ctx context.Context) ([]models.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, utils.Wrap(err, utils.CodePersistenceFailure, "open sample log", "path", s.path)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var out []models.Sample
	for line := 1; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, utils.Wrap(err, utils.CodePersistenceFailure, "read sample log", "line", line)
		}
		if line == 1 && len(row) > 0 && row[0] == csvHeader[0] {
			continue
		}
		sample, err := decodeRow(row)
		if err != nil {
			continue
		}
		out = append(out, sample)
	}
	return out, nil
}

// Close is a no-op; the file is opened per operation.
func (s *CSVStore) Close() error { return nil }

func encodeRow(sample models.Sample) []string {
	rtt := ""
	if sample.HasRTT() {
		rtt = strconv.FormatFloat(sample.RTT(), 'f', -1, 64)
	}
	return []string{
		sample.Timestamp.Format(time.RFC3339Nano),
		sample.Target,
		rtt,
		strconv.FormatFloat(sample.PacketLossPercent, 'f', -1, 64),
	}
}

func decodeRow(row []string) (models.Sample, error) {
	if len(row) < 4 {
		return models.Sample{}, fmt.Errorf("expected 4 fields, got %d", len(row))
	}
	ts, err := utils.ParseTimestamp(row[0])
	if err != nil {
		return models.Sample{}, err
	}
	loss, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return models.Sample{}, fmt.Errorf("parse packet loss: %w", err)
	}
	sample := models.Sample{Timestamp: ts, Target: row[1], PacketLossPercent: loss}
	if row[2] != "" {
		rtt, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return models.Sample{}, fmt.Errorf("parse rtt: %w", err)
		}
		sample.RTTMs = models.Float(rtt)
	}
	return sample, nil
}
