package clickhouse

import (
	"context"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"orpheus/internal/domain/transcript"
)

// Compile-time check
var _ transcript.Repository = (*TranscriptRepository)(nil)

// TranscriptRepository implements transcript.Repository using ClickHouse
type TranscriptRepository struct {
	conn driver.Conn
}

// NewTranscriptRepository creates a new transcript repository
func NewTranscriptRepository(conn driver.Conn) *TranscriptRepository {
	return &TranscriptRepository{conn: conn}
}

// InsertBatch inserts finalized transcript entries
func (r *TranscriptRepository) InsertBatch(ctx context.Context, entries []transcript.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `
		INSERT INTO transcripts (
			call_id, caller_id, seq, role, text, at
		)
	`)
	if err != nil {
		return err
	}

	for _, e := range entries {
		err := batch.Append(
			e.CallID, e.CallerID, e.Seq, string(e.Role), e.Text, e.At,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

// GetByCall returns the full transcript of one call in utterance order
func (r *TranscriptRepository) GetByCall(ctx context.Context, callID uuid.UUID) ([]transcript.Entry, error) {
	var entries []transcript.Entry

	query := `
		SELECT call_id, caller_id, seq, role, text, at
		FROM transcripts
		WHERE call_id = ?
		ORDER BY seq ASC`

	err := r.conn.Select(ctx, &entries, query, callID)
	return entries, err
}
