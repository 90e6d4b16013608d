package postgres

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/SkySoft-Norway/herimoss-sub001/internal/domain"
)

// duplicateBatchSize keeps one statement well below the parameter limit.
const duplicateBatchSize = 1000

type DuplicateStore struct {
	db *sqlx.DB
}

func NewDuplicateStore(db *sqlx.DB) *DuplicateStore {
	return &DuplicateStore{db: db}
}

// InsertBatch stores the duplicate mappings found in one run.
func (s *DuplicateStore) InsertBatch(ctx context.Context, runID string, mappings []domain.DuplicateMapping) error {
	for start := 0; start < len(mappings); start += duplicateBatchSize {
		end := min(start+duplicateBatchSize, len(mappings))
		if err := s.insert(ctx, runID, mappings[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *DuplicateStore) insert(ctx context.Context, runID string, mappings []domain.DuplicateMapping) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO duplicate_mappings (run_id, original_id, canonical_id, reason, score) VALUES ")
	valueArgs := make([]interface{}, 0, len(mappings)*4+1)
	valueArgs = append(valueArgs, runID)

	for i, m := range mappings {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("($1, $")
		sb.WriteString(itoa(i*4 + 2))
		sb.WriteString(", $")
		sb.WriteString(itoa(i*4 + 3))
		sb.WriteString(", $")
		sb.WriteString(itoa(i*4 + 4))
		sb.WriteString(", $")
		sb.WriteString(itoa(i*4 + 5))
		sb.WriteString(")")
		valueArgs = append(valueArgs, m.OriginalID, m.CanonicalID, string(m.Reason), m.Score)
	}

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, sb.String(), valueArgs...)
	return err
}

func itoa(i int) string {
	if i < 10 {
		return string(rune('0' + i))
	}
	return itoa(i/10) + string(rune('0'+i%10))
}
