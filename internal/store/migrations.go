package store

import "context"

const migrationSQL = `
CREATE TABLE IF NOT EXISTS call_journal (
    id BIGSERIAL PRIMARY KEY,
    operation TEXT NOT NULL,
    source TEXT NOT NULL DEFAULT '',
    success BOOLEAN NOT NULL,
    error_code TEXT NOT NULL DEFAULT '',
    error_message TEXT NOT NULL DEFAULT '',
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS call_journal_created_at_idx ON call_journal (created_at DESC);
CREATE INDEX IF NOT EXISTS call_journal_operation_idx ON call_journal (operation, created_at DESC);
`

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, migrationSQL)
	return err
}
