package storage

import "context"

// Exec runs raw SQL against the underlying database.
func (s *SQLiteStorage) Exec(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	return err
}
