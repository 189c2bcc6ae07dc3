package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ResolvedSource: закешированный результат резолва ссылки на сообщество.
type ResolvedSource struct {
	Reference   string
	CommunityID string
	ResolvedAt  int64
}

func (s *Store) SaveSource(ctx context.Context, reference, communityID string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sources (reference, community_id, resolved_at)
VALUES (?, ?, ?)
ON CONFLICT(reference) DO UPDATE SET community_id=excluded.community_id, resolved_at=excluded.resolved_at;
`, reference, communityID, time.Now().Unix())
	return err
}

// GetSource: не резолвили ещё -> (nil, nil).
func (s *Store) GetSource(ctx context.Context, reference string) (*ResolvedSource, error) {
	var src ResolvedSource
	err := s.db.QueryRowContext(ctx,
		`SELECT reference, community_id, resolved_at FROM sources WHERE reference=?;`, reference,
	).Scan(&src.Reference, &src.CommunityID, &src.ResolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &src, nil
}

func (s *Store) ListSources(ctx context.Context) ([]ResolvedSource, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT reference, community_id, resolved_at FROM sources ORDER BY reference;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ResolvedSource{}
	for rows.Next() {
		var src ResolvedSource
		if err := rows.Scan(&src.Reference, &src.CommunityID, &src.ResolvedAt); err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, rows.Err()
}
