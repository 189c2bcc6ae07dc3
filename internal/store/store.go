package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const (
	StatusNew      = "new"
	StatusApproved = "approved"
	StatusRejected = "rejected"
	StatusUsed     = "used"
)

var Statuses = []string{StatusNew, StatusApproved, StatusRejected, StatusUsed}

var ErrNotFound = errors.New("store: post not found")

type Store struct {
	db *sql.DB
}

type Video struct {
	Ref   string `json:"ref"`
	Link  string `json:"link"`
	Thumb string `json:"thumb,omitempty"`
	Title string `json:"title,omitempty"`
}

type Post struct {
	VKOwnerID string
	VKPostID  string
	VKFullID  string
	Link      string
	Text      string
	ChannelID int64

	MediaURLs []string
	Videos    []Video

	Likes    int
	Reposts  int
	Views    int
	PostedAt int64

	Status    string
	CreatedAt int64
	UpdatedAt int64
	UsedAt    int64
}

func ValidStatus(s string) bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) ensureSchema(ctx context.Context) error {
	// базовая таблица
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS posts (
  vk_full_id  TEXT PRIMARY KEY,
  vk_owner_id TEXT NOT NULL,
  vk_post_id  TEXT NOT NULL,
  link        TEXT NOT NULL,
  text        TEXT NOT NULL,
  media_json  TEXT NOT NULL DEFAULT '[]',
  status      TEXT NOT NULL DEFAULT 'new',
  created_at  INTEGER NOT NULL DEFAULT 0,
  updated_at  INTEGER NOT NULL DEFAULT 0,
  used_at     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS sources (
  reference    TEXT PRIMARY KEY,
  community_id TEXT NOT NULL,
  resolved_at  INTEGER NOT NULL DEFAULT 0
);
`)
	if err != nil {
		return err
	}

	// миграции для старых баз
	cols, err := s.tableColumns(ctx, "posts")
	if err != nil {
		return err
	}

	migrations := []struct{ name, ddl string }{
		{"media_json", `ALTER TABLE posts ADD COLUMN media_json TEXT NOT NULL DEFAULT '[]';`},
		{"status", `ALTER TABLE posts ADD COLUMN status TEXT NOT NULL DEFAULT 'new';`},
		{"created_at", `ALTER TABLE posts ADD COLUMN created_at INTEGER NOT NULL DEFAULT 0;`},
		{"updated_at", `ALTER TABLE posts ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0;`},
		{"used_at", `ALTER TABLE posts ADD COLUMN used_at INTEGER NOT NULL DEFAULT 0;`},
		{"video_json", `ALTER TABLE posts ADD COLUMN video_json TEXT NOT NULL DEFAULT '[]';`},
		{"channel_id", `ALTER TABLE posts ADD COLUMN channel_id INTEGER NOT NULL DEFAULT 0;`},
		{"likes", `ALTER TABLE posts ADD COLUMN likes INTEGER NOT NULL DEFAULT 0;`},
		{"reposts", `ALTER TABLE posts ADD COLUMN reposts INTEGER NOT NULL DEFAULT 0;`},
		{"views", `ALTER TABLE posts ADD COLUMN views INTEGER NOT NULL DEFAULT 0;`},
		{"posted_at", `ALTER TABLE posts ADD COLUMN posted_at INTEGER NOT NULL DEFAULT 0;`},
	}
	for _, m := range migrations {
		if cols[m.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("migrate %s: %w", m.name, err)
		}
	}

	_, err = s.db.ExecContext(ctx, `
CREATE INDEX IF NOT EXISTS idx_posts_status_usedat    ON posts(status, used_at DESC);
CREATE INDEX IF NOT EXISTS idx_posts_status_createdat ON posts(status, created_at DESC);
`)
	if err != nil {
		return err
	}

	// неизвестные статусы (reserved/skipped из старых версий) -> new
	_, err = s.db.ExecContext(ctx, `
UPDATE posts
SET status='new'
WHERE status NOT IN ('new','approved','rejected','used');
`)
	if err != nil {
		return err
	}

	// used без used_at: проставим used_at=updated_at/created_at
	_, _ = s.db.ExecContext(ctx, `
UPDATE posts
SET used_at = CASE
  WHEN used_at=0 AND updated_at>0 THEN updated_at
  WHEN used_at=0 AND created_at>0 THEN created_at
  ELSE used_at
END
WHERE status='used';
`)

	return nil
}

func (s *Store) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%s);`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		out[name] = true
	}
	return out, rows.Err()
}

// UpsertPosts: новые вставляются со статусом new, у существующих обновляется
// контент и счётчики, статус не трогаем.
func (s *Store) UpsertPosts(ctx context.Context, posts []Post) (inserted int, err error) {
	if len(posts) == 0 {
		return 0, nil
	}

	now := time.Now().Unix()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	insStmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO posts
(vk_full_id, vk_owner_id, vk_post_id, link, text, media_json, video_json, channel_id,
 likes, reposts, views, posted_at, status, created_at, updated_at, used_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 'new', ?, ?, 0);
`)
	if err != nil {
		return 0, err
	}
	defer insStmt.Close()

	updStmt, err := tx.PrepareContext(ctx, `
UPDATE posts
SET link=?, text=?, media_json=?, video_json=?, channel_id=?, likes=?, reposts=?, views=?, updated_at=?
WHERE vk_full_id=?;
`)
	if err != nil {
		return 0, err
	}
	defer updStmt.Close()

	for _, p := range posts {
		mediaJSON, videoJSON, e := encodeMedia(p)
		if e != nil {
			err = e
			return 0, err
		}
		res, e := insStmt.ExecContext(ctx, p.VKFullID, p.VKOwnerID, p.VKPostID, p.Link, p.Text,
			mediaJSON, videoJSON, p.ChannelID, p.Likes, p.Reposts, p.Views, p.PostedAt, now, now)
		if e != nil {
			err = e
			return 0, err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted += int(n)
			continue
		}

		if _, e := updStmt.ExecContext(ctx, p.Link, p.Text, mediaJSON, videoJSON, p.ChannelID,
			p.Likes, p.Reposts, p.Views, now, p.VKFullID); e != nil {
			err = e
			return 0, err
		}
	}

	err = tx.Commit()
	return inserted, err
}

func encodeMedia(p Post) (string, string, error) {
	media := p.MediaURLs
	if media == nil {
		media = []string{}
	}
	videos := p.Videos
	if videos == nil {
		videos = []Video{}
	}
	m, err := json.Marshal(media)
	if err != nil {
		return "", "", err
	}
	v, err := json.Marshal(videos)
	if err != nil {
		return "", "", err
	}
	return string(m), string(v), nil
}

// Stats: счётчики по всем известным статусам, нули тоже.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM posts GROUP BY status;`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int, len(Statuses))
	for _, st := range Statuses {
		out[st] = 0
	}
	for rows.Next() {
		var st string
		var c int
		if err := rows.Scan(&st, &c); err != nil {
			return nil, err
		}
		if ValidStatus(st) {
			out[st] = c
		}
	}
	return out, rows.Err()
}

func (s *Store) CountByStatus(ctx context.Context, status string) (int, error) {
	if !ValidStatus(status) {
		return 0, fmt.Errorf("unsupported status: %s", status)
	}
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE status=?;`, status)
	var n int
	return n, row.Scan(&n)
}

const postColumns = `vk_owner_id, vk_post_id, vk_full_id, link, text, media_json, video_json, channel_id,
likes, reposts, views, posted_at, status, created_at, updated_at, used_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPost(sc scanner) (Post, error) {
	var p Post
	var mediaJSON, videoJSON string
	err := sc.Scan(&p.VKOwnerID, &p.VKPostID, &p.VKFullID, &p.Link, &p.Text, &mediaJSON, &videoJSON, &p.ChannelID,
		&p.Likes, &p.Reposts, &p.Views, &p.PostedAt, &p.Status, &p.CreatedAt, &p.UpdatedAt, &p.UsedAt)
	if err != nil {
		return Post{}, err
	}
	_ = json.Unmarshal([]byte(mediaJSON), &p.MediaURLs)
	_ = json.Unmarshal([]byte(videoJSON), &p.Videos)
	return p, nil
}

// GetByVKFullID: нет такого поста -> (nil, nil).
func (s *Store) GetByVKFullID(ctx context.Context, vkFullID string) (*Post, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE vk_full_id=?;`, vkFullID)

	p, err := scanPost(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SetStatus(ctx context.Context, vkFullID, status string) error {
	if !ValidStatus(status) {
		return fmt.Errorf("unsupported status: %s", status)
	}
	now := time.Now().Unix()
	usedAt := int64(0)
	if status == StatusUsed {
		usedAt = now
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE posts
SET status=?, updated_at=?, used_at=?
WHERE vk_full_id=?;
`, status, now, usedAt, vkFullID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, vkFullID)
	}
	return nil
}

// PickRandom: случайный пост с заданным статусом, нет таких -> (nil, nil).
func (s *Store) PickRandom(ctx context.Context, status string) (*Post, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("unsupported status: %s", status)
	}
	row := s.db.QueryRowContext(ctx, `
SELECT `+postColumns+`
FROM posts
WHERE status=?
ORDER BY RANDOM()
LIMIT 1;
`, status)

	p, err := scanPost(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListByStatusPage(ctx context.Context, status string, limit, offset int) ([]Post, error) {
	if !ValidStatus(status) {
		return nil, fmt.Errorf("unsupported status: %s", status)
	}
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	order := "created_at DESC"
	if status == StatusUsed {
		order = "used_at DESC"
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
SELECT %s
FROM posts
WHERE status=?
ORDER BY %s, vk_full_id
LIMIT ? OFFSET ?;
`, postColumns, order), status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
