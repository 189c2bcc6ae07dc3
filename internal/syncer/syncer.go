// Package syncer тянет стены сообществ из sources.yml в локальную БД.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/G1P0/viralforward/internal/sources"
	"github.com/G1P0/viralforward/internal/store"
	"github.com/G1P0/viralforward/internal/vk"
)

type Resolver interface {
	Resolve(ctx context.Context, reference string) (string, error)
}

type Wall interface {
	FetchWall(ctx context.Context, ownerID string, limit int) ([]vk.WallItem, error)
}

type Store interface {
	GetSource(ctx context.Context, reference string) (*store.ResolvedSource, error)
	SaveSource(ctx context.Context, reference, communityID string) error
	UpsertPosts(ctx context.Context, posts []store.Post) (int, error)
}

type SourceReport struct {
	Ref         string `json:"ref"`
	CommunityID string `json:"community_id,omitempty"`
	Fetched     int    `json:"fetched"`
	Extracted   int    `json:"extracted"`
	Inserted    int    `json:"inserted"`
	Skipped     bool   `json:"skipped,omitempty"`
	Error       string `json:"error,omitempty"`
}

type Report struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration"`
	Sources   []SourceReport `json:"sources"`
	Inserted  int            `json:"inserted"`
	Skipped   int            `json:"skipped"`
}

type Syncer struct {
	resolver Resolver
	wall     Wall
	store    Store
	log      *slog.Logger
}

func New(r Resolver, w Wall, st Store, log *slog.Logger) *Syncer {
	if log == nil {
		log = slog.Default()
	}
	return &Syncer{resolver: r, wall: w, store: st, log: log}
}

// Run проходит источники по порядку. Ненайденное сообщество или упавшая стена пропускаются,
// а протухший токен VK (как и ошибка БД) останавливает весь прогон.
func (s *Syncer) Run(ctx context.Context, srcs []sources.Source) (rep Report, err error) {
	rep = Report{RunID: uuid.NewString(), StartedAt: time.Now()}
	log := s.log.With("run_id", rep.RunID)
	log.InfoContext(ctx, "sync started", "sources", len(srcs))

	defer func() {
		rep.Duration = time.Since(rep.StartedAt)
	}()

	for _, src := range srcs {
		if err = ctx.Err(); err != nil {
			return rep, err
		}

		var sr SourceReport
		sr, err = s.syncSource(ctx, log, src)
		rep.Sources = append(rep.Sources, sr)
		rep.Inserted += sr.Inserted
		if sr.Skipped {
			rep.Skipped++
		}
		if err != nil {
			log.ErrorContext(ctx, "sync aborted", "ref", src.Ref, "error", err)
			return rep, err
		}
	}

	log.InfoContext(ctx, "sync finished", "inserted", rep.Inserted, "skipped", rep.Skipped)
	return rep, nil
}

func (s *Syncer) syncSource(ctx context.Context, log *slog.Logger, src sources.Source) (SourceReport, error) {
	sr := SourceReport{Ref: src.Ref}
	skip := func(err error) (SourceReport, error) {
		sr.Skipped = true
		sr.Error = err.Error()
		log.WarnContext(ctx, "source skipped", "ref", src.Ref, "error", err)
		return sr, nil
	}

	id, err := s.communityID(ctx, src.Ref)
	if err != nil {
		var nf *vk.NotFoundError
		if errors.As(err, &nf) {
			return skip(err)
		}
		return sr, err
	}
	sr.CommunityID = id

	owner := "-" + id
	items, err := s.wall.FetchWall(ctx, owner, src.WallLimit)
	if err != nil {
		if errors.Is(err, vk.ErrAuth) || ctx.Err() != nil {
			return sr, err
		}
		return skip(fmt.Errorf("fetch wall %s: %w", owner, err))
	}
	sr.Fetched = len(items)

	parsed := vk.ExtractPosts(owner, items)
	sr.Extracted = len(parsed)

	ins, err := s.store.UpsertPosts(ctx, ToStorePosts(parsed, src.ChannelID))
	if err != nil {
		return sr, fmt.Errorf("store posts of %s: %w", src.Ref, err)
	}
	sr.Inserted = ins
	log.InfoContext(ctx, "source synced", "ref", src.Ref, "community_id", id,
		"fetched", sr.Fetched, "extracted", sr.Extracted, "inserted", ins)
	return sr, nil
}

// communityID: сначала кеш из таблицы sources, потом резолвер.
func (s *Syncer) communityID(ctx context.Context, ref string) (string, error) {
	cached, err := s.store.GetSource(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("load source %q: %w", ref, err)
	}
	if cached != nil && cached.CommunityID != "" {
		return cached.CommunityID, nil
	}

	id, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	if err := s.store.SaveSource(ctx, ref, id); err != nil {
		return "", fmt.Errorf("save source %q: %w", ref, err)
	}
	return id, nil
}

func ToStorePosts(parsed []vk.Post, channelID int64) []store.Post {
	posts := make([]store.Post, 0, len(parsed))
	for _, p := range parsed {
		videos := make([]store.Video, 0, len(p.Videos))
		for _, v := range p.Videos {
			videos = append(videos, store.Video(v))
		}
		posts = append(posts, store.Post{
			VKOwnerID: p.VKOwnerID,
			VKPostID:  p.VKPostID,
			VKFullID:  p.VKFullID,
			Link:      p.Link,
			Text:      p.Text,
			ChannelID: channelID,
			MediaURLs: p.MediaURLs,
			Videos:    videos,
			Likes:     p.Likes,
			Reposts:   p.Reposts,
			Views:     p.Views,
			PostedAt:  p.PostedAt,
		})
	}
	return posts
}
