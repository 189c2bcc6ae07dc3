package vk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"time"
)

// порядок важен: первое найденное качество побеждает
var qualityOrder = []string{"mp4_1080", "mp4_720", "mp4_480", "mp4_360", "mp4_240"}

// playerMP4: эвристика по чужому HTML, стабильным форматом не является.
var playerMP4 = regexp.MustCompile(`https://[^"']*mp4[^"']*`)

const maxPlayerPage = 4 << 20

// PageFetcher отдаёт тело страницы плеера текстом.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

type HTTPPageFetcher struct {
	HTTP *http.Client
}

func NewHTTPPageFetcher(h *http.Client) *HTTPPageFetcher {
	if h == nil {
		h = &http.Client{Timeout: 20 * time.Second}
	}
	return &HTTPPageFetcher{HTTP: h}
}

func (f *HTTPPageFetcher) FetchPage(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) viralforward")

	resp, err := f.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("player page: status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlayerPage))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// VideoExtractor ищет прямой URL ролика: сначала files, потом страница плеера.
// Ошибок наружу не отдаёт, только ("", false).
type VideoExtractor struct {
	pages PageFetcher
	log   *slog.Logger
}

func NewVideoExtractor(pages PageFetcher, log *slog.Logger) *VideoExtractor {
	if log == nil {
		log = slog.Default()
	}
	return &VideoExtractor{pages: pages, log: log}
}

func (e *VideoExtractor) Extract(ctx context.Context, v VideoAttachment) (string, bool) {
	if u, ok := directFile(v.Files); ok {
		return u, true
	}
	if v.Player == "" || e.pages == nil {
		return "", false
	}

	body, err := e.pages.FetchPage(ctx, v.Player)
	if err != nil {
		e.log.WarnContext(ctx, "player page fetch failed", "player", v.Player, "error", err)
		return "", false
	}
	if u := playerMP4.FindString(body); u != "" {
		return u, true
	}
	e.log.DebugContext(ctx, "no mp4 on player page", "player", v.Player)
	return "", false
}

func directFile(files map[string]string) (string, bool) {
	for _, q := range qualityOrder {
		if u, ok := files[q]; ok && u != "" {
			return u, true
		}
	}
	return "", false
}

// VideoSource: video.get.
type VideoSource interface {
	Video(ctx context.Context, ref string) (VideoAttachment, error)
}

// VideoLocator достаёт свежий играбельный URL по ref из поста.
type VideoLocator struct {
	Source    VideoSource
	Extractor *VideoExtractor
}

func (l *VideoLocator) PlayableURL(ctx context.Context, ref string) (string, bool) {
	v, err := l.Source.Video(ctx, ref)
	if err != nil {
		l.Extractor.log.WarnContext(ctx, "video.get failed", "ref", ref, "error", err)
		return "", false
	}
	return l.Extractor.Extract(ctx, v)
}
