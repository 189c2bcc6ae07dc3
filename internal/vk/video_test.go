package vk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPages struct {
	body  string
	err   error
	calls int
}

func (s *stubPages) FetchPage(ctx context.Context, url string) (string, error) {
	s.calls++
	return s.body, s.err
}

func quietExtractor(p PageFetcher) *VideoExtractor {
	return NewVideoExtractor(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestVideoExtractor_PrefersHigherQuality(t *testing.T) {
	pages := &stubPages{}
	e := quietExtractor(pages)

	// обход map случайный, гоняем несколько раз
	for i := 0; i < 20; i++ {
		u, ok := e.Extract(context.Background(), VideoAttachment{
			Files:  map[string]string{"mp4_480": "A", "mp4_240": "B"},
			Player: "https://vk.com/video_ext.php?oid=-1&id=2",
		})
		require.True(t, ok)
		assert.Equal(t, "A", u)
	}
	assert.Zero(t, pages.calls, "плеер не нужен, если есть files")
}

func TestVideoExtractor_QualityOrder(t *testing.T) {
	files := map[string]string{
		"mp4_240":  "240",
		"mp4_360":  "360",
		"mp4_720":  "720",
		"mp4_1080": "1080",
		"hls":      "https://vk.example/video.m3u8",
	}
	u, ok := directFile(files)
	require.True(t, ok)
	assert.Equal(t, "1080", u)

	_, ok = directFile(map[string]string{"hls": "https://vk.example/video.m3u8"})
	assert.False(t, ok)
}

func TestVideoExtractor_ScrapesPlayerPage(t *testing.T) {
	pages := &stubPages{body: `<html><a href="https://cdn.example/x.mp4?tok=1">watch</a></html>`}

	u, ok := quietExtractor(pages).Extract(context.Background(), VideoAttachment{
		Files:  map[string]string{},
		Player: "https://vk.com/video_ext.php?oid=-1&id=2",
	})

	require.True(t, ok)
	assert.Equal(t, "https://cdn.example/x.mp4?tok=1", u)
	assert.Equal(t, 1, pages.calls)
}

func TestVideoExtractor_NoPlayerIsAbsent(t *testing.T) {
	pages := &stubPages{body: `"https://cdn.example/x.mp4"`}

	u, ok := quietExtractor(pages).Extract(context.Background(), VideoAttachment{})

	assert.False(t, ok)
	assert.Empty(t, u)
	assert.Zero(t, pages.calls)
}

func TestVideoExtractor_FetchErrorIsAbsent(t *testing.T) {
	pages := &stubPages{err: errors.New("dial tcp: i/o timeout")}

	u, ok := quietExtractor(pages).Extract(context.Background(), VideoAttachment{Player: "https://vk.com/video_ext.php"})

	assert.False(t, ok)
	assert.Empty(t, u)
}

func TestVideoExtractor_PageWithoutMP4(t *testing.T) {
	pages := &stubPages{body: `<html>video is restricted</html>`}

	_, ok := quietExtractor(pages).Extract(context.Background(), VideoAttachment{Player: "https://vk.com/video_ext.php"})

	assert.False(t, ok)
}

func TestHTTPPageFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			fmt.Fprint(w, `var playerParams = {"url":"https://cdn.example/v.mp4?x=1"};`)
		default:
			http.Error(w, "gone", http.StatusGone)
		}
	}))
	defer srv.Close()

	f := NewHTTPPageFetcher(srv.Client())

	body, err := f.FetchPage(context.Background(), srv.URL+"/ok")
	require.NoError(t, err)
	assert.Contains(t, body, "v.mp4")

	_, err = f.FetchPage(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)

	e := quietExtractor(f)
	u, ok := e.Extract(context.Background(), VideoAttachment{Player: srv.URL + "/ok"})
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example/v.mp4?x=1", u)

	_, ok = e.Extract(context.Background(), VideoAttachment{Player: srv.URL + "/missing"})
	assert.False(t, ok)

	srv.Close()
	_, ok = e.Extract(context.Background(), VideoAttachment{Player: srv.URL + "/ok"})
	assert.False(t, ok, "сетевая ошибка не должна вылетать наружу")
}

type stubVideoSource struct {
	video VideoAttachment
	err   error
}

func (s stubVideoSource) Video(ctx context.Context, ref string) (VideoAttachment, error) {
	return s.video, s.err
}

func TestVideoLocator_PlayableURL(t *testing.T) {
	e := quietExtractor(&stubPages{})

	l := &VideoLocator{
		Source:    stubVideoSource{video: VideoAttachment{Files: map[string]string{"mp4_360": "https://vk.example/360.mp4"}}},
		Extractor: e,
	}
	u, ok := l.PlayableURL(context.Background(), "-1_2")
	require.True(t, ok)
	assert.Equal(t, "https://vk.example/360.mp4", u)

	l.Source = stubVideoSource{err: ErrAuth}
	_, ok = l.PlayableURL(context.Background(), "-1_2")
	assert.False(t, ok)
}
