// Package forward отправляет пост из БД в телеграм: видео, альбом, превью или просто текст.
package forward

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/G1P0/viralforward/internal/store"
)

const (
	captionLimit = 1024
	messageLimit = 4096
	maxAlbum     = 10

	videoLabel = "▶️ Видео"
)

var ErrEmptyPost = errors.New("forward: post has nothing to send")

// Bot: то, что нужно от *tgbotapi.BotAPI.
type Bot interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	SendMediaGroup(c tgbotapi.MediaGroupConfig) ([]tgbotapi.Message, error)
}

// VideoURLs: свежий mp4 по ref из поста (vk.VideoLocator).
type VideoURLs interface {
	PlayableURL(ctx context.Context, ref string) (string, bool)
}

type Forwarder struct {
	bot        Bot
	videos     VideoURLs
	archiveTag string
	log        *slog.Logger
}

func New(bot Bot, videos VideoURLs, archiveTag string, log *slog.Logger) *Forwarder {
	if log == nil {
		log = slog.Default()
	}
	return &Forwarder{bot: bot, videos: videos, archiveTag: archiveTag, log: log}
}

// Send: видео -> альбом -> превью видео -> текст. Что смогли отправить первым, то и отправили.
func (f *Forwarder) Send(ctx context.Context, chatID int64, p *store.Post) error {
	if p == nil {
		return ErrEmptyPost
	}
	caption := BuildCaptionHTML(p.Text, p.Link, f.archiveTag, captionLimit)

	if f.videos != nil {
		for _, v := range p.Videos {
			u, ok := f.videos.PlayableURL(ctx, v.Ref)
			if !ok {
				continue
			}
			err := f.sendVideo(chatID, u, caption)
			if err == nil {
				return nil
			}
			// телега не всегда может скачать файл по URL (лимит 20 МБ), идём дальше
			f.log.WarnContext(ctx, "send video failed", "post", p.VKFullID, "ref", v.Ref, "error", err)
			break
		}
	}

	if len(p.MediaURLs) > 0 {
		return f.sendAlbum(chatID, p.MediaURLs, caption)
	}

	for _, v := range p.Videos {
		if v.Thumb == "" {
			continue
		}
		withVideo := BuildCaptionHTML(p.Text, p.Link, f.archiveTag, captionLimit-utf8.RuneCountInString(videoLabel)-1)
		withVideo += fmt.Sprintf("\n"+`<a href="%s">%s</a>`, html.EscapeString(v.Link), videoLabel)
		return f.sendAlbum(chatID, []string{v.Thumb}, withVideo)
	}

	if strings.TrimSpace(p.Text) == "" && len(p.Videos) == 0 {
		return ErrEmptyPost
	}
	msg := tgbotapi.NewMessage(chatID, BuildCaptionHTML(p.Text, p.Link, f.archiveTag, messageLimit))
	msg.ParseMode = tgbotapi.ModeHTML
	_, err := f.bot.Send(msg)
	return err
}

func (f *Forwarder) sendVideo(chatID int64, url, captionHTML string) error {
	msg := tgbotapi.NewVideo(chatID, tgbotapi.FileURL(url))
	msg.Caption = captionHTML
	msg.ParseMode = tgbotapi.ModeHTML
	msg.SupportsStreaming = true
	_, err := f.bot.Send(msg)
	return err
}

func (f *Forwarder) sendAlbum(chatID int64, photoURLs []string, captionHTML string) error {
	if len(photoURLs) == 0 {
		return fmt.Errorf("no photos")
	}

	// 1 фото -> обычное фото
	if len(photoURLs) == 1 {
		msg := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(photoURLs[0]))
		if captionHTML != "" {
			msg.Caption = captionHTML
			msg.ParseMode = tgbotapi.ModeHTML
		}
		_, err := f.bot.Send(msg)
		return err
	}

	// 2..10 фото -> media group
	if len(photoURLs) > maxAlbum {
		photoURLs = photoURLs[:maxAlbum]
	}

	media := make([]interface{}, 0, len(photoURLs))
	for i, u := range photoURLs {
		m := tgbotapi.NewInputMediaPhoto(tgbotapi.FileURL(u))
		if i == 0 && captionHTML != "" {
			m.Caption = captionHTML
			m.ParseMode = tgbotapi.ModeHTML
		}
		media = append(media, m)
	}

	_, err := f.bot.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media))
	return err
}

// BuildCaptionHTML: текст, тег архива и ссылка на оригинал.
// limit считается по видимым символам, режется только текст поста.
func BuildCaptionHTML(text, link, archiveTag string, limit int) string {
	const linkLabel = "Оригинал"

	tail := html.EscapeString(archiveTag) + "\n"
	tail += fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(link), linkLabel)

	t := strings.TrimSpace(text)
	if t == "" {
		return tail
	}

	budget := limit - utf8.RuneCountInString(archiveTag) - utf8.RuneCountInString(linkLabel) - 3
	if budget <= 0 {
		return tail
	}
	t = truncateRunes(t, budget)
	return html.EscapeString(t) + "\n\n" + tail
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-1])) + "…"
}
