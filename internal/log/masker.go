package log

import (
	"context"
	"io"
	"log/slog"
	"regexp"
)

// MaskingHandler: обёртка над slog.Handler, вырезает токены телеги и VK из логов.
type MaskingHandler struct {
	handler slog.Handler
}

func NewMaskingHandler(handler slog.Handler) *MaskingHandler {
	return &MaskingHandler{handler: handler}
}

var secretPatterns = []struct {
	re   *regexp.Regexp
	mask string
}{
	// botID:token из URL api.telegram.org
	{regexp.MustCompile(`\bbot\d+:[A-Za-z0-9_-]{35,}`), "bot***:***masked-token***"},
	// access_token в query VK (ошибки net/http печатают URL целиком)
	{regexp.MustCompile(`access_token=[^&\s"']+`), "access_token=***"},
	// сам VK-токен нового формата
	{regexp.MustCompile(`\bvk1\.a\.[A-Za-z0-9_-]{20,}`), "vk1.a.***"},
}

func maskSecrets(text string) string {
	for _, p := range secretPatterns {
		text = p.re.ReplaceAllString(text, p.mask)
	}
	return text
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	// новая запись вместо Clone(): атрибуты оригинала не трогаем, кладём замаскированные копии
	r := slog.NewRecord(record.Time, record.Level, maskSecrets(record.Message), record.PC)
	record.Attrs(func(a slog.Attr) bool {
		r.AddAttrs(slog.Attr{Key: a.Key, Value: maskValue(a.Value)})
		return true
	})
	return h.handler.Handle(ctx, r)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	masked := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		masked[i] = slog.Attr{Key: a.Key, Value: maskValue(a.Value)}
	}
	return &MaskingHandler{handler: h.handler.WithAttrs(masked)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{handler: h.handler.WithGroup(name)}
}

func maskValue(v slog.Value) slog.Value {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return slog.StringValue(maskSecrets(v.String()))
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return slog.StringValue(maskSecrets(err.Error()))
		}
		return v
	case slog.KindGroup:
		group := v.Group()
		masked := make([]slog.Attr, len(group))
		for i, a := range group {
			masked[i] = slog.Attr{Key: a.Key, Value: maskValue(a.Value)}
		}
		return slog.GroupValue(masked...)
	default:
		return v
	}
}

// New собирает логгер по LOG_LEVEL/LOG_FORMAT с маскировкой секретов.
func New(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(NewMaskingHandler(handler))
}
