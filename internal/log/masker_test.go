package log

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const tgToken = "bot8462697481:AAEJSXuTcb2F1Js2sWiK0TVWvxbHL9xX05Q"

func TestMaskSecrets(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "telegram token in url",
			input:    `Post "https://api.telegram.org/` + tgToken + `/getUpdates": net/http: request canceled`,
			expected: `Post "https://api.telegram.org/bot***:***masked-token***/getUpdates": net/http: request canceled`,
		},
		{
			name:     "vk access_token in query",
			input:    `Get "https://api.vk.com/method/wall.get?access_token=abcdef123&owner_id=-1": EOF`,
			expected: `Get "https://api.vk.com/method/wall.get?access_token=***&owner_id=-1": EOF`,
		},
		{
			name:     "bare vk token",
			input:    "token vk1.a.Zk3jQ0x9s8d7f6g5h4j3k2l1 loaded",
			expected: "token vk1.a.*** loaded",
		},
		{
			name:     "nothing to mask",
			input:    "community resolved",
			expected: "community resolved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, maskSecrets(tt.input))
		})
	}
}

func TestMaskingHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMaskingHandler(slog.NewJSONHandler(&buf, nil)))

	logger.With(slog.String("token", tgToken)).Info("send failed "+tgToken,
		"error", errors.New("Get https://api.vk.com/method/groups.getById?access_token=secret42: timeout"),
		slog.Group("req", slog.String("url", "https://api.telegram.org/"+tgToken+"/sendVideo")),
		"count", 3,
	)

	out := buf.String()
	assert.NotContains(t, out, tgToken)
	assert.NotContains(t, out, "secret42")
	assert.Contains(t, out, "***masked-token***")
	assert.Contains(t, out, "access_token=***")
	assert.Contains(t, out, `"count":3`)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "text")

	logger.Info("hidden")
	logger.Warn("shown", "token", tgToken)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.Contains(out, "level=WARN"))
	assert.NotContains(t, out, tgToken)
}

func TestTGBotAPIAdapter(t *testing.T) {
	var buf bytes.Buffer
	a := &TGBotAPIAdapter{Logger: New(&buf, "info", "json")}

	a.Printf("Endpoint: %s, response: %s", "getMe", tgToken)
	a.Println("plain", "line")

	out := buf.String()
	assert.Contains(t, out, "Endpoint: getMe")
	assert.Contains(t, out, "plain line")
	assert.NotContains(t, out, tgToken)
}
