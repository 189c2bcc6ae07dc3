package log

import (
	"fmt"
	"log/slog"
	"strings"
)

// TGBotAPIAdapter отдаёт slog.Logger библиотеке go-telegram-bot-api/v5 (tgbotapi.SetLogger).
type TGBotAPIAdapter struct {
	Logger *slog.Logger
}

func (a *TGBotAPIAdapter) Println(v ...interface{}) {
	a.Logger.Info(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (a *TGBotAPIAdapter) Printf(format string, v ...interface{}) {
	a.Logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
