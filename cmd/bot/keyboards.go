package main

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/G1P0/viralforward/internal/store"
)

func mainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔄 Sync VK", "sync"),
			tgbotapi.NewInlineKeyboardButtonData("🎲 Next", "next"),
			tgbotapi.NewInlineKeyboardButtonData("🎲×5", "next:5"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📤 Publish", "publish"),
			tgbotapi.NewInlineKeyboardButtonData("📤×5", "publish:5"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Stats", "stats"),
			tgbotapi.NewInlineKeyboardButtonData("📜 Used", "used:0"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🙋 whoami", "whoami"),
			tgbotapi.NewInlineKeyboardButtonData("🏠 Menu", "menu"),
		),
	)
}

func reviewKeyboard(p *store.Post) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "approve:"+p.VKFullID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "reject:"+p.VKFullID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("🔗 Оригинал", p.Link),
			tgbotapi.NewInlineKeyboardButtonData("🎲 Ещё", "next"),
		),
	)
}

func usedKeyboard(page, maxPage int, items []store.Post) tgbotapi.InlineKeyboardMarkup {
	// навигация
	prev := tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", fmt.Sprintf("used:%d", page-1))
	next := tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("used:%d", page+1))
	menu := tgbotapi.NewInlineKeyboardButtonData("🏠 Menu", "menu")

	if page <= 0 {
		prev = tgbotapi.NewInlineKeyboardButtonData("·", "noop")
	}
	if page >= maxPage {
		next = tgbotapi.NewInlineKeyboardButtonData("·", "noop")
	}

	rows := [][]tgbotapi.InlineKeyboardButton{
		{prev, next, menu},
	}

	row := []tgbotapi.InlineKeyboardButton{}
	for i, p := range items {
		btn := tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d", i+1), fmt.Sprintf("uopen:%d:%s", page, p.VKFullID))
		row = append(row, btn)
		if len(row) == 5 {
			rows = append(rows, row)
			row = []tgbotapi.InlineKeyboardButton{}
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func detailsKeyboard(page int, p *store.Post) tgbotapi.InlineKeyboardMarkup {
	open := tgbotapi.NewInlineKeyboardButtonURL("🔗 Оригинал", p.Link)
	back := tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", fmt.Sprintf("used:%d", page))
	toNew := tgbotapi.NewInlineKeyboardButtonData("↩️ вернуть в new", fmt.Sprintf("setnew:%s:%d", p.VKFullID, page))

	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(open),
		tgbotapi.NewInlineKeyboardRow(toNew),
		tgbotapi.NewInlineKeyboardRow(back),
	)
}

func buildUsedPageText(page, maxPage, total int, items []store.Post) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📜 used: страница %d/%d (всего %d)\n\n", page+1, maxPage+1, total)
	if len(items) == 0 {
		b.WriteString("Пусто.")
		return b.String()
	}
	for i, p := range items {
		fmt.Fprintf(&b, "%d) %s | photos=%d videos=%d | %s\n", i+1, p.VKFullID, len(p.MediaURLs), len(p.Videos), p.Link)
	}
	return b.String()
}

func buildReviewText(p *store.Post) string {
	return fmt.Sprintf("🆕 %s\n❤️ %d  🔁 %d  👁 %d\nphotos=%d videos=%d",
		p.VKFullID, p.Likes, p.Reposts, p.Views, len(p.MediaURLs), len(p.Videos))
}

func buildDetailsText(p *store.Post) string {
	used := "—"
	if p.UsedAt > 0 {
		used = time.Unix(p.UsedAt, 0).Format("2006-01-02 15:04:05")
	}
	t := strings.TrimSpace(p.Text)
	if utf8.RuneCountInString(t) > 800 {
		t = string([]rune(t)[:800]) + "…"
	}
	return fmt.Sprintf(
		"🔎 Пост\n\nvk_full_id: %s\nstatus: %s\nchannel: %d\nphotos: %d\nvideos: %d\nused_at: %s\nlink: %s\n\ntext:\n%s",
		p.VKFullID, p.Status, p.ChannelID, len(p.MediaURLs), len(p.Videos), used, p.Link, t,
	)
}

func formatStats(m map[string]int) string {
	return fmt.Sprintf("Статы: new=%d approved=%d rejected=%d used=%d",
		m[store.StatusNew], m[store.StatusApproved], m[store.StatusRejected], m[store.StatusUsed])
}
