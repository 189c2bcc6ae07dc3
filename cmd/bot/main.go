package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/G1P0/viralforward/internal/app"
	"github.com/G1P0/viralforward/internal/config"
	"github.com/G1P0/viralforward/internal/forward"
	applog "github.com/G1P0/viralforward/internal/log"
	"github.com/G1P0/viralforward/internal/store"
	"github.com/G1P0/viralforward/internal/vk"
)

const (
	perPageUsed = 10
	maxBatch    = 10
)

type panel struct {
	*app.App
	bot *tgbotapi.BotAPI
	fwd *forward.Forwarder
}

func main() {
	cfg := config.MustLoad()
	if err := cfg.RequireTelegram(); err != nil {
		log.Fatal(err)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	a.Log.Info("config loaded", "admins", len(cfg.TGAdminIDs), "archive_tag", cfg.ArchiveTag, "db", cfg.DBPath)

	// --- tg bot ---
	_ = tgbotapi.SetLogger(&applog.TGBotAPIAdapter{Logger: a.Log.With("component", "tgbotapi")})
	bot, err := tgbotapi.NewBotAPI(cfg.TGBotToken)
	if err != nil {
		a.Log.Error("telegram login failed", "error", err)
		return
	}
	bot.Debug = false
	a.Log.Info("bot started", "username", bot.Self.UserName)

	p := &panel{
		App: a,
		bot: bot,
		fwd: forward.New(bot, a.Videos, cfg.ArchiveTag, a.Log),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- updates loop ---
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		bot.StopReceivingUpdates()
	}()

	for upd := range updates {
		// callbacks (кнопки)
		if upd.CallbackQuery != nil {
			p.handleCallback(ctx, upd.CallbackQuery)
			continue
		}
		if upd.Message != nil {
			p.handleMessage(ctx, upd.Message)
		}
	}
	a.Log.Info("bot stopped")
}

func (p *panel) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.From == nil || !m.IsCommand() {
		return
	}
	chatID := m.Chat.ID
	userID := m.From.ID

	// /whoami доступна всем
	if m.Command() == "whoami" {
		p.reply(chatID, fmt.Sprintf("user_id=%d\nchat_id=%d", userID, chatID))
		return
	}

	// start/help тоже доступен всем, но меню показываем только админам
	if m.Command() == "start" || m.Command() == "help" {
		if p.Cfg.IsAdmin(userID) {
			p.sendMenu(chatID)
		} else {
			p.reply(chatID, "🚫 Нет доступа.\nСделай /whoami и добавь свой user_id в TG_ADMIN_IDS, потом перезапусти бота.")
		}
		return
	}

	// остальные команды: только админы
	if !p.Cfg.IsAdmin(userID) {
		p.reply(chatID, "🚫 Нет доступа")
		return
	}

	args := strings.TrimSpace(m.CommandArguments())
	switch m.Command() {
	case "sync":
		p.doSync(ctx, chatID)
		p.sendMenu(chatID)

	case "next":
		p.doNext(ctx, chatID, parseCount(args, 1))

	case "next5":
		p.doNext(ctx, chatID, 5)

	case "publish":
		p.doPublish(ctx, chatID, parseCount(args, 1))
		p.sendMenu(chatID)

	case "stats":
		p.sendStats(ctx, chatID)

	case "used":
		page := 0
		_ = tryAtoi(args, &page)
		p.sendUsedPage(ctx, chatID, 0, page)

	case "resolve":
		p.doResolve(ctx, chatID, args)

	default:
		p.reply(chatID, "Не знаю такую команду. Жми Menu или /help")
	}
}

func (p *panel) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	chatID := cq.Message.Chat.ID
	msgID := cq.Message.MessageID

	// доступ
	if !p.Cfg.IsAdmin(cq.From.ID) {
		_ = p.answerCallback(cq.ID, "Нет доступа", true)
		return
	}
	// всегда гасим “крутилку”
	_ = p.answerCallback(cq.ID, "", false)

	parts := strings.Split(strings.TrimSpace(cq.Data), ":")

	switch parts[0] {
	case "noop":
		// ничего

	case "menu":
		p.editMenu(chatID, msgID)

	case "whoami":
		p.reply(chatID, fmt.Sprintf("user_id=%d\nchat_id=%d", cq.From.ID, chatID))

	case "stats":
		p.sendStats(ctx, chatID)
		p.sendMenu(chatID)

	case "sync":
		p.doSync(ctx, chatID)
		p.sendMenu(chatID)

	case "next":
		// next or next:5
		n := 1
		if len(parts) >= 2 {
			n = parseCount(parts[1], 1)
		}
		p.doNext(ctx, chatID, n)

	case "publish":
		n := 1
		if len(parts) >= 2 {
			n = parseCount(parts[1], 1)
		}
		p.doPublish(ctx, chatID, n)
		p.sendMenu(chatID)

	case "approve", "reject":
		// approve:<vkfullid>
		if len(parts) < 2 {
			return
		}
		status := store.StatusApproved
		if parts[0] == "reject" {
			status = store.StatusRejected
		}
		p.setReviewStatus(ctx, chatID, msgID, parts[1], status)

	case "used":
		// used:<page>
		page := 0
		if len(parts) >= 2 {
			_ = tryAtoi(parts[1], &page)
		}
		p.sendUsedPage(ctx, chatID, msgID, page)

	case "uopen":
		// uopen:<page>:<vkfullid>
		if len(parts) < 3 {
			return
		}
		page := 0
		_ = tryAtoi(parts[1], &page)

		post, err := p.Store.GetByVKFullID(ctx, parts[2])
		if err != nil || post == nil {
			p.reply(chatID, "Не нашёл этот пост в БД.")
			return
		}
		p.sendUsedDetails(chatID, msgID, page, post)

	case "setnew":
		// setnew:<vkfullid>:<page>
		if len(parts) < 3 {
			return
		}
		page := 0
		_ = tryAtoi(parts[2], &page)

		if err := p.Store.SetStatus(ctx, parts[1], store.StatusNew); err != nil {
			p.reply(chatID, fmt.Sprintf("Ошибка БД: %v", err))
			return
		}
		p.sendUsedPage(ctx, chatID, msgID, page)

	default:
		p.editMenu(chatID, msgID)
	}
}

func (p *panel) doSync(ctx context.Context, chatID int64) {
	p.reply(chatID, "🔄 Синхронизирую с VK...")

	rep, err := p.Sync(ctx)
	var authErr *vk.AuthError
	switch {
	case errors.As(err, &authErr), errors.Is(err, vk.ErrAuth):
		p.reply(chatID, "🔑 VK не принял токен, синк остановлен. Обнови VK_TOKEN.")
		return
	case err != nil:
		p.reply(chatID, fmt.Sprintf("Ошибка синка: %v", err))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Добавлено %d новых (run %s).\n", rep.Inserted, shortID(rep.RunID))
	for _, s := range rep.Sources {
		if s.Skipped {
			fmt.Fprintf(&b, "⏭ %s: %s\n", s.Ref, s.Error)
			continue
		}
		fmt.Fprintf(&b, "• %s (club%s): +%d из %d\n", s.Ref, s.CommunityID, s.Inserted, s.Extracted)
	}
	stats, _ := p.Store.Stats(ctx)
	b.WriteString(formatStats(stats))
	p.reply(chatID, b.String())
}

// doNext показывает новые посты админу с кнопками модерации. Статус не меняется, пока не нажали.
func (p *panel) doNext(ctx context.Context, chatID int64, n int) {
	seen := map[string]bool{}
	shown := 0
	for i := 0; i < n; i++ {
		post, err := p.Store.PickRandom(ctx, store.StatusNew)
		if err != nil {
			p.reply(chatID, fmt.Sprintf("Ошибка БД: %v", err))
			break
		}
		if post == nil {
			break
		}
		if seen[post.VKFullID] {
			continue
		}
		seen[post.VKFullID] = true

		if err := p.fwd.Send(ctx, chatID, post); err != nil {
			p.Log.Warn("preview failed", "post", post.VKFullID, "error", err)
			p.reply(chatID, fmt.Sprintf("Не смог показать %s: %v", post.VKFullID, err))
			continue
		}
		msg := tgbotapi.NewMessage(chatID, buildReviewText(post))
		msg.ReplyMarkup = reviewKeyboard(post)
		_, _ = p.bot.Send(msg)
		shown++
	}

	if shown == 0 {
		stats, _ := p.Store.Stats(ctx)
		p.reply(chatID, "⚠️ Новых постов нет.\n"+formatStats(stats))
		p.sendMenu(chatID)
	}
}

func (p *panel) setReviewStatus(ctx context.Context, chatID int64, msgID int, vkFullID, status string) {
	if err := p.Store.SetStatus(ctx, vkFullID, status); err != nil {
		p.reply(chatID, fmt.Sprintf("Ошибка БД: %v", err))
		return
	}
	mark := "✅ одобрен"
	if status == store.StatusRejected {
		mark = "❌ отклонён"
	}
	edit := tgbotapi.NewEditMessageText(chatID, msgID, fmt.Sprintf("%s %s", vkFullID, mark))
	_, _ = p.bot.Send(edit)
}

// doPublish отправляет одобренные посты в их канал и помечает used.
func (p *panel) doPublish(ctx context.Context, chatID int64, n int) {
	sent := 0
	for i := 0; i < n; i++ {
		post, err := p.Store.PickRandom(ctx, store.StatusApproved)
		if err != nil {
			p.reply(chatID, fmt.Sprintf("Ошибка БД: %v", err))
			break
		}
		if post == nil {
			break
		}

		target := post.ChannelID
		if target == 0 {
			target = p.Cfg.TGChannelID
		}
		if target == 0 {
			p.reply(chatID, "Не задан канал: укажи channel в sources.yml или TG_CHANNEL_ID.")
			break
		}

		if err := p.fwd.Send(ctx, target, post); err != nil {
			p.Log.Error("publish failed", "post", post.VKFullID, "channel", target, "error", err)
			p.reply(chatID, fmt.Sprintf("Ошибка отправки: %v", err))
			break
		}

		if err := p.Store.SetStatus(ctx, post.VKFullID, store.StatusUsed); err != nil {
			p.reply(chatID, fmt.Sprintf("Ошибка БД (не смог пометить used): %v", err))
			break
		}
		p.Log.Info("post published", "post", post.VKFullID, "channel", target)
		sent++
	}

	stats, _ := p.Store.Stats(ctx)
	if sent == 0 {
		p.reply(chatID, "⚠️ Нечего публиковать.\n"+formatStats(stats))
		return
	}
	p.reply(chatID, fmt.Sprintf("✅ Опубликовано: %d\n%s", sent, formatStats(stats)))
}

func (p *panel) doResolve(ctx context.Context, chatID int64, ref string) {
	if ref == "" {
		p.reply(chatID, "Использование: /resolve <ссылка | screen_name | id>")
		return
	}
	id, err := p.Resolver.Resolve(ctx, ref)
	var nf *vk.NotFoundError
	switch {
	case errors.Is(err, vk.ErrAuth):
		p.reply(chatID, "🔑 VK не принял токен.")
	case errors.As(err, &nf):
		p.reply(chatID, fmt.Sprintf("🤷 Сообщество %q не найдено.", ref))
	case err != nil:
		p.reply(chatID, fmt.Sprintf("Ошибка VK: %v", err))
	default:
		p.reply(chatID, fmt.Sprintf("%s → %s (https://vk.com/club%s)", ref, id, id))
	}
}

func (p *panel) sendStats(ctx context.Context, chatID int64) {
	stats, err := p.Store.Stats(ctx)
	if err != nil {
		p.reply(chatID, fmt.Sprintf("Ошибка БД: %v", err))
		return
	}
	p.reply(chatID, formatStats(stats))
}

func (p *panel) sendUsedPage(ctx context.Context, chatID int64, msgID int, page int) {
	if page < 0 {
		page = 0
	}

	total, err := p.Store.CountByStatus(ctx, store.StatusUsed)
	if err != nil {
		p.reply(chatID, fmt.Sprintf("Ошибка БД: %v", err))
		return
	}

	maxPage := 0
	if total > 0 {
		maxPage = (total - 1) / perPageUsed
	}
	if page > maxPage {
		page = maxPage
	}

	items, err := p.Store.ListByStatusPage(ctx, store.StatusUsed, perPageUsed, page*perPageUsed)
	if err != nil {
		p.reply(chatID, fmt.Sprintf("Ошибка БД: %v", err))
		return
	}

	text := buildUsedPageText(page, maxPage, total, items)
	markup := usedKeyboard(page, maxPage, items)

	if msgID != 0 {
		edit := tgbotapi.NewEditMessageText(chatID, msgID, text)
		edit.ReplyMarkup = &markup
		_, _ = p.bot.Send(edit)
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = markup
	_, _ = p.bot.Send(msg)
}

func (p *panel) sendUsedDetails(chatID int64, msgID int, page int, post *store.Post) {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, buildDetailsText(post))
	markup := detailsKeyboard(page, post)
	edit.ReplyMarkup = &markup
	_, _ = p.bot.Send(edit)
}

func (p *panel) sendMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "Панель управления:")
	msg.ReplyMarkup = mainMenu()
	_, _ = p.bot.Send(msg)
}

func (p *panel) editMenu(chatID int64, msgID int) {
	edit := tgbotapi.NewEditMessageText(chatID, msgID, "Панель управления:")
	m := mainMenu()
	edit.ReplyMarkup = &m
	_, _ = p.bot.Send(edit)
}

func (p *panel) reply(chatID int64, text string) {
	if _, err := p.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		p.Log.Warn("reply failed", "chat_id", chatID, "error", err)
	}
}

func (p *panel) answerCallback(callbackID, text string, alert bool) error {
	cfg := tgbotapi.CallbackConfig{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	}
	_, err := p.bot.Request(cfg)
	return err
}

func parseCount(s string, def int) int {
	n := def
	if err := tryAtoi(s, &n); err != nil || n < 1 {
		n = def
	}
	if n > maxBatch {
		n = maxBatch
	}
	return n
}

func tryAtoi(s string, out *int) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return err
	}
	*out = v
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
