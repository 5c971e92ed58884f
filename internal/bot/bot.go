package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"

	"medication-reminder/internal/logging"
	"medication-reminder/internal/model"
	"medication-reminder/internal/notify"
	"medication-reminder/internal/service"
)

type inputStage int

const (
	stageNone inputStage = iota
	stageName
	stageDosage
)

const (
	cbEditName        = "form:name"
	cbEditDosage      = "form:dosage"
	cbMenuOpen        = "form:menu"
	cbMenuClose       = "form:menu:close"
	cbAdd             = "form:add"
	cbFrequencyPrefix = "freq:"
	cbRemindPrefix    = "remind:"
	cbTakenPrefix     = "taken:"
)

const (
	btnEditName     = "✏️ 藥物名稱"
	btnEditDosage   = "✏️ 劑量"
	btnAdd          = "➕ 新增藥物"
	btnMenuClose    = "✖ 關閉"
	btnRemind       = "設置提醒"
	btnTaken        = "確認已服用藥物"
	menuLabelScreen = "📝 藥物提醒"
	menuLabelList   = "💊 藥物清單"
	emptyValue      = "—"
)

// API is the part of *tgbotapi.BotAPI the bot uses.
type API interface {
	notify.TelegramAPI
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Dismisser handles taps on notification dismiss buttons.
type Dismisser interface {
	Dismiss(ctx context.Context, data string) bool
}

// Bot renders the reminder screen in the owner's private chat: one form
// message edited in place, plus one card message per medication.
// All state is touched only from the update loop.
type Bot struct {
	api       API
	screen    *service.Screen
	dismisser Dismisser
	chatID    int64
	log       logging.Logger

	stage         inputStage
	formMessageID int
	cards         map[uuid.UUID]int
}

func New(api API, screen *service.Screen, chatID int64, dismisser Dismisser, log logging.Logger) *Bot {
	return &Bot{
		api:       api,
		screen:    screen,
		dismisser: dismisser,
		chatID:    chatID,
		log:       log.With("component", "bot"),
		cards:     make(map[uuid.UUID]int),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info(ctx, "start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return ctx.Err()
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			b.log.Error(ctx, "handle callback", "err", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			b.log.Error(ctx, "handle message", "err", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	if msg.Chat.ID != b.chatID {
		b.log.Warn(ctx, "message from foreign chat", "chat_id", msg.Chat.ID)
		return b.sendTextTo(msg.Chat.ID, "這是私人的藥物提醒機器人，無法為你服務。")
	}

	if msg.IsCommand() {
		b.log.Info(ctx, "command", "command", msg.Command())
		return b.handleCommand(ctx, msg)
	}

	switch strings.TrimSpace(msg.Text) {
	case menuLabelScreen:
		return b.showScreen(ctx)
	case menuLabelList:
		return b.sendCards(ctx)
	}

	if b.stage != stageNone {
		return b.handleFieldInput(ctx, msg.Text)
	}

	return b.sendText("我沒有看懂這則訊息。輸入 /start 顯示提醒畫面，或 /help 查看說明。")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		b.stage = stageNone
		return b.showScreen(ctx)
	case "list":
		return b.sendCards(ctx)
	case "help":
		return b.sendText(helpText())
	case "cancel":
		b.stage = stageNone
		return b.sendText("⏪ 已取消輸入。")
	default:
		return b.sendText("不支援這個指令，請看 /help。")
	}
}

func helpText() string {
	return "ℹ️ <b>說明</b>\n" +
		"• /start — 顯示新增藥物的表單與藥物清單\n" +
		"• /list — 重新顯示所有藥物卡片\n" +
		"• /cancel — 取消目前的輸入\n" +
		"在卡片上按「" + btnRemind + "」會傳送明天的服藥提醒，按「" + btnTaken + "」會扣減一份劑量。"
}

func (b *Bot) handleFieldInput(ctx context.Context, text string) error {
	switch b.stage {
	case stageName:
		b.screen.EditName(text)
	case stageDosage:
		b.screen.EditDosage(text)
	}
	b.stage = stageNone
	return b.refreshForm(ctx)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	if cb.Message.Chat.ID != b.chatID {
		return b.answer(cb.ID, "")
	}

	data := cb.Data
	if b.dismisser != nil && b.dismisser.Dismiss(ctx, data) {
		return b.answer(cb.ID, "")
	}

	switch {
	case data == cbEditName:
		b.stage = stageName
		if err := b.answer(cb.ID, ""); err != nil {
			return err
		}
		return b.sendText("✏️ 請輸入藥物名稱：")
	case data == cbEditDosage:
		b.stage = stageDosage
		if err := b.answer(cb.ID, ""); err != nil {
			return err
		}
		return b.sendText("✏️ 請輸入劑量：")
	case data == cbMenuOpen:
		b.screen.OpenFrequencyMenu()
		if err := b.answer(cb.ID, ""); err != nil {
			return err
		}
		return b.refreshForm(ctx)
	case data == cbMenuClose:
		b.screen.CloseFrequencyMenu()
		if err := b.answer(cb.ID, ""); err != nil {
			return err
		}
		return b.refreshForm(ctx)
	case strings.HasPrefix(data, cbFrequencyPrefix):
		frequency, ok := model.ParseFrequency(strings.TrimPrefix(data, cbFrequencyPrefix))
		if !ok {
			return b.answer(cb.ID, "")
		}
		b.screen.SelectFrequency(frequency)
		if err := b.answer(cb.ID, ""); err != nil {
			return err
		}
		return b.refreshForm(ctx)
	case data == cbAdd:
		return b.addMedication(ctx, cb)
	case strings.HasPrefix(data, cbRemindPrefix):
		return b.setReminder(ctx, cb)
	case strings.HasPrefix(data, cbTakenPrefix):
		return b.markTaken(ctx, cb)
	default:
		return b.answer(cb.ID, "")
	}
}

func (b *Bot) addMedication(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	item, addErr := b.screen.Add(ctx)
	if addErr != nil {
		b.log.Error(ctx, "add medication", "err", addErr)
		if err := b.alert(cb.ID, "藥物已加入清單，但儲存失敗。"); err != nil {
			return err
		}
	} else if err := b.answer(cb.ID, "已新增藥物"); err != nil {
		return err
	}

	if err := b.sendCard(item); err != nil {
		return err
	}
	if addErr != nil {
		// form is kept for another try
		return nil
	}
	return b.refreshForm(ctx)
}

func (b *Bot) setReminder(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	id, err := uuid.Parse(strings.TrimPrefix(cb.Data, cbRemindPrefix))
	if err != nil {
		return b.answer(cb.ID, "")
	}
	if _, err := b.screen.SetReminder(ctx, id); err != nil {
		if errors.Is(err, service.ErrItemNotFound) {
			return b.alert(cb.ID, "找不到這項藥物。")
		}
		return err
	}
	return b.answer(cb.ID, "已設置提醒")
}

func (b *Bot) markTaken(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	id, err := uuid.Parse(strings.TrimPrefix(cb.Data, cbTakenPrefix))
	if err != nil {
		return b.answer(cb.ID, "")
	}

	item, err := b.screen.MarkTaken(ctx, id)
	switch {
	case errors.Is(err, service.ErrItemNotFound):
		return b.alert(cb.ID, "找不到這項藥物。")
	case errors.Is(err, service.ErrFormat):
		return b.alert(cb.ID, fmt.Sprintf("劑量「%s」不是整數，無法扣減。", item.Dosage))
	case err != nil:
		b.log.Error(ctx, "mark taken", "id", id, "err", err)
		if aerr := b.alert(cb.ID, "已記錄服藥，但儲存失敗。"); aerr != nil {
			return aerr
		}
	default:
		if err := b.answer(cb.ID, "已記錄服藥"); err != nil {
			return err
		}
	}

	return b.editCard(cb.Message.MessageID, item)
}

func (b *Bot) showScreen(ctx context.Context) error {
	if err := b.sendForm(); err != nil {
		return err
	}
	if len(b.screen.Items()) == 0 {
		return nil
	}
	return b.sendCards(ctx)
}

func (b *Bot) sendForm() error {
	msg := tgbotapi.NewMessage(b.chatID, formText(b.screen.Form(), b.screen))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = formKeyboard(b.screen.Form(), b.screen.MenuOpen())
	sent, err := b.api.Send(msg)
	if err != nil {
		return err
	}
	b.formMessageID = sent.MessageID
	return nil
}

// refreshForm re-renders the form message in place, or sends a new one when
// there is nothing to edit.
func (b *Bot) refreshForm(ctx context.Context) error {
	if b.formMessageID == 0 {
		return b.sendForm()
	}
	form := b.screen.Form()
	edit := tgbotapi.NewEditMessageTextAndMarkup(b.chatID, b.formMessageID, formText(form, b.screen), formKeyboard(form, b.screen.MenuOpen()))
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(edit); err != nil {
		if isNotModified(err) {
			return nil
		}
		b.log.Warn(ctx, "edit form message", "message_id", b.formMessageID, "err", err)
		return b.sendForm()
	}
	return nil
}

func (b *Bot) sendCards(ctx context.Context) error {
	items := b.screen.Items()
	if len(items) == 0 {
		return b.sendText("目前沒有藥物，請先用表單新增。")
	}
	for _, item := range items {
		if err := b.sendCard(item); err != nil {
			return err
		}
	}
	b.log.Debug(ctx, "cards sent", "count", len(items))
	return nil
}

func (b *Bot) sendCard(item service.Item) error {
	msg := tgbotapi.NewMessage(b.chatID, cardText(item, b.screen))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = cardKeyboard(item.ID)
	sent, err := b.api.Send(msg)
	if err != nil {
		return err
	}
	b.cards[item.ID] = sent.MessageID
	return nil
}

func (b *Bot) editCard(messageID int, item service.Item) error {
	if known, ok := b.cards[item.ID]; ok {
		messageID = known
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(b.chatID, messageID, cardText(item, b.screen), cardKeyboard(item.ID))
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(edit); err != nil && !isNotModified(err) {
		return err
	}
	return nil
}

func (b *Bot) answer(callbackID, text string) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("callback ack: %w", err)
	}
	return nil
}

func (b *Bot) alert(callbackID, text string) error {
	if _, err := b.api.Request(tgbotapi.NewCallbackWithAlert(callbackID, text)); err != nil {
		return fmt.Errorf("callback alert: %w", err)
	}
	return nil
}

func (b *Bot) sendText(text string) error {
	return b.sendTextTo(b.chatID, text)
}

func (b *Bot) sendTextTo(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if chatID == b.chatID {
		msg.ReplyMarkup = mainMenuKeyboard()
	}
	_, err := b.api.Send(msg)
	return err
}

func isNotModified(err error) bool {
	return strings.Contains(err.Error(), "message is not modified")
}

func formText(form service.Form, screen *service.Screen) string {
	var sb strings.Builder
	sb.WriteString("📝 <b>新增藥物</b>\n")
	sb.WriteString(fmt.Sprintf("藥物名稱: %s\n", orEmpty(form.Name)))
	sb.WriteString(fmt.Sprintf("劑量: %s\n", orEmpty(form.Dosage)))
	sb.WriteString(fmt.Sprintf("頻率: %s\n", form.Frequency))
	sb.WriteString(fmt.Sprintf("時間: %s", form.Time.In(screen.Location()).Format(service.DisplayLayout)))
	return sb.String()
}

func cardText(item service.Item, screen *service.Screen) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("💊 <b>藥物名稱:</b> %s\n", orEmpty(item.Name)))
	sb.WriteString(fmt.Sprintf("<b>劑量:</b> %s\n", orEmpty(item.Dosage)))
	sb.WriteString(fmt.Sprintf("<b>頻率:</b> %s\n", item.Frequency))
	sb.WriteString(fmt.Sprintf("<b>時間:</b> %s", item.Time.In(screen.Location()).Format(service.DisplayLayout)))
	return sb.String()
}

func orEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return emptyValue
	}
	return escape(s)
}

func formKeyboard(form service.Form, menuOpen bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnEditName, cbEditName),
			tgbotapi.NewInlineKeyboardButtonData(btnEditDosage, cbEditDosage),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("頻率: %s ▾", form.Frequency), cbMenuOpen),
		),
	}
	if menuOpen {
		var options []tgbotapi.InlineKeyboardButton
		for _, f := range model.Frequencies {
			options = append(options, tgbotapi.NewInlineKeyboardButtonData(f.Label(), cbFrequencyPrefix+f.String()))
		}
		rows = append(rows, options, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnMenuClose, cbMenuClose),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(btnAdd, cbAdd),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func cardKeyboard(id uuid.UUID) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnRemind, cbRemindPrefix+id.String()),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnTaken, cbTakenPrefix+id.String()),
		),
	)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelScreen),
			tgbotapi.NewKeyboardButton(menuLabelList),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func escape(s string) string {
	return html.EscapeString(s)
}
