package notify

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"medication-reminder/internal/logging"
)

// CallbackDismissPrefix prefixes the callback data of the dismiss button.
const CallbackDismissPrefix = "dismiss:"

const btnDismiss = "✔ 知道了"

// TelegramAPI is the part of *tgbotapi.BotAPI the poster needs.
type TelegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// TelegramPoster shows notifications as messages in a single chat.
type TelegramPoster struct {
	api    TelegramAPI
	chatID int64
	log    logging.Logger

	mu    sync.Mutex
	shown map[int]int // notification id -> message id
}

func NewTelegramPoster(api TelegramAPI, chatID int64, log logging.Logger) *TelegramPoster {
	return &TelegramPoster{
		api:    api,
		chatID: chatID,
		log:    log,
		shown:  make(map[int]int),
	}
}

func (p *TelegramPoster) Post(ctx context.Context, ch Channel, n Notification) error {
	p.removeShown(ctx, n.ID)

	var text strings.Builder
	if n.Icon != "" {
		text.WriteString(n.Icon)
		text.WriteByte(' ')
	}
	text.WriteString(fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(n.Title), html.EscapeString(n.Body)))

	msg := tgbotapi.NewMessage(p.chatID, text.String())
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableNotification = ch.Importance < ImportanceDefault || n.Priority < PriorityDefault
	if n.AutoCancel {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnDismiss, CallbackDismissPrefix+strconv.Itoa(n.ID)),
		))
	}

	sent, err := p.api.Send(msg)
	if err != nil {
		return fmt.Errorf("send notification %d: %w", n.ID, err)
	}

	p.mu.Lock()
	p.shown[n.ID] = sent.MessageID
	p.mu.Unlock()
	return nil
}

// Dismiss removes the message currently shown for the callback data of a
// dismiss button. It reports whether data was a dismiss callback.
func (p *TelegramPoster) Dismiss(ctx context.Context, data string) bool {
	if !strings.HasPrefix(data, CallbackDismissPrefix) {
		return false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(data, CallbackDismissPrefix))
	if err != nil {
		return true
	}
	p.removeShown(ctx, id)
	return true
}

func (p *TelegramPoster) removeShown(ctx context.Context, id int) {
	p.mu.Lock()
	messageID, ok := p.shown[id]
	delete(p.shown, id)
	p.mu.Unlock()
	if !ok {
		return
	}
	if _, err := p.api.Request(tgbotapi.NewDeleteMessage(p.chatID, messageID)); err != nil {
		p.log.Warn(ctx, "delete previous notification", "id", id, "message_id", messageID, "err", err)
	}
}
