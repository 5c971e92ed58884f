package bot

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medication-reminder/internal/logging"
	"medication-reminder/internal/model"
	"medication-reminder/internal/service"
)

const ownerChat int64 = 100

type fakeAPI struct {
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
	nextID    int
	editErr   error
	updates   chan tgbotapi.Update
	stopped   bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if _, ok := c.(tgbotapi.EditMessageTextConfig); ok && f.editErr != nil {
		return tgbotapi.Message{}, f.editErr
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requested = append(f.requested, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	if !f.stopped {
		f.stopped = true
		close(f.updates)
	}
}

func (f *fakeAPI) lastSent() tgbotapi.Chattable {
	return f.sent[len(f.sent)-1]
}

func (f *fakeAPI) lastCallback() tgbotapi.CallbackConfig {
	for i := len(f.requested) - 1; i >= 0; i-- {
		if cb, ok := f.requested[i].(tgbotapi.CallbackConfig); ok {
			return cb
		}
	}
	return tgbotapi.CallbackConfig{}
}

type recordingGateway struct {
	messages []string
}

func (g *recordingGateway) Notify(_ context.Context, message string) {
	g.messages = append(g.messages, message)
}

type fakeDismisser struct {
	seen []string
}

func (d *fakeDismisser) Dismiss(_ context.Context, data string) bool {
	if strings.HasPrefix(data, "dismiss:") {
		d.seen = append(d.seen, data)
		return true
	}
	return false
}

var testTime = time.Date(2024, time.January, 1, 8, 0, 0, 0, time.UTC)

type harness struct {
	bot    *Bot
	api    *fakeAPI
	screen *service.Screen
	gw     *recordingGateway
	saved  []model.Medication
}

func newHarness(t *testing.T, seed ...model.Medication) *harness {
	t.Helper()
	h := &harness{api: &fakeAPI{updates: make(chan tgbotapi.Update, 8)}, gw: &recordingGateway{}}
	save := func(_ context.Context, m model.Medication) error {
		h.saved = append(h.saved, m)
		return nil
	}
	h.screen = service.NewScreen(service.NewMedicationStore(seed...), h.gw, save, logging.Discard(),
		service.WithClock(func() time.Time { return testTime }),
		service.WithLocation(time.UTC),
	)
	h.bot = New(h.api, h.screen, ownerChat, &fakeDismisser{}, logging.Discard())
	return h
}

func command(chatID int64, text string) tgbotapi.Update {
	name := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: chatID},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func text(chatID int64, body string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: chatID},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:      body,
	}}
}

func callback(chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: chatID, Type: "private"}},
		Data:    data,
	}}
}

func callbackData(markup tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				out = append(out, *btn.CallbackData)
			}
		}
	}
	return out
}

func TestBot_StartShowsForm(t *testing.T) {
	h := newHarness(t)

	h.bot.handleUpdate(context.Background(), command(ownerChat, "/start"))

	require.Len(t, h.api.sent, 1)
	msg := h.api.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, ownerChat, msg.ChatID)
	assert.Contains(t, msg.Text, "頻率: DAILY")
	assert.Contains(t, msg.Text, "時間: 2024-01-01 08:00")
	markup := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	assert.Equal(t, []string{cbEditName, cbEditDosage, cbMenuOpen, cbAdd}, callbackData(markup))
	assert.Equal(t, 1, h.bot.formMessageID)
}

func TestBot_StartAlsoShowsCards(t *testing.T) {
	h := newHarness(t, model.Medication{Name: "Aspirin", Dosage: "10", Time: testTime})

	h.bot.handleUpdate(context.Background(), command(ownerChat, "/start"))

	require.Len(t, h.api.sent, 2)
	card := h.api.sent[1].(tgbotapi.MessageConfig)
	assert.Contains(t, card.Text, "Aspirin")
}

func TestBot_ForeignChatIsRefused(t *testing.T) {
	h := newHarness(t)

	h.bot.handleUpdate(context.Background(), command(999, "/start"))

	require.Len(t, h.api.sent, 1)
	msg := h.api.sent[0].(tgbotapi.MessageConfig)
	assert.Equal(t, int64(999), msg.ChatID)
	assert.Contains(t, msg.Text, "無法為你服務")
	assert.Zero(t, h.bot.formMessageID)
}

func TestBot_EditFieldsThroughInputStage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.bot.handleUpdate(ctx, command(ownerChat, "/start"))

	h.bot.handleUpdate(ctx, callback(ownerChat, 1, cbEditName))
	h.bot.handleUpdate(ctx, text(ownerChat, "Aspirin"))
	h.bot.handleUpdate(ctx, callback(ownerChat, 1, cbEditDosage))
	h.bot.handleUpdate(ctx, text(ownerChat, "10"))

	form := h.screen.Form()
	assert.Equal(t, "Aspirin", form.Name)
	assert.Equal(t, "10", form.Dosage)

	edit, ok := h.api.lastSent().(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 1, edit.MessageID)
	assert.Contains(t, edit.Text, "藥物名稱: Aspirin")
	assert.Contains(t, edit.Text, "劑量: 10")
	assert.Equal(t, stageNone, h.bot.stage)
}

func TestBot_FrequencyMenu(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.bot.handleUpdate(ctx, command(ownerChat, "/start"))

	h.bot.handleUpdate(ctx, callback(ownerChat, 1, cbMenuOpen))
	require.True(t, h.screen.MenuOpen())
	edit := h.api.lastSent().(tgbotapi.EditMessageTextConfig)
	assert.Contains(t, callbackData(*edit.ReplyMarkup), "freq:WEEKLY")
	assert.Contains(t, callbackData(*edit.ReplyMarkup), cbMenuClose)

	h.bot.handleUpdate(ctx, callback(ownerChat, 1, "freq:WEEKLY"))
	assert.False(t, h.screen.MenuOpen())
	assert.Equal(t, model.Weekly, h.screen.Form().Frequency)
	edit = h.api.lastSent().(tgbotapi.EditMessageTextConfig)
	assert.NotContains(t, callbackData(*edit.ReplyMarkup), "freq:WEEKLY")

	h.bot.handleUpdate(ctx, callback(ownerChat, 1, cbMenuOpen))
	h.bot.handleUpdate(ctx, callback(ownerChat, 1, cbMenuClose))
	assert.False(t, h.screen.MenuOpen())
	assert.Equal(t, model.Weekly, h.screen.Form().Frequency)
}

func TestBot_AddSendsCardAndResetsForm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.bot.handleUpdate(ctx, command(ownerChat, "/start"))
	h.screen.EditName("Aspirin")
	h.screen.EditDosage("10")

	h.bot.handleUpdate(ctx, callback(ownerChat, 1, cbAdd))

	items := h.screen.Items()
	require.Len(t, items, 1)
	require.Len(t, h.saved, 1)
	assert.Equal(t, "Aspirin", h.saved[0].Name)
	assert.Empty(t, h.screen.Form().Name)

	var card tgbotapi.MessageConfig
	for _, c := range h.api.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok && strings.Contains(m.Text, "Aspirin") {
			card = m
		}
	}
	require.NotEmpty(t, card.Text)
	data := callbackData(card.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup))
	assert.Equal(t, []string{"remind:" + items[0].ID.String(), "taken:" + items[0].ID.String()}, data)

	edit, ok := h.api.lastSent().(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Contains(t, edit.Text, "藥物名稱: —")
}

func TestBot_RemindAndTaken(t *testing.T) {
	h := newHarness(t, model.Medication{Name: "Aspirin", Dosage: "10", Time: testTime})
	ctx := context.Background()
	id := h.screen.Items()[0].ID
	h.bot.handleUpdate(ctx, command(ownerChat, "/list"))
	cardMessageID := h.api.nextID

	h.bot.handleUpdate(ctx, callback(ownerChat, cardMessageID, "remind:"+id.String()))
	assert.Equal(t, []string{"請在2024-01-02 08:00 時服用藥物 Aspirin 剩餘藥量:10"}, h.gw.messages)

	h.bot.handleUpdate(ctx, callback(ownerChat, cardMessageID, "taken:"+id.String()))
	assert.Equal(t, "9", h.screen.Items()[0].Dosage)
	assert.Equal(t, "已服用藥物: Aspirin", h.gw.messages[1])
	require.Len(t, h.saved, 1)

	edit := h.api.lastSent().(tgbotapi.EditMessageTextConfig)
	assert.Equal(t, cardMessageID, edit.MessageID)
	assert.Contains(t, edit.Text, "<b>劑量:</b> 9")
	assert.Equal(t, "已記錄服藥", h.api.lastCallback().Text)
}

func TestBot_TakenWithNonNumericDosageAlerts(t *testing.T) {
	h := newHarness(t, model.Medication{Name: "Aspirin", Dosage: "ten", Time: testTime})
	id := h.screen.Items()[0].ID
	sentBefore := len(h.api.sent)

	h.bot.handleUpdate(context.Background(), callback(ownerChat, 5, "taken:"+id.String()))

	cb := h.api.lastCallback()
	assert.True(t, cb.ShowAlert)
	assert.Contains(t, cb.Text, "ten")
	assert.Len(t, h.api.sent, sentBefore)
	assert.Empty(t, h.saved)
	assert.Empty(t, h.gw.messages)
	assert.Equal(t, "ten", h.screen.Items()[0].Dosage)
}

func TestBot_StaleCallbackAlerts(t *testing.T) {
	h := newHarness(t)

	h.bot.handleUpdate(context.Background(), callback(ownerChat, 5, "taken:00000000-0000-0000-0000-000000000001"))

	cb := h.api.lastCallback()
	assert.True(t, cb.ShowAlert)
	assert.Contains(t, cb.Text, "找不到")
}

func TestBot_DismissIsDelegated(t *testing.T) {
	h := newHarness(t)
	dismisser := h.bot.dismisser.(*fakeDismisser)

	h.bot.handleUpdate(context.Background(), callback(ownerChat, 5, "dismiss:1"))

	assert.Equal(t, []string{"dismiss:1"}, dismisser.seen)
	assert.Len(t, h.api.requested, 1)
}

func TestBot_EditFailureResendsForm(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.bot.handleUpdate(ctx, command(ownerChat, "/start"))
	h.api.editErr = errors.New("Bad Request: message to edit not found")

	h.bot.handleUpdate(ctx, callback(ownerChat, 1, cbMenuOpen))

	msg, ok := h.api.lastSent().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "新增藥物")
	assert.Equal(t, h.api.nextID, h.bot.formMessageID)
}

func TestBot_NotModifiedIsIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.bot.handleUpdate(ctx, command(ownerChat, "/start"))
	h.api.editErr = errors.New("Bad Request: message is not modified")
	sentBefore := len(h.api.sent)

	h.bot.handleUpdate(ctx, callback(ownerChat, 1, cbMenuClose))

	assert.Len(t, h.api.sent, sentBefore)
	assert.Equal(t, 1, h.bot.formMessageID)
}

func TestBot_StartStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	h.api.updates <- command(ownerChat, "/help")

	done := make(chan error, 1)
	go func() { done <- h.bot.Start(ctx) }()

	require.Eventually(t, func() bool { return len(h.api.updates) == 0 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("bot did not stop")
	}
}

func TestBot_PlainTextWithoutStage(t *testing.T) {
	h := newHarness(t)

	h.bot.handleUpdate(context.Background(), text(ownerChat, "hello"))

	msg := h.api.lastSent().(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "/start")
	assert.Empty(t, h.screen.Form().Name)
}
