package bot

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rashody/internal/core"
	"rashody/internal/storage/memory"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	answered []string
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answered = append(f.answered, cb.CallbackQueryID)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stopped {
		f.stopped = true
		close(f.updates)
	}
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), f.sent...)
}

func newTestTelegram(t *testing.T) (*Telegram, *fakeAPI, *harness) {
	t.Helper()
	h := newHarness(t, memory.NewStore())
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 16)}
	tg := NewTelegram(api, h.controller, NewDefaultSessionStore(time.Minute), TelegramConfig{Workers: 4}, nil)
	return tg, api, h
}

func textUpdate(chatID int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: chatID, FirstName: "Ivan"},
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}
	if len(text) > 0 && text[0] == '/' {
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	}
	return tgbotapi.Update{Message: msg}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: chatID, FirstName: "Ivan"},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}}
}

func TestTelegram_HandleUpdateFlow(t *testing.T) {
	tg, api, _ := newTestTelegram(t)
	ctx := context.Background()

	tg.HandleUpdate(ctx, textUpdate(1001, "/start"))
	tg.HandleUpdate(ctx, callbackUpdate(1001, CallbackReportCustom))
	tg.HandleUpdate(ctx, textUpdate(1001, "13.2025"))
	tg.HandleUpdate(ctx, textUpdate(1001, "еда 300"))

	sent := api.messages()
	require.Len(t, sent, 4)

	assert.Equal(t, welcomeText, sent[0].Text)
	kb, ok := sent[0].ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.True(t, kb.ResizeKeyboard)
	assert.Equal(t, ReportButton, kb.Keyboard[0][0].Text)

	assert.Equal(t, monthPromptText, sent[1].Text)
	assert.Equal(t, []string{"cb-1"}, api.answered)

	assert.Equal(t, monthFormatError, sent[2].Text)
	assert.Equal(t, `Расход 300.0 руб. на "еда" добавлен.`, sent[3].Text)
	assert.Equal(t, StateIdle, tg.sessions.Load(1001).State)
}

func TestTelegram_RendersInlineOptions(t *testing.T) {
	tg, api, _ := newTestTelegram(t)
	tg.HandleUpdate(context.Background(), textUpdate(1001, ReportButton))

	sent := api.messages()
	require.Len(t, sent, 1)
	markup, ok := sent[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 3)
	for i, row := range markup.InlineKeyboard {
		require.Len(t, row, 1, "one option per row")
		require.NotNil(t, row[0].CallbackData)
		assert.Equal(t, reportOptions[i].Data, *row[0].CallbackData)
	}
}

func TestTelegram_IgnoresUnsupportedUpdates(t *testing.T) {
	tg, api, _ := newTestTelegram(t)
	ctx := context.Background()

	tg.HandleUpdate(ctx, tgbotapi.Update{})
	tg.HandleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}}})
	assert.Empty(t, api.messages())
}

func TestTelegram_RunStopsOnCancel(t *testing.T) {
	tg, api, _ := newTestTelegram(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- tg.Run(ctx) }()

	for i := int64(1); i <= 5; i++ {
		api.updates <- textUpdate(i, "такси 250")
	}
	require.Eventually(t, func() bool { return len(api.messages()) == 5 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// slowStore holds expense writes in the "медленно" category until release is closed.
type slowStore struct {
	*memory.Store
	release chan struct{}
}

func (s slowStore) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.Category == "медленно" {
		select {
		case <-s.release:
		case <-ctx.Done():
			return core.Expense{}, ctx.Err()
		}
	}
	return s.Store.CreateExpense(ctx, e)
}

func (f *fakeAPI) textsFor(chatID int64) []string {
	var texts []string
	for _, m := range f.messages() {
		if m.ChatID == chatID {
			texts = append(texts, m.Text)
		}
	}
	return texts
}

func TestTelegram_SlowChatDoesNotBlockOthers(t *testing.T) {
	store := slowStore{Store: memory.NewStore(), release: make(chan struct{})}
	h := newHarness(t, store)
	api := &fakeAPI{}
	tg := NewTelegram(api, h.controller, NewDefaultSessionStore(time.Minute), TelegramConfig{Workers: 2}, nil)

	updates := make(chan tgbotapi.Update, 8)
	done := make(chan error, 1)
	go func() { done <- tg.Serve(context.Background(), updates) }()

	for range 3 {
		updates <- textUpdate(1, "медленно 10")
	}
	updates <- textUpdate(2, "еда 5")

	require.Eventually(t, func() bool { return len(api.textsFor(2)) == 1 }, 2*time.Second, 10*time.Millisecond,
		"chat 2 must be answered while chat 1 waits on the store")
	assert.Equal(t, `Расход 5.0 руб. на "еда" добавлен.`, api.textsFor(2)[0])
	assert.Empty(t, api.textsFor(1))

	close(store.release)
	close(updates)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after the updates channel closed")
	}
	assert.Len(t, api.textsFor(1), 3)
}

func TestTelegram_KeepsChatOrder(t *testing.T) {
	h := newHarness(t, memory.NewStore())
	api := &fakeAPI{}
	tg := NewTelegram(api, h.controller, NewDefaultSessionStore(time.Minute), TelegramConfig{Workers: 8}, nil)

	const n = 40
	updates := make(chan tgbotapi.Update, n)
	for i := 1; i <= n; i++ {
		updates <- textUpdate(1001, fmt.Sprintf("c %d", i))
	}
	close(updates)
	require.NoError(t, tg.Serve(context.Background(), updates))

	texts := api.textsFor(1001)
	require.Len(t, texts, n)
	for i, text := range texts {
		assert.Equal(t, fmt.Sprintf(`Расход %d.0 руб. на "c" добавлен.`, i+1), text)
	}
}

func TestTelegram_ManualMonthAfterButtonKeepsOrder(t *testing.T) {
	h := newHarness(t, memory.NewStore())
	h.seed(t, "120", "такси", time.Date(2025, 7, 3, 9, 0, 0, 0, time.UTC))
	api := &fakeAPI{}
	tg := NewTelegram(api, h.controller, NewDefaultSessionStore(time.Minute), TelegramConfig{Workers: 4}, nil)

	updates := make(chan tgbotapi.Update, 2)
	updates <- callbackUpdate(1001, CallbackReportCustom)
	updates <- textUpdate(1001, "07.2025")
	close(updates)
	require.NoError(t, tg.Serve(context.Background(), updates))

	texts := api.textsFor(1001)
	require.Len(t, texts, 2)
	assert.Equal(t, monthPromptText, texts[0])
	assert.Equal(t, "📊 Отчёт за 07.2025:\n\n- такси: 120.00 руб.\n", texts[1])
}

func TestChatQueues_HandsOneChatToOneWorker(t *testing.T) {
	q := newChatQueues()
	q.push(1, textUpdate(1, "a 1"))
	q.push(2, textUpdate(2, "b 1"))
	q.push(1, textUpdate(1, "a 2"))

	chat, batch, ok := q.next()
	require.True(t, ok)
	assert.Equal(t, int64(1), chat)
	require.Len(t, batch, 2)
	assert.Equal(t, "a 1", batch[0].Message.Text)

	q.push(1, textUpdate(1, "a 3"))
	chat, _, ok = q.next()
	require.True(t, ok)
	assert.Equal(t, int64(2), chat, "busy chat is not handed out twice")

	q.done(1)
	chat, batch, ok = q.next()
	require.True(t, ok)
	assert.Equal(t, int64(1), chat)
	require.Len(t, batch, 1)
	assert.Equal(t, "a 3", batch[0].Message.Text)

	q.done(1)
	q.done(2)
	q.close()
	_, _, ok = q.next()
	assert.False(t, ok)
}
