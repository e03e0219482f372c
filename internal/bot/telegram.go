package bot

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"rashody/internal/core"
	applog "rashody/internal/log"
)

// API is the subset of *tgbotapi.BotAPI used by the transport.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramConfig tunes the polling loop.
type TelegramConfig struct {
	PollTimeout time.Duration
	Workers     int
}

// Telegram delivers long-polled updates to the Controller and renders replies.
type Telegram struct {
	api        API
	controller *Controller
	sessions   *SessionStore
	cfg        TelegramConfig
	logger     *applog.Logger
}

// NewBotAPI connects to Telegram with the bot token.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	if token == "" {
		return nil, errors.New("telegram bot token is empty")
	}
	return tgbotapi.NewBotAPI(token)
}

func NewTelegram(api API, controller *Controller, sessions *SessionStore, cfg TelegramConfig, logger *applog.Logger) *Telegram {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &Telegram{
		api:        api,
		controller: controller,
		sessions:   sessions,
		cfg:        cfg,
		logger:     logger.WithComponent(applog.ComponentBot),
	}
}

// Run polls for updates until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = int(t.cfg.PollTimeout / time.Second)
	updates := t.api.GetUpdatesChan(u)

	t.logger.InfoContext(ctx, "Bot started polling",
		"workers", t.cfg.Workers,
		"poll_timeout", t.cfg.PollTimeout.String())

	go func() {
		<-ctx.Done()
		t.api.StopReceivingUpdates()
	}()

	return t.Serve(ctx, updates)
}

// Serve dispatches updates to cfg.Workers workers, each serving one chat at
// a time in arrival order. It returns once the channel closes or ctx is
// cancelled and the workers have finished.
func (t *Telegram) Serve(ctx context.Context, updates <-chan tgbotapi.Update) error {
	queues := newChatQueues()

	var g errgroup.Group
	for range t.cfg.Workers {
		g.Go(func() error {
			for {
				chatID, batch, ok := queues.next()
				if !ok {
					return nil
				}
				for _, update := range batch {
					if ctx.Err() != nil {
						break
					}
					t.HandleUpdate(ctx, update)
				}
				queues.done(chatID)
			}
		})
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case update, ok := <-updates:
			if !ok {
				break loop
			}
			queues.push(chatKey(update), update)
		}
	}

	queues.close()
	err := g.Wait()
	t.logger.Info("Bot stopped polling")
	return err
}

// HandleUpdate runs one update through the Controller and sends its replies.
// Updates of one chat must not be handled concurrently.
func (t *Telegram) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	ev, ok := t.toEvent(ctx, update)
	if !ok {
		return
	}

	sess := t.sessions.Load(ev.ChatID)
	next, replies, err := t.controller.Handle(ctx, ev, sess)
	t.sessions.Save(next)

	if err != nil {
		t.logger.ErrorContext(ctx, "Failed to handle chat event",
			applog.FieldChatID, ev.ChatID,
			applog.FieldEvent, ev.Kind.String(),
			applog.FieldOperation, applog.OpDispatch,
			applog.FieldError, err)
		replies = []Reply{InternalErrorReply()}
	}

	for _, r := range replies {
		if _, err := t.api.Send(render(ev.ChatID, r)); err != nil {
			t.logger.ErrorContext(ctx, "Failed to send reply",
				applog.FieldChatID, ev.ChatID,
				applog.FieldError, err)
		}
	}
}

func (t *Telegram) toEvent(ctx context.Context, update tgbotapi.Update) (Event, bool) {
	switch {
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Chat == nil {
			return Event{}, false
		}
		ev := Event{ChatID: msg.Chat.ID, Identity: identityOf(msg.From)}
		switch {
		case msg.IsCommand():
			ev.Kind = EventCommand
			ev.Command = msg.Command()
		case msg.Text != "":
			ev.Kind = EventText
			ev.Text = msg.Text
		default:
			return Event{}, false
		}
		return ev, true

	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		if _, err := t.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
			t.logger.WarnContext(ctx, "Failed to answer callback query", applog.FieldError, err)
		}
		if query.From == nil {
			return Event{}, false
		}
		return Event{
			Kind:     EventCallback,
			ChatID:   chatKey(update),
			Identity: identityOf(query.From),
			Data:     query.Data,
		}, true

	default:
		return Event{}, false
	}
}

func identityOf(u *tgbotapi.User) core.Identity {
	return core.Identity{
		ExternalID: u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
	}
}

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ReportButton)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func optionsKeyboard(options []Option) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, o := range options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(o.Label, o.Data)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func render(chatID int64, r Reply) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	switch {
	case len(r.Options) > 0:
		msg.ReplyMarkup = optionsKeyboard(r.Options)
	case r.MainKeyboard:
		msg.ReplyMarkup = mainKeyboard()
	}
	return msg
}
