// Package bot is the Telegram transport: it translates updates into state
// machine inputs and renders replies back through the Bot API.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"

	"gatebot/internal/session"
)

// Handler processes one translated input. Satisfied by *session.Machine.
type Handler interface {
	Handle(ctx context.Context, in session.Input) error
}

type Bot struct {
	// Handler must be set before Run or WebhookHandler is used. It is a
	// field, not a constructor argument, because the machine needs the
	// bot as its Replier first.
	Handler Handler

	api *tgbotapi.BotAPI
	log *slog.Logger

	wg sync.WaitGroup
}

func New(token string, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	log.Info("telegram bot authorized", "username", api.Self.UserName)
	return &Bot{api: api, log: log}, nil
}

// Run consumes updates via long polling until ctx is cancelled, then waits
// for in-flight handlers. Each update runs on its own goroutine so one
// conversation's slow gate call never blocks another's verification.
func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			return ctx.Err()
		case upd, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return nil
			}
			b.process(ctx, upd)
		}
	}
}

// WebhookHandler serves Telegram webhook POSTs. The same translation and
// concurrency rules apply as in long-polling mode. Updates run on ctx, the
// process lifetime context, not the request context: the server cancels the
// request as soon as the 200 goes out, long before the dispatch finishes.
func (b *Bot) WebhookHandler(ctx context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		var upd tgbotapi.Update
		if err := c.ShouldBindJSON(&upd); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update"})
			return
		}
		b.process(ctx, upd)
		c.Status(http.StatusOK)
	}
}

// RegisterWebhook points Telegram at the given public URL.
func (b *Bot) RegisterWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("webhook config: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("webhook register: %w", err)
	}
	return nil
}

func (b *Bot) process(ctx context.Context, upd tgbotapi.Update) {
	in, ok := translate(upd)
	if !ok {
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := b.Handler.Handle(ctx, in); err != nil {
			b.log.Error("update handling failed", "chat_id", in.ChatID, "err", err)
		}
	}()
}

// translate maps one Telegram update onto a machine input. Updates without
// a message (edits, callbacks, member changes) are dropped.
func translate(upd tgbotapi.Update) (session.Input, bool) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return session.Input{}, false
	}
	in := session.Input{ChatID: msg.Chat.ID}

	if msg.Contact != nil {
		in.Kind = session.KindContact
		in.Phone = msg.Contact.PhoneNumber
		return in, true
	}

	text := strings.TrimSpace(msg.Text)
	switch text {
	case "/start":
		in.Kind = session.KindStart
	case "/cancel":
		in.Kind = session.KindCancel
	default:
		if text == "" {
			return session.Input{}, false
		}
		in.Kind = session.KindText
		in.Text = text
	}
	return in, true
}

// Send renders a Reply into a Telegram message, including the keyboard
// the machine asked for.
func (b *Bot) Send(ctx context.Context, chatID int64, r session.Reply) error {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	if r.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}

	switch r.Keyboard {
	case session.KeyboardContact:
		btn := tgbotapi.NewKeyboardButtonContact("📱 Отправить номер телефона")
		kb := tgbotapi.NewReplyKeyboard(tgbotapi.NewKeyboardButtonRow(btn))
		kb.OneTimeKeyboard = true
		kb.ResizeKeyboard = true
		msg.ReplyMarkup = kb
	case session.KeyboardMenu:
		kb := tgbotapi.NewReplyKeyboard(
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(CmdDues),
				tgbotapi.NewKeyboardButton(CmdNews),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(CmdChat),
				tgbotapi.NewKeyboardButton(CmdGate),
			),
			tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(CmdDebtors),
			),
		)
		kb.ResizeKeyboard = true
		msg.ReplyMarkup = kb
	case session.KeyboardRemove:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}

	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
