// Package telegram adapts the Telegram Bot API to the flow's Messenger
// interface and translates long-polled updates into flow events. It holds no
// game logic.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/yulbax/SecretSantaBot/internal/flow"
)

// Bot wraps the Telegram client.
type Bot struct {
	api *tgbotapi.BotAPI
	log *logrus.Logger
}

// New authenticates against the Bot API.
func New(token string, log *logrus.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.WithField("username", api.Self.UserName).Info("authorized on telegram")
	return &Bot{api: api, log: log}, nil
}

// Username is the bot's account name, used for invite deep links.
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// SendText delivers one HTML-formatted message. Rows whose first button
// carries callback data become an inline keyboard; rows of plain labels
// become a reply keyboard.
func (b *Bot) SendText(userID int64, text string, buttons [][]flow.Button) error {
	msg := tgbotapi.NewMessage(userID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = toMarkup(buttons)
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to %d: %w", userID, err)
	}
	return nil
}

// DeleteMessage removes a previously sent message, typically a spent
// keyboard prompt.
func (b *Bot) DeleteMessage(userID int64, messageID int) error {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(userID, messageID)); err != nil {
		return fmt.Errorf("failed to delete message %d for %d: %w", messageID, userID, err)
	}
	return nil
}

// AcknowledgeCallback answers a button press, optionally with a toast or
// alert popup.
func (b *Bot) AcknowledgeCallback(callbackID, text string, alert bool) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	cb.ShowAlert = alert
	if _, err := b.api.Request(cb); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func toMarkup(buttons [][]flow.Button) any {
	if len(buttons) == 0 {
		return nil
	}
	if buttons[0][0].Data != "" {
		var rows [][]tgbotapi.InlineKeyboardButton
		for _, row := range buttons {
			var line []tgbotapi.InlineKeyboardButton
			for _, btn := range row {
				line = append(line, tgbotapi.NewInlineKeyboardButtonData(btn.Label, btn.Data))
			}
			rows = append(rows, line)
		}
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	var rows [][]tgbotapi.KeyboardButton
	for _, row := range buttons {
		var line []tgbotapi.KeyboardButton
		for _, btn := range row {
			line = append(line, tgbotapi.NewKeyboardButton(btn.Label))
		}
		rows = append(rows, line)
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	return markup
}

// Listen long-polls for updates and feeds them to the processor until the
// context is cancelled. Each update is handled on its own goroutine; the
// flow's per-user lock makes every event's read-modify-write atomic, but two
// rapid messages from the same user may be processed in either order.
func (b *Bot) Listen(ctx context.Context, p *flow.Processor) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.dispatch(ctx, p, update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, p *flow.Processor, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		m := update.Message
		ev := flow.MessageEvent{
			SenderID:     m.From.ID,
			SenderName:   senderName(m.From),
			SenderHandle: m.From.UserName,
			SenderLocale: m.From.LanguageCode,
			Text:         m.Text,
		}
		go p.HandleMessage(ctx, ev)

	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		cb := update.CallbackQuery
		ev := flow.CallbackEvent{
			SenderID:   cb.From.ID,
			CallbackID: cb.ID,
			Data:       cb.Data,
		}
		if cb.Message != nil {
			ev.MessageID = cb.Message.MessageID
		}
		go p.HandleCallback(ctx, ev)
	}
}

func senderName(u *tgbotapi.User) string {
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}
