// Package telegram delivers operator alerts for the voice gateway.
// The gateway only pushes notifications; it never polls for updates.
package telegram

import (
	"context"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"orpheus/internal/adapters/config"
	"orpheus/pkg/errors"
	"orpheus/pkg/logger"
)

// Bot is a rate-limited Telegram sender
type Bot struct {
	api         *tgbotapi.BotAPI
	chatIDs     []int64
	log         *logger.Logger
	rateLimiter *rate.Limiter
}

// NewBot creates a Telegram bot restricted to the configured alert chats
func NewBot(cfg config.TelegramConfig, log *logger.Logger) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "telegram bot token is required")
	}
	if len(cfg.ChatIDs) == 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "at least one telegram chat id is required")
	}

	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create telegram bot")
	}

	log.Infof("Authorized on account %s", api.Self.UserName)

	// Conservative: 20 msg/sec (Telegram limit is 30)
	rateLimiter := rate.NewLimiter(rate.Limit(20), 30)

	return &Bot{
		api:         api,
		chatIDs:     cfg.ChatIDs,
		log:         log.With("component", "telegram_bot"),
		rateLimiter: rateLimiter,
	}, nil
}

// Send sends a Markdown message to a single chat
func (b *Bot) Send(ctx context.Context, chatID int64, text string) error {
	if err := b.rateLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limiter wait failed")
	}

	start := time.Now()

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"

	_, err := b.api.Send(msg)

	duration := time.Since(start)

	if err != nil {
		b.log.Errorw("Failed to send message",
			"chat_id", chatID,
			"error", err,
			"duration_ms", duration.Milliseconds(),
		)
		return errors.Wrap(err, "failed to send message")
	}

	b.log.Debugw("Message sent",
		"chat_id", chatID,
		"text_length", len(text),
		"duration_ms", duration.Milliseconds(),
	)

	return nil
}

// Broadcast sends a message to every configured alert chat.
// A failed chat does not stop delivery to the others.
func (b *Bot) Broadcast(ctx context.Context, text string) error {
	var lastErr error
	for _, chatID := range b.chatIDs {
		if err := b.Send(ctx, chatID, text); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
