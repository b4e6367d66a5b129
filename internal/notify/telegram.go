package notify

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v3"

	"media-journal/internal/models"
)

// TelegramNotifier pushes new-content messages to a single Telegram chat.
// It satisfies the scheduler's notifier interface.
type TelegramNotifier struct {
	bot    *tele.Bot
	chatID int64
}

// NewTelegramNotifier creates a notifier for the given bot token and chat
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// NotifyNewContent sends one message about freshly discovered content
func (n *TelegramNotifier) NotifyNewContent(title string, kind models.MediaKind, count int) error {
	var text string
	switch kind {
	case models.KindTV:
		text = fmt.Sprintf("📺 New season announced for %s", title)
	case models.KindAnime, models.KindManga:
		text = fmt.Sprintf("✨ A sequel to %s was announced", title)
	default:
		text = fmt.Sprintf("New content for %s", title)
	}
	if count > 1 {
		text = fmt.Sprintf("%s (%d new entries)", text, count)
	}

	if _, err := n.bot.Send(tele.ChatID(n.chatID), text); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}
