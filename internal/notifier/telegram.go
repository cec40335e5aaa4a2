package notifier

import (
	"context"
	"fmt"
	"log"
	"strings"

	"incidenbot/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotSender is the part of *tgbotapi.BotAPI the notifier needs.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier alerts the staff chat about urgent incidents.
type TelegramNotifier struct {
	Bot        BotSender
	ChatID     int64
	MinUrgency int
}

// NewTelegramNotifier authorizes the bot and returns a notifier for chatID.
func NewTelegramNotifier(token string, chatID int64, minUrgency int) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	bot.Debug = false
	log.Printf("INFO: Telegram staff alerts authorized on account %s", bot.Self.UserName)

	return &TelegramNotifier{Bot: bot, ChatID: chatID, MinUrgency: minUrgency}, nil
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// AlertText renders the staff alert for one incident.
func AlertText(analysis models.IncidentAnalysis, originalMessage string, tenant models.Tenant) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🚨 *%s* (%d/5)\n", escape(string(analysis.Category)), analysis.UrgencyLevel)
	fmt.Fprintf(&sb, "%s\n\n", escape(analysis.ActionSummary))
	fmt.Fprintf(&sb, "👤 %s · 🚪 %s\n", escape(tenant.Name), escape(tenant.Room))
	fmt.Fprintf(&sb, "💬 %s", escape(originalMessage))
	return sb.String()
}

// Notify sends an alert when the incident meets the urgency threshold and
// is a no-op otherwise.
func (t *TelegramNotifier) Notify(ctx context.Context, analysis models.IncidentAnalysis, originalMessage string, tenant models.Tenant) error {
	if analysis.UrgencyLevel < t.MinUrgency {
		return nil
	}
	return t.SendText(ctx, AlertText(analysis, originalMessage, tenant))
}

// SendText posts a Markdown message to the staff chat.
func (t *TelegramNotifier) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := t.Bot.Send(msg); err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	return nil
}
