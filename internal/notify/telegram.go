package notify

import (
	"fmt"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

// TelegramNotifier posts operator reports to a Telegram chat. It never
// polls for updates; the bot is send-only.
type TelegramNotifier struct {
	bot    *tele.Bot
	chatID int64
	logger *zap.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zap.Logger) (*TelegramNotifier, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:       token,
		Synchronous: true,
		ParseMode:   tele.ModeHTML,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create notifier bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger}, nil
}

// PaymentConfirmed reports a confirmed payment to the operator chat.
func (n *TelegramNotifier) PaymentConfirmed(chargeID string, amount float64, paidDate string) {
	text := fmt.Sprintf("💵 Payment confirmed\nCharge: <code>%s</code>\nAmount: %.2f\nPaid on: %s",
		chargeID, amount, paidDate)
	n.send(text)
}

// ReconciliationFlagged reports a charge that needs manual attention.
func (n *TelegramNotifier) ReconciliationFlagged(chargeID, reason string) {
	text := fmt.Sprintf("⚠️ Reconciliation needed\nCharge: <code>%s</code>\nReason: %s",
		chargeID, reason)
	n.send(text)
}

// send runs off the request path; a failed notification is logged, never
// surfaced to the provider or caller.
func (n *TelegramNotifier) send(text string) {
	go func() {
		if _, err := n.bot.Send(tele.ChatID(n.chatID), text); err != nil {
			n.logger.Warn("operator notification failed", zap.Error(err))
		}
	}()
}
