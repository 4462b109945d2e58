// Package alert pushes verification outcomes to an operator channel so
// rejected notifications can be reviewed for fraud patterns.
package alert

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"shopfast/config"
	"shopfast/internal/services/verification"
	"shopfast/pkg/logger"
)

// Sender abstracts the bot API for tests.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier sends payment alerts to a Telegram chat. A nil *Notifier is
// valid and silently does nothing, so callers need no enabled-check.
type Notifier struct {
	sender Sender
	chatID int64
	log    logger.Logger
}

func NewNotifier(cfg config.AlertConfig, log logger.Logger) (*Notifier, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("create alert bot: %w", err)
	}
	return &Notifier{sender: bot, chatID: cfg.ChatID, log: log}, nil
}

// NewNotifierWithSender wires a custom sender; used by tests.
func NewNotifierWithSender(sender Sender, chatID int64, log logger.Logger) *Notifier {
	return &Notifier{sender: sender, chatID: chatID, log: log}
}

// PaymentAccepted reports a fully verified payment.
func (n *Notifier) PaymentAccepted(orderID string, amount float64) {
	if n == nil {
		return
	}
	n.send(fmt.Sprintf("✅ payment accepted\norder: %s\namount: %.2f", orderID, amount))
}

// PaymentRejected reports a failed verification with the checks that
// failed and any recorded faults.
func (n *Notifier) PaymentRejected(orderID string, verdict verification.Verdict) {
	if n == nil {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ payment notification rejected\norder: %s\nfailed checks: %s",
		orderID, strings.Join(verdict.FailedChecks(), ", "))
	for check, fault := range verdict.Faults {
		fmt.Fprintf(&b, "\n%s fault: %s", check, fault)
	}
	n.send(b.String())
}

func (n *Notifier) send(text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		// Alerting is best effort; a down channel must not affect the
		// verification outcome.
		n.log.Warn("failed to send alert", zap.Error(err))
	}
}
