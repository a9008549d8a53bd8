// Package notify pushes report summaries to chat.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/fortuna/sibyl/internal/logging"
	"github.com/fortuna/sibyl/internal/report"
)

// Sender is the part of tgbotapi.BotAPI the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends a summary of each report to one chat
type TelegramNotifier struct {
	sender Sender
	chatID int64
	minEV  decimal.Decimal
	logger *zerolog.Logger
}

// NewTelegramNotifier connects to the Bot API with token.
func NewTelegramNotifier(token string, chatID int64, minEV float64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false

	n := NewWithSender(bot, chatID, minEV)
	n.logger.Info().Int64("chat_id", chatID).Str("bot", bot.Self.UserName).Msg("Telegram notifier initialized")
	return n, nil
}

// NewWithSender builds a notifier around any Sender.
func NewWithSender(sender Sender, chatID int64, minEV float64) *TelegramNotifier {
	return &TelegramNotifier{
		sender: sender,
		chatID: chatID,
		minEV:  decimal.NewFromFloat(minEV),
		logger: logging.Default(),
	}
}

// SetLogger replaces the notifier logger.
func (n *TelegramNotifier) SetLogger(l *zerolog.Logger) {
	if l != nil {
		n.logger = l
	}
}

// Name implements report.Sink.
func (n *TelegramNotifier) Name() string { return "telegram" }

// Write implements report.Sink.
func (n *TelegramNotifier) Write(ctx context.Context, r *report.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(n.chatID, FormatSummary(r, n.minEV))
	msg.DisableWebPagePreview = true

	start := time.Now()
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	n.logger.Debug().Str("run_id", r.RunID.String()).Dur("took", time.Since(start)).Msg("Telegram summary sent")
	return nil
}

// FormatSummary renders the message for a report: counts, then every side
// whose expected value per 100 staked is above minEV.
func FormatSummary(r *report.Report, minEV decimal.Decimal) string {
	var b strings.Builder

	fmt.Fprintf(&b, "MLB report %s\n", r.Name)
	fmt.Fprintf(&b, "Games matched: %d (odds %d, predictions %d",
		len(r.Records), r.Stats.OddsIn, r.Stats.PredictionsIn)
	if skipped := r.Stats.OddsSkipped + r.Stats.PredictionsSkipped; skipped > 0 {
		fmt.Fprintf(&b, ", skipped %d", skipped)
	}
	if r.Stats.Ambiguous > 0 {
		fmt.Fprintf(&b, ", ambiguous %d", r.Stats.Ambiguous)
	}
	b.WriteString(")\n")

	var lines []string
	for _, row := range r.Rows() {
		if !row.EV.Valid || !row.EV.Decimal.GreaterThan(minEV) {
			continue
		}
		lines = append(lines, fmt.Sprintf("• %s %s (model %s%%, implied %s%%) EV %s",
			row.Team,
			formatOdds(*row.Odds),
			decimal.NewFromFloat(*row.WinPct).StringFixed(1),
			row.ImpliedPct.Decimal.StringFixed(2),
			signed(row.EV.Decimal),
		))
	}

	if len(lines) == 0 {
		b.WriteString("No positive-EV sides.")
		return b.String()
	}

	b.WriteString("Value:\n")
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}

func formatOdds(american int) string {
	if american > 0 {
		return fmt.Sprintf("+%d", american)
	}
	return fmt.Sprintf("%d", american)
}

func signed(d decimal.Decimal) string {
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}
