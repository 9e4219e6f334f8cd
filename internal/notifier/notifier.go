package notifier

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/shopspring/decimal"
	"github.com/suspectuso/bkc-faucet/internal/storage"
)

// Sender is the telegram call the notifier needs
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// Notifier tells the faucet operator about payouts and wallet failures.
// A nil *Notifier is valid and does nothing.
type Notifier struct {
	sender   Sender
	chatID   int64
	ticker   string
	explorer string
	timeout  time.Duration
	log      *slog.Logger

	wg sync.WaitGroup
}

// New creates a notifier posting to chatID through sender
func New(sender Sender, chatID int64, ticker, explorer string, log *slog.Logger) *Notifier {
	return &Notifier{
		sender:   sender,
		chatID:   chatID,
		ticker:   ticker,
		explorer: explorer,
		timeout:  10 * time.Second,
		log:      log,
	}
}

// NewTelegram connects a bot with token and returns a notifier for chatID
func NewTelegram(token string, chatID int64, ticker, explorer string, log *slog.Logger) (*Notifier, error) {
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return New(b, chatID, ticker, explorer, log), nil
}

// PaymentSent reports a successful payout
func (n *Notifier) PaymentSent(p storage.Payment) {
	if n == nil {
		return
	}
	n.send(n.formatPayment(p))
}

// SendFailed reports a payout the wallet refused or could not process
func (n *Notifier) SendFailed(address string, amount decimal.Decimal, cause error) {
	if n == nil {
		return
	}
	n.send(n.formatFailure(address, amount, cause))
}

// Wait blocks until queued notifications are delivered or dropped
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// send delivers in the background so the claim request never waits on telegram
func (n *Notifier) send(text string) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()

		if err := n.deliver(ctx, text); err != nil {
			n.log.Error("send operator notification", "error", err)
		}
	}()
}

func (n *Notifier) deliver(ctx context.Context, text string) error {
	disablePreview := true
	params := &bot.SendMessageParams{
		ChatID:    n.chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
		LinkPreviewOptions: &models.LinkPreviewOptions{
			IsDisabled: &disablePreview,
		},
	}

	_, err := n.sender.SendMessage(ctx, params)
	return err
}

func (n *Notifier) formatPayment(p storage.Payment) string {
	txLink := html.EscapeString(p.TxID)
	if n.explorer != "" {
		txLink = fmt.Sprintf("<a href='%s%s'>%s</a>",
			html.EscapeString(n.explorer), html.EscapeString(p.TxID), ShortID(p.TxID, 6))
	}

	lines := []string{
		"<b>✅ Faucet payout</b>",
		"",
		fmt.Sprintf("%s %s → <code>%s</code>", p.Amount.String(), html.EscapeString(n.ticker), html.EscapeString(p.Address)),
		"",
		"tx: " + txLink,
	}
	return strings.Join(lines, "\n")
}

func (n *Notifier) formatFailure(address string, amount decimal.Decimal, cause error) string {
	lines := []string{
		"<b>🟥 Faucet payout failed</b>",
		"",
		fmt.Sprintf("%s %s → <code>%s</code>", amount.String(), html.EscapeString(n.ticker), html.EscapeString(address)),
		"",
		fmt.Sprintf("<i>%s</i>", html.EscapeString(cause.Error())),
	}
	return strings.Join(lines, "\n")
}

// ShortID returns a shortened id for display
func ShortID(id string, n int) string {
	if id == "" {
		return "unknown"
	}
	if len(id) < n*2+3 {
		return id
	}
	return id[:n] + "..." + id[len(id)-n:]
}
