// Package payout computes faucet amounts, sends them through the wallet and
// keeps the payment log.
package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/suspectuso/bkc-faucet/internal/storage"
)

// AmountPlaces is the number of fractional digits kept in a payout.
// Rounding is half away from zero, which is half-up for positive amounts.
const AmountPlaces = 5

var (
	// DefaultAmount is paid when the faucet balance cannot be read
	DefaultAmount = decimal.NewFromInt(5)

	balanceDivisor = decimal.NewFromInt(1000)
)

var ErrTxNotFound = errors.New("transaction not found")

// Wallet is the remote side of a payout
type Wallet interface {
	Balance(ctx context.Context) (decimal.Decimal, error)
	Send(ctx context.Context, address string, amount decimal.Decimal) (string, error)
}

// Ledger is the append-only payment log
type Ledger interface {
	LogPayment(ctx context.Context, p storage.Payment) error
	LatestPayment(ctx context.Context, txid string) (*storage.Payment, error)
}

// Issuer pays claims and records them
type Issuer struct {
	wallet Wallet
	ledger Ledger
	now    func() time.Time
	log    *slog.Logger
}

// NewIssuer creates an issuer. now may be nil.
func NewIssuer(wallet Wallet, ledger Ledger, now func() time.Time, log *slog.Logger) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{
		wallet: wallet,
		ledger: ledger,
		now:    now,
		log:    log,
	}
}

// Balance returns the faucet balance as reported by the wallet
func (i *Issuer) Balance(ctx context.Context) (decimal.Decimal, error) {
	return i.wallet.Balance(ctx)
}

// AmountToSend is a thousandth of the faucet balance rounded to AmountPlaces,
// or DefaultAmount when the balance is unavailable or too small to pay from.
func (i *Issuer) AmountToSend(ctx context.Context) decimal.Decimal {
	balance, err := i.wallet.Balance(ctx)
	if err != nil {
		i.log.Warn("balance unavailable, using default amount", "error", err, "amount", DefaultAmount)
		return DefaultAmount
	}

	amount := balance.Div(balanceDivisor).Round(AmountPlaces)
	if !amount.IsPositive() {
		i.log.Warn("balance too low, using default amount", "balance", balance, "amount", DefaultAmount)
		return DefaultAmount
	}

	return amount
}

// Issue sends amount to address and returns the txid. Errors are
// *wallet.RemoteError values from the wallet client.
func (i *Issuer) Issue(ctx context.Context, address string, amount decimal.Decimal) (string, error) {
	txid, err := i.wallet.Send(ctx, address, amount)
	if err != nil {
		return "", err
	}

	i.log.Info("payment sent", "address", address, "amount", amount, "txid", txid)
	return txid, nil
}

// Record appends the payment to the log
func (i *Issuer) Record(ctx context.Context, address string, amount decimal.Decimal, txid string) (storage.Payment, error) {
	p := storage.Payment{
		Time:    i.now(),
		Address: address,
		Amount:  amount,
		TxID:    txid,
	}
	if err := i.ledger.LogPayment(ctx, p); err != nil {
		return p, fmt.Errorf("log payment: %w", err)
	}
	return p, nil
}

// Lookup returns the most recent payment with txid
func (i *Issuer) Lookup(ctx context.Context, txid string) (*storage.Payment, error) {
	p, err := i.ledger.LatestPayment(ctx, txid)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrTxNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup payment: %w", err)
	}
	return p, nil
}
