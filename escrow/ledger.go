/*
ledger.go - Balance movements between accounts

PURPOSE:
  The Ledger is the only code that mutates balances. Every movement is a
  paired debit/credit applied atomically through the AccountStore, so the
  conservation invariant holds by construction: funds are moved, never
  created or destroyed.

MOVEMENTS:
  Hold:     buyer coin -> buyer escrow      (order creation)
  Release:  buyer escrow -> seller coin     (delivery confirmed)
  Refund:   buyer escrow -> buyer coin      (order rejected)
  Transfer: coin or cash between accounts   (direct payment)
  Exchange: coin <-> cash within an account (par conversion)

CRITICAL INVARIANTS:
  1. No balance ever goes negative; preconditions are checked before any
     mutation and the whole movement is rejected on failure.
  2. Both sides of a movement commit under one store lock, so no reader
     observes a partially-applied state.
  3. Escrow balances change only through Hold, Release, and Refund.

SEE ALSO:
  - store.go: AccountStore atomicity contract
  - order.go: Which transitions trigger which movements
*/
package escrow

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER - All balance mutation goes through here
// =============================================================================

type Ledger struct {
	Accounts AccountStore
}

func NewLedger(accounts AccountStore) *Ledger {
	return &Ledger{Accounts: accounts}
}

// Hold moves amount from the buyer's coin balance into the buyer's escrow
// balance. Fails with ErrInsufficientFunds if coins are short.
func (l *Ledger) Hold(ctx context.Context, buyerEmail string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("hold %v for %s: %w", amount, buyerEmail, ErrInvalidAmount)
	}
	return l.Accounts.Update(ctx, buyerEmail, func(buyer *Account) error {
		if buyer.CoinBalance.LessThan(amount) {
			return &InsufficientFundsError{
				Email:     buyerEmail,
				Balance:   "coin",
				Available: buyer.CoinBalance,
				Requested: amount,
				Shortfall: amount.Sub(buyer.CoinBalance),
			}
		}
		buyer.CoinBalance = buyer.CoinBalance.Sub(amount)
		buyer.EscrowBalance = buyer.EscrowBalance.Add(amount)
		return nil
	})
}

// Release moves amount from the buyer's escrow balance to the seller's coin
// balance. Used only on successful delivery confirmation.
func (l *Ledger) Release(ctx context.Context, buyerEmail, sellerEmail string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("release %v from %s: %w", amount, buyerEmail, ErrInvalidAmount)
	}
	return l.Accounts.UpdatePair(ctx, buyerEmail, sellerEmail, func(buyer, seller *Account) error {
		if buyer.EscrowBalance.LessThan(amount) {
			return &InsufficientFundsError{
				Email:     buyerEmail,
				Balance:   "escrow",
				Available: buyer.EscrowBalance,
				Requested: amount,
				Shortfall: amount.Sub(buyer.EscrowBalance),
			}
		}
		buyer.EscrowBalance = buyer.EscrowBalance.Sub(amount)
		seller.CoinBalance = seller.CoinBalance.Add(amount)
		return nil
	})
}

// Refund reverses a hold: amount moves from the buyer's escrow balance back
// to the buyer's coin balance, crediting no seller. Used on rejection.
func (l *Ledger) Refund(ctx context.Context, buyerEmail string, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("refund %v for %s: %w", amount, buyerEmail, ErrInvalidAmount)
	}
	return l.Accounts.Update(ctx, buyerEmail, func(buyer *Account) error {
		if buyer.EscrowBalance.LessThan(amount) {
			return &InsufficientFundsError{
				Email:     buyerEmail,
				Balance:   "escrow",
				Available: buyer.EscrowBalance,
				Requested: amount,
				Shortfall: amount.Sub(buyer.EscrowBalance),
			}
		}
		buyer.EscrowBalance = buyer.EscrowBalance.Sub(amount)
		buyer.CoinBalance = buyer.CoinBalance.Add(amount)
		return nil
	})
}

// Transfer moves amount of the given currency directly from one account to
// another, outside any order.
func (l *Ledger) Transfer(ctx context.Context, fromEmail, toEmail string, amount decimal.Decimal, currency Currency) error {
	if !amount.IsPositive() {
		return fmt.Errorf("transfer %v from %s: %w", amount, fromEmail, ErrInvalidAmount)
	}
	if fromEmail == toEmail {
		return fmt.Errorf("transfer from %s: source and destination are the same account: %w", fromEmail, ErrInvalidAmount)
	}
	return l.Accounts.UpdatePair(ctx, fromEmail, toEmail, func(from, to *Account) error {
		switch currency {
		case CurrencyCoins:
			if from.CoinBalance.LessThan(amount) {
				return &InsufficientFundsError{
					Email:     fromEmail,
					Balance:   "coin",
					Available: from.CoinBalance,
					Requested: amount,
					Shortfall: amount.Sub(from.CoinBalance),
				}
			}
			from.CoinBalance = from.CoinBalance.Sub(amount)
			to.CoinBalance = to.CoinBalance.Add(amount)
		case CurrencyCash:
			if from.CashBalance.LessThan(amount) {
				return &InsufficientFundsError{
					Email:     fromEmail,
					Balance:   "cash",
					Available: from.CashBalance,
					Requested: amount,
					Shortfall: amount.Sub(from.CashBalance),
				}
			}
			from.CashBalance = from.CashBalance.Sub(amount)
			to.CashBalance = to.CashBalance.Add(amount)
		default:
			return fmt.Errorf("transfer in unknown currency %q: %w", currency, ErrInvalidAmount)
		}
		return nil
	})
}

// Exchange converts amount between coins and cash within one account, at par.
// from names the source currency.
func (l *Ledger) Exchange(ctx context.Context, email string, amount decimal.Decimal, from Currency) error {
	if !amount.IsPositive() {
		return fmt.Errorf("exchange %v for %s: %w", amount, email, ErrInvalidAmount)
	}
	return l.Accounts.Update(ctx, email, func(account *Account) error {
		switch from {
		case CurrencyCoins:
			if account.CoinBalance.LessThan(amount) {
				return &InsufficientFundsError{
					Email:     email,
					Balance:   "coin",
					Available: account.CoinBalance,
					Requested: amount,
					Shortfall: amount.Sub(account.CoinBalance),
				}
			}
			account.CoinBalance = account.CoinBalance.Sub(amount)
			account.CashBalance = account.CashBalance.Add(amount)
		case CurrencyCash:
			if account.CashBalance.LessThan(amount) {
				return &InsufficientFundsError{
					Email:     email,
					Balance:   "cash",
					Available: account.CashBalance,
					Requested: amount,
					Shortfall: amount.Sub(account.CashBalance),
				}
			}
			account.CashBalance = account.CashBalance.Sub(amount)
			account.CoinBalance = account.CoinBalance.Add(amount)
		default:
			return fmt.Errorf("exchange from unknown currency %q: %w", from, ErrInvalidAmount)
		}
		return nil
	})
}
