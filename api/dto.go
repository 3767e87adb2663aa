/*
dto.go - Request and response data structures for the HTTP API

PURPOSE:
  JSON shapes exchanged with clients. These are deliberately separate from
  the domain types: balances serialize as decimal strings so no client ever
  sees binary floating point drift, and passwords never appear in any
  response.

SEE ALSO:
  - handlers.go: Where these are read and written
*/
package api

import (
	"time"

	"github.com/paysecure/escrow-engine/escrow"
)

// =============================================================================
// REQUESTS
// =============================================================================

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type CreateOrderRequest struct {
	BuyerEmail  string  `json:"buyerEmail"`
	SellerEmail string  `json:"sellerEmail"`
	ProductName string  `json:"productName"`
	Amount      float64 `json:"amount"`
}

type TransitionRequest struct {
	ActorEmail string `json:"actorEmail"`
}

type TransferRequest struct {
	FromEmail   string  `json:"fromEmail"`
	ToEmail     string  `json:"toEmail"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

type ExchangeRequest struct {
	Email  string  `json:"email"`
	Amount float64 `json:"amount"`
	From   string  `json:"from"`
}

// =============================================================================
// RESPONSES
// =============================================================================

type AccountDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	CoinBalance   string `json:"coinBalance"`
	CashBalance   string `json:"cashBalance"`
	EscrowBalance string `json:"escrowBalance"`
	CreatedAt     string `json:"createdAt"`
}

func toAccountDTO(account escrow.Account) AccountDTO {
	return AccountDTO{
		ID:            string(account.ID),
		Name:          account.Name,
		Email:         account.Email,
		CoinBalance:   account.CoinBalance.String(),
		CashBalance:   account.CashBalance.String(),
		EscrowBalance: account.EscrowBalance.String(),
		CreatedAt:     account.CreatedAt.Format(time.RFC3339),
	}
}

type BalancesDTO struct {
	Coin   string `json:"coin"`
	Cash   string `json:"cash"`
	Escrow string `json:"escrow"`
}

type OrderDTO struct {
	ID          string `json:"id"`
	BuyerEmail  string `json:"buyerEmail"`
	SellerEmail string `json:"sellerEmail"`
	ProductName string `json:"productName"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

func toOrderDTO(order escrow.Order) OrderDTO {
	return OrderDTO{
		ID:          string(order.ID),
		BuyerEmail:  order.BuyerEmail,
		SellerEmail: order.SellerEmail,
		ProductName: order.ProductName,
		Amount:      order.Amount.Value.String(),
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   order.UpdatedAt.Format(time.RFC3339),
	}
}

type TransactionDTO struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	From        string `json:"from"`
	To          string `json:"to"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

func toTransactionDTO(record escrow.TransactionRecord) TransactionDTO {
	return TransactionDTO{
		ID:          string(record.ID),
		Kind:        string(record.Kind),
		From:        record.From,
		To:          record.To,
		Amount:      record.Amount.String(),
		Currency:    string(record.Currency),
		Description: record.Description,
		Timestamp:   record.Timestamp.Format(time.RFC3339),
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
