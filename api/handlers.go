/*
handlers.go - HTTP handlers for the escrow engine

PURPOSE:
  Exposes the intent API over REST. Handlers parse and validate input,
  delegate to the engine, persist a snapshot after every mutating intent,
  and serialize the result. No business rule lives here: authority and
  status checks happen in the engine, whatever buttons a client renders.

ENDPOINTS:
  Accounts:
    POST /api/accounts                  Register (grants starting balances)
    POST /api/login                     Authenticate
    GET  /api/accounts/{email}/balances Coin, cash, and escrow balances
    GET  /api/accounts/{email}/orders   Orders by role (buyer/seller/any)

  Orders:
    POST /api/orders                    Create order (holds buyer funds)
    POST /api/orders/{id}/{action}      accept|reject|ship|confirm|dispute

  Payments:
    POST /api/transfers                 Direct coin/cash transfer
    POST /api/exchange                  Coin<->cash conversion
    GET  /api/transactions              Full settlement log

ERROR HANDLING:
  Engine errors map onto HTTP status codes:
  - 400: invalid input, insufficient funds
  - 401: bad credentials
  - 404: unknown order or account
  - 409: invalid transition, duplicate account
  - 500: internal errors

PERSISTENCE:
  After each successful mutating intent the full snapshot is saved. The
  engine stays pure in-memory; this handler is the persistence boundary.

SEE ALSO:
  - dto.go: Request/response shapes
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/paysecure/escrow-engine/escrow"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *escrow.Engine

	// Snapshots receives the full state after every mutating intent.
	// Nil disables persistence (tests, ephemeral servers).
	Snapshots escrow.SnapshotStore
}

// NewHandler creates a handler over the given engine.
func NewHandler(engine *escrow.Engine, snapshots escrow.SnapshotStore) *Handler {
	return &Handler{Engine: engine, Snapshots: snapshots}
}

// persist saves a snapshot after a mutating intent. A save failure does not
// fail the intent: state is already committed in memory, and the next save
// retries the full snapshot anyway.
func (h *Handler) persist(r *http.Request) {
	if h.Snapshots == nil {
		return
	}
	snapshot, err := h.Engine.Snapshot(r.Context())
	if err != nil {
		log.Printf("snapshot failed: %v", err)
		return
	}
	if err := h.Snapshots.Save(r.Context(), snapshot); err != nil {
		log.Printf("snapshot save failed: %v", err)
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// Register creates an account with the starting balances.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "Name, email, and password are required", nil)
		return
	}

	account, err := h.Engine.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.persist(r)
	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

// Login authenticates by email and password.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	account, err := h.Engine.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
		return
	}

	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

// GetBalances returns the three balances for an account.
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	balances, err := h.Engine.GetBalances(r.Context(), email)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, BalancesDTO{
		Coin:   balances.Coin.String(),
		Cash:   balances.Cash.String(),
		Escrow: balances.Escrow.String(),
	})
}

// ListOrders returns the orders an account participates in. The role query
// parameter selects the side: buyer (default), seller, or any.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	role := escrow.Role(r.URL.Query().Get("role"))
	switch role {
	case "":
		role = escrow.RoleBuyer
	case escrow.RoleBuyer, escrow.RoleSeller, escrow.RoleAny:
	default:
		writeError(w, http.StatusBadRequest, "Role must be buyer, seller, or any", nil)
		return
	}

	if _, err := h.Engine.GetBalances(r.Context(), email); err != nil {
		writeEngineError(w, err)
		return
	}

	dtos := []OrderDTO{}
	for order := range h.Engine.ListOrders(r.Context(), email, role) {
		dtos = append(dtos, toOrderDTO(order))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orders": dtos,
		"active": h.Engine.ActiveOrderCount(r.Context(), email),
	})
}

// =============================================================================
// ORDER HANDLERS
// =============================================================================

// CreateOrder creates an order as the buyer, holding the amount in escrow.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.BuyerEmail == "" || req.SellerEmail == "" || req.ProductName == "" {
		writeError(w, http.StatusBadRequest, "Buyer, seller, and product name are required", nil)
		return
	}

	id, err := h.Engine.CreateOrder(r.Context(), req.BuyerEmail, req.SellerEmail,
		req.ProductName, decimal.NewFromFloat(req.Amount))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	order, err := h.Engine.Orders.Find(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load created order", err)
		return
	}

	h.persist(r)
	writeJSON(w, http.StatusCreated, toOrderDTO(order))
}

// TransitionOrder applies an action (accept, reject, ship, confirm, dispute)
// to an order as the acting account.
func (h *Handler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	id := escrow.OrderID(chi.URLParam(r, "id"))

	action, ok := escrow.ParseAction(chi.URLParam(r, "action"))
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown action", nil)
		return
	}

	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ActorEmail == "" {
		writeError(w, http.StatusBadRequest, "Actor email is required", nil)
		return
	}

	order, err := h.Engine.Transition(r.Context(), id, req.ActorEmail, action)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.persist(r)
	writeJSON(w, http.StatusOK, toOrderDTO(order))
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

// Transfer moves coins or cash directly between two accounts.
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	currency := escrow.Currency(req.Currency)
	if currency != escrow.CurrencyCoins && currency != escrow.CurrencyCash {
		writeError(w, http.StatusBadRequest, "Currency must be coins or cash", nil)
		return
	}

	record, err := h.Engine.Transfer(r.Context(), req.FromEmail, req.ToEmail,
		decimal.NewFromFloat(req.Amount), currency, req.Description)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.persist(r)
	writeJSON(w, http.StatusCreated, toTransactionDTO(record))
}

// Exchange converts between coins and cash within one account.
func (h *Handler) Exchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	from := escrow.Currency(req.From)
	if from != escrow.CurrencyCoins && from != escrow.CurrencyCash {
		writeError(w, http.StatusBadRequest, "From currency must be coins or cash", nil)
		return
	}

	record, err := h.Engine.Exchange(r.Context(), req.Email, decimal.NewFromFloat(req.Amount), from)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	h.persist(r)
	writeJSON(w, http.StatusCreated, toTransactionDTO(record))
}

// ListTransactions returns the full settlement log in append order.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	dtos := []TransactionDTO{}
	for record := range h.Engine.ListTransactions(r.Context()) {
		dtos = append(dtos, toTransactionDTO(record))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": dtos})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors onto HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, escrow.ErrNotFound):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, escrow.ErrDuplicateAccount):
		writeError(w, http.StatusConflict, "Account already exists", err)
	case errors.Is(err, escrow.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "Invalid transition", err)
	case errors.Is(err, escrow.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "Insufficient funds", err)
	case errors.Is(err, escrow.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
	case errors.Is(err, escrow.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
