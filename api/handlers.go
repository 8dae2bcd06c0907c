// Package api is the display surface of the terminal: it reports the held
// card, the active mode and history, and accepts operator intents.
package api

import (
	// Go Internal Packages
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	// Local Packages
	errors "nfc-bank/errors"
	"nfc-bank/identity"
	models "nfc-bank/models"
	"nfc-bank/policy"
	"nfc-bank/services/engine"
	"nfc-bank/utils"

	// External Packages
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

type Engine interface {
	Apply(ctx context.Context, intent engine.Intent) error
	Intent() engine.Intent
	Current() (models.Card, bool)
	History(ctx context.Context) ([]models.LedgerEntry, error)
}

type Ledger interface {
	Query(ctx context.Context, id models.CardIdentity) ([]models.LedgerEntry, error)
}

type Notifications interface {
	Recent() []models.Notification
}

type Handler struct {
	Logger        *zap.Logger
	Engine        Engine
	Ledger        Ledger
	Notifications Notifications
	// BaseCtx bounds the scans armed through the API. Request contexts end
	// with the response and cannot be used for that.
	BaseCtx context.Context
}

func NewHandler(ctx context.Context, logger *zap.Logger, e Engine, ledger Ledger, notifications Notifications) *Handler {
	return &Handler{BaseCtx: ctx, Logger: logger, Engine: e, Ledger: ledger, Notifications: notifications}
}

type cardView struct {
	ID          uint64   `json:"id"`
	Number      string   `json:"number"`
	Registered  bool     `json:"registered"`
	Holder      string   `json:"holder,omitempty"`
	Balance     *float32 `json:"balance,omitempty"`
	BalanceText string   `json:"balance_text,omitempty"`
}

func newCardView(c models.Card) cardView {
	v := cardView{ID: uint64(c.ID), Number: identity.FormatCardNumber(c.ID), Registered: c.Registered()}
	if c.Data != nil {
		balance := c.Data.Balance
		v.Holder = c.Data.Holder
		v.Balance = &balance
		v.BalanceText = utils.FormatAmount(float64(balance))
	}
	return v
}

type entryView struct {
	Balance     float64                 `json:"balance"`
	BalanceText string                  `json:"balance_text"`
	Timestamp   time.Time               `json:"timestamp"`
	Operation   *models.OperationRecord `json:"operation,omitempty"`
}

type historyView struct {
	Card    uint64      `json:"card_id"`
	Number  string      `json:"number"`
	Entries []entryView `json:"entries"`
}

func newHistoryView(id models.CardIdentity, entries []models.LedgerEntry) historyView {
	v := historyView{Card: uint64(id), Number: identity.FormatCardNumber(id), Entries: make([]entryView, 0, len(entries))}
	for _, e := range entries {
		v.Entries = append(v.Entries, entryView{
			Balance:     e.Balance,
			BalanceText: utils.FormatAmount(e.Balance),
			Timestamp:   e.Timestamp,
			Operation:   e.Operation,
		})
	}
	return v
}

type modeView struct {
	Mode   string        `json:"mode"`
	Intent engine.Intent `json:"intent"`
}

type notificationView struct {
	Level     models.Level `json:"level"`
	Title     string       `json:"title"`
	Message   string       `json:"message"`
	CardID    *uint64      `json:"card_id,omitempty"`
	Error     string       `json:"error,omitempty"`
	EndsCycle bool         `json:"ends_cycle"`
}

// intentRequest is the operator form. Amount is decimal text or a number.
type intentRequest struct {
	Mode      string      `json:"mode"`
	Amount    json.Number `json:"amount"`
	Note      string      `json:"note"`
	Overdraft string      `json:"overdraft"`
	Source    string      `json:"source"`
	Holder    string      `json:"holder"`
}

func (req intentRequest) intent() (engine.Intent, error) {
	mode, err := engine.ParseMode(req.Mode)
	if err != nil {
		return engine.Intent{}, err
	}

	var amount float64
	if s := strings.TrimSpace(req.Amount.String()); s != "" {
		amount, err = utils.ParseAmount(s)
		if err != nil {
			return engine.Intent{}, errors.InvalidParamsErr(fmt.Errorf("amount: %w", err))
		}
	}

	return engine.Intent{
		Mode:      mode,
		Amount:    amount,
		Note:      strings.TrimSpace(req.Note),
		Overdraft: policy.Policy(strings.ToLower(strings.TrimSpace(req.Overdraft))),
		Source:    engine.HolderSource(strings.ToLower(strings.TrimSpace(req.Source))),
		Holder:    req.Holder,
	}, nil
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) Card(w http.ResponseWriter, _ *http.Request) {
	card, ok := h.Engine.Current()
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no card has been scanned", Kind: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, newCardView(card))
}

func (h *Handler) Mode(w http.ResponseWriter, _ *http.Request) {
	intent := h.Engine.Intent()
	writeJSON(w, http.StatusOK, modeView{Mode: intent.Mode.String(), Intent: intent})
}

func (h *Handler) ApplyIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, errors.InvalidBodyErr(err))
		return
	}

	intent, err := req.intent()
	if err != nil {
		writeErr(w, err)
		return
	}

	if err := h.Engine.Apply(h.BaseCtx, intent); err != nil {
		h.Logger.Warn("intent rejected", zap.Stringer("mode", intent.Mode), zap.Error(err))
		writeErr(w, err)
		return
	}

	h.Logger.Info("intent applied", zap.Stringer("mode", intent.Mode), zap.Float64("amount", intent.Amount))
	writeJSON(w, http.StatusAccepted, modeView{Mode: intent.Mode.String(), Intent: h.Engine.Intent()})
}

// History returns the ledger of the held card.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	card, ok := h.Engine.Current()
	if !ok {
		writeJSON(w, http.StatusOK, historyView{Entries: []entryView{}})
		return
	}

	entries, err := h.Engine.History(r.Context())
	if err != nil {
		h.Logger.Error("failed to query history", zap.Uint64("card_id", uint64(card.ID)), zap.Error(err))
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newHistoryView(card.ID, entries))
}

// CardHistory returns the ledger of any card, addressed by its identity or
// its serial number.
func (h *Handler) CardHistory(w http.ResponseWriter, r *http.Request) {
	param := chi.URLParam(r, "id")
	if param == "" {
		writeErr(w, errors.EmptyParamErr("id"))
		return
	}
	id, ok := identity.Parse(param)
	if !ok {
		writeErr(w, errors.InvalidParamsErr(fmt.Errorf("%q is not a card number", param)))
		return
	}

	entries, err := h.Ledger.Query(r.Context(), id)
	if err != nil {
		h.Logger.Error("failed to query history", zap.Uint64("card_id", uint64(id)), zap.Error(err))
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newHistoryView(id, entries))
}

func (h *Handler) RecentNotifications(w http.ResponseWriter, _ *http.Request) {
	recent := h.Notifications.Recent()
	out := make([]notificationView, 0, len(recent))
	for _, n := range recent {
		v := notificationView{Level: n.Level, Title: n.Title, Message: n.Message, EndsCycle: n.EndsCycle}
		if n.CardID != nil {
			id := uint64(*n.CardID)
			v.CardID = &id
		}
		if n.Err != nil {
			v.Error = n.Err.Error()
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}
