package api

import (
	"net/http"

	"github.com/billbatista/acasinha-chores/apperr"
	"github.com/billbatista/acasinha-chores/eventlogger"
	"github.com/billbatista/acasinha-chores/household"
	"github.com/billbatista/acasinha-chores/ledger"
	"github.com/billbatista/acasinha-chores/middleware"
	"github.com/google/uuid"
)

var errNoUser = apperr.Validation("user_id is required")

type recordEventRequest struct {
	// UserID defaults to the kiosk session user.
	UserID       *uuid.UUID  `json:"user_id"`
	CategoryID   uuid.UUID   `json:"category_id"`
	Cost         *int64      `json:"cost"`
	Participants []uuid.UUID `json:"participants"`
	Notes        string      `json:"notes"`
	ItemID       *uuid.UUID  `json:"item_id"`
	Stock        *int        `json:"stock"`
}

func (s *Server) recordEvent(w http.ResponseWriter, r *http.Request) {
	var req recordEventRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	in := household.ExpenseInput{
		CategoryID:   req.CategoryID,
		Cost:         req.Cost,
		Participants: req.Participants,
		Notes:        req.Notes,
	}
	switch id, ok := middleware.GetUserID(r.Context()); {
	case req.UserID != nil:
		in.PayerID = *req.UserID
	case ok:
		in.PayerID = id
	default:
		writeError(w, r, errNoUser)
		return
	}
	if req.ItemID != nil {
		if req.Stock == nil {
			writeError(w, r, apperr.Validation("stock is required with item_id"))
			return
		}
		in.Stock = &household.StockInput{ItemID: *req.ItemID, Level: *req.Stock}
	}

	res, err := s.Household.RecordExpenseEvent(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	data := map[string]any{
		"event_id":    res.Event.ID,
		"user_id":     res.Event.UserID,
		"category_id": res.Event.CategoryID,
	}
	eventType := eventlogger.TypeEventRecorded
	if req.Cost != nil {
		eventType = eventlogger.TypeExpenseRecorded
		data["cost"] = *req.Cost
		data["entries"] = len(res.Entries)
	}
	s.log(r, eventType, data)
	if res.Stock != nil {
		s.log(r, eventlogger.TypeStockSet, res.Stock)
	}

	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var events []household.EventWithCost
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		categoryID, perr := uuid.Parse(raw)
		if perr != nil {
			writeError(w, r, apperr.Validation("invalid category_id"))
			return
		}
		events, err = s.Household.CategoryEvents(r.Context(), categoryID, limit)
	} else {
		events, err = s.Household.RecentEvents(r.Context(), limit)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	evt, err := s.Household.Event(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, evt)
}

func (s *Server) recordSettlement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PayerID       uuid.UUID `json:"payer_id"`
		BeneficiaryID uuid.UUID `json:"beneficiary_id"`
		Amount        int64     `json:"amount"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := s.Household.RecordSettlement(r.Context(), req.PayerID, req.BeneficiaryID, req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	s.log(r, eventlogger.TypeSettlementRecorded, entry)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) listLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Household.Entries(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type balanceView struct {
	household.UserBalance
	Formatted string `json:"formatted"`
}

func (s *Server) listBalances(w http.ResponseWriter, r *http.Request) {
	board, err := s.Household.Balances(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]balanceView, 0, len(board))
	for _, b := range board {
		views = append(views, balanceView{
			UserBalance: b,
			Formatted:   ledger.FormatAmount(b.Balance, s.Money.Decimals, s.Money.Currency),
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	balance, err := s.Household.Balance(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_id":   id,
		"balance":   balance,
		"standing":  ledger.StandingOf(balance),
		"formatted": ledger.FormatAmount(balance, s.Money.Decimals, s.Money.Currency),
	})
}

func (s *Server) schedule(w http.ResponseWriter, r *http.Request) {
	weeks, err := queryInt(r, "weeks")
	if err != nil {
		writeError(w, r, err)
		return
	}
	schedule, err := s.Household.RotationSchedule(r.Context(), r.URL.Query().Get("category"), weeks)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": schedule})
}

func (s *Server) statusView(w http.ResponseWriter, r *http.Request) {
	board, err := s.Household.TaskStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
