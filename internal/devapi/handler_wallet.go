package devapi

import (
	"fmt"
	"math"
	"net/http"
	"strings"
)

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount      float64 `json:"amount"`
		BalanceType string  `json:"balance_type"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Amount < minWithdrawal {
		respondDetail(w, http.StatusBadRequest, fmt.Sprintf("Minimum withdrawal amount is %.0f", minWithdrawal))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.currentUser(r)

	bal, err := balanceOf(u, req.BalanceType)
	if err != nil {
		respondValidation(w, []fieldError{{Loc: []any{"body", "balance_type"}, Msg: err.Error(), Type: "value_error"}})
		return
	}
	if u.Bank == nil {
		respondDetail(w, http.StatusBadRequest, "Please add your bank details before withdrawing")
		return
	}
	if bal < req.Amount {
		respondDetail(w, http.StatusBadRequest, "Insufficient balance")
		return
	}

	now := s.now()
	s.st.credit(u, -req.Amount, req.BalanceType, "Withdrawal request", now)
	wd := &withdrawal{
		ID: s.st.id(), UserID: u.ID, Username: u.Username, Amount: req.Amount,
		BalanceType: req.BalanceType, Status: "pending", CreatedAt: ts(now),
	}
	s.st.withdrawals = append(s.st.withdrawals, wd)
	respondJSON(w, http.StatusCreated, wd)
}

func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userIDFromContext(r.Context())

	var mine []*withdrawal
	for i := len(s.st.withdrawals) - 1; i >= 0; i-- {
		if wd := s.st.withdrawals[i]; wd.UserID == uid {
			mine = append(mine, wd)
		}
	}
	lo, hi := page(len(mine), skip, limit)
	respondJSON(w, http.StatusOK, nonNil(mine[lo:hi]))
}

func (s *Server) handleGetWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userIDFromContext(r.Context())
	for _, wd := range s.st.withdrawals {
		if wd.ID == id && wd.UserID == uid {
			respondJSON(w, http.StatusOK, wd)
			return
		}
	}
	respondDetail(w, http.StatusNotFound, "Withdrawal not found")
}

func (s *Server) handleApplyLoan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount         float64 `json:"amount"`
		DurationMonths int     `json:"duration_months"`
		Purpose        string  `json:"purpose"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	var errs []fieldError
	if req.Amount <= 0 {
		errs = append(errs, fieldError{Loc: []any{"body", "amount"}, Msg: "ensure this value is greater than 0", Type: "value_error.number.not_gt"})
	}
	if req.DurationMonths <= 0 || req.DurationMonths > 60 {
		errs = append(errs, fieldError{Loc: []any{"body", "duration_months"}, Msg: "duration must be between 1 and 60 months", Type: "value_error"})
	}
	if strings.TrimSpace(req.Purpose) == "" {
		errs = append(errs, missingField("purpose"))
	}
	if len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userIDFromContext(r.Context())

	total := req.Amount * (1 + loanMonthlyRatePct/100*float64(req.DurationMonths))
	l := &loan{
		ID: s.st.id(), UserID: uid, Amount: req.Amount, DurationMonths: req.DurationMonths,
		Purpose: req.Purpose, InterestRate: loanMonthlyRatePct, TotalAmount: math.Round(total*100) / 100,
		Status: "pending", CreatedAt: ts(s.now()),
	}
	s.st.loans = append(s.st.loans, l)
	respondJSON(w, http.StatusCreated, l)
}

func (s *Server) handleListLoans(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userIDFromContext(r.Context())

	var mine []*loan
	for _, l := range s.st.loans {
		if l.UserID == uid {
			mine = append(mine, l)
		}
	}
	lo, hi := page(len(mine), skip, limit)
	respondJSON(w, http.StatusOK, nonNil(mine[lo:hi]))
}

func (s *Server) handleGetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userIDFromContext(r.Context())
	for _, l := range s.st.loans {
		if l.ID == id && l.UserID == uid {
			respondJSON(w, http.StatusOK, l)
			return
		}
	}
	respondDetail(w, http.StatusNotFound, "Loan not found")
}
