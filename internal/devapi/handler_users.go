package devapi

import (
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var accountNumberPattern = regexp.MustCompile(`^\d{10}$`)

// currentUser returns the authenticated user. Callers hold s.mu.
func (s *Server) currentUser(r *http.Request) *user {
	return s.st.users[userIDFromContext(r.Context())]
}

func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	respondJSON(w, http.StatusOK, s.currentUser(r).view())
}

type profileUpdate struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
}

func (s *Server) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var upd profileUpdate
	if !decodeBody(w, r, &upd) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.currentUser(r)

	if upd.Email != nil {
		if !emailPattern.MatchString(*upd.Email) {
			respondValidation(w, []fieldError{{Loc: []any{"body", "email"}, Msg: "value is not a valid email address", Type: "value_error.email"}})
			return
		}
		if other := s.st.userByLogin(*upd.Email); other != nil && other.ID != u.ID {
			respondDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
		u.Email = *upd.Email
	}
	if upd.FullName != nil {
		u.FullName = *upd.FullName
	}
	if upd.Phone != nil {
		u.Phone = *upd.Phone
	}
	respondJSON(w, http.StatusOK, u.view())
}

func (s *Server) handleBankDetails(w http.ResponseWriter, r *http.Request) {
	var b bankDetails
	if !decodeBody(w, r, &b) {
		return
	}
	if !accountNumberPattern.MatchString(b.AccountNumber) {
		respondValidation(w, []fieldError{{Loc: []any{"body", "account_number"}, Msg: "account number must be 10 digits", Type: "value_error"}})
		return
	}
	if strings.TrimSpace(b.BankName) == "" || strings.TrimSpace(b.AccountName) == "" {
		respondDetail(w, http.StatusBadRequest, "Bank name and account name are required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.currentUser(r)
	u.Bank = &b
	respondJSON(w, http.StatusOK, u.view())
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.currentUser(r)
	if u.Password != req.CurrentPassword {
		respondDetail(w, http.StatusBadRequest, "Current password is incorrect")
		return
	}
	if len(req.NewPassword) < 6 {
		respondDetail(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}
	u.Password = req.NewPassword
	respondJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.currentUser(r)

	completed := 0
	for _, ut := range s.st.userTasks {
		if ut.UserID == u.ID && ut.Status == "completed" {
			completed++
		}
	}
	pending := 0
	for _, wd := range s.st.withdrawals {
		if wd.UserID == u.ID && wd.Status == "pending" {
			pending++
		}
	}

	view := u.view()
	respondJSON(w, http.StatusOK, map[string]any{
		"balance": map[string]float64{
			"total":     u.Activity + u.Affiliate,
			"activity":  u.Activity,
			"affiliate": u.Affiliate,
		},
		"stats": map[string]any{
			"totalEarned":    u.TotalEarned,
			"totalReferrals": s.st.referralCount(u.ID),
		},
		"user":                view,
		"completed_tasks":     completed,
		"pending_withdrawals": pending,
	})
}

func (s *Server) handleReferrals(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.currentUser(r)

	var referred []userView
	for _, other := range s.st.sortedUsers() {
		if other.ReferredBy == u.ID {
			referred = append(referred, other.view())
		}
	}
	earned := 0.0
	for _, tx := range s.st.transactions {
		if tx.UserID == u.ID && tx.BalanceType == "affiliate" && tx.Amount > 0 {
			earned += tx.Amount
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"referral_code":   u.ReferralCode,
		"referral_link":   "/register.html?ref=" + u.ReferralCode,
		"total_referrals": len(referred),
		"total_earned":    earned,
		"referrals":       referred,
	})
}

type topEarner struct {
	Username         string  `json:"username"`
	FullName         string  `json:"full_name"`
	ReferralCode     string  `json:"referral_code"`
	AffiliateBalance float64 `json:"affiliate_balance"`
	ReferralCount    int     `json:"referral_count"`
}

func (s *Server) handleTopEarners(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []topEarner
	for _, u := range s.st.sortedUsers() {
		if u.Role == "admin" {
			continue
		}
		rows = append(rows, topEarner{
			Username:         u.Username,
			FullName:         u.FullName,
			ReferralCode:     u.ReferralCode,
			AffiliateBalance: u.Affiliate,
			ReferralCount:    s.st.referralCount(u.ID),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].AffiliateBalance > rows[j].AffiliateBalance })
	if len(rows) > limit {
		rows = rows[:limit]
	}
	respondJSON(w, http.StatusOK, nonNil(rows))
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userIDFromContext(r.Context())

	var mine []*notification
	for i := len(s.st.notifications) - 1; i >= 0; i-- {
		if n := s.st.notifications[i]; n.UserID == uid {
			mine = append(mine, n)
		}
	}
	lo, hi := page(len(mine), skip, limit)
	respondJSON(w, http.StatusOK, nonNil(mine[lo:hi]))
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userIDFromContext(r.Context())
	for _, n := range s.st.notifications {
		if n.ID == id && n.UserID == uid {
			n.IsRead = true
			respondJSON(w, http.StatusOK, n)
			return
		}
	}
	respondDetail(w, http.StatusNotFound, "Notification not found")
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	uid := userIDFromContext(r.Context())

	var mine []*transaction
	for i := len(s.st.transactions) - 1; i >= 0; i-- {
		if tx := s.st.transactions[i]; tx.UserID == uid {
			mine = append(mine, tx)
		}
	}
	lo, hi := page(len(mine), skip, limit)
	respondJSON(w, http.StatusOK, nonNil(mine[lo:hi]))
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
