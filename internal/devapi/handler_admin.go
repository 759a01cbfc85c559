package devapi

import (
	"fmt"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
)

func (s *Server) adminID(r *http.Request) int {
	return userIDFromContext(r.Context())
}

func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var users, active int
	var balances float64
	for _, u := range s.st.users {
		if u.Role == "admin" {
			continue
		}
		users++
		if u.Active {
			active++
		}
		balances += u.Activity + u.Affiliate
	}
	var pending int
	var paid float64
	for _, wd := range s.st.withdrawals {
		switch wd.Status {
		case "pending":
			pending++
		case "approved":
			paid += wd.Amount
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total_users":         users,
		"active_users":        active,
		"total_balances":      balances,
		"pending_withdrawals": pending,
		"total_paid_out":      paid,
		"total_tasks":         len(s.st.resources["tasks"]),
		"pending_loans":       countLoans(s.st.loans, "pending"),
	})
}

func countLoans(loans []*loan, status string) int {
	n := 0
	for _, l := range loans {
		if l.Status == status {
			n++
		}
	}
	return n
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	role := r.URL.Query().Get("role")

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []userView
	for _, u := range s.st.sortedUsers() {
		if role == "" || u.Role == role {
			out = append(out, u.view())
		}
	}
	lo, hi := page(len(out), skip, limit)
	respondJSON(w, http.StatusOK, nonNil(out[lo:hi]))
}

// pathUser resolves {id} to a user, writing the error response when it
// cannot. Callers hold s.mu.
func (s *Server) pathUser(w http.ResponseWriter, r *http.Request) *user {
	id, ok := pathID(w, r)
	if !ok {
		return nil
	}
	u := s.st.users[id]
	if u == nil {
		respondDetail(w, http.StatusNotFound, "User not found")
	}
	return u
}

func (s *Server) handleAdminUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u := s.pathUser(w, r); u != nil {
		respondJSON(w, http.StatusOK, u.view())
	}
}

func (s *Server) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.pathUser(w, r)
	if u == nil {
		return
	}
	if u.ID == s.adminID(r) {
		respondDetail(w, http.StatusBadRequest, "You cannot delete your own account")
		return
	}
	delete(s.st.users, u.ID)
	for tok, id := range s.st.tokens {
		if id == u.ID {
			delete(s.st.tokens, tok)
		}
	}
	s.st.audit(s.adminID(r), "delete_user", "Deleted user "+u.Username, s.now())
	respondJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

func (s *Server) handleAdminUserRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Role != "user" && req.Role != "admin" {
		respondDetail(w, http.StatusBadRequest, "Role must be user or admin")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.pathUser(w, r)
	if u == nil {
		return
	}
	u.Role = req.Role
	s.st.audit(s.adminID(r), "update_role", fmt.Sprintf("Set role of %s to %s", u.Username, req.Role), s.now())
	respondJSON(w, http.StatusOK, u.view())
}

func (s *Server) handleAdminUserStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IsActive *bool `json:"is_active"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.IsActive == nil {
		respondValidation(w, []fieldError{missingField("is_active")})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.pathUser(w, r)
	if u == nil {
		return
	}
	u.Active = *req.IsActive
	s.st.audit(s.adminID(r), "update_status", fmt.Sprintf("Set %s active=%t", u.Username, u.Active), s.now())
	respondJSON(w, http.StatusOK, u.view())
}

func (s *Server) handleImpersonate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.pathUser(w, r)
	if u == nil {
		return
	}
	if u.Role == "admin" {
		respondDetail(w, http.StatusBadRequest, "Cannot impersonate another admin")
		return
	}
	tok := s.issueToken(u)
	s.st.audit(s.adminID(r), "impersonate", "Impersonated "+u.Username, s.now())
	view := u.view()
	respondJSON(w, http.StatusOK, tokenResponse{AccessToken: tok, TokenType: "bearer", User: &view})
}

func (s *Server) handleAdminWithdrawals(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)
	status := r.URL.Query().Get("status")

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*withdrawal
	for i := len(s.st.withdrawals) - 1; i >= 0; i-- {
		if wd := s.st.withdrawals[i]; status == "" || wd.Status == status {
			out = append(out, wd)
		}
	}
	lo, hi := page(len(out), skip, limit)
	respondJSON(w, http.StatusOK, nonNil(out[lo:hi]))
}

// handleProcessWithdrawal approves or rejects a pending withdrawal. The
// amount was held at creation, so a rejection refunds it.
func (s *Server) handleProcessWithdrawal(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req struct {
		Status    string `json:"status"`
		AdminNote string `json:"admin_note"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Status != "approved" && req.Status != "rejected" {
		respondDetail(w, http.StatusBadRequest, "Status must be approved or rejected")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var wd *withdrawal
	for _, c := range s.st.withdrawals {
		if c.ID == id {
			wd = c
		}
	}
	if wd == nil {
		respondDetail(w, http.StatusNotFound, "Withdrawal not found")
		return
	}
	if wd.Status != "pending" {
		respondDetail(w, http.StatusBadRequest, "Withdrawal has already been processed")
		return
	}

	now := s.now()
	wd.Status = req.Status
	wd.AdminNote = req.AdminNote
	wd.ProcessedAt = ts(now)
	if u := s.st.users[wd.UserID]; u != nil {
		if req.Status == "rejected" {
			s.st.credit(u, wd.Amount, wd.BalanceType, "Withdrawal refund", now)
		}
		s.st.notify(u.ID, "Withdrawal "+req.Status, fmt.Sprintf("Your withdrawal of %.2f was %s", wd.Amount, req.Status), now)
	}
	s.st.audit(s.adminID(r), "process_withdrawal", fmt.Sprintf("Withdrawal %d %s", wd.ID, req.Status), now)
	respondJSON(w, http.StatusOK, wd)
}

func (s *Server) handleAdminLogs(w http.ResponseWriter, r *http.Request) {
	skip, limit := pagination(r)

	s.mu.Lock()
	defer s.mu.Unlock()

	out := slices.Clone(s.st.logs)
	slices.Reverse(out)
	lo, hi := page(len(out), skip, limit)
	respondJSON(w, http.StatusOK, nonNil(out[lo:hi]))
}

func (s *Server) handleGetClickToEarn(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	respondJSON(w, http.StatusOK, s.st.clickToEarn)
}

func (s *Server) handleUpdateClickToEarn(w http.ResponseWriter, r *http.Request) {
	var upd map[string]any
	if !decodeBody(w, r, &upd) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range upd {
		if k != "id" {
			s.st.clickToEarn[k] = v
		}
	}
	s.st.audit(s.adminID(r), "update_click_to_earn", "Updated click-to-earn settings", s.now())
	respondJSON(w, http.StatusOK, s.st.clickToEarn)
}

// resourceName validates the {resource} URL parameter.
func resourceName(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := chi.URLParam(r, "resource")
	if !slices.Contains(resourceNames, name) {
		respondDetail(w, http.StatusNotFound, "Not Found")
		return "", false
	}
	return name, true
}

func (s *Server) handleListResource(w http.ResponseWriter, r *http.Request) {
	name, ok := resourceName(w, r)
	if !ok {
		return
	}
	skip, limit := pagination(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.st.resources[name]
	lo, hi := page(len(recs), skip, limit)
	respondJSON(w, http.StatusOK, nonNil(recs[lo:hi]))
}

func (s *Server) handleCreateResource(w http.ResponseWriter, r *http.Request) {
	name, ok := resourceName(w, r)
	if !ok {
		return
	}
	var rec map[string]any
	if !decodeBody(w, r, &rec) {
		return
	}
	if len(rec) == 0 {
		respondDetail(w, http.StatusBadRequest, "Record cannot be empty")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if name == "coupons" {
		if _, set := rec["is_used"]; !set {
			rec["is_used"] = false
		}
	}
	if name == "tasks" {
		if _, set := rec["status"]; !set {
			rec["status"] = "active"
		}
	}
	out := s.st.addRecord(name, rec)
	s.st.audit(s.adminID(r), "create_"+name, fmt.Sprintf("Created %s %d", name, recordID(out)), s.now())
	respondJSON(w, http.StatusCreated, out)
}

func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	name, ok := resourceName(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var upd map[string]any
	if !decodeBody(w, r, &upd) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, rec := s.st.record(name, id)
	if rec == nil {
		respondDetail(w, http.StatusNotFound, "Record not found")
		return
	}
	for k, v := range upd {
		if k != "id" {
			rec[k] = v
		}
	}
	s.st.audit(s.adminID(r), "update_"+name, fmt.Sprintf("Updated %s %d", name, id), s.now())
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	name, ok := resourceName(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i, _ := s.st.record(name, id)
	if i < 0 {
		respondDetail(w, http.StatusNotFound, "Record not found")
		return
	}
	s.st.resources[name] = slices.Delete(s.st.resources[name], i, i+1)
	s.st.audit(s.adminID(r), "delete_"+name, fmt.Sprintf("Deleted %s %d", name, id), s.now())
	respondJSON(w, http.StatusOK, map[string]string{"message": "Deleted successfully"})
}
