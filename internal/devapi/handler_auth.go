package devapi

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	User        *userView `json:"user,omitempty"`
}

// handleLogin accepts an OAuth2 password form; "username" may hold the
// email or the username.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.passwordLogin(w, r, false)
}

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	s.passwordLogin(w, r, true)
}

func (s *Server) passwordLogin(w http.ResponseWriter, r *http.Request, admin bool) {
	if err := r.ParseForm(); err != nil {
		respondValidation(w, []fieldError{{Loc: []any{"body"}, Msg: err.Error(), Type: "value_error"}})
		return
	}
	login, password := r.PostForm.Get("username"), r.PostForm.Get("password")
	var missing []fieldError
	if login == "" {
		missing = append(missing, missingField("username"))
	}
	if password == "" {
		missing = append(missing, missingField("password"))
	}
	if len(missing) > 0 {
		respondValidation(w, missing)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.st.userByLogin(login)
	if u == nil || u.Password != password {
		respondDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if !u.Active {
		respondDetail(w, http.StatusBadRequest, "Account is disabled")
		return
	}
	if admin && u.Role != "admin" {
		respondDetail(w, http.StatusForbidden, "Admin privileges required")
		return
	}

	tok := s.issueToken(u)
	view := u.view()
	respondJSON(w, http.StatusOK, tokenResponse{AccessToken: tok, TokenType: "bearer", User: &view})
}

// issueToken mints a bearer token for u. Callers hold s.mu.
func (s *Server) issueToken(u *user) string {
	tok := uuid.NewString()
	s.st.tokens[tok] = u.ID
	return tok
}

type registerRequest struct {
	Username     string  `json:"username"`
	Email        string  `json:"email"`
	FullName     string  `json:"full_name"`
	Password     string  `json:"password"`
	Phone        *string `json:"phone"`
	ReferralCode *string `json:"referral_code"`
	CouponCode   *string `json:"coupon_code"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var errs []fieldError
	for _, f := range []struct{ name, val string }{
		{"username", req.Username}, {"email", req.Email}, {"full_name", req.FullName}, {"password", req.Password},
	} {
		if strings.TrimSpace(f.val) == "" {
			errs = append(errs, missingField(f.name))
		}
	}
	if req.Email != "" && !emailPattern.MatchString(req.Email) {
		errs = append(errs, fieldError{Loc: []any{"body", "email"}, Msg: "value is not a valid email address", Type: "value_error.email"})
	}
	if len(errs) > 0 {
		respondValidation(w, errs)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.st.userByLogin(req.Email) != nil {
		respondDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	if s.st.userByLogin(req.Username) != nil {
		respondDetail(w, http.StatusBadRequest, "Username already taken")
		return
	}

	var coupon map[string]any
	if req.CouponCode != nil {
		for _, c := range s.st.resources["coupons"] {
			if code, _ := c["code"].(string); strings.EqualFold(code, *req.CouponCode) {
				coupon = c
			}
		}
	}
	if coupon == nil {
		respondDetail(w, http.StatusBadRequest, "Invalid coupon code")
		return
	}
	if used, _ := coupon["is_used"].(bool); used {
		respondDetail(w, http.StatusBadRequest, "Coupon code has already been used")
		return
	}

	var referrer *user
	if req.ReferralCode != nil && *req.ReferralCode != "" {
		if referrer = s.st.userByReferral(*req.ReferralCode); referrer == nil {
			respondDetail(w, http.StatusBadRequest, "Invalid referral code")
			return
		}
	}

	now := s.now()
	u := &user{
		Username:  req.Username,
		Email:     req.Email,
		FullName:  req.FullName,
		Password:  req.Password,
		Role:      "user",
		Active:    true,
		CreatedAt: now,
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}
	s.st.addUser(u)
	u.ReferralCode = fmt.Sprintf("AFF%04d", u.ID)
	coupon["is_used"] = true

	if referrer != nil {
		u.ReferredBy = referrer.ID
		s.st.credit(referrer, referralBonus, "affiliate", "Referral bonus for "+u.Username, now)
		s.st.notify(referrer.ID, "New referral", u.Username+" joined with your code", now)
	}
	s.st.notify(u.ID, "Welcome to Affluence", "Your account is ready", now)

	respondJSON(w, http.StatusCreated, u.view())
}
