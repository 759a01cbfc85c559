package devapi

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Seeded credentials and codes.
const (
	SeedAdminEmail    = "admin@affluence.local"
	SeedAdminPassword = "admin123"
	SeedUserEmail     = "demo@affluence.local"
	SeedUserPassword  = "demo123"
	SeedCoupon        = "WELCOME2024"
	SeedReferralCode  = "DEMO01"

	referralBonus      = 1000.0
	minWithdrawal      = 1000.0
	loanMonthlyRatePct = 5.0
)

// timeLayout is the naive timestamp format the real backend emits.
const timeLayout = "2006-01-02T15:04:05"

type bankDetails struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

type user struct {
	ID           int
	Username     string
	Email        string
	FullName     string
	Phone        string
	Password     string
	Role         string
	Active       bool
	ReferralCode string
	ReferredBy   int
	Activity     float64
	Affiliate    float64
	TotalEarned  float64
	Bank         *bankDetails
	CreatedAt    time.Time
}

type userView struct {
	ID               int          `json:"id"`
	Username         string       `json:"username"`
	Email            string       `json:"email"`
	FullName         string       `json:"full_name"`
	Phone            string       `json:"phone,omitempty"`
	Role             string       `json:"role"`
	IsActive         bool         `json:"is_active"`
	ReferralCode     string       `json:"referral_code"`
	ActivityBalance  float64      `json:"activity_balance"`
	AffiliateBalance float64      `json:"affiliate_balance"`
	TotalBalance     float64      `json:"total_balance"`
	BankDetails      *bankDetails `json:"bank_details,omitempty"`
	CreatedAt        string       `json:"created_at"`
}

func (u *user) view() userView {
	return userView{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		FullName:         u.FullName,
		Phone:            u.Phone,
		Role:             u.Role,
		IsActive:         u.Active,
		ReferralCode:     u.ReferralCode,
		ActivityBalance:  u.Activity,
		AffiliateBalance: u.Affiliate,
		TotalBalance:     u.Activity + u.Affiliate,
		BankDetails:      u.Bank,
		CreatedAt:        ts(u.CreatedAt),
	}
}

type userTask struct {
	ID          int    `json:"id"`
	UserID      int    `json:"user_id"`
	TaskID      int    `json:"task_id"`
	Status      string `json:"status"`
	TakenAt     string `json:"taken_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type withdrawal struct {
	ID          int     `json:"id"`
	UserID      int     `json:"user_id"`
	Username    string  `json:"username"`
	Amount      float64 `json:"amount"`
	BalanceType string  `json:"balance_type"`
	Status      string  `json:"status"`
	AdminNote   string  `json:"admin_note,omitempty"`
	CreatedAt   string  `json:"created_at"`
	ProcessedAt string  `json:"processed_at,omitempty"`
}

type loan struct {
	ID             int     `json:"id"`
	UserID         int     `json:"user_id"`
	Amount         float64 `json:"amount"`
	DurationMonths int     `json:"duration_months"`
	Purpose        string  `json:"purpose"`
	InterestRate   float64 `json:"interest_rate"`
	TotalAmount    float64 `json:"total_amount"`
	Status         string  `json:"status"`
	CreatedAt      string  `json:"created_at"`
}

type audio struct {
	ID              int     `json:"id"`
	Title           string  `json:"title"`
	Artist          string  `json:"artist"`
	DurationSeconds int     `json:"duration_seconds"`
	Amount          float64 `json:"amount"`
}

type stream struct {
	ID               int     `json:"id"`
	UserID           int     `json:"-"`
	AudioID          int     `json:"audio_id"`
	DurationListened int     `json:"duration_listened"`
	Completed        bool    `json:"completed"`
	Claimed          bool    `json:"claimed"`
	AmountEarned     float64 `json:"amount_earned"`
	CreatedAt        string  `json:"created_at"`
	Audio            *audio  `json:"audio,omitempty"`
}

type notification struct {
	ID        int    `json:"id"`
	UserID    int    `json:"-"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
}

type transaction struct {
	ID          int     `json:"id"`
	UserID      int     `json:"-"`
	Amount      float64 `json:"amount"`
	Type        string  `json:"type"`
	BalanceType string  `json:"balance_type"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"created_at"`
}

type logEntry struct {
	ID        int    `json:"id"`
	AdminID   int    `json:"admin_id"`
	Action    string `json:"action"`
	Details   string `json:"details"`
	CreatedAt string `json:"created_at"`
}

// resourceNames are the admin collections kept as free-form records.
// "tasks" doubles as the task catalogue served under /tasks.
var resourceNames = []string{"coupons", "articles", "cards", "announcements", "tasks"}

// state is the whole in-memory backend. Callers hold Server.mu.
type state struct {
	nextID int

	users         map[int]*user
	tokens        map[string]int
	resources     map[string][]map[string]any
	userTasks     []*userTask
	withdrawals   []*withdrawal
	loans         []*loan
	audios        []*audio
	streams       []*stream
	notifications []*notification
	transactions  []*transaction
	logs          []*logEntry
	clickToEarn   map[string]any
}

func newState(now time.Time) *state {
	st := &state{
		users:     make(map[int]*user),
		tokens:    make(map[string]int),
		resources: make(map[string][]map[string]any),
	}
	for _, name := range resourceNames {
		st.resources[name] = nil
	}

	st.addUser(&user{
		Username: "admin", Email: SeedAdminEmail, FullName: "Site Admin",
		Password: SeedAdminPassword, Role: "admin", Active: true, ReferralCode: "ADMIN1", CreatedAt: now,
	})
	st.addUser(&user{
		Username: "demo", Email: SeedUserEmail, FullName: "Demo User",
		Password: SeedUserPassword, Role: "user", Active: true, ReferralCode: SeedReferralCode,
		Activity: 2500, Affiliate: 1500, TotalEarned: 4000, CreatedAt: now,
	})

	st.addRecord("coupons", map[string]any{"code": SeedCoupon, "coupon_type": "activity", "is_used": false})
	st.addRecord("tasks", map[string]any{
		"title": "Follow Affluence on X", "description": "Follow the official account",
		"amount": 200.0, "reward_type": "activity", "time_estimate": 2, "task_type": "social",
		"status": "active", "availability": "all", "link": "https://x.com/affluence",
	})
	st.addRecord("tasks", map[string]any{
		"title": "Share your referral link", "description": "Post your link on WhatsApp",
		"amount": 300.0, "reward_type": "affiliate", "time_estimate": 5, "task_type": "share",
		"status": "active", "availability": "all",
	})
	st.addRecord("announcements", map[string]any{"title": "Welcome", "body": "Affluence dev backend"})

	st.audios = append(st.audios,
		&audio{ID: st.id(), Title: "Morning Groove", Artist: "DJ Dev", DurationSeconds: 30, Amount: 50},
		&audio{ID: st.id(), Title: "Evening Chill", Artist: "DJ Dev", DurationSeconds: 60, Amount: 100},
	)
	st.clickToEarn = map[string]any{"id": st.id(), "url": "https://example.com/ad", "amount": 20.0, "is_active": true}
	return st
}

func (st *state) id() int {
	st.nextID++
	return st.nextID
}

func (st *state) addUser(u *user) *user {
	u.ID = st.id()
	st.users[u.ID] = u
	return u
}

func (st *state) addRecord(resource string, rec map[string]any) map[string]any {
	out := make(map[string]any, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	out["id"] = st.id()
	st.resources[resource] = append(st.resources[resource], out)
	return out
}

func (st *state) record(resource string, id int) (int, map[string]any) {
	for i, rec := range st.resources[resource] {
		if recordID(rec) == id {
			return i, rec
		}
	}
	return -1, nil
}

func recordID(rec map[string]any) int {
	switch v := rec["id"].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func (st *state) userByLogin(login string) *user {
	login = strings.ToLower(strings.TrimSpace(login))
	for _, u := range st.users {
		if strings.ToLower(u.Email) == login || strings.ToLower(u.Username) == login {
			return u
		}
	}
	return nil
}

func (st *state) userByReferral(code string) *user {
	for _, u := range st.users {
		if code != "" && strings.EqualFold(u.ReferralCode, code) {
			return u
		}
	}
	return nil
}

// sortedUsers returns users ordered by id.
func (st *state) sortedUsers() []*user {
	out := make([]*user, 0, len(st.users))
	for _, u := range st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (st *state) referralCount(userID int) int {
	n := 0
	for _, u := range st.users {
		if u.ReferredBy == userID {
			n++
		}
	}
	return n
}

// credit adds amount to a balance and records the transaction.
func (st *state) credit(u *user, amount float64, balanceType, description string, now time.Time) {
	switch balanceType {
	case "affiliate", "referral":
		u.Affiliate += amount
	default:
		u.Activity += amount
	}
	if amount > 0 {
		u.TotalEarned += amount
	}
	st.transactions = append(st.transactions, &transaction{
		ID: st.id(), UserID: u.ID, Amount: amount, Type: txType(amount),
		BalanceType: balanceType, Description: description, CreatedAt: ts(now),
	})
}

func txType(amount float64) string {
	if amount < 0 {
		return "debit"
	}
	return "credit"
}

func (st *state) notify(userID int, title, msg string, now time.Time) {
	st.notifications = append(st.notifications, &notification{
		ID: st.id(), UserID: userID, Title: title, Message: msg, CreatedAt: ts(now),
	})
}

func (st *state) audit(adminID int, action, details string, now time.Time) {
	st.logs = append(st.logs, &logEntry{
		ID: st.id(), AdminID: adminID, Action: action, Details: details, CreatedAt: ts(now),
	})
}

func balanceOf(u *user, balanceType string) (float64, error) {
	switch balanceType {
	case "activity":
		return u.Activity, nil
	case "affiliate", "referral":
		return u.Affiliate, nil
	}
	return 0, fmt.Errorf("invalid balance type %q", balanceType)
}

func ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// page applies skip/limit to n items and returns the slice bounds.
func page(n, skip, limit int) (int, int) {
	if skip < 0 {
		skip = 0
	}
	if skip > n {
		skip = n
	}
	end := n
	if limit > 0 && limit < n-skip {
		end = skip + limit
	}
	return skip, end
}
