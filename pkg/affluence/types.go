package affluence

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Amount is a Naira amount. The backend sends amounts as JSON numbers or
// numeric strings; null, empty and unparseable values decode to zero.
type Amount float64

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*a = 0
			return nil
		}
		*a = Amount(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*a = Amount(f)
	return nil
}

// Float returns the amount as a float64.
func (a Amount) Float() float64 { return float64(a) }

// ID is a backend identifier that may arrive as a number or a string.
type ID string

// UnmarshalJSON implements json.Unmarshaler.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*id = ID(n.String())
	return nil
}

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// Time is a backend timestamp. It accepts RFC 3339 and the naive
// "2006-01-02T15:04:05" form the backend emits; unparseable values are zero.
type Time struct {
	time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Time) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil || s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	t.Time = time.Time{}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// TokenResponse is returned by the login endpoints.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user,omitempty"`
}

// BankDetails are the payout account of a user.
type BankDetails struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

// User is the profile returned by /users/me.
type User struct {
	ID               ID           `json:"id"`
	Username         string       `json:"username"`
	Email            string       `json:"email"`
	FullName         string       `json:"full_name"`
	Phone            string       `json:"phone,omitempty"`
	Role             string       `json:"role,omitempty"`
	UserType         string       `json:"user_type,omitempty"`
	IsActive         *bool        `json:"is_active,omitempty"`
	ReferralCode     string       `json:"referral_code,omitempty"`
	ActivityBalance  Amount       `json:"activity_balance"`
	AffiliateBalance Amount       `json:"affiliate_balance"`
	TotalBalance     Amount       `json:"total_balance"`
	BankDetails      *BankDetails `json:"bank_details,omitempty"`
	CreatedAt        Time         `json:"created_at"`
}

// HasBankDetails reports whether a payout account number is on file.
func (u *User) HasBankDetails() bool {
	return u != nil && u.BankDetails != nil && u.BankDetails.AccountNumber != ""
}

// Active reports the account status, defaulting to active when unset.
func (u *User) Active() bool {
	return u.IsActive == nil || *u.IsActive
}

// ProfileUpdate is the body of PUT /users/me. Nil fields are not sent.
type ProfileUpdate struct {
	FullName *string `json:"full_name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username        string  `json:"username"`
	Email           string  `json:"email"`
	FullName        string  `json:"full_name"`
	Password        string  `json:"password"`
	ConfirmPassword string  `json:"-"`
	Phone           *string `json:"phone"`
	ReferralCode    *string `json:"referral_code"`
	CouponCode      *string `json:"coupon_code"`
	CouponType      string  `json:"-"`
}

// BalanceType selects which balance a withdrawal draws from.
type BalanceType string

const (
	BalanceActivity  BalanceType = "activity"
	BalanceReferral  BalanceType = "referral"
	BalanceAffiliate BalanceType = "affiliate"
	BalanceTotal     BalanceType = "total"
)

// Withdrawable reports whether a withdrawal may draw from this balance.
func (b BalanceType) Withdrawable() bool {
	switch b {
	case BalanceActivity, BalanceReferral, BalanceAffiliate:
		return true
	}
	return false
}

// Balances groups the three balance figures.
type Balances struct {
	Total     float64 `json:"total"`
	Activity  float64 `json:"activity"`
	Affiliate float64 `json:"affiliate"`
}

// Of returns the figure for a balance type. Referral and affiliate are the
// same balance.
func (b Balances) Of(t BalanceType) float64 {
	switch t {
	case BalanceActivity:
		return b.Activity
	case BalanceReferral, BalanceAffiliate:
		return b.Affiliate
	default:
		return b.Total
	}
}

// nestedBalance uses pointers so an absent field can fall back to the flat
// fields while an explicit zero does not.
type nestedBalance struct {
	Total     *Amount `json:"total"`
	Activity  *Amount `json:"activity"`
	Affiliate *Amount `json:"affiliate"`
}

// UnmarshalJSON ignores a "balance" that is not an object.
func (n *nestedBalance) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		return nil
	}
	type plain nestedBalance
	return json.Unmarshal(data, (*plain)(n))
}

type dashboardStats struct {
	TotalEarned    *Amount `json:"totalEarned"`
	TotalReferrals *int    `json:"totalReferrals"`
}

// UnmarshalJSON ignores a "stats" that is not an object.
func (s *dashboardStats) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		return nil
	}
	type plain dashboardStats
	return json.Unmarshal(data, (*plain)(s))
}

func isObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == '{'
}

// Dashboard is returned by /users/dashboard. Older and newer backends nest
// the figures differently; use the accessor methods rather than the raw
// fields.
type Dashboard struct {
	Balance            *nestedBalance  `json:"balance,omitempty"`
	Stats              *dashboardStats `json:"stats,omitempty"`
	User               *User           `json:"user,omitempty"`
	TotalBalanceRaw    Amount          `json:"total_balance"`
	ActivityBalanceRaw Amount          `json:"activity_balance"`
	ReferralBalanceRaw Amount          `json:"referral_balance"`
	AffiliateBalance   Amount          `json:"affiliate_balance"`
	TotalEarnedRaw     Amount          `json:"total_earned"`
	TotalReferralsRaw  int             `json:"total_referrals"`
	CompletedTasks     int             `json:"completed_tasks"`
	CompletedArticles  int             `json:"completed_articles"`
	PendingWithdrawals int             `json:"pending_withdrawals"`
}

// Balances returns the balance figures, preferring the nested "balance"
// object over the flat fields.
func (d *Dashboard) Balances() Balances {
	var b Balances
	b.Total = d.TotalBalanceRaw.Float()
	b.Activity = d.ActivityBalanceRaw.Float()
	b.Affiliate = d.ReferralBalanceRaw.Float()
	if b.Affiliate == 0 {
		b.Affiliate = d.AffiliateBalance.Float()
	}
	if d.Balance != nil {
		if d.Balance.Total != nil {
			b.Total = d.Balance.Total.Float()
		}
		if d.Balance.Activity != nil {
			b.Activity = d.Balance.Activity.Float()
		}
		if d.Balance.Affiliate != nil {
			b.Affiliate = d.Balance.Affiliate.Float()
		}
	}
	return b
}

// TotalEarned returns the lifetime earnings figure.
func (d *Dashboard) TotalEarned() float64 {
	if d.Stats != nil && d.Stats.TotalEarned != nil {
		return d.Stats.TotalEarned.Float()
	}
	return d.TotalEarnedRaw.Float()
}

// TotalReferrals returns the number of referred users.
func (d *Dashboard) TotalReferrals() int {
	if d.Stats != nil && d.Stats.TotalReferrals != nil {
		return *d.Stats.TotalReferrals
	}
	return d.TotalReferralsRaw
}

// ReferralInfo is returned by /users/referrals.
type ReferralInfo struct {
	ReferralCode   string `json:"referral_code"`
	ReferralLink   string `json:"referral_link,omitempty"`
	TotalReferrals int    `json:"total_referrals"`
	TotalEarned    Amount `json:"total_earned"`
	Referrals      []User `json:"referrals,omitempty"`
}

// TopEarner is one leaderboard row.
type TopEarner struct {
	Username         string `json:"username"`
	FullName         string `json:"full_name"`
	ReferralCode     string `json:"referral_code"`
	AffiliateBalance Amount `json:"affiliate_balance"`
	ReferralCount    int    `json:"referral_count"`
}

// Notification is a user notification.
type Notification struct {
	ID        ID     `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt Time   `json:"created_at"`
}

// Transaction is one ledger entry of a user.
type Transaction struct {
	ID          ID          `json:"id"`
	Amount      Amount      `json:"amount"`
	Type        string      `json:"type"`
	BalanceType BalanceType `json:"balance_type"`
	Description string      `json:"description"`
	CreatedAt   Time        `json:"created_at"`
}

// TaskStatus is the per-user state of a task.
type TaskStatus string

const (
	TaskAvailable TaskStatus = "available"
	TaskTaken     TaskStatus = "taken"
	TaskClaimed   TaskStatus = "claimed"
)

// Task is a task users can take and claim a reward for.
type Task struct {
	ID           ID          `json:"id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Amount       Amount      `json:"amount"`
	RewardType   BalanceType `json:"reward_type"`
	TimeEstimate int         `json:"time_estimate"`
	TaskType     string      `json:"task_type"`
	Status       string      `json:"status"`
	Availability string      `json:"availability"`
	Link         string      `json:"link,omitempty"`
}

// UserTask is a task taken by the current user.
type UserTask struct {
	ID          ID         `json:"id"`
	TaskID      ID         `json:"task_id"`
	Status      TaskStatus `json:"status"`
	TakenAt     Time       `json:"taken_at"`
	CompletedAt Time       `json:"completed_at"`
	ClaimedAt   Time       `json:"claimed_at"`
	Task        *Task      `json:"task,omitempty"`
}

// TaskView is a task with the current user's effective status.
type TaskView struct {
	Task
	UserStatus TaskStatus `json:"user_status"`
}

// MergeTaskStatus pairs each task with the current user's status for it.
// Tasks the user has not taken are available. A backend "completed" status
// counts as claimed.
func MergeTaskStatus(tasks []Task, mine []UserTask) []TaskView {
	byTask := make(map[ID]TaskStatus, len(mine))
	for _, ut := range mine {
		id := ut.TaskID
		if id == "" && ut.Task != nil {
			id = ut.Task.ID
		}
		st := ut.Status
		if st == "completed" {
			st = TaskClaimed
		}
		byTask[id] = st
	}
	out := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		st, ok := byTask[t.ID]
		if !ok || st == "" {
			st = TaskAvailable
		}
		out = append(out, TaskView{Task: t, UserStatus: st})
	}
	return out
}

// TaskActionResponse is returned by take and claim.
type TaskActionResponse struct {
	Success      bool        `json:"success"`
	Message      string      `json:"message"`
	UserTaskID   ID          `json:"user_task_id,omitempty"`
	AmountEarned Amount      `json:"amount_earned,omitempty"`
	BalanceType  BalanceType `json:"balance_type,omitempty"`
}

// WithdrawalStatus is the processing state of a withdrawal.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s WithdrawalStatus) Valid() bool {
	switch s {
	case WithdrawalPending, WithdrawalApproved, WithdrawalRejected:
		return true
	}
	return false
}

// Withdrawal is a payout request.
type Withdrawal struct {
	ID          ID               `json:"id"`
	UserID      ID               `json:"user_id,omitempty"`
	Username    string           `json:"username,omitempty"`
	Amount      Amount           `json:"amount"`
	BalanceType BalanceType      `json:"balance_type"`
	Status      WithdrawalStatus `json:"status"`
	AdminNote   string           `json:"admin_note,omitempty"`
	CreatedAt   Time             `json:"created_at"`
	ProcessedAt Time             `json:"processed_at"`
}

// Loan is a loan application.
type Loan struct {
	ID             ID     `json:"id"`
	Amount         Amount `json:"amount"`
	DurationMonths int    `json:"duration_months"`
	Purpose        string `json:"purpose"`
	InterestRate   Amount `json:"interest_rate"`
	TotalAmount    Amount `json:"total_amount"`
	Status         string `json:"status"`
	CreatedAt      Time   `json:"created_at"`
}

// LoanRequest is the body of POST /loans/.
type LoanRequest struct {
	Amount         float64 `json:"amount"`
	DurationMonths int     `json:"duration_months"`
	Purpose        string  `json:"purpose"`
}

// Audio is a track users are paid to stream.
type Audio struct {
	ID              ID     `json:"id"`
	Title           string `json:"title"`
	Artist          string `json:"artist,omitempty"`
	DurationSeconds int    `json:"duration_seconds"`
	Amount          Amount `json:"amount"`
}

// Stream is a streaming session.
type Stream struct {
	ID               ID     `json:"id"`
	AudioID          ID     `json:"audio_id"`
	DurationListened int    `json:"duration_listened"`
	Completed        bool   `json:"completed"`
	Claimed          bool   `json:"claimed"`
	AmountEarned     Amount `json:"amount_earned"`
	CreatedAt        Time   `json:"created_at"`
	Audio            *Audio `json:"audio,omitempty"`
}

// StreamClaim is returned by the stream claim endpoint.
type StreamClaim struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	AmountEarned Amount `json:"amount_earned"`
}
