package affluence

import (
	"regexp"
	"strings"
)

// Client-side limits enforced before a request is sent.
const (
	MinPasswordLength    = 6
	MinWithdrawalAmount  = 1000
	AccountNumberLength  = 10
	MaxLoanDurationMonth = 60
)

var (
	emailPattern         = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	accountNumberPattern = regexp.MustCompile(`^\d{10}$`)
)

// ValidateEmail checks that s looks like an email address.
func ValidateEmail(s string) error {
	if !emailPattern.MatchString(strings.TrimSpace(s)) {
		return invalid("email", "Please enter a valid email address")
	}
	return nil
}

// ValidateRegistration checks a registration form.
func ValidateRegistration(r RegisterRequest) error {
	if strings.TrimSpace(r.Username) == "" || strings.TrimSpace(r.Email) == "" ||
		strings.TrimSpace(r.FullName) == "" || r.Password == "" {
		return invalid("", "Please fill in all required fields")
	}
	if r.CouponType == "" {
		return invalid("coupon_type", "Please select a coupon type")
	}
	if r.CouponCode == nil || strings.TrimSpace(*r.CouponCode) == "" {
		return invalid("coupon_code", "Coupon code is required for registration")
	}
	if r.Password != r.ConfirmPassword {
		return invalid("confirm_password", "Passwords do not match")
	}
	if len(r.Password) < MinPasswordLength {
		return invalid("password", "Password must be at least 6 characters")
	}
	return ValidateEmail(r.Email)
}

// ValidateLogin checks that both credentials are present.
func ValidateLogin(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return invalid("", "Please enter your email and password")
	}
	return nil
}

// ValidateBankDetails checks a payout account.
func ValidateBankDetails(b BankDetails) error {
	if strings.TrimSpace(b.BankName) == "" || strings.TrimSpace(b.AccountName) == "" ||
		strings.TrimSpace(b.AccountNumber) == "" {
		return invalid("", "Please fill in all bank details")
	}
	if !accountNumberPattern.MatchString(strings.TrimSpace(b.AccountNumber)) {
		return invalid("account_number", "Account number must be exactly 10 digits")
	}
	return nil
}

// ValidatePasswordChange checks a password change form.
func ValidatePasswordChange(current, next, confirm string) error {
	if current == "" || next == "" || confirm == "" {
		return invalid("", "Please fill in all password fields")
	}
	if next != confirm {
		return invalid("confirm_password", "New passwords do not match")
	}
	if len(next) < MinPasswordLength {
		return invalid("new_password", "Password must be at least 6 characters")
	}
	return nil
}

// ValidateWithdrawal checks a withdrawal request.
func ValidateWithdrawal(amount float64, balanceType BalanceType) error {
	if amount <= 0 {
		return invalid("amount", "Please enter a valid amount")
	}
	if amount < MinWithdrawalAmount {
		return invalid("amount", "Minimum withdrawal amount is ₦1,000")
	}
	if !balanceType.Withdrawable() {
		return invalid("balance_type", "Please select a balance to withdraw from")
	}
	return nil
}

// ValidateLoan checks a loan application.
func ValidateLoan(r LoanRequest) error {
	if r.Amount <= 0 {
		return invalid("amount", "Please enter a valid amount")
	}
	if r.DurationMonths <= 0 || r.DurationMonths > MaxLoanDurationMonth {
		return invalid("duration_months", "Please select a valid loan duration")
	}
	if strings.TrimSpace(r.Purpose) == "" {
		return invalid("purpose", "Please describe the purpose of the loan")
	}
	return nil
}
