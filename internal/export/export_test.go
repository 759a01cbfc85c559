package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/me/affluence/pkg/affluence"
)

func readRows(t *testing.T, data []byte, sheet string) [][]string {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()
	if got := f.GetSheetName(0); got != sheet {
		t.Fatalf("sheet = %q, want %q", got, sheet)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	return rows
}

func TestUsers(t *testing.T) {
	var users []affluence.User
	raw := `[
		{"id": 2, "username": "demo", "email": "demo@affluence.local", "full_name": "Demo User",
		 "role": "user", "is_active": true, "referral_code": "DEMO01",
		 "activity_balance": 2500, "affiliate_balance": "1500", "total_balance": 4000,
		 "bank_details": {"bank_name": "GTBank", "account_name": "Demo User", "account_number": "0123456789"},
		 "created_at": "2024-03-01T12:00:00"},
		{"id": 3, "username": "idle", "email": "idle@example.com", "is_active": false}
	]`
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Users(&buf, users); err != nil {
		t.Fatalf("Users: %v", err)
	}
	rows := readRows(t, buf.Bytes(), UsersSheet)
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][0] != "ID" || rows[0][len(userHeader)-1] != "Created" {
		t.Errorf("header = %v", rows[0])
	}

	demo := rows[1]
	checks := map[int]string{0: "2", 1: "demo", 6: "yes", 8: "2500", 9: "1500", 13: "0123456789", 14: "2024-03-01 12:00:00"}
	for col, want := range checks {
		if demo[col] != want {
			t.Errorf("demo[%d] (%s) = %q, want %q", col, userHeader[col], demo[col], want)
		}
	}
	if rows[2][6] != "no" {
		t.Errorf("idle active = %q, want no", rows[2][6])
	}
}

func TestWithdrawals(t *testing.T) {
	list := []affluence.Withdrawal{
		{ID: "7", UserID: "2", Username: "demo", Amount: 1000, BalanceType: affluence.BalanceActivity, Status: affluence.WithdrawalPending},
	}
	var buf bytes.Buffer
	if err := Withdrawals(&buf, list); err != nil {
		t.Fatalf("Withdrawals: %v", err)
	}
	rows := readRows(t, buf.Bytes(), WithdrawalsSheet)
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	want := []string{"7", "2", "demo", "1000", "activity", "pending"}
	for i, w := range want {
		if rows[1][i] != w {
			t.Errorf("col %d = %q, want %q", i, rows[1][i], w)
		}
	}
}

func TestEmptyExportHasHeader(t *testing.T) {
	var buf bytes.Buffer
	if err := Withdrawals(&buf, nil); err != nil {
		t.Fatalf("Withdrawals: %v", err)
	}
	rows := readRows(t, buf.Bytes(), WithdrawalsSheet)
	if len(rows) != 1 || len(rows[0]) != len(withdrawalHeader) {
		t.Errorf("rows = %v", rows)
	}
}
