// Package export writes admin listings as xlsx spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/me/affluence/pkg/affluence"
)

// Sheet names used by the exporters.
const (
	UsersSheet       = "Users"
	WithdrawalsSheet = "Withdrawals"
)

var (
	userHeader = []string{
		"ID", "Username", "Email", "Full Name", "Phone", "Role", "Active",
		"Referral Code", "Activity Balance", "Affiliate Balance", "Total Balance",
		"Bank", "Account Name", "Account Number", "Created",
	}
	withdrawalHeader = []string{
		"ID", "User ID", "Username", "Amount", "Balance", "Status", "Admin Note", "Created", "Processed",
	}
)

// Users writes one row per user.
func Users(w io.Writer, users []affluence.User) error {
	rows := make([][]any, 0, len(users))
	for _, u := range users {
		var bank, acctName, acctNo string
		if u.BankDetails != nil {
			bank, acctName, acctNo = u.BankDetails.BankName, u.BankDetails.AccountName, u.BankDetails.AccountNumber
		}
		rows = append(rows, []any{
			u.ID.String(), u.Username, u.Email, u.FullName, u.Phone, u.Role, yesNo(u.Active()),
			u.ReferralCode, u.ActivityBalance.Float(), u.AffiliateBalance.Float(), u.TotalBalance.Float(),
			bank, acctName, acctNo, cellTime(u.CreatedAt),
		})
	}
	return write(w, UsersSheet, userHeader, rows)
}

// Withdrawals writes one row per withdrawal.
func Withdrawals(w io.Writer, list []affluence.Withdrawal) error {
	rows := make([][]any, 0, len(list))
	for _, wd := range list {
		rows = append(rows, []any{
			wd.ID.String(), wd.UserID.String(), wd.Username, wd.Amount.Float(), string(wd.BalanceType),
			string(wd.Status), wd.AdminNote, cellTime(wd.CreatedAt), cellTime(wd.ProcessedAt),
		})
	}
	return write(w, WithdrawalsSheet, withdrawalHeader, rows)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func cellTime(t affluence.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Time.UTC().Format(time.DateTime)
}

func write(w io.Writer, sheet string, header []string, rows [][]any) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &head); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
		return fmt.Errorf("column width: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
