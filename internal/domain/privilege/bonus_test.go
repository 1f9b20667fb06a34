package privilege

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCharge(t *testing.T) {
	tests := []struct {
		name          string
		balance       string
		price         string
		fromBalance   bool
		wantMoney     string
		wantBonuses   string
		wantBalance   string
		wantOperation Operation
		wantDiff      string
	}{
		{
			name: "money accrues ten percent", balance: "0", price: "1500",
			wantMoney: "1500", wantBonuses: "0", wantBalance: "150", wantOperation: OpFillIn, wantDiff: "150",
		},
		{
			name: "accrual is floored", balance: "10", price: "1299",
			wantMoney: "1299", wantBonuses: "0", wantBalance: "139", wantOperation: OpFillIn, wantDiff: "129",
		},
		{
			name: "balance covers price", balance: "2000", price: "1500", fromBalance: true,
			wantMoney: "0", wantBonuses: "1500", wantBalance: "500", wantOperation: OpDebit, wantDiff: "1500",
		},
		{
			name: "balance covers part", balance: "150", price: "1500", fromBalance: true,
			wantMoney: "1350", wantBonuses: "150", wantBalance: "0", wantOperation: OpDebit, wantDiff: "150",
		},
		{
			name: "empty balance", balance: "0", price: "500", fromBalance: true,
			wantMoney: "500", wantBonuses: "0", wantBalance: "0", wantOperation: OpDebit, wantDiff: "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Charge(d(tt.balance), d(tt.price), tt.fromBalance)

			assert.True(t, d(tt.wantMoney).Equal(p.PaidByMoney), "money: %s", p.PaidByMoney)
			assert.True(t, d(tt.wantBonuses).Equal(p.PaidByBonuses), "bonuses: %s", p.PaidByBonuses)
			assert.True(t, d(tt.wantBalance).Equal(p.Balance), "balance: %s", p.Balance)
			assert.True(t, d(tt.wantDiff).Equal(p.Diff), "diff: %s", p.Diff)
			assert.Equal(t, tt.wantOperation, p.Operation)
			assert.True(t, p.PaidByMoney.Add(p.PaidByBonuses).Equal(d(tt.price)))
		})
	}
}

func TestRefund(t *testing.T) {
	tests := []struct {
		name        string
		balance     string
		entry       HistoryEntry
		wantBalance string
		wantOp      Operation
		wantMoved   string
	}{
		{
			name:        "debit is returned",
			balance:     "0",
			entry:       HistoryEntry{Operation: OpDebit, Diff: d("150")},
			wantBalance: "150", wantOp: OpFillIn, wantMoved: "150",
		},
		{
			name:        "accrual is withdrawn",
			balance:     "400",
			entry:       HistoryEntry{Operation: OpFillIn, Diff: d("150")},
			wantBalance: "250", wantOp: OpDebit, wantMoved: "150",
		},
		{
			name:        "withdrawal floors at zero",
			balance:     "100",
			entry:       HistoryEntry{Operation: OpFillIn, Diff: d("150")},
			wantBalance: "0", wantOp: OpDebit, wantMoved: "100",
		},
		{
			name:        "zero debit",
			balance:     "30",
			entry:       HistoryEntry{Operation: OpDebit, Diff: decimal.Zero},
			wantBalance: "30", wantOp: OpFillIn, wantMoved: "0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balance, op, moved := Refund(d(tt.balance), tt.entry)
			assert.True(t, d(tt.wantBalance).Equal(balance), "balance: %s", balance)
			assert.Equal(t, tt.wantOp, op)
			assert.True(t, d(tt.wantMoved).Equal(moved), "moved: %s", moved)
		})
	}
}
