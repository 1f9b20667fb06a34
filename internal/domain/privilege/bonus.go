package privilege

import (
	"github.com/shopspring/decimal"
)

// AccrualRate is the share of a money-paid price credited as bonuses.
var AccrualRate = decimal.New(1, -1)

// Payment is the outcome of charging a price against an account.
type Payment struct {
	PaidByMoney   decimal.Decimal
	PaidByBonuses decimal.Decimal
	Balance       decimal.Decimal
	Operation     Operation
	Diff          decimal.Decimal
}

// Charge splits price between money and bonuses. Paying with money accrues
// floor(price * AccrualRate) bonuses. Paying from the balance spends up to
// price bonuses and the rest is paid with money.
func Charge(balance, price decimal.Decimal, fromBalance bool) Payment {
	if !fromBalance {
		accrual := price.Mul(AccrualRate).Floor()
		return Payment{
			PaidByMoney:   price,
			PaidByBonuses: decimal.Zero,
			Balance:       balance.Add(accrual),
			Operation:     OpFillIn,
			Diff:          accrual,
		}
	}

	bonuses := decimal.Min(balance, price)
	if bonuses.IsNegative() {
		bonuses = decimal.Zero
	}
	return Payment{
		PaidByMoney:   price.Sub(bonuses),
		PaidByBonuses: bonuses,
		Balance:       balance.Sub(bonuses),
		Operation:     OpDebit,
		Diff:          bonuses,
	}
}

// Refund reverses the entry a ticket purchase recorded. It returns the new
// balance, the compensating operation, and the amount actually moved. The
// balance never goes below zero, so a reversed accrual may move less than
// the original diff.
func Refund(balance decimal.Decimal, original HistoryEntry) (decimal.Decimal, Operation, decimal.Decimal) {
	if original.Operation == OpDebit {
		return balance.Add(original.Diff), OpFillIn, original.Diff
	}

	moved := decimal.Min(balance, original.Diff)
	if moved.IsNegative() {
		moved = decimal.Zero
	}
	return balance.Sub(moved), OpDebit, moved
}
