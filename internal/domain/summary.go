package domain

import "time"

// Spending pattern classifications derived from the expense-to-income ratio.
const (
	PatternInactive     = "INACTIVE"
	PatternExpenseOnly  = "EXPENSE_ONLY"
	PatternConservative = "CONSERVATIVE"
	PatternModerate     = "MODERATE"
	PatternAggressive   = "AGGRESSIVE"
)

// NoCategory is the primary category of a summary with no transactions.
const NoCategory = "NONE"

// Summary is the derived analytics record for one account. One row per
// account in the durable store; the cache holds a disposable copy.
type Summary struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`

	TotalBalance  float64 `json:"total_balance"`
	TotalIncome   float64 `json:"total_income"`
	TotalExpenses float64 `json:"total_expenses"`

	TransactionCount int `json:"transaction_count"`
	DepositCount     int `json:"deposit_count"`
	WithdrawalCount  int `json:"withdrawal_count"`

	AvgDeposit        float64 `json:"avg_deposit"`
	AvgWithdrawal     float64 `json:"avg_withdrawal"`
	LargestDeposit    float64 `json:"largest_deposit"`
	LargestWithdrawal float64 `json:"largest_withdrawal"`

	FirstTransactionDate *time.Time `json:"first_transaction_date,omitempty"`
	LastTransactionDate  *time.Time `json:"last_transaction_date,omitempty"`

	// DailyBalances maps YYYY-MM-DD to the running balance as of that day.
	// Last write per day wins; incremental applies do not correct past days.
	DailyBalances map[string]float64 `json:"daily_balances"`

	// MonthlyIncome / MonthlyExpenses map YYYY-MM to accumulated totals.
	MonthlyIncome   map[string]float64 `json:"monthly_income"`
	MonthlyExpenses map[string]float64 `json:"monthly_expenses"`

	// CategoryCounts backs PrimaryCategory; populated on full recompute only.
	CategoryCounts map[string]int `json:"category_counts"`

	// VolatilityScore, PrimaryCategory and SpendingPattern need the full
	// transaction distribution and go stale between full recomputes.
	VolatilityScore float64 `json:"volatility_score"`
	PrimaryCategory string  `json:"primary_category"`
	SpendingPattern string  `json:"spending_pattern"`

	CalculatedAt time.Time `json:"calculated_at"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Transaction is a single ledger entry, as provided by the upstream ledger
// service for full recomputation. Strictly positive amounts are deposits.
type Transaction struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category,omitempty"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
}

// IsDeposit reports whether the transaction counts as a deposit.
// Zero-amount transactions are classified as withdrawals of amount 0.
func (t Transaction) IsDeposit() bool {
	return t.Amount > 0
}
