// Package engine derives analytics summaries from transaction data.
// All functions are pure: no I/O, and inputs are never mutated.
package engine

import (
	"math"
	"time"

	"github.com/fzanetti/ledger-analytics-go/internal/domain"
)

const (
	dayKeyFormat   = "2006-01-02"
	monthKeyFormat = "2006-01"
)

// Pattern classification thresholds on expenses/income.
const (
	minActiveTransactions = 3
	conservativeRatio     = 0.30
	moderateRatio         = 0.70
)

// ComputeFull derives a complete Summary from the account's full
// transaction set in a single pass.
//
// DailyBalances is keyed by each transaction's own day with the running
// balance of everything processed so far; later writes for the same day
// overwrite earlier ones, so callers that need deterministic snapshots
// across replays must sort the input by date first.
func ComputeFull(txns []domain.Transaction) *domain.Summary {
	now := time.Now()
	s := &domain.Summary{
		DailyBalances:   make(map[string]float64),
		MonthlyIncome:   make(map[string]float64),
		MonthlyExpenses: make(map[string]float64),
		CategoryCounts:  make(map[string]int),
		PrimaryCategory: domain.NoCategory,
		SpendingPattern: domain.PatternInactive,
		CalculatedAt:    now,
		LastUpdated:     now,
	}
	if len(txns) == 0 {
		return s
	}

	var running, sum, sumSq float64
	var categoryOrder []string

	for _, t := range txns {
		amt := t.Amount
		running += amt
		sum += amt
		sumSq += amt * amt

		s.TotalBalance += amt
		s.TransactionCount++
		s.DailyBalances[t.Date.Format(dayKeyFormat)] = running

		month := t.Date.Format(monthKeyFormat)
		if t.IsDeposit() {
			s.TotalIncome += amt
			s.DepositCount++
			s.MonthlyIncome[month] += amt
			if amt > s.LargestDeposit {
				s.LargestDeposit = amt
			}
		} else {
			exp := -amt
			s.TotalExpenses += exp
			s.WithdrawalCount++
			s.MonthlyExpenses[month] += exp
			if exp > s.LargestWithdrawal {
				s.LargestWithdrawal = exp
			}
		}

		if t.Category != "" {
			if s.CategoryCounts[t.Category] == 0 {
				categoryOrder = append(categoryOrder, t.Category)
			}
			s.CategoryCounts[t.Category]++
		}

		d := t.Date
		if s.FirstTransactionDate == nil || d.Before(*s.FirstTransactionDate) {
			s.FirstTransactionDate = &d
		}
		if s.LastTransactionDate == nil || d.After(*s.LastTransactionDate) {
			last := d
			s.LastTransactionDate = &last
		}
	}

	if s.DepositCount > 0 {
		s.AvgDeposit = round2(s.TotalIncome / float64(s.DepositCount))
	}
	if s.WithdrawalCount > 0 {
		s.AvgWithdrawal = round2(s.TotalExpenses / float64(s.WithdrawalCount))
	}

	// Highest count wins; ties go to the category first seen in the input.
	best := 0
	for _, cat := range categoryOrder {
		if s.CategoryCounts[cat] > best {
			best = s.CategoryCounts[cat]
			s.PrimaryCategory = cat
		}
	}

	s.VolatilityScore = volatility(s.TransactionCount, sum, sumSq)
	s.SpendingPattern = ClassifyPattern(s.TransactionCount, s.TotalIncome, s.TotalExpenses)

	return s
}

// ApplyDelta returns a copy of summary patched with the effect of a single
// CREATED event. Defined only for validated CREATED events against an
// existing summary; the caller must check both.
//
// VolatilityScore, PrimaryCategory, SpendingPattern, CategoryCounts and
// DailyBalances need the full distribution and are left stale until the
// next full recompute.
func ApplyDelta(summary *domain.Summary, event *domain.Event) *domain.Summary {
	s := clone(summary)
	amt := *event.Amount

	s.TotalBalance += amt
	s.TransactionCount++

	month := event.OccurredAt.Format(monthKeyFormat)
	if amt > 0 {
		s.TotalIncome += amt
		s.DepositCount++
		s.MonthlyIncome[month] += amt
		if amt > s.LargestDeposit {
			s.LargestDeposit = amt
		}
		s.AvgDeposit = round2(s.TotalIncome / float64(s.DepositCount))
	} else {
		exp := -amt
		s.TotalExpenses += exp
		s.WithdrawalCount++
		s.MonthlyExpenses[month] += exp
		if exp > s.LargestWithdrawal {
			s.LargestWithdrawal = exp
		}
		s.AvgWithdrawal = round2(s.TotalExpenses / float64(s.WithdrawalCount))
	}

	occurred := event.OccurredAt
	if s.FirstTransactionDate == nil || occurred.Before(*s.FirstTransactionDate) {
		s.FirstTransactionDate = &occurred
	}
	if s.LastTransactionDate == nil || occurred.After(*s.LastTransactionDate) {
		last := occurred
		s.LastTransactionDate = &last
	}

	s.LastUpdated = time.Now()
	return s
}

// ClassifyPattern maps activity and the expense-to-income ratio to a
// spending pattern classification.
func ClassifyPattern(transactionCount int, totalIncome, totalExpenses float64) string {
	if transactionCount < minActiveTransactions {
		return domain.PatternInactive
	}
	if totalIncome == 0 {
		return domain.PatternExpenseOnly
	}
	ratio := round2(totalExpenses / totalIncome)
	switch {
	case ratio <= conservativeRatio:
		return domain.PatternConservative
	case ratio <= moderateRatio:
		return domain.PatternModerate
	default:
		return domain.PatternAggressive
	}
}

// volatility is the population standard deviation of the amounts,
// rounded to two decimals. Zero when fewer than 2 transactions.
func volatility(count int, sum, sumSq float64) float64 {
	if count < 2 {
		return 0
	}
	n := float64(count)
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		// float drift on near-identical amounts
		variance = 0
	}
	return round2(math.Sqrt(variance))
}

func clone(s *domain.Summary) *domain.Summary {
	out := *s
	out.DailyBalances = copyFloatMap(s.DailyBalances)
	out.MonthlyIncome = copyFloatMap(s.MonthlyIncome)
	out.MonthlyExpenses = copyFloatMap(s.MonthlyExpenses)
	out.CategoryCounts = make(map[string]int, len(s.CategoryCounts))
	for k, v := range s.CategoryCounts {
		out.CategoryCounts[k] = v
	}
	if s.FirstTransactionDate != nil {
		d := *s.FirstTransactionDate
		out.FirstTransactionDate = &d
	}
	if s.LastTransactionDate != nil {
		d := *s.LastTransactionDate
		out.LastTransactionDate = &d
	}
	return &out
}

func copyFloatMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// round2 rounds half-up to two decimals.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
