package core

// BudgetStatus classifies how close spending is to a budget limit. It is
// reporting-only; enforcement uses the limit itself.
type BudgetStatus string

const (
	BudgetSafe       BudgetStatus = "safe"
	BudgetWarning    BudgetStatus = "warning"
	BudgetAtLimit    BudgetStatus = "at_limit"
	BudgetOverBudget BudgetStatus = "over_budget"
)

// Status classifies spent against the budget's limit and alert threshold.
func (b CategoryBudget) Status(spent Money) BudgetStatus {
	switch {
	case spent.Cents > b.Limit.Cents:
		return BudgetOverBudget
	case spent.Cents == b.Limit.Cents:
		return BudgetAtLimit
	case spent.Cents*100 >= b.Limit.Cents*b.AlertThresholdPct:
		return BudgetWarning
	default:
		return BudgetSafe
	}
}
