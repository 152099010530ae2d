package billing

import "errors"

// Action identifies a quota-gated creation action.
type Action string

// Action constants enumerate every quota-gated resource kind. The checker
// and the mutator both switch exhaustively on this set; adding a kind to one
// without the other fails at the columns lookup.
const (
	// ActionCreateTransaction gates income/expense creation.
	ActionCreateTransaction Action = "create_transaction"
	// ActionCreateDebt gates debt creation.
	ActionCreateDebt Action = "create_debt"
	// ActionCreateRecurring gates recurring-transaction creation.
	ActionCreateRecurring Action = "create_recurring_transaction"
	// ActionCreateCategory gates category creation.
	ActionCreateCategory Action = "create_category"
)

// ErrUnknownAction marks an action kind outside the closed set.
var ErrUnknownAction = errors.New("billing: unknown action kind")

// ParseAction validates a wire-level action string.
func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionCreateTransaction, ActionCreateDebt, ActionCreateRecurring, ActionCreateCategory:
		return Action(raw), nil
	default:
		return "", ErrUnknownAction
	}
}

// columns returns the usage and limit column names for the action.
func (a Action) columns() (usageCol, limitCol string, err error) {
	switch a {
	case ActionCreateTransaction:
		return "usage_monthly_transactions", "limit_monthly_transactions", nil
	case ActionCreateDebt:
		return "usage_active_debts", "limit_active_debts", nil
	case ActionCreateRecurring:
		return "usage_recurring", "limit_recurring", nil
	case ActionCreateCategory:
		return "usage_categories", "limit_categories", nil
	default:
		return "", "", ErrUnknownAction
	}
}
