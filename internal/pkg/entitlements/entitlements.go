package entitlements

import (
	"encoding/json"

	"github.com/BizCoreHQ/bizcore/app/models"
)

// Limits are the per-plan usage allowances encoded in the plan's feature
// document. Zero values mean unlimited.
type Limits struct {
	Seats            int `json:"seats"`
	InvoicesPerMonth int `json:"invoices_per_month"`
}

// trialLimits applies to tenants without a subscription row.
var trialLimits = Limits{Seats: 3, InvoicesPerMonth: 25}

// ForPlan decodes the limits from a plan's feature document. A plan with an
// empty or malformed document gets unlimited allowances rather than locking
// the tenant out.
func ForPlan(plan *models.SubscriptionPlan) Limits {
	if plan == nil || plan.FeaturesJSON == "" {
		return Limits{}
	}

	var l Limits
	if err := json.Unmarshal([]byte(plan.FeaturesJSON), &l); err != nil {
		return Limits{}
	}

	return l
}

// ForTrial returns the allowances for tenants still on their trial.
func ForTrial() Limits {
	return trialLimits
}

// SeatsAvailable reports whether the tenant may add another user given its
// current seat count.
func (l Limits) SeatsAvailable(currentUsers int) bool {
	if l.Seats <= 0 {
		return true
	}
	return currentUsers < l.Seats
}
