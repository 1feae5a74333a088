package utils

import "time"

// CalculateFine returns the penalty owed on a borrow due at dueDate when
// settled at now. Nothing is owed on time; past due the charge grows
// continuously at ratePerDay per 24 hours late.
func CalculateFine(dueDate, now time.Time, ratePerDay float64) float64 {
	if !now.After(dueDate) {
		return 0
	}
	overdueDays := now.Sub(dueDate).Hours() / 24
	return ratePerDay * overdueDays
}
