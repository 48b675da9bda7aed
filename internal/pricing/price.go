package pricing

import "time"

// QuoteTTL is how long an issued quote may be checked out.
const QuoteTTL = 5 * time.Minute

// DefaultToleranceBps is 0.50%.
const DefaultToleranceBps int64 = 50

// UnitPrice is spot per ounce times whole ounces plus the product premium.
func UnitPrice(pricePerOzCents, weightOz, premiumCents int64) int64 {
	return pricePerOzCents*weightOz + premiumCents
}

// DriftBps is the absolute move from basis to current in basis points,
// truncated toward zero. Callers skip the check when basis <= 0.
func DriftBps(basis, current int64) int64 {
	diff := current - basis
	if diff < 0 {
		diff = -diff
	}
	return diff * 10000 / basis
}

// Breached reports whether drift is strictly above tolerance. A non-positive
// basis never breaches.
func Breached(basis, current, toleranceBps int64) bool {
	if basis <= 0 {
		return false
	}
	return DriftBps(basis, current) > toleranceBps
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns wall-clock time in UTC.
func SystemClock() Clock { return realClock{} }
