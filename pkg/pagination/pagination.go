// Package pagination centralizes the page-size rules shared by the list
// endpoints and repository queries.
package pagination

const (
	// DefaultLimit is the page size applied when the caller does not ask for one.
	DefaultLimit = 25
	// MaxLimit caps how many rows a single list query may return.
	MaxLimit = 100
)

// NormalizeLimit clamps limit into [1, MaxLimit], substituting DefaultLimit
// for zero or negative values.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
