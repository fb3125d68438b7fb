package repository

// Resolution represents the upstream candle bucket size.
type Resolution string

const (
	ResDaily   Resolution = "D"
	ResWeekly  Resolution = "W"
	ResMonthly Resolution = "M"
)

// IsValidResolution returns true if res is a supported resolution.
func IsValidResolution(res Resolution) bool {
	switch res {
	case ResDaily, ResWeekly, ResMonthly:
		return true
	default:
		return false
	}
}

// DefaultResolution returns the default resolution.
func DefaultResolution() Resolution { return ResDaily }

// NormalizeResolution converts raw string to a valid resolution (or default).
func NormalizeResolution(s string) Resolution {
	if s == "" {
		return DefaultResolution()
	}
	res := Resolution(s)
	if IsValidResolution(res) {
		return res
	}
	return DefaultResolution()
}
