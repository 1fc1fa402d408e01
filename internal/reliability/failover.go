// Package reliability decides what a component does when one of its backing
// stores fails.
package reliability

type FailureStrategy string

const (
	FailOpen   FailureStrategy = "fail_open"
	FailClosed FailureStrategy = "fail_closed"
)

// ShouldAllow reports whether work may proceed after err under strategy.
func ShouldAllow(strategy FailureStrategy, err error) bool {
	if err == nil {
		return true
	}
	return strategy == FailOpen
}

// ParseStrategy maps a config value to a strategy; anything unknown is FailOpen.
func ParseStrategy(s string) FailureStrategy {
	if FailureStrategy(s) == FailClosed {
		return FailClosed
	}
	return FailOpen
}
