package allocation

import (
	"strings"

	"lotkeeper/internal/core/apperror"
	"lotkeeper/internal/core/id"
)

// Strategy selects the order in which lots are drawn down.
type Strategy string

const (
	// FIFO draws the oldest manufactured lots first.
	FIFO Strategy = "FIFO"
	// FEFO draws the lots that expire first; lots without expiry go last.
	FEFO Strategy = "FEFO"
	// LIFO draws the most recently manufactured lots first.
	LIFO Strategy = "LIFO"
)

// DefaultStrategy applies when neither the request nor the catalog names one.
const DefaultStrategy = FIFO

// Strategies lists every supported strategy.
func Strategies() []Strategy {
	return []Strategy{FIFO, FEFO, LIFO}
}

// IsValid reports whether s is one of the supported strategies.
func (s Strategy) IsValid() bool {
	switch s {
	case FIFO, FEFO, LIFO:
		return true
	}
	return false
}

func (s Strategy) String() string { return string(s) }

// ParseStrategy accepts a strategy name in any case.
func ParseStrategy(v string) (Strategy, error) {
	s := Strategy(strings.ToUpper(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", apperror.NewInvalidRequest("unknown lot strategy").
			WithDetail("strategy", v).
			WithDetail("allowed", Strategies())
	}
	return s, nil
}

// comparator returns the ordering function for s. Every ordering ends on
// lot id so the result is total for a snapshot with unique ids.
func (s Strategy) comparator() func(a, b Lot) int {
	switch s {
	case FEFO:
		return compareFEFO
	case LIFO:
		return compareLIFO
	default:
		return compareFIFO
	}
}

func compareFIFO(a, b Lot) int {
	if c := a.MfgDate.Compare(b.MfgDate); c != 0 {
		return c
	}
	return id.Compare(a.ID, b.ID)
}

func compareFEFO(a, b Lot) int {
	switch {
	case a.ExpDate == nil && b.ExpDate != nil:
		return 1
	case a.ExpDate != nil && b.ExpDate == nil:
		return -1
	case a.ExpDate != nil && b.ExpDate != nil:
		if c := a.ExpDate.Compare(*b.ExpDate); c != 0 {
			return c
		}
	}
	return compareFIFO(a, b)
}

// compareLIFO is the exact reverse of FIFO: newest mfg date first,
// higher lot id first on ties.
func compareLIFO(a, b Lot) int {
	return compareFIFO(b, a)
}
