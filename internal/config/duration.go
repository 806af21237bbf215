package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	str2duration "github.com/xhit/go-str2duration/v2"
)

// ErrInvalidDuration is returned for strings ParseDuration cannot read.
var ErrInvalidDuration = errors.New("invalid duration")

// ParseDuration reads lifetimes such as "15m", "7d", "1d12h" or "2w 3d".
// Whitespace separated terms are summed. Negative terms and totals that
// overflow time.Duration are rejected.
func ParseDuration(s string) (time.Duration, error) {
	terms := strings.Fields(s)
	if len(terms) == 0 {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidDuration)
	}

	var total time.Duration
	for _, term := range terms {
		d, err := str2duration.ParseDuration(term)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %w", ErrInvalidDuration, s, err)
		}
		if d < 0 {
			return 0, fmt.Errorf("%w: %q: negative term", ErrInvalidDuration, s)
		}
		if d > math.MaxInt64-total {
			return 0, fmt.Errorf("%w: %q: overflows", ErrInvalidDuration, s)
		}
		total += d
	}

	return total, nil
}
