package features

import (
	"fmt"

	"FinCast/internal/domain/models"
)

// SplitPolicy selects the train/test boundary. A positive Holdout keeps
// exactly that many trailing rows for testing and wins over TestRatio.
type SplitPolicy struct {
	TestRatio float64
	Holdout   int
}

// DefaultSplitPolicy is the 80/20 split.
func DefaultSplitPolicy() SplitPolicy { return SplitPolicy{TestRatio: 0.2} }

// SplitIndex returns the position where the test partition starts.
func (p SplitPolicy) SplitIndex(n int) (int, error) {
	if n < 2 {
		return 0, fmt.Errorf("split %d rows: %w", n, models.ErrInsufficientData)
	}
	if p.Holdout > 0 {
		if p.Holdout >= n {
			return 0, fmt.Errorf("holdout %d leaves no training rows out of %d: %w", p.Holdout, n, models.ErrInsufficientData)
		}
		return n - p.Holdout, nil
	}
	ratio := p.TestRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.2
	}
	idx := int(float64(n) * (1 - ratio))
	if idx <= 0 || idx >= n {
		return 0, fmt.Errorf("ratio %.2f on %d rows gives an empty partition: %w", ratio, n, models.ErrInsufficientData)
	}
	return idx, nil
}

// Split partitions s by position into a chronological prefix (train) and
// suffix (test). No shuffling.
func Split(s models.Series, p SplitPolicy) (train, test models.Series, err error) {
	idx, err := p.SplitIndex(s.Len())
	if err != nil {
		return models.Series{}, models.Series{}, err
	}
	return s.Slice(0, idx), s.Slice(idx, s.Len()), nil
}
