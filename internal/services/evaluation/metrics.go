package evaluation

import (
	"fmt"
	"math"

	"FinCast/internal/domain/models"
)

// Metrics are regression errors of one held-out evaluation.
type Metrics struct {
	MSE      float64
	MAE      float64
	Accuracy float64
}

// Evaluate compares predicted with actual element-wise.
// Accuracy is (1 - MAE) * 100 and is only meaningful on min-max scaled values;
// it may be negative when MAE exceeds 1.
func Evaluate(predicted, actual []float64) (Metrics, error) {
	if err := checkLengths(predicted, actual); err != nil {
		return Metrics{}, err
	}
	var se, ae float64
	for i, p := range predicted {
		d := p - actual[i]
		se += d * d
		ae += math.Abs(d)
	}
	n := float64(len(predicted))
	mae := ae / n
	return Metrics{
		MSE:      se / n,
		MAE:      mae,
		Accuracy: (1 - mae) * 100,
	}, nil
}

// MAPE is the mean absolute percentage error in percent. Rows whose actual
// value is zero are skipped.
func MAPE(predicted, actual []float64) (float64, error) {
	if err := checkLengths(predicted, actual); err != nil {
		return 0, err
	}
	var sum float64
	var n int
	for i, p := range predicted {
		if actual[i] == 0 {
			continue
		}
		sum += math.Abs((actual[i] - p) / actual[i])
		n++
	}
	if n == 0 {
		return 0, nil
	}
	return sum / float64(n) * 100, nil
}

func checkLengths(predicted, actual []float64) error {
	if len(predicted) != len(actual) {
		return fmt.Errorf("%d predictions vs %d actuals: %w", len(predicted), len(actual), models.ErrShapeMismatch)
	}
	if len(predicted) == 0 {
		return fmt.Errorf("nothing to evaluate: %w", models.ErrInsufficientData)
	}
	return nil
}
