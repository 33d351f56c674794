package metrics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultAlpha is the significance level used for the mode comparison.
const DefaultAlpha = 0.05

var (
	// ErrInsufficientSamples means a mode has fewer than two successful samples.
	ErrInsufficientSamples = errors.New("insufficient samples for statistical analysis")
	// ErrZeroVariance means both sample sets are constant.
	ErrZeroVariance = errors.New("sample set has zero variance")
)

// Significance is the result of Welch's t-test between the two modes.
type Significance struct {
	TStatistic       float64 `json:"tStatistic"`
	PValue           float64 `json:"pValue"`
	DegreesOfFreedom float64 `json:"degreesOfFreedom"`
	Alpha            float64 `json:"alpha"`
	Significant      bool    `json:"significant"`
}

// WelchTTest compares two independent sample sets without assuming equal
// variances. The p-value is two-tailed.
func WelchTTest(a, b []float64, alpha float64) (*Significance, error) {
	if len(a) < 2 || len(b) < 2 {
		return nil, ErrInsufficientSamples
	}

	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	nA := float64(len(a))
	nB := float64(len(b))

	se := math.Sqrt(varA/nA + varB/nB)
	if se == 0 {
		return nil, ErrZeroVariance
	}
	t := (meanA - meanB) / se

	num := math.Pow(varA/nA+varB/nB, 2)
	denom := math.Pow(varA/nA, 2)/(nA-1) + math.Pow(varB/nB, 2)/(nB-1)
	if denom == 0 {
		return nil, ErrZeroVariance
	}
	df := num / denom

	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	p := 2 * dist.Survival(math.Abs(t))

	return &Significance{
		TStatistic:       t,
		PValue:           p,
		DegreesOfFreedom: df,
		Alpha:            alpha,
		Significant:      p < alpha,
	}, nil
}
