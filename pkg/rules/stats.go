package rules

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// benfordFirstDigitProbs holds P(d) = log10(1 + 1/d) for d = 1..9.
var benfordFirstDigitProbs = func() [10]float64 {
	var p [10]float64
	for d := 1; d <= 9; d++ {
		p[d] = math.Log10(1 + 1/float64(d))
	}
	return p
}()

// benfordSecondDigitProbs holds P(d) = sum over k=1..9 of
// log10(1 + 1/(10k+d)) for d = 0..9.
var benfordSecondDigitProbs = func() [10]float64 {
	var p [10]float64
	for d := 0; d <= 9; d++ {
		for k := 1; k <= 9; k++ {
			p[d] += math.Log10(1 + 1/float64(10*k+d))
		}
	}
	return p
}()

func firstDigit(n int) int {
	for n >= 10 {
		n /= 10
	}
	return n
}

// secondDigit returns the second significant digit of n, or -1 when n has
// fewer than two digits.
func secondDigit(n int) int {
	if n < 10 {
		return -1
	}
	for n >= 100 {
		n /= 10
	}
	return n % 10
}

// chiSquareP computes the chi-square goodness-of-fit p-value for observed
// counts against expected counts, with len-1 degrees of freedom.
func chiSquareP(observed, expected []float64) float64 {
	var x2 float64
	for i := range observed {
		if expected[i] <= 0 {
			continue
		}
		d := observed[i] - expected[i]
		x2 += d * d / expected[i]
	}
	df := float64(len(observed) - 1)
	if df <= 0 {
		return 1
	}
	return distuv.ChiSquared{K: df}.Survival(x2)
}

// normalTwoSidedP is the two-sided p-value for a standard normal statistic.
func normalTwoSidedP(z float64) float64 {
	return 2 * distuv.UnitNormal.Survival(math.Abs(z))
}

// pearson returns the correlation coefficient of x and y and the two-sided
// p-value from the t approximation with n-2 degrees of freedom.
func pearson(x, y []float64) (r, p float64) {
	n := len(x)
	r = stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, 1
	}
	if n < 3 || math.Abs(r) >= 1 {
		return r, 0
	}
	t := r * math.Sqrt(float64(n-2)/(1-r*r))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	return r, 2 * dist.Survival(math.Abs(t))
}

func meanStd(xs []float64) (mean, std float64) {
	mean = stat.Mean(xs, nil)
	std = math.Sqrt(stat.PopVariance(xs, nil))
	return mean, std
}

func median(xs []float64) float64 {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// coefVariation returns stddev/mean using the sample standard deviation,
// or 0 when the mean is zero.
func coefVariation(xs []float64) float64 {
	mean := stat.Mean(xs, nil)
	if mean == 0 {
		return 0
	}
	return math.Sqrt(stat.Variance(xs, nil)) / mean
}
