package collector

import "github.com/beorn7/perks/quantile"

// summaryTargets maps each quantile we report to the error we tolerate for
// it.
//
var summaryTargets = map[float64]float64{
	0.50: 0.01,
	0.90: 0.01,
	0.99: 0.01,
	1.00: 0.01,
}

// Summary accumulates observations of a single collection, keeping count,
// sum and the quantiles in summaryTargets.
//
type Summary struct {
	count  uint64
	sum    float64
	stream *quantile.Stream
}

func NewSummary() *Summary {
	return &Summary{
		stream: quantile.NewTargeted(summaryTargets),
	}
}

func (s *Summary) Insert(v float64) {
	s.count++
	s.sum += v
	s.stream.Insert(v)
}

func (s *Summary) Count() uint64 {
	return s.count
}

func (s *Summary) Sum() float64 {
	return s.sum
}

// Quantiles queries the stream for every target, returning a map owned by
// the caller.
//
func (s *Summary) Quantiles() map[float64]float64 {
	res := make(map[float64]float64, len(summaryTargets))
	for phi := range summaryTargets {
		res[phi] = s.stream.Query(phi)
	}

	return res
}
