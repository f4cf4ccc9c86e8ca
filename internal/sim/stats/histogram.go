package stats

import (
	"math"
	"sort"
)

type Bin struct {
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
	Count int     `json:"count"`
}

// Histogram buckets values into fixed-width bins starting at floor(min).
// The last bin is closed so the maximum is always counted.
func Histogram(values []float64, width float64) []Bin {
	if len(values) == 0 || width <= 0 {
		return nil
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	start := math.Floor(lo)
	n := int(math.Floor((hi-start)/width)) + 1
	bins := make([]Bin, n)
	for i := range bins {
		bins[i].Lo = start + float64(i)*width
		bins[i].Hi = bins[i].Lo + width
	}
	for _, v := range values {
		i := int(math.Floor((v - start) / width))
		if i >= n {
			i = n - 1
		}
		bins[i].Count++
	}
	return bins
}

// Box is the five box-plot points of a sample.
type Box struct {
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
}

// Quartiles picks box-plot points by nearest rank at floor((n-1)*p) on a sorted copy.
func Quartiles(values []float64) (Box, bool) {
	if len(values) == 0 {
		return Box{}, false
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	at := func(p float64) float64 {
		return s[int(math.Floor(float64(len(s)-1)*p))]
	}
	return Box{
		Min:    s[0],
		Q1:     at(0.25),
		Median: at(0.5),
		Q3:     at(0.75),
		Max:    s[len(s)-1],
	}, true
}
