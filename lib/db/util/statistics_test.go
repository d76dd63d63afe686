package util

import (
	"math"
	"testing"
)

func TestNewStats(t *testing.T) {
	s := NewStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if s.Mean != 5 || s.StdDeviation != 2 || s.Min != 2 || s.Max != 9 {
		t.Errorf("unexpected stats %+v", s)
	}

	if empty := NewStats(nil); empty != (Stats{}) {
		t.Errorf("stats of no values should be zero, got %+v", empty)
	}
}

func TestDistributionQuality(t *testing.T) {
	even := NewDistributionStats([]float64{10, 10, 10, 10})
	if math.Abs(even.DistributionQuality-1) > 1e-9 {
		t.Errorf("even distribution should have quality 1, got %f", even.DistributionQuality)
	}

	skewed := NewDistributionStats([]float64{0, 0, 0, 40})
	if skewed.DistributionQuality >= even.DistributionQuality {
		t.Errorf("skewed distribution should rate lower: %f", skewed.DistributionQuality)
	}
}

func TestSizeHistogram(t *testing.T) {
	h := NewSizeHistogram()
	if h.MedianEstimate() != 0 || h.AverageSize() != 0 {
		t.Error("empty histogram should estimate 0")
	}

	for i := 0; i < 90; i++ {
		h.AddSample(100) // bucket (64, 256]
	}
	for i := 0; i < 10; i++ {
		h.AddSample(10000) // bucket (4096, 16384]
	}

	if h.GetCount() != 100 {
		t.Errorf("expected 100 samples, got %d", h.GetCount())
	}
	if got := h.MedianEstimate(); got != (64+256)/2 {
		t.Errorf("unexpected median estimate %d", got)
	}
	if got := h.GetPercentileEstimate(99); got != (4096+16384)/2 {
		t.Errorf("unexpected p99 estimate %d", got)
	}
	if got := h.AverageSize(); got != (90*100+10*10000)/100 {
		t.Errorf("unexpected average %d", got)
	}
}
