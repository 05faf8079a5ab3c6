package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type PlotPoint struct {
	Epoch int     `json:"epoch"`
	Value float64 `json:"value"`
}

type LossSummary struct {
	Epochs    int     `json:"epochs"`
	First     float64 `json:"first"`
	Last      float64 `json:"last"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	Window    int     `json:"window"`
	HeadMean  float64 `json:"head_mean"`
	TailMean  float64 `json:"tail_mean"`
	Improving bool    `json:"improving"`
}

// MovingAverage returns the trailing mean over at most window samples for
// every position. The first window-1 entries average what is available.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 0 {
		window = 1
	}
	out := make([]float64, len(values))
	for i := range values {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		out[i] = stat.Mean(values[start:i+1], nil)
	}
	return out
}

// BuildLossPlot samples the trailing moving average every step epochs,
// always including the last epoch.
func BuildLossPlot(losses []float64, window, step int) []PlotPoint {
	if step <= 0 {
		step = 1
	}
	avg := MovingAverage(losses, window)
	points := make([]PlotPoint, 0, len(avg)/step+1)
	for i := 0; i < len(avg); i += step {
		points = append(points, PlotPoint{Epoch: i + 1, Value: avg[i]})
	}
	if n := len(avg); n > 0 && (n-1)%step != 0 {
		points = append(points, PlotPoint{Epoch: n, Value: avg[n-1]})
	}
	return points
}

// SummarizeLosses compares the mean of the first and last window epochs.
func SummarizeLosses(losses []float64, window int) LossSummary {
	summary := LossSummary{Epochs: len(losses), Window: window}
	if len(losses) == 0 {
		return summary
	}
	if window <= 0 || window > len(losses) {
		window = len(losses)
		summary.Window = window
	}
	summary.First = losses[0]
	summary.Last = losses[len(losses)-1]
	summary.Mean, summary.Std = stat.MeanStdDev(losses, nil)
	if math.IsNaN(summary.Std) {
		summary.Std = 0
	}
	summary.Min = floats.Min(losses)
	summary.Max = floats.Max(losses)
	summary.HeadMean = stat.Mean(losses[:window], nil)
	summary.TailMean = stat.Mean(losses[len(losses)-window:], nil)
	summary.Improving = summary.TailMean < summary.HeadMean
	return summary
}
