package window

import "firestige.xyz/synscope/internal/core"

// SeriesKind names one of the two-column projections of the feature vectors.
type SeriesKind int

const (
	TimeSyn SeriesKind = iota
	SizeSyn
	ICMPSyn
	SizeTime
)

// Kinds lists every series in output order.
var Kinds = []SeriesKind{TimeSyn, SizeSyn, ICMPSyn, SizeTime}

func (k SeriesKind) String() string {
	switch k {
	case TimeSyn:
		return "time_syn"
	case SizeSyn:
		return "size_syn"
	case ICMPSyn:
		return "icmp_syn"
	case SizeTime:
		return "size_time"
	default:
		return "unknown"
	}
}

// Axes returns the labels of the X and Y columns.
func (k SeriesKind) Axes() (x, y string) {
	switch k {
	case TimeSyn:
		return "time", "syn-synack"
	case SizeSyn:
		return "size", "syn-synack"
	case ICMPSyn:
		return "icmp", "syn-synack"
	case SizeTime:
		return "size", "time"
	default:
		return "x", "y"
	}
}

// Point is one row of a series.
type Point struct {
	X, Y float64
}

// Project maps a single vector onto the series kind.
func (k SeriesKind) Project(v core.FeatureVector) Point {
	switch k {
	case TimeSyn:
		return Point{X: v.MeanInterArrival, Y: v.SynMinusSynAck()}
	case SizeSyn:
		return Point{X: v.MeanSize, Y: v.SynMinusSynAck()}
	case ICMPSyn:
		return Point{X: v.MeanICMPFraction, Y: v.SynMinusSynAck()}
	case SizeTime:
		return Point{X: v.MeanSize, Y: v.MeanInterArrival}
	default:
		return Point{}
	}
}

// Series projects vectors into the four series, each with one point per
// vector in window order.
func Series(vectors []core.FeatureVector) map[SeriesKind][]Point {
	out := make(map[SeriesKind][]Point, len(Kinds))
	for _, k := range Kinds {
		pts := make([]Point, len(vectors))
		for i, v := range vectors {
			pts[i] = k.Project(v)
		}
		out[k] = pts
	}
	return out
}
