package planner

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/nurpe/greenops-routes/internal/geo"
)

// StopMinutes is the fixed dwell time added per visited point.
const StopMinutes = 5.0

// DefaultAvgSpeedKmh is used when the caller does not supply a speed.
const DefaultAvgSpeedKmh = 30.0

// Point is the planner's view of a collection point: identity plus
// coordinates, nothing else. Services map stored entities in and out.
type Point struct {
	ID    uuid.UUID
	Coord geo.Coordinates
}

// Order arranges points into a visiting sequence with the greedy
// nearest-neighbor heuristic. At every step the unvisited point closest to
// the current position is appended. Ties are won by the point that appears
// first in input order (strict < comparison), so the result is
// deterministic for a given input. With a nil start the first input point
// seeds the tour.
//
// The algorithm minimizes the immediate hop, not the whole tour; it is
// O(n²) and intentionally simple.
func Order(points []Point, start *geo.Coordinates) []Point {
	if len(points) <= 1 {
		return append([]Point(nil), points...)
	}

	remaining := append([]Point(nil), points...)
	ordered := make([]Point, 0, len(points))

	var current geo.Coordinates
	if start != nil {
		current = *start
	} else {
		ordered = append(ordered, remaining[0])
		current = remaining[0].Coord
		remaining = remaining[1:]
	}

	for len(remaining) > 0 {
		bestIdx := 0
		bestDist := math.MaxFloat64
		for i, p := range remaining {
			if d := geo.HaversineKm(current, p.Coord); d < bestDist {
				bestDist = d
				bestIdx = i
			}
		}
		next := remaining[bestIdx]
		ordered = append(ordered, next)
		current = next.Coord
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}

	return ordered
}

// TotalDistanceKm sums consecutive pairwise distances over an ordered
// sequence. Sequences shorter than two points have zero distance.
func TotalDistanceKm(ordered []Point) float64 {
	total := 0.0
	for i := 1; i < len(ordered); i++ {
		total += geo.HaversineKm(ordered[i-1].Coord, ordered[i].Coord)
	}
	return total
}

// TimeEstimate splits the estimate into its travel and dwell components.
type TimeEstimate struct {
	TravelMinutes float64 `json:"travel_minutes"`
	StopMinutes   float64 `json:"stop_minutes"`
	TotalMinutes  float64 `json:"total_minutes"`
}

// Estimate computes travel time at avgSpeedKmh over the ordered sequence
// plus a fixed dwell per stop.
func Estimate(ordered []Point, avgSpeedKmh float64) TimeEstimate {
	if avgSpeedKmh <= 0 {
		avgSpeedKmh = DefaultAvgSpeedKmh
	}
	travel := TotalDistanceKm(ordered) / avgSpeedKmh * 60
	stops := StopMinutes * float64(len(ordered))
	return TimeEstimate{
		TravelMinutes: travel,
		StopMinutes:   stops,
		TotalMinutes:  travel + stops,
	}
}

// Cluster partitions points into groups of at most maxSize. Each cluster is
// seeded with the first unassigned point; the remaining point nearest to
// the seed is absorbed until the cluster is full. Produces exactly
// ceil(n/maxSize) clusters that partition the input. A non-positive
// maxSize degrades to a single cluster holding everything.
func Cluster(points []Point, maxSize int) [][]Point {
	if len(points) == 0 {
		return nil
	}
	if maxSize <= 0 {
		return [][]Point{append([]Point(nil), points...)}
	}

	remaining := append([]Point(nil), points...)
	var clusters [][]Point

	for len(remaining) > 0 {
		seed := remaining[0]
		cluster := []Point{seed}
		remaining = remaining[1:]

		for len(cluster) < maxSize && len(remaining) > 0 {
			bestIdx := 0
			bestDist := math.MaxFloat64
			for i, p := range remaining {
				if d := geo.HaversineKm(seed.Coord, p.Coord); d < bestDist {
					bestDist = d
					bestIdx = i
				}
			}
			cluster = append(cluster, remaining[bestIdx])
			remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
		}

		clusters = append(clusters, cluster)
	}

	return clusters
}

// Balance splits points across k routes by latitude: sort, cut into k
// contiguous slices of ceil(n/k), and nearest-neighbor order each slice on
// its own. Geography-oblivious by design; use Cluster when per-route size
// is the binding constraint instead.
func Balance(points []Point, k int) [][]Point {
	if len(points) == 0 {
		return nil
	}
	if k <= 1 {
		return [][]Point{Order(points, nil)}
	}

	sorted := append([]Point(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Coord.Lat < sorted[j].Coord.Lat
	})

	size := (len(sorted) + k - 1) / k
	var groups [][]Point
	for start := 0; start < len(sorted); start += size {
		end := start + size
		if end > len(sorted) {
			end = len(sorted)
		}
		groups = append(groups, Order(sorted[start:end], nil))
	}
	return groups
}

// InsertAt places p into an existing ordered sequence at the position with
// the smallest total-distance increase, evaluating every slot from 0 to
// len. Ties resolve to the lowest index. Returns the new order and the
// chosen position.
func InsertAt(ordered []Point, p Point) ([]Point, int) {
	bestPos := 0
	bestTotal := math.MaxFloat64

	for pos := 0; pos <= len(ordered); pos++ {
		candidate := make([]Point, 0, len(ordered)+1)
		candidate = append(candidate, ordered[:pos]...)
		candidate = append(candidate, p)
		candidate = append(candidate, ordered[pos:]...)
		if total := TotalDistanceKm(candidate); total < bestTotal {
			bestTotal = total
			bestPos = pos
		}
	}

	result := make([]Point, 0, len(ordered)+1)
	result = append(result, ordered[:bestPos]...)
	result = append(result, p)
	result = append(result, ordered[bestPos:]...)
	return result, bestPos
}

// Remove filters a point out of an ordered sequence.
func Remove(ordered []Point, id uuid.UUID) []Point {
	result := make([]Point, 0, len(ordered))
	for _, p := range ordered {
		if p.ID != id {
			result = append(result, p)
		}
	}
	return result
}
