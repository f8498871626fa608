package improvement

import (
	"math"
	"sort"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
)

// dominates reports whether a Pareto-dominates b under minimization:
// no worse in every objective and strictly better in at least one
func dominates(a, b models.ObjectiveVector) bool {
	better := false
	for i := range a {
		if a[i] > b[i] {
			return false
		}
		if a[i] < b[i] {
			better = true
		}
	}
	return better
}

// ParetoFront returns the solutions not dominated by any other, keeping their order
func ParetoFront(solutions []models.Solution) []models.Solution {
	front := make([]models.Solution, 0, len(solutions))
	for i, candidate := range solutions {
		dominated := false
		for j, other := range solutions {
			if i != j && dominates(other.Objectives, candidate.Objectives) {
				dominated = true
				break
			}
		}
		if !dominated {
			front = append(front, candidate.Clone())
		}
	}
	return front
}

// nonDominatedSort partitions solutions into fronts of indices; front 0 is non-dominated
func nonDominatedSort(solutions []models.Solution) [][]int {
	n := len(solutions)
	dominatedBy := make([][]int, n)
	counts := make([]int, n)

	var current []int
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			switch {
			case dominates(solutions[i].Objectives, solutions[j].Objectives):
				dominatedBy[i] = append(dominatedBy[i], j)
				counts[j]++
			case dominates(solutions[j].Objectives, solutions[i].Objectives):
				dominatedBy[j] = append(dominatedBy[j], i)
				counts[i]++
			}
		}
	}
	for i := 0; i < n; i++ {
		if counts[i] == 0 {
			current = append(current, i)
		}
	}

	var fronts [][]int
	for len(current) > 0 {
		fronts = append(fronts, current)
		var next []int
		for _, i := range current {
			for _, j := range dominatedBy[i] {
				counts[j]--
				if counts[j] == 0 {
					next = append(next, j)
				}
			}
		}
		sort.Ints(next)
		current = next
	}
	return fronts
}

// crowdingDistance computes the crowding distance of each member of one front.
// Boundary solutions get +Inf; objectives with no spread contribute nothing.
func crowdingDistance(solutions []models.Solution, front []int) []float64 {
	distances := make([]float64, len(front))
	if len(front) <= 2 {
		for i := range distances {
			distances[i] = math.Inf(1)
		}
		return distances
	}

	nObj := len(solutions[front[0]].Objectives)
	order := make([]int, len(front))
	for m := 0; m < nObj; m++ {
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return solutions[front[order[a]]].Objectives[m] < solutions[front[order[b]]].Objectives[m]
		})

		lo := solutions[front[order[0]]].Objectives[m]
		hi := solutions[front[order[len(order)-1]]].Objectives[m]
		distances[order[0]] = math.Inf(1)
		distances[order[len(order)-1]] = math.Inf(1)
		if hi == lo {
			continue
		}
		for k := 1; k < len(order)-1; k++ {
			prev := solutions[front[order[k-1]]].Objectives[m]
			next := solutions[front[order[k+1]]].Objectives[m]
			distances[order[k]] += (next - prev) / (hi - lo)
		}
	}
	return distances
}

// rankAndCrowd assigns Rank and Crowding to every solution and returns the fronts
func rankAndCrowd(solutions []models.Solution) [][]int {
	fronts := nonDominatedSort(solutions)
	for rank, front := range fronts {
		distances := crowdingDistance(solutions, front)
		for k, idx := range front {
			solutions[idx].Rank = rank
			solutions[idx].Crowding = distances[k]
		}
	}
	return fronts
}

// better is the crowded-comparison operator used by tournament selection
func better(a, b models.Solution) int {
	switch {
	case a.Rank < b.Rank:
		return 1
	case a.Rank > b.Rank:
		return -1
	case a.Crowding > b.Crowding:
		return 1
	case a.Crowding < b.Crowding:
		return -1
	default:
		return 0
	}
}
