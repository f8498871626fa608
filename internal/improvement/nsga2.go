package improvement

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

// NSGA2Options configures NSGA2. Zero values select the usual defaults.
type NSGA2Options struct {
	PopulationSize      int
	OffspringSize       int
	EliminateDuplicates bool
	Seed                int64
	// Simulated binary crossover distribution index and probability
	CrossoverEta  float64
	CrossoverProb float64
	// Polynomial mutation distribution index and per-variable probability (default 1/n)
	MutationEta  float64
	MutationProb float64
	// MaxMatingAttempts bounds how many mating rounds may be spent looking for
	// non-duplicate offspring before the batch is topped up by uniform sampling
	MaxMatingAttempts int
}

// NSGA2 is the elitist non-dominated sorting genetic algorithm
type NSGA2 struct {
	space      *models.ParameterSpace
	opts       NSGA2Options
	rng        *utils.RandSource
	population []models.Solution
	pending    []models.ParameterVector
	told       bool
}

var errAskPending = errors.New("previous batch has not been told yet")

// NewNSGA2 creates an NSGA2 instance over space
func NewNSGA2(space *models.ParameterSpace, opts NSGA2Options) (*NSGA2, error) {
	if space == nil || space.Dim() == 0 {
		return nil, &models.ConfigurationError{Reason: "nsga2: empty parameter space"}
	}
	if opts.PopulationSize < 1 {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("nsga2: population size must be positive, got %d", opts.PopulationSize)}
	}
	if opts.OffspringSize == 0 {
		opts.OffspringSize = opts.PopulationSize
	}
	if opts.OffspringSize < 1 {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("nsga2: offspring size must be positive, got %d", opts.OffspringSize)}
	}
	if opts.CrossoverEta == 0 {
		opts.CrossoverEta = 15
	}
	if opts.CrossoverProb == 0 {
		opts.CrossoverProb = 0.9
	}
	if opts.MutationEta == 0 {
		opts.MutationEta = 20
	}
	if opts.MutationProb == 0 {
		opts.MutationProb = 1 / float64(space.Dim())
	}
	if opts.MaxMatingAttempts == 0 {
		opts.MaxMatingAttempts = 100
	}
	return &NSGA2{
		space: space,
		opts:  opts,
		rng:   utils.NewRandSource(opts.Seed),
	}, nil
}

// Seed returns the effective random seed
func (a *NSGA2) Seed() int64 { return a.rng.Seed() }

// Ask proposes the initial population on the first call and offspring afterwards
func (a *NSGA2) Ask() ([]models.ParameterVector, error) {
	if a.pending != nil {
		return nil, errAskPending
	}
	var batch []models.ParameterVector
	if !a.told {
		batch = a.sample(a.opts.PopulationSize, nil)
	} else {
		batch = a.mate()
	}
	a.pending = batch
	return cloneVectors(batch), nil
}

// Tell merges the evaluated batch into the population and keeps the best
// PopulationSize solutions by rank, then crowding distance
func (a *NSGA2) Tell(vectors []models.ParameterVector, objectives []models.ObjectiveVector) error {
	if a.pending == nil {
		return errors.New("tell without a pending batch")
	}
	if len(vectors) != len(a.pending) || len(objectives) != len(a.pending) {
		return fmt.Errorf("tell: expected %d results, got %d vectors and %d objective vectors", len(a.pending), len(vectors), len(objectives))
	}
	nObj := len(objectives[0])
	for i := range vectors {
		if !vectors[i].Equal(a.pending[i]) {
			return fmt.Errorf("tell: vector %d does not match the asked batch", i)
		}
		if len(objectives[i]) != nObj || nObj == 0 {
			return fmt.Errorf("tell: objective vector %d has %d values, want %d", i, len(objectives[i]), nObj)
		}
		if !utils.AllFinite(objectives[i]) {
			return fmt.Errorf("tell: objective vector %d is not finite: %v", i, objectives[i])
		}
	}

	merged := make([]models.Solution, 0, len(a.population)+len(vectors))
	merged = append(merged, a.population...)
	for i := range vectors {
		merged = append(merged, models.Solution{Vector: vectors[i].Clone(), Objectives: objectives[i].Clone()})
	}
	a.population = a.survive(merged)
	a.pending = nil
	a.told = true
	return nil
}

// Population returns a copy of the surviving population, best first
func (a *NSGA2) Population() []models.Solution {
	return models.CloneSolutions(a.population)
}

// survive ranks merged and keeps whole fronts while they fit, cutting the
// last one by descending crowding distance
func (a *NSGA2) survive(merged []models.Solution) []models.Solution {
	fronts := rankAndCrowd(merged)
	survivors := make([]models.Solution, 0, a.opts.PopulationSize)
	for _, front := range fronts {
		if len(survivors)+len(front) <= a.opts.PopulationSize {
			for _, idx := range front {
				survivors = append(survivors, merged[idx])
			}
			continue
		}
		cut := append([]int(nil), front...)
		sort.SliceStable(cut, func(i, j int) bool {
			return merged[cut[i]].Crowding > merged[cut[j]].Crowding
		})
		for _, idx := range cut[:a.opts.PopulationSize-len(survivors)] {
			survivors = append(survivors, merged[idx])
		}
		break
	}

	// Crowding is relative to the front it was computed in; recompute it for the survivors
	rankAndCrowd(survivors)
	return survivors
}

// mate produces OffspringSize children by tournament selection, SBX and polynomial mutation
func (a *NSGA2) mate() []models.ParameterVector {
	offspring := make([]models.ParameterVector, 0, a.opts.OffspringSize)
	for attempt := 0; attempt < a.opts.MaxMatingAttempts && len(offspring) < a.opts.OffspringSize; attempt++ {
		p1 := a.tournament()
		p2 := a.tournament()
		c1, c2 := a.crossover(a.population[p1].Vector, a.population[p2].Vector)
		for _, child := range []models.ParameterVector{c1, c2} {
			if len(offspring) == a.opts.OffspringSize {
				break
			}
			a.mutate(child)
			if a.opts.EliminateDuplicates && a.isDuplicate(child, offspring) {
				continue
			}
			offspring = append(offspring, child)
		}
	}
	if missing := a.opts.OffspringSize - len(offspring); missing > 0 {
		offspring = append(offspring, a.sample(missing, offspring)...)
	}
	return offspring
}

// sample draws n uniform vectors, skipping duplicates when enabled
func (a *NSGA2) sample(n int, existing []models.ParameterVector) []models.ParameterVector {
	lower, upper := a.space.Lower(), a.space.Upper()
	out := make([]models.ParameterVector, 0, n)
	for attempt := 0; len(out) < n; attempt++ {
		v := make(models.ParameterVector, len(lower))
		for i := range v {
			if lower[i] == upper[i] {
				v[i] = lower[i]
				continue
			}
			v[i] = a.rng.UniformFloat64(lower[i], upper[i])
		}
		if a.opts.EliminateDuplicates && attempt < n*a.opts.MaxMatingAttempts &&
			(a.isDuplicate(v, existing) || a.isDuplicate(v, out)) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// tournament runs a binary tournament and returns the winner's index
func (a *NSGA2) tournament() int {
	n := len(a.population)
	i, j := a.rng.Intn(n), a.rng.Intn(n)
	switch better(a.population[i], a.population[j]) {
	case 1:
		return i
	case -1:
		return j
	default:
		if a.rng.BernoulliBool(0.5) {
			return i
		}
		return j
	}
}

// crossover applies simulated binary crossover with bounds
func (a *NSGA2) crossover(p1, p2 models.ParameterVector) (models.ParameterVector, models.ParameterVector) {
	c1, c2 := p1.Clone(), p2.Clone()
	if !a.rng.BernoulliBool(a.opts.CrossoverProb) {
		return c1, c2
	}
	eta := a.opts.CrossoverEta
	for i, spec := range a.space.Specs {
		if !a.rng.BernoulliBool(0.5) || math.Abs(p1[i]-p2[i]) <= 1e-14 {
			continue
		}
		xl, xu := spec.Lower, spec.Upper
		y1, y2 := math.Min(p1[i], p2[i]), math.Max(p1[i], p2[i])
		u := a.rng.Float64()

		beta := 1 + 2*(y1-xl)/(y2-y1)
		alpha := 2 - math.Pow(beta, -(eta+1))
		v1 := 0.5 * ((y1 + y2) - sbxBetaQ(u, alpha, eta)*(y2-y1))

		beta = 1 + 2*(xu-y2)/(y2-y1)
		alpha = 2 - math.Pow(beta, -(eta+1))
		v2 := 0.5 * ((y1 + y2) + sbxBetaQ(u, alpha, eta)*(y2-y1))

		v1 = utils.ClampFloat64(v1, xl, xu)
		v2 = utils.ClampFloat64(v2, xl, xu)
		if a.rng.BernoulliBool(0.5) {
			v1, v2 = v2, v1
		}
		c1[i], c2[i] = v1, v2
	}
	return c1, c2
}

func sbxBetaQ(u, alpha, eta float64) float64 {
	if u <= 1/alpha {
		return math.Pow(u*alpha, 1/(eta+1))
	}
	return math.Pow(1/(2-u*alpha), 1/(eta+1))
}

// mutate applies polynomial mutation in place, keeping every value within bounds
func (a *NSGA2) mutate(v models.ParameterVector) {
	eta := a.opts.MutationEta
	power := 1 / (eta + 1)
	for i, spec := range a.space.Specs {
		if !a.rng.BernoulliBool(a.opts.MutationProb) {
			continue
		}
		xl, xu := spec.Lower, spec.Upper
		if xu == xl {
			continue
		}
		y := v[i]
		delta1 := (y - xl) / (xu - xl)
		delta2 := (xu - y) / (xu - xl)
		u := a.rng.Float64()

		var deltaq float64
		if u < 0.5 {
			xy := 1 - delta1
			val := 2*u + (1-2*u)*math.Pow(xy, eta+1)
			deltaq = math.Pow(val, power) - 1
		} else {
			xy := 1 - delta2
			val := 2*(1-u) + 2*(u-0.5)*math.Pow(xy, eta+1)
			deltaq = 1 - math.Pow(val, power)
		}
		v[i] = utils.ClampFloat64(y+deltaq*(xu-xl), xl, xu)
	}
}

// isDuplicate reports whether v equals a population member or any of batch
func (a *NSGA2) isDuplicate(v models.ParameterVector, batch []models.ParameterVector) bool {
	for _, s := range a.population {
		if s.Vector.Equal(v) {
			return true
		}
	}
	for _, b := range batch {
		if b.Equal(v) {
			return true
		}
	}
	return false
}

func cloneVectors(in []models.ParameterVector) []models.ParameterVector {
	out := make([]models.ParameterVector, len(in))
	for i, v := range in {
		out[i] = v.Clone()
	}
	return out
}
