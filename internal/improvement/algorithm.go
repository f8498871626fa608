package improvement

import "github.com/GoSim-25-26J-441/thp-tuner/pkg/models"

// Algorithm is an ask/tell multi-objective optimizer. Objectives are always
// minimized; callers sign-normalize maximized metrics first.
type Algorithm interface {
	// Ask proposes the next batch of candidate vectors
	Ask() ([]models.ParameterVector, error)
	// Tell reports the objectives of the last batch, objective i for vector i
	Tell(vectors []models.ParameterVector, objectives []models.ObjectiveVector) error
	// Population returns the current surviving population
	Population() []models.Solution
}
