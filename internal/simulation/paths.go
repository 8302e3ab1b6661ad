package simulation

import (
	"fmt"

	"github.com/xkilldash9x/strengthsim/internal/moco"
	"github.com/xkilldash9x/strengthsim/internal/osim"
	"github.com/xkilldash9x/strengthsim/internal/task"
	"github.com/xkilldash9x/strengthsim/internal/trajectory"
)

// File names produced for a task. nodes is the collocation node count of the solve.

// ModelFileName is the prepared model written next to the study.
func ModelFileName(t task.Task) string {
	return t.Name() + "_model" + osim.FileExt
}

func StudyFileName(t task.Task, nodes int) string {
	return fmt.Sprintf("%s_%dnodes%s", t.Name(), nodes, moco.StudyExt)
}

func SolutionFileName(t task.Task, nodes int) string {
	return fmt.Sprintf("%s_%dnodes_solution%s", t.Name(), nodes, trajectory.FileExt)
}

func StartingGuessFileName(t task.Task) string {
	return t.Name() + "_StartingGuess" + trajectory.FileExt
}

func RandomGuessFileName(t task.Task) string {
	return t.Name() + "_randomGuess" + trajectory.FileExt
}

func RepairedGuessFileName(t task.Task) string {
	return t.Name() + "_repairedGuess" + trajectory.FileExt
}

func PlotFileName(t task.Task, nodes int) string {
	return fmt.Sprintf("%s_%dnodes_coordinates.png", t.Name(), nodes)
}
