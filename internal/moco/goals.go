package moco

import (
	"fmt"

	"github.com/beevik/etree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Goal is one weighted term of the problem's objective.
type Goal interface {
	Name() string
	Weight() float64
	element() *etree.Element
}

// MarkerFinalGoal pulls a model point to a reference location at the final time.
type MarkerFinalGoal struct {
	GoalName  string
	GoalScale float64
	// PointName is the model path of the point, e.g. /markerset/RS.
	PointName string
	Reference r3.Vec
}

func (g MarkerFinalGoal) Name() string    { return g.GoalName }
func (g MarkerFinalGoal) Weight() float64 { return g.GoalScale }

func (g MarkerFinalGoal) element() *etree.Element {
	el := goalElement("MocoMarkerFinalGoal", g)
	el.CreateElement("point_name").SetText(g.PointName)
	el.CreateElement("reference_location").SetText(formatVec(g.Reference))
	return el
}

// ControlGoal minimises the integral of squared controls.
type ControlGoal struct {
	GoalName  string
	GoalScale float64
}

func (g ControlGoal) Name() string    { return g.GoalName }
func (g ControlGoal) Weight() float64 { return g.GoalScale }

func (g ControlGoal) element() *etree.Element {
	return goalElement("MocoControlGoal", g)
}

// FinalTimeGoal minimises the duration of the movement.
type FinalTimeGoal struct {
	GoalName  string
	GoalScale float64
}

func (g FinalTimeGoal) Name() string    { return g.GoalName }
func (g FinalTimeGoal) Weight() float64 { return g.GoalScale }

func (g FinalTimeGoal) element() *etree.Element {
	return goalElement("MocoFinalTimeGoal", g)
}

func goalElement(tag string, g Goal) *etree.Element {
	el := etree.NewElement(tag)
	el.CreateAttr("name", g.Name())
	el.CreateElement("enabled").SetText("true")
	el.CreateElement("weight").SetText(formatFloat(g.Weight()))
	return el
}

func formatVec(v r3.Vec) string {
	return fmt.Sprintf("%s %s %s", formatFloat(v.X), formatFloat(v.Y), formatFloat(v.Z))
}
