// File: internal/task/endpoints.go
// Description: End-point goal geometry. Axes are those of the ground frame: X points
// forward (anteroposterior), Y up (vertical) and Z to the side (mediolateral).

package task

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/xkilldash9x/strengthsim/internal/engine"
	"github.com/xkilldash9x/strengthsim/internal/moco"
	"github.com/xkilldash9x/strengthsim/internal/units"
)

// Landmarks used by the reach geometry.
const (
	ShoulderJoint = "shoulder0"
	ElbowJoint    = "elbow"
	WristJoint    = "radius_hand_r"

	RadialMarker = "RS"
	UlnarMarker  = "US"
	HandMarker   = "wri_out"
)

const (
	// reachElevation is the angle of the reach point above the shoulder's horizontal.
	reachElevation units.Degrees = 15
	// reachForearms is the reach distance in forearm lengths.
	reachForearms = 2.0
	// endPointWeight is the weight of each marker end-point goal.
	endPointWeight = 5.0
)

// Landmarks are the ground-frame positions the reach geometry is built from.
type Landmarks struct {
	Shoulder r3.Vec
	Elbow    r3.Vec
	Wrist    r3.Vec
	Radial   r3.Vec
	Ulnar    r3.Vec
	Hand     r3.Vec
}

// ReachTargets holds the nominal reach point and the three marker targets offset from it.
type ReachTargets struct {
	Nominal r3.Vec
	Radial  r3.Vec
	Ulnar   r3.Vec
	Hand    r3.Vec
}

// ComputeReachTargets places the reach point two forearm lengths in front of the shoulder
// and raised so it sits 15 degrees above the shoulder's horizontal, then offsets one
// target per marker so the hand arrives level and palm down.
func ComputeReachTargets(l Landmarks) ReachTargets {
	forearm := r3.Norm(r3.Sub(l.Wrist, l.Elbow))
	forward := reachForearms * forearm
	rise := forward * math.Tan(reachElevation.Radians().Float())

	nominal := r3.Add(l.Shoulder, r3.Vec{X: forward, Y: rise})
	halfWidth := r3.Norm(r3.Sub(l.Radial, l.Ulnar)) / 2
	wristHeight := r3.Norm(r3.Sub(l.Hand, l.Wrist))

	return ReachTargets{
		Nominal: nominal,
		Radial:  r3.Add(nominal, r3.Vec{Z: -halfWidth}),
		Ulnar:   r3.Add(nominal, r3.Vec{Z: halfWidth}),
		Hand:    r3.Add(nominal, r3.Vec{Y: wristHeight}),
	}
}

// ReadLandmarks pulls the reach landmarks out of an initialised pose.
func ReadLandmarks(pose *engine.Pose) (Landmarks, error) {
	var l Landmarks
	var err error
	if l.Shoulder, err = pose.JointFrameLocation(ShoulderJoint, 1); err != nil {
		return l, err
	}
	if l.Elbow, err = pose.JointFrameLocation(ElbowJoint, 1); err != nil {
		return l, err
	}
	if l.Wrist, err = pose.JointFrameLocation(WristJoint, 0); err != nil {
		return l, err
	}
	if l.Radial, err = pose.MarkerLocation(RadialMarker); err != nil {
		return l, err
	}
	if l.Ulnar, err = pose.MarkerLocation(UlnarMarker); err != nil {
		return l, err
	}
	if l.Hand, err = pose.MarkerLocation(HandMarker); err != nil {
		return l, err
	}
	return l, nil
}

// AddMarkerEndPoints installs the task's final-position goals on problem, using the
// landmark positions in pose.
func AddMarkerEndPoints(t Task, problem *moco.Problem, pose *engine.Pose) (ReachTargets, error) {
	if t == nil || problem == nil || pose == nil {
		return ReachTargets{}, fmt.Errorf("%w: AddMarkerEndPoints needs a task, a problem and a pose", ErrMissingArgument)
	}

	switch t.(type) {
	case reachTask:
		landmarks, err := ReadLandmarks(pose)
		if err != nil {
			return ReachTargets{}, fmt.Errorf("task %s: %w", t.Name(), err)
		}
		targets := ComputeReachTargets(landmarks)
		goals := []moco.MarkerFinalGoal{
			{GoalName: "RS_endPoint", GoalScale: endPointWeight, PointName: "/markerset/" + RadialMarker, Reference: targets.Radial},
			{GoalName: "US_endPoint", GoalScale: endPointWeight, PointName: "/markerset/" + UlnarMarker, Reference: targets.Ulnar},
			{GoalName: "W_endPoint", GoalScale: endPointWeight, PointName: "/markerset/" + HandMarker, Reference: targets.Hand},
		}
		for _, g := range goals {
			if err := problem.AddGoal(g); err != nil {
				return ReachTargets{}, err
			}
		}
		return targets, nil
	default:
		return ReachTargets{}, fmt.Errorf("%w: %s has no end-point geometry", ErrUnknownTask, t.Name())
	}
}
