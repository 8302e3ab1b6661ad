// File: internal/moco/study.go
// Description: Serialises a composed problem and its solver settings as a Moco study
// document (.omoco) that the engine loads and solves.

package moco

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/beevik/etree"
)

// StudyExt is the file extension of study documents.
const StudyExt = ".omoco"

// SolverSettings configures the direct collocation solver.
type SolverSettings struct {
	NumMeshIntervals      int
	ConvergenceTolerance  float64
	ConstraintTolerance   float64
	MaxIterations         int
	MultibodyDynamicsMode string
	Transcription         string
	OptimSolver           string
	// GuessFile is the trajectory that seeds the solve; empty lets the engine build one.
	GuessFile string
}

// NumNodes is the number of collocation points of a Hermite-Simpson grid.
func (s SolverSettings) NumNodes() int {
	return 2*s.NumMeshIntervals + 1
}

// Validate checks the settings the engine would otherwise reject mid-solve.
func (s SolverSettings) Validate() error {
	if s.NumMeshIntervals <= 0 {
		return fmt.Errorf("num_mesh_intervals must be positive, got %d", s.NumMeshIntervals)
	}
	if s.MaxIterations <= 0 {
		return fmt.Errorf("optim_max_iterations must be positive, got %d", s.MaxIterations)
	}
	if s.ConvergenceTolerance <= 0 || s.ConstraintTolerance <= 0 {
		return errors.New("solver tolerances must be positive")
	}
	return nil
}

// Study pairs a problem with its solver.
type Study struct {
	Name    string
	Problem *Problem
	Solver  SolverSettings
}

// Document builds the study's XML document.
func (s *Study) Document() (*etree.Document, error) {
	if s.Problem == nil {
		return nil, errors.New("study has no problem")
	}
	if err := s.Problem.Validate(); err != nil {
		return nil, fmt.Errorf("study %s: %w", s.Name, err)
	}
	if err := s.Solver.Validate(); err != nil {
		return nil, fmt.Errorf("study %s: %w", s.Name, err)
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("OpenSimDocument")
	root.CreateAttr("Version", "40500")
	study := root.CreateElement("MocoStudy")
	study.CreateAttr("name", s.Name)

	problem := study.CreateElement("problem").CreateElement("MocoProblem")
	phase := problem.CreateElement("phases").CreateElement("MocoPhase")
	s.writePhase(phase)

	solver := study.CreateElement("solver").CreateElement("MocoCasADiSolver")
	s.writeSolver(solver)
	return doc, nil
}

func (s *Study) writePhase(phase *etree.Element) {
	p := s.Problem
	phase.CreateAttr("name", "")
	proc := phase.CreateElement("model_processor").CreateElement("ModelProcessor")
	proc.CreateElement("model_file").SetText(p.ModelFile)

	setBounds(phase, "time_initial_bounds", p.TimeInitial)
	setBounds(phase, "time_final_bounds", p.TimeFinal)

	patterns := phase.CreateElement("state_infos_pattern")
	for _, info := range p.StateInfoPatterns() {
		writeInfo(patterns, info)
	}
	infos := phase.CreateElement("state_infos")
	for _, info := range p.StateInfos() {
		writeInfo(infos, info)
	}

	goals := phase.CreateElement("goals")
	for _, g := range p.goals {
		goals.AddChild(g.element())
	}
}

func (s *Study) writeSolver(el *etree.Element) {
	cfg := s.Solver
	el.CreateElement("num_mesh_intervals").SetText(strconv.Itoa(cfg.NumMeshIntervals))
	el.CreateElement("multibody_dynamics_mode").SetText(cfg.MultibodyDynamicsMode)
	el.CreateElement("transcription_scheme").SetText(cfg.Transcription)
	el.CreateElement("optim_solver").SetText(cfg.OptimSolver)
	el.CreateElement("optim_max_iterations").SetText(strconv.Itoa(cfg.MaxIterations))
	el.CreateElement("optim_convergence_tolerance").SetText(formatFloat(cfg.ConvergenceTolerance))
	el.CreateElement("optim_constraint_tolerance").SetText(formatFloat(cfg.ConstraintTolerance))
	el.CreateElement("guess_file").SetText(cfg.GuessFile)
}

func writeInfo(parent *etree.Element, info StateInfo) {
	el := parent.CreateElement("MocoVariableInfo")
	el.CreateAttr("name", info.Name)
	setBounds(el, "bounds", info.Bounds)
	setBounds(el, "initial_bounds", info.Initial)
	setBounds(el, "final_bounds", info.Final)
}

func setBounds(parent *etree.Element, tag string, b Bounds) {
	if !b.IsSet() {
		return
	}
	parent.CreateElement(tag).SetText(b.String())
}

// WriteTo writes the indented study document to w.
func (s *Study) WriteTo(w io.Writer) (int64, error) {
	doc, err := s.Document()
	if err != nil {
		return 0, err
	}
	doc.Indent(4)
	return doc.WriteTo(w)
}

// Save writes the study document to path.
func (s *Study) Save(path string) error {
	doc, err := s.Document()
	if err != nil {
		return err
	}
	doc.Indent(4)
	if err := doc.WriteToFile(path); err != nil {
		return fmt.Errorf("failed to write study file '%s': %w", path, err)
	}
	return nil
}

// SetGuessFile rewrites the guess_file of the study stored at studyPath.
func SetGuessFile(studyPath, guessPath string) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(studyPath); err != nil {
		return fmt.Errorf("failed to read study file '%s': %w", studyPath, err)
	}
	solver := doc.FindElement("/OpenSimDocument/MocoStudy/solver/MocoCasADiSolver")
	if solver == nil {
		return fmt.Errorf("study file '%s' has no MocoCasADiSolver", studyPath)
	}
	el := solver.SelectElement("guess_file")
	if el == nil {
		el = solver.CreateElement("guess_file")
	}
	el.SetText(guessPath)
	doc.Indent(4)
	if err := doc.WriteToFile(studyPath); err != nil {
		return fmt.Errorf("failed to write study file '%s': %w", studyPath, err)
	}
	return nil
}
