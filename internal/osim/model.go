// File: internal/osim/model.go
// Description: Read/modify/write access to OpenSim model documents (.osim XML). Only the
// properties the simulation workflows edit are modelled; everything else in the document
// is carried through untouched.

package osim

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// FileExt is the extension of model documents.
const FileExt = ".osim"

const (
	rootTag  = "OpenSimDocument"
	modelTag = "Model"

	bodySet   = "BodySet"
	jointSet  = "JointSet"
	forceSet  = "ForceSet"
	markerSet = "MarkerSet"
)

// Model wraps a parsed .osim document.
type Model struct {
	doc   *etree.Document
	model *etree.Element
}

// Load reads and parses the model file at path.
func Load(path string) (*Model, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("failed to read model file '%s': %w", path, err)
	}
	m, err := fromDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("model file '%s': %w", path, err)
	}
	return m, nil
}

// Parse reads a model document from r.
func Parse(r io.Reader) (*Model, error) {
	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, fmt.Errorf("failed to parse model document: %w", err)
	}
	return fromDocument(doc)
}

func fromDocument(doc *etree.Document) (*Model, error) {
	root := doc.Root()
	if root == nil || root.Tag != rootTag {
		return nil, ErrNotAModel
	}
	model := root.SelectElement(modelTag)
	if model == nil {
		return nil, ErrNotAModel
	}
	return &Model{doc: doc, model: model}, nil
}

// Clone returns a deep copy that shares nothing with m.
func (m *Model) Clone() *Model {
	doc := m.doc.Copy()
	// The copy has the same shape, so the lookup cannot fail.
	c, _ := fromDocument(doc)
	return c
}

// Name returns the model's name attribute.
func (m *Model) Name() string {
	return m.model.SelectAttrValue("name", "")
}

// SetName renames the model.
func (m *Model) SetName(name string) {
	m.model.CreateAttr("name", name)
}

// Save writes the document to path, tab-indented as OpenSim itself writes it.
func (m *Model) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to write model file '%s': %w", path, err)
	}
	if _, err := m.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write model file '%s': %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write model file '%s': %w", path, err)
	}
	return nil
}

// WriteTo writes the indented document to w.
func (m *Model) WriteTo(w io.Writer) (int64, error) {
	m.doc.IndentTabs()
	return m.doc.WriteTo(w)
}

// objects returns the <objects> children of a top-level set such as ForceSet.
func (m *Model) objects(set string) []*etree.Element {
	s := m.model.SelectElement(set)
	if s == nil {
		return nil
	}
	objs := s.SelectElement("objects")
	if objs == nil {
		return nil
	}
	return objs.ChildElements()
}

// findObject returns the element in set whose name attribute equals name.
func (m *Model) findObject(set, name string) *etree.Element {
	for _, el := range m.objects(set) {
		if el.SelectAttrValue("name", "") == name {
			return el
		}
	}
	return nil
}

// -- Muscles --

// MaxIsometricForce returns the named muscle's max_isometric_force.
func (m *Model) MaxIsometricForce(muscle string) (float64, error) {
	prop, err := m.muscleForce(muscle)
	if err != nil {
		return 0, err
	}
	v, err := parseFloat(prop.Text())
	if err != nil {
		return 0, &ComponentError{Kind: "muscle", Name: muscle, Err: err}
	}
	return v, nil
}

// SetMaxIsometricForce overwrites the named muscle's max_isometric_force.
func (m *Model) SetMaxIsometricForce(muscle string, force float64) error {
	prop, err := m.muscleForce(muscle)
	if err != nil {
		return err
	}
	prop.SetText(formatFloat(force))
	return nil
}

func (m *Model) muscleForce(muscle string) (*etree.Element, error) {
	el := m.findObject(forceSet, muscle)
	if el == nil {
		return nil, notFound("muscle", muscle)
	}
	prop := el.SelectElement("max_isometric_force")
	if prop == nil {
		return nil, &ComponentError{Kind: "muscle", Name: muscle, Err: fmt.Errorf("%s has no max_isometric_force: %w", el.Tag, ErrComponentNotFound)}
	}
	return prop, nil
}

// Muscles lists the names of every force that carries a max_isometric_force.
func (m *Model) Muscles() []string {
	var names []string
	for _, el := range m.objects(forceSet) {
		if el.SelectElement("max_isometric_force") != nil {
			names = append(names, el.SelectAttrValue("name", ""))
		}
	}
	return names
}

// -- Coordinates --

// Coordinate describes a generalized coordinate and the joint that owns it.
// RangeMin, RangeMax and DefaultValue are in the model's units (radians for rotations).
type Coordinate struct {
	Name         string
	Joint        string
	RangeMin     float64
	RangeMax     float64
	DefaultValue float64
	Locked       bool
}

// StatePath returns the coordinate's value state path, e.g. /jointset/elbow/elbow_flexion/value.
func (c Coordinate) StatePath() string {
	return "/jointset/" + c.Joint + "/" + c.Name + "/value"
}

// Coordinate looks up a coordinate by name across every joint.
func (m *Model) Coordinate(name string) (Coordinate, error) {
	el, joint := m.coordinateElement(name)
	if el == nil {
		return Coordinate{}, notFound("coordinate", name)
	}
	c := Coordinate{Name: name, Joint: joint.SelectAttrValue("name", "")}

	if r := el.SelectElement("range"); r != nil {
		fields := strings.Fields(r.Text())
		if len(fields) != 2 {
			return Coordinate{}, &ComponentError{Kind: "coordinate", Name: name, Err: fmt.Errorf("malformed range %q", r.Text())}
		}
		var err error
		if c.RangeMin, err = parseFloat(fields[0]); err != nil {
			return Coordinate{}, &ComponentError{Kind: "coordinate", Name: name, Err: err}
		}
		if c.RangeMax, err = parseFloat(fields[1]); err != nil {
			return Coordinate{}, &ComponentError{Kind: "coordinate", Name: name, Err: err}
		}
	}
	if d := el.SelectElement("default_value"); d != nil {
		v, err := parseFloat(d.Text())
		if err != nil {
			return Coordinate{}, &ComponentError{Kind: "coordinate", Name: name, Err: err}
		}
		c.DefaultValue = v
	}
	if l := el.SelectElement("locked"); l != nil {
		c.Locked = strings.EqualFold(strings.TrimSpace(l.Text()), "true")
	}
	return c, nil
}

// LockCoordinate marks the named coordinate as locked.
func (m *Model) LockCoordinate(name string) error {
	el, _ := m.coordinateElement(name)
	if el == nil {
		return notFound("coordinate", name)
	}
	setChildText(el, "locked", "true")
	return nil
}

func (m *Model) coordinateElement(name string) (coord, joint *etree.Element) {
	for _, j := range m.objects(jointSet) {
		coords := j.SelectElement("coordinates")
		if coords == nil {
			continue
		}
		for _, c := range coords.SelectElements("Coordinate") {
			if c.SelectAttrValue("name", "") == name {
				return c, j
			}
		}
	}
	return nil, nil
}

// -- Bodies --

// BodyMass returns the mass of the named body.
func (m *Model) BodyMass(body string) (float64, error) {
	el := m.findObject(bodySet, body)
	if el == nil {
		return 0, notFound("body", body)
	}
	prop := el.SelectElement("mass")
	if prop == nil {
		return 0, nil
	}
	v, err := parseFloat(prop.Text())
	if err != nil {
		return 0, &ComponentError{Kind: "body", Name: body, Err: err}
	}
	return v, nil
}

// SetBodyMass overwrites the mass of the named body.
func (m *Model) SetBodyMass(body string, mass float64) error {
	el := m.findObject(bodySet, body)
	if el == nil {
		return notFound("body", body)
	}
	setChildText(el, "mass", formatFloat(mass))
	return nil
}

// AddBodyMass adds delta kilograms to the named body.
func (m *Model) AddBodyMass(body string, delta float64) error {
	mass, err := m.BodyMass(body)
	if err != nil {
		return err
	}
	return m.SetBodyMass(body, mass+delta)
}

// -- Markers --

// Markers lists the marker names in the marker set.
func (m *Model) Markers() []string {
	var names []string
	for _, el := range m.objects(markerSet) {
		names = append(names, el.SelectAttrValue("name", ""))
	}
	return names
}

// -- Actuators --

// CoordinateActuator is a torque actuator driving a single coordinate.
type CoordinateActuator struct {
	Coordinate   string
	OptimalForce float64
	MaxControl   float64
	MinControl   float64
	// Suffix is appended to the coordinate name to form the actuator name.
	Suffix string
}

// Name returns the actuator's component name.
func (a CoordinateActuator) Name() string { return a.Coordinate + a.Suffix }

// AddCoordinateActuator appends a CoordinateActuator to the model's force set.
func (m *Model) AddCoordinateActuator(a CoordinateActuator) error {
	if a.Coordinate == "" {
		return fmt.Errorf("a coordinate name must be specified")
	}
	if el, _ := m.coordinateElement(a.Coordinate); el == nil {
		return notFound("coordinate", a.Coordinate)
	}
	name := a.Name()
	if m.findObject(forceSet, name) != nil {
		return &ComponentError{Kind: "actuator", Name: name, Err: ErrDuplicateComponent}
	}

	objs := m.ensureObjects(forceSet, "forceset")
	act := objs.CreateElement("CoordinateActuator")
	act.CreateAttr("name", name)
	act.CreateElement("coordinate").SetText(a.Coordinate)
	act.CreateElement("optimal_force").SetText(formatFloat(a.OptimalForce))
	act.CreateElement("min_control").SetText(formatFloat(a.MinControl))
	act.CreateElement("max_control").SetText(formatFloat(a.MaxControl))
	return nil
}

func (m *Model) ensureObjects(set, setName string) *etree.Element {
	s := m.model.SelectElement(set)
	if s == nil {
		s = m.model.CreateElement(set)
		s.CreateAttr("name", setName)
	}
	objs := s.SelectElement("objects")
	if objs == nil {
		objs = s.CreateElement("objects")
	}
	return objs
}

// -- Connections --

// FinalizeConnections checks that every socket connectee in the document names an
// existing component, the way the engine resolves them when it loads the model.
func (m *Model) FinalizeConnections() error {
	names := map[string]struct{}{}
	for _, el := range m.model.FindElements(".//*[@name]") {
		names[el.SelectAttrValue("name", "")] = struct{}{}
	}
	names[m.Name()] = struct{}{}

	for _, el := range m.model.FindElements(".//*") {
		if !strings.HasPrefix(el.Tag, "socket_") {
			continue
		}
		for _, path := range strings.Fields(el.Text()) {
			target := path[strings.LastIndex(path, "/")+1:]
			if target == "" || target == ".." {
				continue
			}
			if _, ok := names[target]; !ok {
				owner := ""
				if p := el.Parent(); p != nil {
					owner = p.SelectAttrValue("name", p.Tag)
				}
				return &ComponentError{Kind: "socket", Name: owner + "." + el.Tag, Err: fmt.Errorf("%w: %s", ErrDanglingConnection, path)}
			}
		}
	}
	return nil
}

// -- helpers --

func setChildText(el *etree.Element, tag, text string) {
	child := el.SelectElement(tag)
	if child == nil {
		child = el.CreateElement(tag)
	}
	child.SetText(text)
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "inf", "+inf", "infinity":
		return math.Inf(1), nil
	case "-inf", "-infinity":
		return math.Inf(-1), nil
	}
	return strconv.ParseFloat(s, 64)
}

// formatFloat writes the shortest representation that parses back to the same value.
func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
