// Package screens wires the reconciliation pipeline (normalize, join,
// evaluate rules, aggregate) into the program's named checks. Each screen is
// configuration over the same engine: its inputs and their schemas, the
// joins, the ordered rule set and the downloadable outputs.
package screens

import (
	"errors"
	"fmt"
	"sort"

	"Recon340B/internal/config"
	"Recon340B/internal/dataset"
	"Recon340B/internal/loader"
)

// InputKind says how an uploaded part is read.
type InputKind int

const (
	// Table is a CSV/XLSX/XLS file loaded as one dataset.
	Table InputKind = iota
	// Book is an xlsx workbook with named-sheet access.
	Book
	// Document is raw bytes handed to the screen as-is.
	Document
)

func (k InputKind) String() string {
	switch k {
	case Book:
		return "workbook"
	case Document:
		return "document"
	}
	return "table"
}

// Input declares one upload a screen reads.
type Input struct {
	Name     string
	Label    string
	Kind     InputKind
	Required bool
	Schema   dataset.Schema
}

// Inputs holds the uploaded material for one run, keyed by Input.Name.
type Inputs struct {
	Tables    map[string]*dataset.Dataset
	Workbooks map[string]*loader.Workbook
	Documents map[string][]byte
}

// NewInputs returns an empty, ready to fill Inputs.
func NewInputs() Inputs {
	return Inputs{
		Tables:    make(map[string]*dataset.Dataset),
		Workbooks: make(map[string]*loader.Workbook),
		Documents: make(map[string][]byte),
	}
}

func (in Inputs) has(i Input) bool {
	switch i.Kind {
	case Book:
		return in.Workbooks[i.Name] != nil
	case Document:
		return len(in.Documents[i.Name]) > 0
	}
	return in.Tables[i.Name] != nil
}

// Screen is one named check.
type Screen struct {
	Name   string
	Title  string
	Inputs []Input
	run    func(in Inputs, p config.Params) (*Result, error)
}

// View names accepted by Result.View.
const (
	ViewReport  = "report"
	ViewFlagged = "flagged"
	ViewSummary = "summary"
)

// Result is the output of one run. Flagged holds rows carrying a non-default
// label; Summary is an optional rollup. Views carries screen specific extra
// tables. LogRows, when set, are the rows to append to the library log Log.
type Result struct {
	Screen   string
	Report   *dataset.Dataset
	Flagged  *dataset.Dataset
	Summary  *dataset.Dataset
	Views    map[string]*dataset.Dataset
	Primary  string
	FileName string
	// FileNames overrides the download name of individual views.
	FileNames map[string]string
	Log       string
	LogRows   *dataset.Dataset
}

// View returns a named output and its download file name.
func (r *Result) View(name string) (*dataset.Dataset, string, bool) {
	if name == "" {
		name = r.Primary
	}
	var ds *dataset.Dataset
	switch name {
	case ViewReport:
		ds = r.Report
	case ViewFlagged:
		ds = r.Flagged
	case ViewSummary:
		ds = r.Summary
	default:
		ds = r.Views[name]
	}
	if ds == nil {
		return nil, "", false
	}
	if fn, ok := r.FileNames[name]; ok {
		return ds, fn, true
	}
	if name == r.Primary && r.FileName != "" {
		return ds, r.FileName, true
	}
	return ds, fmt.Sprintf("%s_%s.csv", r.Screen, name), true
}

// ErrMissingInput is returned when a required upload is absent.
var ErrMissingInput = errors.New("required input missing")

type MissingInputError struct {
	Screen string
	Input  string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: required input %q missing", e.Screen, e.Input)
}

func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// ErrUnknownScreen is returned by Lookup.
var ErrUnknownScreen = errors.New("unknown screen")

// Run checks required inputs, normalizes every table by its declared schema
// (reporting all missing columns of an input at once) and runs the screen.
func (s *Screen) Run(in Inputs, p config.Params) (*Result, error) {
	norm := NewInputs()
	for k, v := range in.Workbooks {
		norm.Workbooks[k] = v
	}
	for k, v := range in.Documents {
		norm.Documents[k] = v
	}
	for _, i := range s.Inputs {
		if !in.has(i) {
			if i.Required {
				return nil, &MissingInputError{Screen: s.Name, Input: i.Name}
			}
			continue
		}
		if i.Kind != Table {
			continue
		}
		ds, err := loader.NormalizeSchema(in.Tables[i.Name].WithName(i.Name), i.Schema)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", s.Name, err)
		}
		norm.Tables[i.Name] = ds
	}
	res, err := s.run(norm, p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	res.Screen = s.Name
	if res.Primary == "" {
		res.Primary = ViewFlagged
	}
	return res, nil
}

// RequiredColumns lists the non-optional columns of every table input.
func (s *Screen) RequiredColumns() map[string][]string {
	out := make(map[string][]string)
	for _, i := range s.Inputs {
		if i.Kind == Table {
			out[i.Name] = i.Schema.Required()
		}
	}
	return out
}

var registry = map[string]*Screen{}

func register(s *Screen) *Screen {
	if _, dup := registry[s.Name]; dup {
		panic("screens: duplicate screen " + s.Name)
	}
	registry[s.Name] = s
	return s
}

// Lookup finds a screen by name.
func Lookup(name string) (*Screen, error) {
	s, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScreen, name)
	}
	return s, nil
}

// All returns every screen sorted by name.
func All() []*Screen {
	out := make([]*Screen, 0, len(registry))
	for _, s := range registry {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
