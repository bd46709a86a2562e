package screens

import (
	"bytes"
	"fmt"

	"Recon340B/internal/config"
	"Recon340B/internal/dataset"
	"Recon340B/internal/joiner"
	"Recon340B/internal/loader"
	"Recon340B/internal/rules"

	"gopkg.in/yaml.v3"
)

// CustomSpec is a whole screen declared in YAML: the schemas of the data and
// optional reference tables, how to join them and the rule set to apply.
//
//	name: orphan-check
//	file_name: orphan_flags.csv
//	inputs:
//	  data:      [{name: NDC, kind: identifier}, {name: Entity Type, kind: text}]
//	  reference: [{name: NDC, kind: identifier}]
//	join: {keys: [NDC], mode: left, indicator: Listed}
//	ruleset:
//	  name: orphan
//	  column: Status
//	  default: OK
//	  rules:
//	    - {name: listed, label: Orphan Drug Restriction, when: {op: "true", column: Listed}}
type CustomSpec struct {
	Name     string                    `yaml:"name"`
	FileName string                    `yaml:"file_name"`
	Inputs   map[string]dataset.Schema `yaml:"inputs"`
	Join     *JoinSpec                 `yaml:"join"`
	RuleSet  rules.RuleSetSpec         `yaml:"ruleset"`
}

// JoinSpec is the YAML form of a joiner.Spec between data and reference.
type JoinSpec struct {
	Keys      []string `yaml:"keys"`
	RightKeys []string `yaml:"right_keys"`
	Mode      string   `yaml:"mode"`
	Suffixes  []string `yaml:"suffixes"`
	Indicator string   `yaml:"indicator"`
}

func (j *JoinSpec) spec(left, right *dataset.Dataset) (joiner.Spec, error) {
	s := joiner.Spec{
		Left: left, Right: right,
		Keys: j.Keys, RightKeys: j.RightKeys,
		Mode: joiner.Mode(j.Mode), Indicator: j.Indicator,
	}
	if s.Mode == "" {
		s.Mode = joiner.Left
	}
	switch len(j.Suffixes) {
	case 0:
	case 2:
		s.Suffixes = [2]string{j.Suffixes[0], j.Suffixes[1]}
	default:
		return s, fmt.Errorf("%w: suffixes need exactly two entries", dataset.ErrInvalidJoinSpec)
	}
	return s, nil
}

// ParseCustom decodes a custom screen definition.
func ParseCustom(raw []byte) (CustomSpec, error) {
	var spec CustomSpec
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil {
		return spec, fmt.Errorf("%w: %v", dataset.ErrInvalidRuleSet, err)
	}
	for name := range spec.Inputs {
		if name != "data" && name != "reference" {
			return spec, fmt.Errorf("%w: unknown input %q", dataset.ErrInvalidRuleSet, name)
		}
	}
	return spec, nil
}

var Custom = register(&Screen{
	Name:  "custom",
	Title: "Custom Rule Screen",
	Inputs: []Input{
		{Name: "rules", Label: "Screen Definition (YAML)", Kind: Document, Required: true},
		{Name: "data", Label: "Data File", Required: true},
		{Name: "reference", Label: "Reference File"},
	},
	run: runCustom,
})

func runCustom(in Inputs, _ config.Params) (*Result, error) {
	spec, err := ParseCustom(in.Documents["rules"])
	if err != nil {
		return nil, err
	}
	rs, err := rules.Compile(spec.RuleSet)
	if err != nil {
		return nil, err
	}
	tables := make(map[string]*dataset.Dataset, 2)
	for name, schema := range spec.Inputs {
		ds := in.Tables[name]
		if ds == nil {
			continue
		}
		if tables[name], err = loader.NormalizeSchema(ds, schema); err != nil {
			return nil, err
		}
	}
	data := in.Tables["data"]
	if t, ok := tables["data"]; ok {
		data = t
	}
	if spec.Join != nil {
		ref := in.Tables["reference"]
		if ref == nil {
			return nil, &MissingInputError{Screen: "custom", Input: "reference"}
		}
		if t, ok := tables["reference"]; ok {
			ref = t
		}
		js, err := spec.Join.spec(data, ref)
		if err != nil {
			return nil, err
		}
		if data, err = joiner.Join(js); err != nil {
			return nil, err
		}
	}
	// Columns the rule set reads may come from either side of the join.
	if data, err = loader.NormalizeSchema(data, rs.Requires); err != nil {
		return nil, err
	}
	report, flagged, err := evaluate(data, rs)
	if err != nil {
		return nil, err
	}
	summary, err := statusSummary(report, rs.Column)
	if err != nil {
		return nil, err
	}
	fileName := spec.FileName
	if fileName == "" && spec.Name != "" {
		fileName = spec.Name + "_flagged.csv"
	}
	return &Result{Report: report, Flagged: flagged, Summary: summary, FileName: fileName}, nil
}
