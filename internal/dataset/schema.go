package dataset

// ColumnKind is the semantic type a pipeline expects a column to hold.
type ColumnKind string

const (
	ColumnIdentifier ColumnKind = "identifier"
	ColumnDate       ColumnKind = "date"
	ColumnTimestamp  ColumnKind = "timestamp"
	ColumnNumber     ColumnKind = "number"
	ColumnBoolean    ColumnKind = "boolean"
	ColumnText       ColumnKind = "text"
)

// Runtime is the value kind a normalized column of k holds. ok is false for
// an undeclared kind.
func (k ColumnKind) Runtime() (kind Kind, ok bool) {
	switch k {
	case ColumnIdentifier, ColumnText:
		return KindString, true
	case ColumnDate, ColumnTimestamp:
		return KindDate, true
	case ColumnNumber:
		return KindNumber, true
	case ColumnBoolean:
		return KindBool, true
	}
	return KindMissing, false
}

// ColumnSpec declares one expected column. Optional columns are normalized
// when present and never reported missing.
type ColumnSpec struct {
	Name     string     `yaml:"name" json:"name"`
	Kind     ColumnKind `yaml:"kind" json:"kind"`
	Optional bool       `yaml:"optional,omitempty" json:"optional,omitempty"`
}

// Schema is the set of columns a pipeline stage reads.
type Schema []ColumnSpec

// Required lists the names of non-optional columns in order.
func (s Schema) Required() []string {
	var out []string
	for _, c := range s {
		if !c.Optional {
			out = append(out, c.Name)
		}
	}
	return out
}

// Check reports every required column absent from ds in one error.
func (s Schema) Check(ds *Dataset) error {
	return ds.Require(s.Required()...)
}

// Conform reports the first present value whose runtime kind differs from
// the kind its column declares. Columns absent from ds are skipped; Check
// reports those.
func (s Schema) Conform(ds *Dataset) error {
	for _, c := range s {
		want, ok := c.Kind.Runtime()
		if !ok || !ds.HasColumn(c.Name) {
			continue
		}
		vals, err := ds.Column(c.Name)
		if err != nil {
			return err
		}
		for i, v := range vals {
			if v != nil && KindOf(v) != want {
				return &NormalizeError{Dataset: ds.Name(), Column: c.Name, Row: i, Value: Format(v), Kind: string(c.Kind)}
			}
		}
	}
	return nil
}

// Req and Opt keep schema literals short.
func Req(name string, kind ColumnKind) ColumnSpec { return ColumnSpec{Name: name, Kind: kind} }

func Opt(name string, kind ColumnKind) ColumnSpec {
	return ColumnSpec{Name: name, Kind: kind, Optional: true}
}
