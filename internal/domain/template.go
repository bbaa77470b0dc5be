package domain

import (
	"slices"

	"github.com/goccy/go-json"
)

type TemplateID string

type ScaleKind string

const (
	ScaleNumeric     ScaleKind = "numeric"
	ScaleCategorical ScaleKind = "categorical"
)

// Option is a categorical choice. Label is what the UI shows, Value is
// what gets voted and aggregated.
type Option struct {
	Value string `json:"value" yaml:"value"`
	Label string `json:"label" yaml:"label"`
}

// Scale is the set of legal votes of a template. The variants are closed:
// NumericScale and CategoricalScale.
type Scale interface {
	Kind() ScaleKind
	// Values returns the legal vote values in display order.
	Values() []string
	Validate(value string) bool
	isScale()
}

type NumericScale struct {
	Options []string
}

func (NumericScale) Kind() ScaleKind { return ScaleNumeric }

func (s NumericScale) Values() []string { return slices.Clone(s.Options) }

func (s NumericScale) Validate(value string) bool {
	return slices.Contains(s.Options, value)
}

func (NumericScale) isScale() {}

type CategoricalScale struct {
	Options []Option
	// Bare options have no labels of their own and encode as plain strings.
	Bare    bool
}

func (CategoricalScale) Kind() ScaleKind { return ScaleCategorical }

func (s CategoricalScale) Values() []string {
	out := make([]string, 0, len(s.Options))
	for _, o := range s.Options {
		out = append(out, o.Value)
	}
	return out
}

func (s CategoricalScale) Validate(value string) bool {
	return slices.ContainsFunc(s.Options, func(o Option) bool { return o.Value == value })
}

func (CategoricalScale) isScale() {}

// Template is an estimation scale definition. Templates are shared
// read-only between rooms.
type Template struct {
	ID          TemplateID
	Name        string
	Description string
	Scale       Scale
}

func (t Template) Validate(value string) bool {
	return t.Scale != nil && t.Scale.Validate(value)
}

type templateJSON struct {
	ID          TemplateID `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Type        ScaleKind  `json:"type"`
	Options     any        `json:"options"`
}

// MarshalJSON emits numeric and bare categorical options as plain
// strings, other categorical options as value/label pairs.
func (t Template) MarshalJSON() ([]byte, error) {
	out := templateJSON{ID: t.ID, Name: t.Name, Description: t.Description}
	switch s := t.Scale.(type) {
	case NumericScale:
		out.Type = ScaleNumeric
		out.Options = s.Options
	case CategoricalScale:
		out.Type = ScaleCategorical
		if s.Bare {
			out.Options = s.Values()
		} else {
			out.Options = s.Options
		}
	}
	return json.Marshal(out)
}
