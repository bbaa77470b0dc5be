// Package catalog holds the estimation templates rooms can vote with.
// A Catalog is immutable once built and safe for concurrent use.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/dkeye/Estimate/internal/domain"
)

//go:embed templates.yaml
var defaultTemplates []byte

type Catalog struct {
	order []domain.TemplateID
	byID  map[domain.TemplateID]domain.Template
}

// Default returns the built-in catalog. The embedded document is part of
// the binary, so a parse failure is a build defect.
func Default() *Catalog {
	c, err := Parse(defaultTemplates)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded templates: %v", err))
	}
	return c
}

// Load reads a catalog from a YAML file. An empty path yields Default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates file: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse templates file %s: %w", path, err)
	}
	log.Info().Str("module", "catalog").Str("path", path).Int("templates", len(c.order)).Msg("loaded templates")
	return c, nil
}

type document struct {
	Templates []templateDoc `yaml:"templates"`
}

type templateDoc struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Type        string      `yaml:"type"`
	Options     []optionDoc `yaml:"options"`
}

// optionDoc accepts either a bare scalar or a value/label mapping.
type optionDoc struct {
	Value string
	Label string
	bare  bool
}

func (o *optionDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		o.Value = node.Value
		o.Label = node.Value
		o.bare = true
		return nil
	}
	var raw struct {
		Value string `yaml:"value"`
		Label string `yaml:"label"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	o.Value = raw.Value
	o.Label = raw.Label
	if o.Label == "" {
		o.Label = o.Value
	}
	return nil
}

// Parse builds a catalog from a YAML document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Templates) == 0 {
		return nil, fmt.Errorf("no templates defined")
	}

	c := &Catalog{byID: make(map[domain.TemplateID]domain.Template, len(doc.Templates))}
	for i, td := range doc.Templates {
		if td.ID == "" {
			return nil, fmt.Errorf("template #%d: missing id", i)
		}
		id := domain.TemplateID(td.ID)
		if _, dup := c.byID[id]; dup {
			return nil, fmt.Errorf("template %q: duplicate id", td.ID)
		}
		if len(td.Options) == 0 {
			return nil, fmt.Errorf("template %q: no options", td.ID)
		}
		scale, err := buildScale(td)
		if err != nil {
			return nil, fmt.Errorf("template %q: %w", td.ID, err)
		}
		c.byID[id] = domain.Template{
			ID:          id,
			Name:        td.Name,
			Description: td.Description,
			Scale:       scale,
		}
		c.order = append(c.order, id)
	}
	return c, nil
}

func buildScale(td templateDoc) (domain.Scale, error) {
	seen := make(map[string]struct{}, len(td.Options))
	for _, o := range td.Options {
		if o.Value == "" {
			return nil, fmt.Errorf("empty option value")
		}
		if _, dup := seen[o.Value]; dup {
			return nil, fmt.Errorf("duplicate option %q", o.Value)
		}
		seen[o.Value] = struct{}{}
	}

	switch domain.ScaleKind(td.Type) {
	case domain.ScaleNumeric:
		opts := make([]string, 0, len(td.Options))
		for _, o := range td.Options {
			opts = append(opts, o.Value)
		}
		return domain.NumericScale{Options: opts}, nil
	case domain.ScaleCategorical:
		opts := make([]domain.Option, 0, len(td.Options))
		bare := true
		for _, o := range td.Options {
			opts = append(opts, domain.Option{Value: o.Value, Label: o.Label})
			bare = bare && o.bare
		}
		return domain.CategoricalScale{Options: opts, Bare: bare}, nil
	default:
		return nil, fmt.Errorf("unknown type %q", td.Type)
	}
}

func (c *Catalog) Get(id domain.TemplateID) (domain.Template, bool) {
	t, ok := c.byID[id]
	return t, ok
}

// All returns every template in catalog order.
func (c *Catalog) All() []domain.Template {
	out := make([]domain.Template, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// ValidateVote reports whether value is a legal vote for template id.
// Unknown templates accept nothing.
func (c *Catalog) ValidateVote(id domain.TemplateID, value string) bool {
	t, ok := c.byID[id]
	return ok && t.Validate(value)
}
