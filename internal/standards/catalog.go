package standards

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tga-backend/internal/project"
	"tga-backend/internal/standards/condition"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// ErrInvalidCatalog is returned when catalog data cannot be loaded completely.
var ErrInvalidCatalog = errors.New("invalid standards catalog")

// Type is the issuing body of a standard.
type Type string

const (
	TypeDIN Type = "DIN"
	TypeVDI Type = "VDI"
	TypeVOB Type = "VOB"
	TypeEN  Type = "EN"
	TypeISO Type = "ISO"
)

func parseType(raw string) (Type, bool) {
	switch t := Type(strings.ToUpper(strings.TrimSpace(raw))); t {
	case TypeDIN, TypeVDI, TypeVOB, TypeEN, TypeISO:
		return t, true
	default:
		return "", false
	}
}

// Rule is one checkable requirement of a standard.
type Rule struct {
	ID             string
	Description    string
	Recommendation string
	Condition      *condition.Condition
}

// Standard is a technical standard and its rules in catalog order.
type Standard struct {
	ID       string
	Title    string
	Type     Type
	Category string
	Rules    []Rule
}

// Category is a discipline category used for classification.
type Category struct {
	Name     string
	Keywords []string
}

// Catalog is a read-only registry of standards. It is safe for concurrent use
// because nothing mutates it after Load returns.
type Catalog struct {
	order      []string
	byID       map[string]*Standard
	categories []Category
}

type catalogFile struct {
	Version    int            `yaml:"version"`
	Categories []categoryFile `yaml:"categories"`
	Standards  []standardFile `yaml:"standards"`
}

type categoryFile struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

type standardFile struct {
	ID       string     `yaml:"id"`
	Title    string     `yaml:"title"`
	Type     string     `yaml:"type"`
	Category string     `yaml:"category"`
	Rules    []ruleFile `yaml:"rules"`
}

type ruleFile struct {
	ID             string `yaml:"id"`
	Description    string `yaml:"description"`
	Condition      string `yaml:"condition"`
	Recommendation string `yaml:"recommendation"`
}

// Load builds the catalog from the embedded data set.
func Load() (*Catalog, error) {
	return Parse(embeddedCatalog)
}

// MustLoad is Load for process start-up and tests.
func MustLoad() *Catalog {
	c, err := Load()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile builds the catalog from a YAML file on disk.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read standards file: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML. Either every standard and rule is
// loaded or an error is returned; there is no partial catalog.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{byID: make(map[string]*Standard, len(file.Standards))}

	seenCategory := map[string]bool{}
	for i, cf := range file.Categories {
		name := strings.TrimSpace(cf.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: categories[%d]: name is required", ErrInvalidCatalog, i)
		}
		if seenCategory[name] {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidCatalog, name)
		}
		seenCategory[name] = true
		keywords := make([]string, 0, len(cf.Keywords))
		for _, kw := range cf.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		c.categories = append(c.categories, Category{Name: name, Keywords: keywords})
	}

	for i, sf := range file.Standards {
		std, err := buildStandard(sf)
		if err != nil {
			return nil, fmt.Errorf("%w: standards[%d]: %v", ErrInvalidCatalog, i, err)
		}
		if _, dup := c.byID[std.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate standard %q", ErrInvalidCatalog, std.ID)
		}
		c.byID[std.ID] = std
		c.order = append(c.order, std.ID)
	}
	return c, nil
}

func buildStandard(sf standardFile) (*Standard, error) {
	id := strings.TrimSpace(sf.ID)
	if id == "" {
		return nil, errors.New("id is required")
	}
	typ, ok := parseType(sf.Type)
	if !ok {
		return nil, fmt.Errorf("%s: unknown type %q", id, sf.Type)
	}
	std := &Standard{
		ID:       id,
		Title:    strings.TrimSpace(sf.Title),
		Type:     typ,
		Category: strings.TrimSpace(sf.Category),
		Rules:    make([]Rule, 0, len(sf.Rules)),
	}
	seenRule := map[string]bool{}
	for _, rf := range sf.Rules {
		ruleID := strings.TrimSpace(rf.ID)
		if ruleID == "" {
			return nil, fmt.Errorf("%s: rule id is required", id)
		}
		if seenRule[ruleID] {
			return nil, fmt.Errorf("%s: duplicate rule %q", id, ruleID)
		}
		seenRule[ruleID] = true
		cond, err := condition.Parse(rf.Condition)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", id, ruleID, err)
		}
		std.Rules = append(std.Rules, Rule{
			ID:             ruleID,
			Description:    strings.TrimSpace(rf.Description),
			Recommendation: strings.TrimSpace(rf.Recommendation),
			Condition:      cond,
		})
	}
	return std, nil
}

// Get returns the standard with the given id, or nil if absent.
func (c *Catalog) Get(id string) *Standard {
	if c == nil {
		return nil
	}
	return c.byID[strings.TrimSpace(id)]
}

// Standards returns every standard in catalog order.
func (c *Catalog) Standards() []*Standard {
	out := make([]*Standard, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Categories returns the classification categories in their fixed order.
func (c *Catalog) Categories() []Category {
	return append([]Category(nil), c.categories...)
}

// Classify returns the discipline categories of a project. Explicit
// disciplines win and keep their supplied order; otherwise the description
// is matched against each category's keywords in catalog order. Each
// category appears at most once.
func (c *Catalog) Classify(p project.Config) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(name string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		out = append(out, name)
	}

	if len(p.Disciplines) > 0 {
		for _, d := range p.Disciplines {
			add(strings.TrimSpace(d.Name))
		}
		return out
	}

	desc := strings.ToLower(p.Description)
	if strings.TrimSpace(desc) == "" {
		return out
	}
	for _, cat := range c.categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(desc, kw) {
				add(cat.Name)
				break
			}
		}
	}
	return out
}

// StandardsFor returns the ids of standards whose category is in categories,
// in catalog order.
func (c *Catalog) StandardsFor(categories []string) []string {
	want := make(map[string]bool, len(categories))
	for _, name := range categories {
		want[name] = true
	}
	var ids []string
	for _, id := range c.order {
		if want[c.byID[id].Category] {
			ids = append(ids, id)
		}
	}
	return ids
}
