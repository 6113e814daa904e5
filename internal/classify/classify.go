// Package classify maps free-text research topics to query categories.
// Categories drive which reliability slice is consulted and whether a
// fixed priority-domain pass runs before open search.
package classify

import (
	_ "embed"
	"regexp"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Category is a closed query classification.
type Category string

// Known categories. The set is closed: every topic maps to exactly one,
// with CategoryGeneral as the guaranteed fallback.
const (
	CategoryPrice       Category = "price"
	CategoryFinancial   Category = "financial"
	CategoryCompanyInfo Category = "company_info"
	CategoryNews        Category = "news"
	CategoryTechnical   Category = "technical"
	CategoryGeneral     Category = "general"
)

//go:embed rules.yaml
var rulesYAML []byte

type ruleSpec struct {
	Category        string   `yaml:"category"`
	Pattern         string   `yaml:"pattern"`
	PriorityDomains []string `yaml:"priority_domains"`
}

type ruleSet struct {
	Rules    []ruleSpec `yaml:"rules"`
	Fallback string     `yaml:"fallback"`
}

type rule struct {
	category        Category
	pattern         *regexp.Regexp
	priorityDomains []string
}

// Classifier evaluates categorization rules in priority order.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	rules    []rule
	fallback Category
}

// New compiles the embedded ruleset into a Classifier.
func New() (*Classifier, error) {
	return parse(rulesYAML)
}

func parse(raw []byte) (*Classifier, error) {
	var spec ruleSet
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return nil, eris.Wrap(err, "classify: unmarshal ruleset")
	}
	if spec.Fallback == "" {
		return nil, eris.New("classify: ruleset has no fallback category")
	}

	c := &Classifier{fallback: Category(spec.Fallback)}
	for _, rs := range spec.Rules {
		re, err := regexp.Compile(rs.Pattern)
		if err != nil {
			return nil, eris.Wrapf(err, "classify: compile pattern for %q", rs.Category)
		}
		c.rules = append(c.rules, rule{
			category:        Category(rs.Category),
			pattern:         re,
			priorityDomains: rs.PriorityDomains,
		})
	}
	return c, nil
}

// Classify returns the first category whose pattern matches the topic.
// Total: topics matching nothing get the fallback category.
func (c *Classifier) Classify(topic string) Category {
	for _, r := range c.rules {
		if r.pattern.MatchString(topic) {
			return r.category
		}
	}
	return c.fallback
}

// PriorityDomains returns the fixed authoritative-domain list for a
// category, or nil when the category has no priority pass.
func (c *Classifier) PriorityDomains(cat Category) []string {
	for _, r := range c.rules {
		if r.category == cat {
			return r.priorityDomains
		}
	}
	return nil
}
