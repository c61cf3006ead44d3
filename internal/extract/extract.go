// Package extract evaluates ordered extraction rules against a rendered page.
package extract

import (
	"fmt"
	"strings"
)

type Field string

const (
	FieldName  Field = "name"
	FieldPrice Field = "price"
	FieldImage Field = "image"
)

type Mode string

const (
	ModeText      Mode = "text"
	ModeAttribute Mode = "attribute"
	ModeScript    Mode = "script"
)

// Rule describes one way of reading a field from a page.
type Rule struct {
	Selector       string   `yaml:"selector"`
	Mode           Mode     `yaml:"mode"`
	Attribute      string   `yaml:"attribute"`
	Script         string   `yaml:"script"`
	RejectPrefixes []string `yaml:"reject_prefixes"`
}

func (r Rule) mode() Mode {
	if r.Mode == "" {
		return ModeText
	}
	return r.Mode
}

// Validate reports rules that can never produce a value.
func (r Rule) Validate() error {
	switch r.mode() {
	case ModeText:
		if r.Selector == "" {
			return fmt.Errorf("text rule needs a selector")
		}
	case ModeAttribute:
		if r.Selector == "" || r.Attribute == "" {
			return fmt.Errorf("attribute rule needs a selector and an attribute")
		}
	case ModeScript:
		if strings.TrimSpace(r.Script) == "" {
			return fmt.Errorf("script rule needs a script")
		}
	default:
		return fmt.Errorf("unknown rule mode %q", r.Mode)
	}
	return nil
}

func (r Rule) String() string {
	switch r.mode() {
	case ModeAttribute:
		return fmt.Sprintf("%s@%s", r.Selector, r.Attribute)
	case ModeScript:
		return "script"
	default:
		return r.Selector
	}
}

// Page is the read-only view of a loaded product page the rules run against.
type Page interface {
	// Text returns the rendered text of the first element matching selector.
	Text(selector string) (string, error)
	// Attribute returns an attribute of the first element matching selector.
	Attribute(selector, name string) (string, error)
	// Evaluate runs a script in the page and returns its string result.
	Evaluate(script string) (string, error)
	// URL is the final page URL after redirects.
	URL() string
}

// FieldNotFoundError means every rule for a field was tried without a
// non-empty result.
type FieldNotFoundError struct {
	Field Field
	Tried int
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("%s not found after %d rules", e.Field, e.Tried)
}

// Apply evaluates a single rule and returns its trimmed result. An empty
// string means the rule did not match.
func Apply(page Page, rule Rule) (string, error) {
	var (
		value string
		err   error
	)

	switch rule.mode() {
	case ModeAttribute:
		value, err = page.Attribute(rule.Selector, rule.Attribute)
	case ModeScript:
		value, err = page.Evaluate(rule.Script)
	default:
		value, err = page.Text(rule.Selector)
	}
	if err != nil {
		return "", err
	}

	value = strings.TrimSpace(value)
	for _, prefix := range rule.RejectPrefixes {
		if strings.HasPrefix(value, prefix) {
			return "", nil
		}
	}
	return value, nil
}

// FieldValue tries rules in order and returns the first non-empty value. Rule
// errors count as non-matches.
func FieldValue(page Page, field Field, rules []Rule) (string, error) {
	for _, rule := range rules {
		value, err := Apply(page, rule)
		if err != nil || value == "" {
			continue
		}
		return value, nil
	}
	return "", &FieldNotFoundError{Field: field, Tried: len(rules)}
}
