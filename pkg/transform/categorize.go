package transform

import (
	"regexp"
	"strings"

	"github.com/cuemby/sundial/pkg/model"
)

// Category is a path from root to leaf, e.g. []string{"Work","Coding"}.
type Category = []string

// Rule matches an event by regex over one or more data values.
type Rule struct {
	SelectKeys []string
	IgnoreCase bool
	Regex      *regexp.Regexp
}

// NewRule compiles a Rule from its declarative fields. An empty regex never
// matches (mirrors the source's guard against an erroneously-matches-all
// empty pattern).
func NewRule(selectKeys []string, ignoreCase bool, regex string) (*Rule, error) {
	r := &Rule{SelectKeys: selectKeys, IgnoreCase: ignoreCase}
	if regex == "" {
		return r, nil
	}
	pattern := regex
	if ignoreCase {
		pattern = "(?i)" + pattern
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	r.Regex = compiled
	return r, nil
}

// Match reports whether e satisfies the rule: its regex searches any of the
// selected data values (all values, if no keys were selected).
func (r *Rule) Match(e *model.Event) bool {
	if r.Regex == nil {
		return false
	}
	values := r.selectedValues(e)
	for _, v := range values {
		s, ok := v.(string)
		if ok && r.Regex.MatchString(s) {
			return true
		}
	}
	return false
}

func (r *Rule) selectedValues(e *model.Event) []any {
	if len(r.SelectKeys) == 0 {
		values := make([]any, 0, len(e.Data))
		for _, v := range e.Data {
			values = append(values, v)
		}
		return values
	}
	values := make([]any, 0, len(r.SelectKeys))
	for _, k := range r.SelectKeys {
		values = append(values, e.Data[k])
	}
	return values
}

// CategoryClass pairs a category path with the rule that assigns it.
type CategoryClass struct {
	Category Category
	Rule     *Rule
}

// TagClass pairs a tag name with the rule that assigns it.
type TagClass struct {
	Tag  string
	Rule *Rule
}

// Categorize annotates each event's data["$category"] with the deepest
// matching category path, defaulting to ["Uncategorized"].
func Categorize(events []*model.Event, classes []CategoryClass) []*model.Event {
	out := make([]*model.Event, len(events))
	for i, e := range events {
		c := e.Clone()
		var matched []Category
		for _, cls := range classes {
			if cls.Rule.Match(e) {
				matched = append(matched, cls.Category)
			}
		}
		c.Data["$category"] = pickCategory(matched)
		out[i] = c
	}
	return out
}

// Tag annotates each event's data["$tags"] with every matching tag name.
func Tag(events []*model.Event, classes []TagClass) []*model.Event {
	out := make([]*model.Event, len(events))
	for i, e := range events {
		c := e.Clone()
		var tags []string
		for _, cls := range classes {
			if cls.Rule.Match(e) {
				tags = append(tags, cls.Tag)
			}
		}
		if tags == nil {
			tags = []string{}
		}
		c.Data["$tags"] = tags
		out[i] = c
	}
	return out
}

func pickCategory(categories []Category) Category {
	acc := Category{"Uncategorized"}
	for _, c := range categories {
		acc = pickDeepestCategory(acc, c)
	}
	return acc
}

// pickDeepestCategory biases against acc, since it may be the
// "Uncategorized" default: the longer path wins on a tie.
func pickDeepestCategory(acc, candidate Category) Category {
	if len(candidate) >= len(acc) {
		return candidate
	}
	return acc
}

// CategoryPathString joins a category path for display, matching the
// dashboard's "Work > Coding" style.
func CategoryPathString(c Category) string {
	return strings.Join(c, " > ")
}
