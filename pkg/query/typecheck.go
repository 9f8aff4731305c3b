package query

import (
	"fmt"

	"github.com/cuemby/sundial/pkg/model"
	"github.com/cuemby/sundial/pkg/sderr"
)

// ArgType names the shape an argument position accepts, mirroring the
// source's q2_typecheck decorator (which checked list/str/int/float
// annotations before invocation).
type ArgType int

const (
	TypeEvents ArgType = iota // []*model.Event
	TypeString
	TypeStringList
	TypeInt
	TypeFloat
	TypeAny // classes, rule dicts: validated by the function itself
)

func (t ArgType) String() string {
	switch t {
	case TypeEvents:
		return "events"
	case TypeString:
		return "string"
	case TypeStringList:
		return "string list"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	default:
		return "any"
	}
}

// typecheck verifies args against spec position by position, returning
// sderr.ErrQueryTypeMismatch (via sderr.NewTypeMismatch) on the first
// mismatch. A missing argument is also a mismatch, not a panic.
func typecheck(spec []ArgType, args []any) error {
	if len(args) != len(spec) {
		return fmt.Errorf("query: expected %d argument(s), got %d: %w", len(spec), len(args), sderr.ErrQueryTypeMismatch)
	}
	for i, want := range spec {
		if want == TypeAny {
			continue
		}
		if !argMatches(want, args[i]) {
			return sderr.NewTypeMismatch(fmt.Sprintf("arg%d", i), want.String(), fmt.Sprintf("%T", args[i]))
		}
	}
	return nil
}

func argMatches(want ArgType, v any) bool {
	switch want {
	case TypeEvents:
		_, ok := v.([]*model.Event)
		return ok
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeStringList:
		_, ok := v.([]string)
		return ok
	case TypeInt:
		_, ok := v.(int)
		return ok
	case TypeFloat:
		switch v.(type) {
		case float64, float32, int:
			return true
		default:
			return false
		}
	default:
		return true
	}
}

// asEvents/asString/etc. extract an already-typechecked argument, panicking
// only on a programmer error (a funcDef whose argSpec disagrees with its
// call body), never on caller input — typecheck has already rejected that.
func asEvents(v any) []*model.Event { return v.([]*model.Event) }
func asString(v any) string         { return v.(string) }
func asStringList(v any) []string   { return v.([]string) }
func asInt(v any) int               { return v.(int) }

// typeErr builds a type-mismatch error for a TypeAny argument whose concrete
// shape a function validates itself (categorize/tag's classes list).
func typeErr(param, expected string, got any) error {
	return sderr.NewTypeMismatch(param, expected, fmt.Sprintf("%T", got))
}
