package segment

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hearthside/mailroom/internal/domain"
)

// fieldKind describes the native shape of a condition field.
type fieldKind int

const (
	kindString fieldKind = iota
	kindNumber
	kindList
	// kindElapsedDays is derived from a nullable timestamp. A missing
	// timestamp means "infinitely long ago": greater_than matches any
	// threshold, every other operator fails, and no number is computed.
	kindElapsedDays
)

// fieldValue is a condition field resolved against one subscriber at a
// point in time.
type fieldValue struct {
	kind        fieldKind
	str         string
	num         float64
	list        []string
	missingTime bool
}

// fieldSpec pairs a field with its typed extractor. Modeling the field set
// as a closed table means unsupported fields are rejected when rules are
// saved instead of being discovered via string matching at evaluation time.
type fieldSpec struct {
	kind    fieldKind
	resolve func(domain.Subscriber, time.Time) fieldValue
}

func stringField(get func(domain.Subscriber) string) fieldSpec {
	return fieldSpec{kind: kindString, resolve: func(s domain.Subscriber, _ time.Time) fieldValue {
		return fieldValue{kind: kindString, str: get(s)}
	}}
}

func numberField(get func(domain.Subscriber) float64) fieldSpec {
	return fieldSpec{kind: kindNumber, resolve: func(s domain.Subscriber, _ time.Time) fieldValue {
		return fieldValue{kind: kindNumber, num: get(s)}
	}}
}

func listField(get func(domain.Subscriber) []string) fieldSpec {
	return fieldSpec{kind: kindList, resolve: func(s domain.Subscriber, _ time.Time) fieldValue {
		return fieldValue{kind: kindList, list: get(s)}
	}}
}

func elapsedDaysField(get func(domain.Subscriber) *time.Time) fieldSpec {
	return fieldSpec{kind: kindElapsedDays, resolve: func(s domain.Subscriber, now time.Time) fieldValue {
		t := get(s)
		if t == nil {
			return fieldValue{kind: kindElapsedDays, missingTime: true}
		}
		return fieldValue{kind: kindElapsedDays, num: daysBetween(*t, now)}
	}}
}

func daysBetween(then, now time.Time) float64 {
	return math.Floor(now.Sub(then).Hours() / 24)
}

var fieldSpecs = map[domain.Field]fieldSpec{
	domain.FieldSource:          stringField(func(s domain.Subscriber) string { return s.Source }),
	domain.FieldTags:            listField(func(s domain.Subscriber) []string { return s.Tags }),
	domain.FieldEngagementScore: numberField(func(s domain.Subscriber) float64 { return s.EngagementScore }),
	domain.FieldEngagementLevel: stringField(func(s domain.Subscriber) string { return string(s.EngagementLevel) }),
	domain.FieldEmailsReceived:  numberField(func(s domain.Subscriber) float64 { return float64(s.EmailsReceived) }),
	domain.FieldSubscribedDaysAgo: {kind: kindNumber, resolve: func(s domain.Subscriber, now time.Time) fieldValue {
		return fieldValue{kind: kindNumber, num: daysBetween(s.SubscribedAt, now)}
	}},
	domain.FieldLastEmailedDaysAgo: elapsedDaysField(func(s domain.Subscriber) *time.Time { return s.LastEmailedAt }),
	domain.FieldLastOpenedDaysAgo:  elapsedDaysField(func(s domain.Subscriber) *time.Time { return s.LastOpenedAt }),
}

// Evaluate runs a single condition against a subscriber snapshot at the
// given evaluation time. Unknown fields and operators evaluate false; this
// function never returns an error by design.
func Evaluate(sub domain.Subscriber, cond domain.Condition, now time.Time) bool {
	spec, ok := fieldSpecs[cond.Field]
	if !ok {
		return false
	}

	fv := spec.resolve(sub, now)

	// Null-timestamp policy: "infinitely long ago".
	if fv.missingTime {
		return cond.Operator == domain.OpGreaterThan
	}

	switch cond.Operator {
	case domain.OpEquals:
		return fv.stringify() == stringify(cond.Value)
	case domain.OpNotEquals:
		return fv.stringify() != stringify(cond.Value)
	case domain.OpContains:
		return fv.contains(stringify(cond.Value))
	case domain.OpNotContains:
		return !fv.contains(stringify(cond.Value))
	case domain.OpGreaterThan:
		n, ok := fv.number()
		want, ok2 := toNumber(cond.Value)
		return ok && ok2 && n > want
	case domain.OpLessThan:
		n, ok := fv.number()
		want, ok2 := toNumber(cond.Value)
		return ok && ok2 && n < want
	case domain.OpIn:
		return fv.in(toList(cond.Value))
	case domain.OpNotIn:
		return !fv.in(toList(cond.Value))
	default:
		return false
	}
}

// MatchesRules applies a full rule set to one subscriber. An empty condition
// list matches every subscriber regardless of match type.
func MatchesRules(sub domain.Subscriber, rules domain.SegmentRules, now time.Time) bool {
	if len(rules.Conditions) == 0 {
		return true
	}
	if rules.Match == domain.MatchAny {
		for _, c := range rules.Conditions {
			if Evaluate(sub, c, now) {
				return true
			}
		}
		return false
	}
	// ALL is the default for any other match value.
	for _, c := range rules.Conditions {
		if !Evaluate(sub, c, now) {
			return false
		}
	}
	return true
}

func (v fieldValue) stringify() string {
	switch v.kind {
	case kindList:
		return strings.Join(v.list, ",")
	case kindNumber, kindElapsedDays:
		return formatNumber(v.num)
	default:
		return v.str
	}
}

func (v fieldValue) number() (float64, bool) {
	switch v.kind {
	case kindNumber, kindElapsedDays:
		return v.num, true
	case kindString:
		n, err := strconv.ParseFloat(v.str, 64)
		return n, err == nil
	}
	return 0, false
}

// contains is list membership for list-valued fields, substring otherwise.
func (v fieldValue) contains(want string) bool {
	if v.kind == kindList {
		for _, item := range v.list {
			if item == want {
				return true
			}
		}
		return false
	}
	return strings.Contains(v.stringify(), want)
}

// in is an overlap test for list-valued fields, membership otherwise.
func (v fieldValue) in(values []string) bool {
	if v.kind == kindList {
		for _, item := range v.list {
			for _, want := range values {
				if item == want {
					return true
				}
			}
		}
		return false
	}
	have := v.stringify()
	for _, want := range values {
		if have == want {
			return true
		}
	}
	return false
}

// stringify converts an untyped condition value (string, number, bool, or
// list from JSON) into its canonical string form.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return formatNumber(x)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case []string:
		return strings.Join(x, ",")
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = stringify(e)
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", x)
	}
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toNumber(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// toList coerces a condition value into a string list. Scalar values become
// single-element lists so `in` stays usable with a lone string.
func toList(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			out[i] = stringify(e)
		}
		return out
	case nil:
		return nil
	default:
		return []string{stringify(v)}
	}
}
