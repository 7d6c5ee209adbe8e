package domain

import "time"

// Field enumerates the subscriber attributes a condition may test.
// The *_days_ago fields are derived at evaluation time; they are not stored
// on the subscriber row.
type Field string

const (
	FieldSource             Field = "source"
	FieldTags               Field = "tags"
	FieldSubscribedDaysAgo  Field = "subscribed_days_ago"
	FieldEngagementScore    Field = "engagement_score"
	FieldEngagementLevel    Field = "engagement_level"
	FieldEmailsReceived     Field = "emails_received"
	FieldLastEmailedDaysAgo Field = "last_emailed_days_ago"
	FieldLastOpenedDaysAgo  Field = "last_opened_days_ago"
)

// Fields lists every supported condition field, in display order.
func Fields() []Field {
	return []Field{
		FieldSource, FieldTags, FieldSubscribedDaysAgo, FieldEngagementScore,
		FieldEngagementLevel, FieldEmailsReceived, FieldLastEmailedDaysAgo,
		FieldLastOpenedDaysAgo,
	}
}

// Operator enumerates the comparison operators of the rule language.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpContains    Operator = "contains"
	OpNotContains Operator = "not_contains"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpIn          Operator = "in"
	OpNotIn       Operator = "not_in"
)

// Operators lists every supported operator.
func Operators() []Operator {
	return []Operator{
		OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpGreaterThan, OpLessThan, OpIn, OpNotIn,
	}
}

// MatchType selects how a rule set combines its conditions.
type MatchType string

const (
	MatchAll MatchType = "ALL" // conjunction
	MatchAny MatchType = "ANY" // disjunction
)

// Condition is a single field/operator/value test. Value is a string, a
// number, or a list depending on the operator; it round-trips through JSON
// untyped and the evaluator coerces it.
type Condition struct {
	Field    Field    `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

// SegmentRules combines conditions under ALL or ANY semantics. An empty
// condition list matches every subscriber.
type SegmentRules struct {
	Match      MatchType   `json:"match"`
	Conditions []Condition `json:"conditions"`
}

// Segment is a named, reusable filter over the subscriber population.
// CachedCount is recomputed synchronously on write and on single-item read;
// list reads serve it stale.
type Segment struct {
	ID               string       `json:"id" db:"id"`
	Name             string       `json:"name" db:"name"`
	Description      string       `json:"description,omitempty" db:"description"`
	Rules            SegmentRules `json:"rules" db:"rules"`
	CachedCount      int          `json:"cached_count" db:"cached_count"`
	LastCalculatedAt *time.Time   `json:"last_calculated_at,omitempty" db:"last_calculated_at"`
	CreatedAt        time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" db:"updated_at"`
}
