// Package segment implements the audience-segmentation rule engine: a
// condition evaluator over subscriber snapshots, an ALL/ANY matcher, and the
// segment CRUD/preview service.
//
// The evaluator is deliberately fail-closed: an unknown field or operator
// never raises, it resolves to "condition unmet" so malformed rules
// under-match rather than crash. Segment writes reject unsupported
// fields/operators up front via ValidateRules, so the fail-closed path only
// covers rules that predate a field being removed.
//
// The service layer contains pure business logic and depends on the
// Repository interfaces defined in repository.go. It never imports net/http
// or database/sql directly.
package segment
