// Package planner converts list requests into parameterized SQL statements.
// A request is composed as an immutable Fragment, narrowed by filter rules,
// ordered through a per-resource sort whitelist and finally bounded into a
// single-round-trip paginated query that carries its own total row count.
package planner
