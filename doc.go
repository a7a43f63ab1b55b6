// Package catmig defines the core types, interfaces, and helpers used across the
// catalog migration engine. It provides the source and target record shapes, the
// chunk scheduling state model, shared error codes, retry helpers, and the
// coordination-service contract. Concrete backends live in subpackages: redis
// (coordination), legacy (source reader), target (destination repositories),
// scheduler (chunk leasing), and migration (the per-record pipeline and driver).
// It is a foundational package that other components build upon.
package catmig
