// Package query compiles declarative filter, sort and pagination
// specifications into SQL for a registered entity type.
//
// A Query is an immutable builder: Select starts one for an entity type and
// each refinement returns a new Query. Field names and operators are checked
// against the entity type as they are applied, so specification errors
// surface before any statement reaches a store. Placeholders, value encoding
// and a few syntax differences are delegated to a Dialect supplied when the
// SQL is rendered.
package query
