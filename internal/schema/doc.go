// Package schema is the entity registry: it holds the registered entity
// types, their fields, and the per-type setter tables used to build and
// serialize instances without reflection.
package schema
