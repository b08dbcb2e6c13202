// Package types defines the plain data that crosses the crudkit boundary:
// serialized records, filter and sort specifications, pagination, backend
// configuration, and the standard errors callers test with errors.Is.
//
// Nothing in this package depends on a store. The engine, the query compiler
// and the HTTP and CLI surfaces all speak in these types.
package types
