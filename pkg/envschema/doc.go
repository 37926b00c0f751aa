// SPDX-License-Identifier: MPL-2.0

// Package envschema validates dotenv files against a JSON Schema.
//
// A Service is built from a SchemaSource, either a reference (local ".json"
// file or http(s) URL) or an inline document. The referenced schema is
// loaded lazily on the first Run and memoized for the life of the Service.
// Env files are parsed into isolated maps; the process environment is never
// read or written.
//
// Every failure that leaves the package is an *Error with an explicit Kind.
package envschema
