// SPDX-License-Identifier: MPL-2.0

// Package dotenv reads dotenv files into isolated key/value mappings.
//
// Nothing in this package reads from or writes to the process environment:
// every parse produces a fresh map owned by the caller.
package dotenv
