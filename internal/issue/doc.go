// SPDX-License-Identifier: MPL-2.0

// Package issue holds the catalog of user-facing problems the CLI knows how
// to explain, rendered from Markdown, and ActionableError, an error carrying
// the operation that failed plus hints for fixing it.
package issue
