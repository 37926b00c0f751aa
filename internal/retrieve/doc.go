// SPDX-License-Identifier: MPL-2.0

// Package retrieve fetches JSON documents from local files or HTTP(S) URLs.
//
// A source string is classified as a URL when it carries an http, https or
// file scheme; anything else is treated as a file path that must end in
// ".json". Retrieved text is parsed as JSON with numbers kept as json.Number.
// Structural validity of the document (JSON Schema, OpenAPI) is not checked.
package retrieve
