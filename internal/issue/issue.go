// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	SchemaArgumentMissingId Id = iota + 1
	SchemaLoadFailedId
	InvalidSchemaDocumentId
	EnvFileNotFoundId
	InvalidEnvFileId
	SchemaMismatchId
	ConfigLoadFailedId
	InvalidFlagValueId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the issue as terminal Markdown. An empty stylePath picks
// glamour's automatic style.
func (i *Issue) Render(stylePath string) (string, error) {
	var md strings.Builder
	md.WriteString(string(i.mdMsg))

	if links := append(i.DocLinks(), i.extLinks...); len(links) > 0 {
		md.WriteString("\n\n## See also\n")
		for _, link := range links {
			md.WriteString("- <" + string(link) + ">\n")
		}
	}

	if stylePath == "" {
		stylePath = "auto"
	}
	return render(md.String(), stylePath)
}

var (
	render = glamour.Render

	schemaArgumentMissingIssue = &Issue{
		id: SchemaArgumentMissingId,
		mdMsg: `
# No schema given!

envschema needs a JSON Schema to validate your env files against.

## Things you can try:
- Pass a local schema file or a URL:
~~~
$ envschema --schema ./env.schema.json
$ envschema -s https://example.com/env.schema.json --env .env.production
~~~

- Set it once in your config file:
~~~cue
schema: "./env.schema.json"
~~~

- Or through the environment:
~~~
$ ENVSCHEMA_SCHEMA=./env.schema.json envschema
~~~`,
	}

	schemaLoadFailedIssue = &Issue{
		id: SchemaLoadFailedId,
		mdMsg: `
# Could not load the schema!

The schema must be either a local file with a '.json' extension or an
http(s) URL that answers with a JSON document.

## Things you can try:
- Check the path is relative to the current directory, or use an absolute path
- Rename the file so it ends in '.json' (the check is case-sensitive)
- Open the URL in a browser; it must return a 2xx status
- Raise the request timeout if the server is slow:
~~~cue
http: timeout: "30s"
~~~`,
		extLinks: []HttpLink{"https://json-schema.org/learn/getting-started-step-by-step"},
	}

	invalidSchemaDocumentIssue = &Issue{
		id: InvalidSchemaDocumentId,
		mdMsg: `
# Not a valid JSON Schema!

The document was loaded but it is not a schema we can compile.

## Common causes:
- A keyword has the wrong type, e.g. ` + "`\"type\": 5`" + `
- The document uses keywords no draft defines (strict mode rejects them)
- A ` + "`$ref`" + ` points to something that cannot be loaded
- The URL returns some other JSON document, not a schema

## Things you can try:
- Validate the schema itself with your editor's JSON Schema support
- Pick the draft explicitly with ` + "`$schema`" + ` or ` + "`--draft`" + `
- Allow custom keywords:
~~~
$ envschema --strict=false -s schema.json
~~~`,
		docLinks: []HttpLink{"https://json-schema.org/specification"},
	}

	envFileNotFoundIssue = &Issue{
		id: EnvFileNotFoundId,
		mdMsg: `
# Env file not found!

With no ` + "`--env`" + ` flag, envschema looks for a file named ` + "`.env`" + ` in the
current directory. Relative paths are resolved against the current directory.

## Things you can try:
- Create a ` + "`.env`" + ` file, or
- Name the file explicitly:
~~~
$ envschema -s schema.json --env .env.local --env .env.production
~~~`,
	}

	invalidEnvFileIssue = &Issue{
		id: InvalidEnvFileId,
		mdMsg: `
# Env file could not be parsed!

Lines without ` + "`=`" + ` are ignored. A quoted value must be closed, and only a
` + "`# comment`" + ` may follow the closing quote.

## Supported syntax:
~~~
# comment
export PORT=8080
NAME="quoted\nvalue" # trailing comment
LITERAL='no $escapes here'
EMPTY=
~~~

Variables are never expanded.`,
	}

	schemaMismatchIssue = &Issue{
		id: SchemaMismatchId,
		mdMsg: `
# Env file does not conform to the schema!

Each bullet names a variable and the constraint it violates.

## Things you can try:
- Add the missing variables, or give them a ` + "`default`" + ` in the schema
- Numbers and booleans are read from strings: ` + "`PORT=8080`" + ` satisfies ` + "`\"type\": \"integer\"`" + `
- Use ` + "`--format json`" + ` to see the details of every error`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file is CUE and is checked against a schema before use.

## Things you can try:
- Show where envschema looks for it:
~~~
$ envschema config path
~~~

- Write a fresh default file:
~~~
$ envschema config init
~~~

- Unknown keys and wrong value types are rejected`,
	}

	invalidFlagValueIssue = &Issue{
		id: InvalidFlagValueId,
		mdMsg: `
# Invalid option value!

## Accepted values:
- ` + "`--format`" + `: text, json, yaml
- ` + "`--draft`" + `: draft4, draft6, draft7, draft2019-09, draft2020-12
- ` + "`--timeout`" + `: a Go duration such as 10s or 1m`,
	}

	issues = map[Id]*Issue{
		schemaArgumentMissingIssue.Id(): schemaArgumentMissingIssue,
		schemaLoadFailedIssue.Id():      schemaLoadFailedIssue,
		invalidSchemaDocumentIssue.Id(): invalidSchemaDocumentIssue,
		envFileNotFoundIssue.Id():       envFileNotFoundIssue,
		invalidEnvFileIssue.Id():        invalidEnvFileIssue,
		schemaMismatchIssue.Id():        schemaMismatchIssue,
		configLoadFailedIssue.Id():      configLoadFailedIssue,
		invalidFlagValueIssue.Id():      invalidFlagValueIssue,
	}
)

// Values returns every issue, ordered by ID.
func Values() []*Issue {
	ids := maps.Keys(issues)
	slices.Sort(ids)

	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
