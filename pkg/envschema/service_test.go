// SPDX-License-Identifier: MPL-2.0

package envschema

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/spf13/afero"

	"github.com/dcoupld/envschema/internal/retrieve"
	"github.com/dcoupld/envschema/internal/testutil"
)

const workDir = "/work"

type countingRetriever struct {
	calls atomic.Int32
	doc   any
	err   error
}

func (c *countingRetriever) Retrieve(context.Context, string) (any, error) {
	c.calls.Add(1)
	return c.doc, c.err
}

func dummySchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"DUMMY"},
		"properties": map[string]any{
			"DUMMY": map[string]any{"type": "string"},
		},
	}
}

// newTestService builds a Service over an in-memory file system rooted at workDir.
func newTestService(t *testing.T, src SchemaSource, files map[string]string, opts ...Option) *Service {
	t.Helper()

	fs := afero.NewMemMapFs()
	testutil.WriteFiles(t, fs, workDir, files)

	opts = append([]Option{WithFs(fs), WithWorkingDir(workDir)}, opts...)
	svc, err := New(src, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return svc
}

func requireErrKind(t *testing.T, err error, want Kind) *Error {
	t.Helper()

	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("error = %v (%T), want *Error", err, err)
	}
	if e.Kind != want {
		t.Fatalf("Kind = %s, want %s (message: %s)", e.Kind, want, e.Error())
	}
	return e
}

func TestRun_InlineSchemaConforming(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, Inline(dummySchema()), map[string]string{
		".env": "DUMMY=development\n",
	})

	outcomes, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("len(outcomes) = %d, want 1", len(outcomes))
	}

	o := outcomes[0]
	if !o.Success {
		t.Fatalf("Success = false, err = %v", o.Err)
	}
	if o.EnvFileFullPath != filepath.Join(workDir, ".env") {
		t.Errorf("EnvFileFullPath = %q", o.EnvFileFullPath)
	}
	if want := map[string]string{"DUMMY": "development"}; !reflect.DeepEqual(o.Variables, want) {
		t.Errorf("Variables = %v, want %v", o.Variables, want)
	}
}

func TestRun_MissingRequiredVariable(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, Inline(dummySchema()), map[string]string{
		".env": "OTHER=1\n",
	})

	outcomes, err := svc.Run(context.Background())
	e := requireErrKind(t, err, KindSchemaMismatch)

	if len(e.Fields) != 1 {
		t.Fatalf("Fields = %v, want exactly one", e.Fields)
	}
	f := e.Fields[0]
	if f.Details != `{"missingProperty":"DUMMY"}` {
		t.Errorf("Details = %s", f.Details)
	}
	if f.Variable != "/DUMMY" {
		t.Errorf("Variable = %q, want /DUMMY", f.Variable)
	}
	if f.Message != "must have required property 'DUMMY'" {
		t.Errorf("Message = %q", f.Message)
	}
	if !strings.Contains(e.Message, filepath.Join(workDir, ".env")) || !strings.Contains(e.Message, "the given schema object") {
		t.Errorf("Message = %q, want env path and inline schema description", e.Message)
	}
	if outcomes[0].Success || outcomes[0].Err != e {
		t.Errorf("outcome does not carry the returned error")
	}
}

func TestRun_NetworkErrorStatus(t *testing.T) {
	t.Parallel()

	srv := testutil.NewJSONServer(t, http.StatusBadRequest, `{"message":"bad request"}`)

	schemaURL := srv.URL + "/schema.json"
	svc := newTestService(t, Reference(schemaURL), map[string]string{".env": "DUMMY=x\n"},
		WithRetriever(retrieve.New(retrieve.WithHTTPClient(srv.Client()))))

	_, err := svc.Run(context.Background())
	e := requireErrKind(t, err, KindNetworkError)

	if !strings.Contains(e.Error(), "network error") || !strings.Contains(e.Error(), schemaURL) {
		t.Errorf("Error() = %q, want network error naming %s", e.Error(), schemaURL)
	}
	if !e.IsSchemaLoad() {
		t.Error("IsSchemaLoad() = false")
	}
	if svc.Schema().Loaded {
		t.Error("failed load was memoized")
	}
	if srv.Hits() != 1 {
		t.Errorf("server hit %d times, want a single attempt", srv.Hits())
	}
}

func TestRun_NonSchemaDocument(t *testing.T) {
	t.Parallel()

	srv := testutil.NewJSONServer(t, http.StatusOK, `{"userId":1,"id":1,"title":"delectus aut autem","completed":false}`)

	schemaURL := srv.URL + "/todos/1"
	svc := newTestService(t, Reference(schemaURL), map[string]string{".env": "DUMMY=x\n"},
		WithRetriever(retrieve.New(retrieve.WithHTTPClient(srv.Client()))))

	_, err := svc.Run(context.Background())
	e := requireErrKind(t, err, KindInvalidSchemaDocument)

	if !strings.Contains(e.Message, schemaURL) || !strings.Contains(e.Message, "not a valid JSON Schema") {
		t.Errorf("Message = %q", e.Message)
	}
	if !strings.Contains(e.Cause, "#/userId") {
		t.Errorf("Cause = %q, want unknown keyword location", e.Cause)
	}
	if len(e.Fields) != 0 {
		t.Errorf("Fields = %v, want none", e.Fields)
	}
}

func TestRun_MultipleFilesInOrder(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, Inline(dummySchema()), map[string]string{
		".env":       "DUMMY=development\n",
		".env.valid": "DUMMY=production\n",
	})

	outcomes, err := svc.Run(context.Background(), ".env", ".env.valid")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(outcomes) != 2 {
		t.Fatalf("len(outcomes) = %d, want 2", len(outcomes))
	}
	for i, want := range []string{"development", "production"} {
		if !outcomes[i].Success {
			t.Errorf("outcomes[%d].Success = false", i)
		}
		if got := outcomes[i].Variables["DUMMY"]; got != want {
			t.Errorf("outcomes[%d].Variables[DUMMY] = %q, want %q", i, got, want)
		}
	}
	if outcomes[1].EnvFile != ".env.valid" {
		t.Errorf("outcomes[1].EnvFile = %q", outcomes[1].EnvFile)
	}
}

func TestRun_FailuresAreIndependent(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, Inline(dummySchema()), map[string]string{
		".env.ok":  "DUMMY=a\n",
		".env.bad": "NOPE=b\n",
	})

	outcomes, err := svc.Run(context.Background(), ".env.missing", ".env.bad", ".env.ok")
	requireErrKind(t, err, KindMissingEnvFile)

	kinds := make([]Kind, len(outcomes))
	for i, o := range outcomes {
		if o.Err != nil {
			kinds[i] = o.Err.Kind
		}
	}
	if want := []Kind{KindMissingEnvFile, KindSchemaMismatch, 0}; !slices.Equal(kinds, want) {
		t.Errorf("kinds = %v, want %v", kinds, want)
	}
	if !outcomes[2].Success {
		t.Error("a failure on an earlier file stopped a later one")
	}
}

func TestRun_MissingEnvFileSkipsSchemaLoad(t *testing.T) {
	t.Parallel()

	r := &countingRetriever{doc: dummySchema()}
	svc := newTestService(t, Reference("https://example.com/schema.json"), nil, WithRetriever(r))

	for _, files := range [][]string{nil, {"missing.env"}, {"a.env", "/abs/b.env"}} {
		outcomes, err := svc.Run(context.Background(), files...)
		requireErrKind(t, err, KindMissingEnvFile)
		for _, o := range outcomes {
			if o.Err == nil || o.Err.Kind != KindMissingEnvFile {
				t.Errorf("outcome %q: err = %v", o.EnvFile, o.Err)
			}
		}
	}

	if n := r.calls.Load(); n != 0 {
		t.Errorf("retriever called %d times, want 0", n)
	}
	if svc.Schema().Loaded {
		t.Error("Schema().Loaded = true")
	}
}

func TestRun_MemoizesSchema(t *testing.T) {
	t.Parallel()

	r := &countingRetriever{doc: map[string]any{
		"type":     "object",
		"required": []any{"DUMMY"},
		"properties": map[string]any{
			"DUMMY": map[string]any{"type": "string"},
		},
	}}
	svc := newTestService(t, Reference("https://example.com/schema.json"),
		map[string]string{".env": "DUMMY=x\n", ".env.2": "DUMMY=y\n"}, WithRetriever(r))

	first, err := svc.Run(context.Background(), ".env", ".env.2")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	stateAfterFirst := svc.Schema()

	second, err := svc.Run(context.Background(), ".env", ".env.2")
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("outcomes differ between runs:\n%+v\n%+v", first, second)
	}
	if n := r.calls.Load(); n != 1 {
		t.Errorf("retriever called %d times, want 1", n)
	}

	state := svc.Schema()
	if !state.Loaded || state.Inline || state.Locator != "https://example.com/schema.json" {
		t.Errorf("Schema() = %+v", state)
	}
	if !reflect.DeepEqual(state.Value, stateAfterFirst.Value) {
		t.Error("Schema().Value changed between runs")
	}
}

func TestRun_DoesNotTouchProcessEnv(t *testing.T) {
	before := os.Environ()

	svc := newTestService(t, Inline(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ENVSCHEMA_TEST_SENTINEL": map[string]any{"type": "string"},
			"ENVSCHEMA_TEST_DEFAULT":  map[string]any{"type": "string", "default": "filled"},
		},
	}), map[string]string{".env": "ENVSCHEMA_TEST_SENTINEL=set-by-file\n"})

	outcomes, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := outcomes[0].Variables["ENVSCHEMA_TEST_DEFAULT"]; got != "filled" {
		t.Errorf("default not applied: %q", got)
	}

	after := os.Environ()
	slices.Sort(before)
	slices.Sort(after)
	if !slices.Equal(before, after) {
		t.Error("process environment changed during Run")
	}
	if _, ok := os.LookupEnv("ENVSCHEMA_TEST_SENTINEL"); ok {
		t.Error("env file variable leaked into the process environment")
	}
}

func TestRun_SchemaFromFile(t *testing.T) {
	t.Parallel()

	schema := `{
  "type": "object",
  "required": ["PORT"],
  "properties": {
    "PORT": {"type": "integer", "minimum": 1024},
    "DEBUG": {"type": "boolean", "default": false},
    "HOSTS": {"type": "array", "separator": ",", "items": {"type": "string"}}
  }
}`
	svc := newTestService(t, Reference("schemas/app.json"), map[string]string{
		"schemas/app.json": schema,
		".env":             "PORT=8080\nHOSTS=a,b\n",
		".env.low":         "PORT=80\n",
	})

	outcomes, err := svc.Run(context.Background(), ".env", ".env.low")
	requireErrKind(t, err, KindSchemaMismatch)

	ok := outcomes[0]
	if !ok.Success {
		t.Fatalf("outcomes[0] failed: %v", ok.Err)
	}
	if ok.Values["PORT"] != json.Number("8080") {
		t.Errorf("Values[PORT] = %#v, want json.Number 8080", ok.Values["PORT"])
	}
	if ok.Values["DEBUG"] != false || ok.Variables["DEBUG"] != "false" {
		t.Errorf("DEBUG = %#v / %q", ok.Values["DEBUG"], ok.Variables["DEBUG"])
	}
	if !reflect.DeepEqual(ok.Values["HOSTS"], []any{"a", "b"}) {
		t.Errorf("Values[HOSTS] = %#v", ok.Values["HOSTS"])
	}

	fields := outcomes[1].Errors()
	if len(fields) != 1 || fields[0].Variable != "/PORT" || fields[0].Keyword != "minimum" {
		t.Fatalf("fields = %+v", fields)
	}
	if fields[0].Details != `{"comparison":">=","limit":1024}` {
		t.Errorf("Details = %s", fields[0].Details)
	}
	if !strings.Contains(outcomes[1].Err.Message, `schema at "schemas/app.json"`) {
		t.Errorf("Message = %q", outcomes[1].Err.Message)
	}
}

func TestRun_SchemaLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		locator string
		files   map[string]string
		want    Kind
	}{
		{"unsupported extension", "schema.yaml", map[string]string{"schema.yaml": "{}"}, KindUnsupportedExtension},
		{"file not found", "nope.json", nil, KindFileNotFound},
		{"parse error", "broken.json", map[string]string{"broken.json": "{nope"}, KindParseError},
		{"invalid source", "ftp://example.com/schema.json", nil, KindInvalidSource},
		{"array document", "list.json", map[string]string{"list.json": "[1, 2]"}, KindInvalidSchemaDocument},
		{"invalid keyword value", "bad.json", map[string]string{"bad.json": `{"type": 5}`}, KindInvalidSchemaDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			files := map[string]string{".env": "DUMMY=x\n"}
			for k, v := range tt.files {
				files[k] = v
			}
			svc := newTestService(t, Reference(tt.locator), files)

			outcomes, err := svc.Run(context.Background())
			requireErrKind(t, err, tt.want)
			if outcomes[0].Success || outcomes[0].Err != nil {
				t.Errorf("outcome = %+v, want unevaluated", outcomes[0])
			}
		})
	}
}

func TestRun_InvalidEnvFile(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, Inline(dummySchema()), map[string]string{".env": "DUMMY=\"unterminated\n"})

	_, err := svc.Run(context.Background())
	e := requireErrKind(t, err, KindInvalidEnvFile)
	if e.Cause == "" {
		t.Error("Cause is empty")
	}
}

func TestRun_DotenvConventions(t *testing.T) {
	t.Parallel()

	schema := map[string]any{
		"type":     "object",
		"required": []any{"DUMMY", "PORT", "CERT"},
		"properties": map[string]any{
			"DUMMY": map[string]any{"type": "string", "const": "development"},
			"PORT":  map[string]any{"type": "integer"},
			"CERT":  map[string]any{"type": "string", "pattern": "^a\nb$"},
		},
	}
	env := "JUNK LINE\nDUMMY=\"development\" # stage\nPORT=8080#http\nCERT=\"a\nb\"\n"

	svc := newTestService(t, Inline(schema), map[string]string{".env": env})

	outcomes, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := outcomes[0].Variables; got["DUMMY"] != "development" || got["PORT"] != "8080" || got["CERT"] != "a\nb" {
		t.Errorf("Variables = %q", got)
	}
}

func TestRun_StrictKeywordsDisabled(t *testing.T) {
	t.Parallel()

	schema := dummySchema()
	schema["x-owner"] = "platform"

	strict := newTestService(t, Inline(schema), map[string]string{".env": "DUMMY=x\n"})
	if _, err := strict.Run(context.Background()); KindOf(err) != KindInvalidSchemaDocument {
		t.Fatalf("strict Run() error = %v, want InvalidSchemaDocument", err)
	}

	lax := newTestService(t, Inline(schema), map[string]string{".env": "DUMMY=x\n"}, WithStrictKeywords(false))
	if _, err := lax.Run(context.Background()); err != nil {
		t.Fatalf("lax Run() error = %v", err)
	}
}

func TestRun_FormatAssertion(t *testing.T) {
	t.Parallel()

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ADMIN_EMAIL": map[string]any{"type": "string", "format": "email"},
		},
	}
	files := map[string]string{".env": "ADMIN_EMAIL=not-an-email\n"}

	_, err := newTestService(t, Inline(schema), files).Run(context.Background())
	e := requireErrKind(t, err, KindSchemaMismatch)
	if e.Fields[0].Details != `{"format":"email"}` {
		t.Errorf("Details = %s", e.Fields[0].Details)
	}

	if _, err := newTestService(t, Inline(schema), files, WithFormatAssertion(false)).Run(context.Background()); err != nil {
		t.Errorf("Run() without format assertion error = %v", err)
	}
}

func TestRun_RemoveAdditional(t *testing.T) {
	t.Parallel()

	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"KEEP": map[string]any{"type": "string"},
		},
	}
	svc := newTestService(t, Inline(schema), map[string]string{".env": "KEEP=1\nDROP=2\n"})

	outcomes, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if want := map[string]string{"KEEP": "1"}; !reflect.DeepEqual(outcomes[0].Variables, want) {
		t.Errorf("Variables = %v, want %v", outcomes[0].Variables, want)
	}
}

func TestRun_InlineGoValues(t *testing.T) {
	t.Parallel()

	// []string and int are not JSON values until normalized.
	schema := map[string]any{
		"type":     "object",
		"required": []string{"PORT"},
		"properties": map[string]any{
			"PORT": map[string]any{"type": "integer", "maximum": 65535},
		},
	}
	svc := newTestService(t, Inline(schema), map[string]string{".env": "PORT=70000\n"})

	_, err := svc.Run(context.Background())
	e := requireErrKind(t, err, KindSchemaMismatch)
	if e.Fields[0].Details != `{"comparison":"<=","limit":65535}` {
		t.Errorf("Details = %s", e.Fields[0].Details)
	}

	state := svc.Schema()
	if !state.Inline || !state.Loaded || state.Locator != "" {
		t.Errorf("Schema() = %+v", state)
	}
}

func TestValidate_RawErrorStages(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, Inline(dummySchema()), map[string]string{
		".env":     "DUMMY=x\n",
		".env.bad": "OTHER=x\n",
	})
	envPath := filepath.Join(workDir, ".env")

	res, err := svc.Validate(context.Background(), dummySchema(), envPath)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if res.Variables["DUMMY"] != "x" {
		t.Errorf("Variables = %v", res.Variables)
	}

	tests := []struct {
		name   string
		schema map[string]any
		path   string
		want   Stage
	}{
		{"missing file", dummySchema(), filepath.Join(workDir, "nope"), StageEnvFile},
		{"invalid schema", map[string]any{"type": "nope"}, envPath, StageCompile},
		{"mismatch", dummySchema(), filepath.Join(workDir, ".env.bad"), StageValidate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.Validate(context.Background(), tt.schema, tt.path)
			var raw *RawError
			if !errors.As(err, &raw) {
				t.Fatalf("error = %v (%T), want *RawError", err, err)
			}
			if raw.Stage != tt.want {
				t.Errorf("Stage = %s, want %s", raw.Stage, tt.want)
			}
			if (raw.Validation != nil) != (tt.want == StageValidate) {
				t.Errorf("Validation = %v", raw.Validation)
			}
		})
	}
}

func TestNew_InvalidSource(t *testing.T) {
	t.Parallel()

	for _, src := range []SchemaSource{{}, Reference(""), Inline(nil)} {
		if _, err := New(src); KindOf(err) != KindInvalidSchemaArgument {
			t.Errorf("New(%+v) error = %v, want InvalidSchemaArgument", src, err)
		}
	}
}

// ctxRetriever records whether it was called with a cancelled context.
type ctxRetriever struct {
	cancelled atomic.Bool
}

func (r *ctxRetriever) Retrieve(ctx context.Context, _ string) (any, error) {
	if ctx.Err() != nil {
		r.cancelled.Store(true)
		return nil, ctx.Err()
	}
	return map[string]any{"type": "string"}, nil
}

func TestValidate_RefLoadingUsesContext(t *testing.T) {
	t.Parallel()

	r := &ctxRetriever{}
	svc := newTestService(t, Inline(dummySchema()), map[string]string{".env": "DUMMY=x\n"}, WithRetriever(r))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"DUMMY": map[string]any{"$ref": "https://schemas.example.com/dummy.json"}},
	}
	_, err := svc.Validate(ctx, schema, filepath.Join(workDir, ".env"))

	var raw *RawError
	if !errors.As(err, &raw) || raw.Stage != StageCompile {
		t.Fatalf("error = %v, want a compile-stage *RawError", err)
	}
	if !r.cancelled.Load() {
		t.Error("retriever did not see the cancelled context")
	}
}
