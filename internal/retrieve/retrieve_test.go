// SPDX-License-Identifier: MPL-2.0

package retrieve

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/afero"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newMemFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fs := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(fs, name, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return fs
}

func requireKind(t *testing.T, err error, want Kind) *Error {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if rerr.Kind != want {
		t.Fatalf("Kind = %s, want %s (%v)", rerr.Kind, want, err)
	}
	return rerr
}

func TestRetrieve_File(t *testing.T) {
	t.Parallel()

	fs := newMemFs(t, map[string]string{
		"/work/schemas/env.json": `{"type":"object","properties":{"PORT":{"type":"integer","default":3000}}}`,
	})
	r := New(WithFs(fs), WithWorkingDir("/work"))

	for _, source := range []string{"schemas/env.json", "/work/schemas/env.json", "file:///work/schemas/env.json"} {
		t.Run(source, func(t *testing.T) {
			t.Parallel()

			doc, err := r.Retrieve(context.Background(), source)
			if err != nil {
				t.Fatalf("Retrieve(%q) error: %v", source, err)
			}

			obj, ok := doc.(map[string]any)
			if !ok {
				t.Fatalf("expected object, got %T", doc)
			}
			if obj["type"] != "object" {
				t.Errorf("type = %v, want object", obj["type"])
			}

			port := obj["properties"].(map[string]any)["PORT"].(map[string]any)
			if port["default"] != json.Number("3000") {
				t.Errorf("default = %#v, want json.Number(\"3000\")", port["default"])
			}
		})
	}
}

func TestRetrieve_FileErrors(t *testing.T) {
	t.Parallel()

	fs := newMemFs(t, map[string]string{
		"/work/schema.yaml":   `{"type":"object"}`,
		"/work/schema.JSON":   `{"type":"object"}`,
		"/work/broken.json":   `{"type":`,
		"/work/trailing.json": `{"type":"object"} {}`,
		"/work/short.json":    `1`,
	})
	if err := fs.MkdirAll("/work/dir.json", 0o755); err != nil {
		t.Fatal(err)
	}
	r := New(WithFs(fs), WithWorkingDir("/work"))

	tests := []struct {
		name   string
		source string
		want   Kind
	}{
		{name: "yaml extension", source: "schema.yaml", want: KindUnsupportedExtension},
		{name: "extension is case-sensitive", source: "schema.JSON", want: KindUnsupportedExtension},
		{name: "no extension", source: "schema", want: KindUnsupportedExtension},
		{name: "missing file", source: "missing.json", want: KindFileNotFound},
		{name: "directory", source: "dir.json", want: KindFileNotFound},
		{name: "syntax error", source: "broken.json", want: KindParseError},
		{name: "trailing data", source: "trailing.json", want: KindParseError},
		{name: "too short", source: "short.json", want: KindParseError},
		{name: "empty source", source: "  ", want: KindInvalidSource},
		{name: "unsupported scheme", source: "ftp://example.com/schema.json", want: KindInvalidSource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := r.Retrieve(context.Background(), tt.source)
			requireKind(t, err, tt.want)
		})
	}
}

func TestRetrieve_UnsupportedExtensionIgnoresContent(t *testing.T) {
	t.Parallel()

	// Valid JSON content does not rescue a file without the .json extension.
	fs := newMemFs(t, map[string]string{"/work/schema.txt": `{"type":"object"}`})
	r := New(WithFs(fs), WithWorkingDir("/work"))

	_, err := r.Retrieve(context.Background(), "/work/schema.txt")
	rerr := requireKind(t, err, KindUnsupportedExtension)
	if !strings.Contains(rerr.Error(), "'.json' extension") {
		t.Errorf("unexpected message: %s", rerr.Error())
	}
}

func TestRetrieve_URL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %q, want GET", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != "envschema/test" {
			t.Errorf("User-Agent = %q, want envschema/test", ua)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"type":"object","required":["DUMMY"]}`))
	}))
	defer srv.Close()

	r := New(WithHTTPClient(srv.Client()), WithUserAgent("envschema/test"))
	doc, err := r.Retrieve(context.Background(), srv.URL+"/schema")
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}

	obj := doc.(map[string]any)
	if req, ok := obj["required"].([]any); !ok || len(req) != 1 || req[0] != "DUMMY" {
		t.Errorf("required = %#v, want [DUMMY]", obj["required"])
	}
}

func TestRetrieve_URLBadStatus(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer srv.Close()

	url := srv.URL + "/schema.json"
	r := New(WithHTTPClient(srv.Client()))
	_, err := r.Retrieve(context.Background(), url)

	rerr := requireKind(t, err, KindNetworkError)
	if rerr.Source != url {
		t.Errorf("Source = %q, want %q", rerr.Source, url)
	}
	if !strings.Contains(rerr.Msg, "network error") || !strings.Contains(rerr.Msg, url) {
		t.Errorf("Msg = %q, want network error naming %s", rerr.Msg, url)
	}
	if rerr.Err == nil || !strings.Contains(rerr.Err.Error(), "400") {
		t.Errorf("cause = %v, want the 400 status", rerr.Err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("server called %d times, want exactly 1 (no retry)", n)
	}
}

func TestRetrieve_URLTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + "/schema.json"
	client := srv.Client()
	srv.Close()

	_, err := New(WithHTTPClient(client)).Retrieve(context.Background(), url)
	requireKind(t, err, KindNetworkError)
}

func TestRetrieve_URLNonJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	_, err := New(WithHTTPClient(srv.Client())).Retrieve(context.Background(), srv.URL)
	requireKind(t, err, KindParseError)
}

func TestRetrieve_MaxBytes(t *testing.T) {
	t.Parallel()

	fs := newMemFs(t, map[string]string{"/big.json": `{"description":"` + strings.Repeat("x", 64) + `"}`})
	_, err := New(WithFs(fs), WithMaxBytes(16)).Retrieve(context.Background(), "/big.json")
	requireKind(t, err, KindParseError)
}

func TestParse(t *testing.T) {
	t.Parallel()

	doc, err := Parse([]byte(` [1, 2.5] `))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	arr := doc.([]any)
	if arr[0] != json.Number("1") || arr[1] != json.Number("2.5") {
		t.Errorf("Parse() = %#v, want json.Number elements", arr)
	}
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	if got := KindNetworkError.String(); got != "NetworkError" {
		t.Errorf("String() = %q", got)
	}
	if got := Kind(42).String(); got != "Kind(42)" {
		t.Errorf("String() = %q", got)
	}
}
