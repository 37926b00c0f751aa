// SPDX-License-Identifier: MPL-2.0

package retrieve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/spf13/afero"
)

const (
	// jsonExt is the only extension accepted for file sources. The check is case-sensitive.
	jsonExt = ".json"

	// defaultMaxBytes is the upper bound on a retrieved document (10 MB).
	defaultMaxBytes = 10 << 20

	// minJSONLength is the length of the shortest JSON containers ("{}" and "[]").
	minJSONLength = 2
)

type (
	// Retriever loads and parses JSON documents from files or URLs.
	Retriever struct {
		httpClient *http.Client
		fs         afero.Fs
		cwd        string // Base for relative file paths (default: os.Getwd)
		userAgent  string
		maxBytes   int64
	}

	// Option configures a Retriever during construction.
	Option func(*Retriever)

	sourceKind int
)

const (
	sourceFile sourceKind = iota + 1
	sourceURL
)

// WithHTTPClient sets the HTTP client used for URL sources.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Retriever) {
		r.httpClient = c
	}
}

// WithFs sets the file system used for file sources.
func WithFs(fs afero.Fs) Option {
	return func(r *Retriever) {
		r.fs = fs
	}
}

// WithWorkingDir sets the directory relative file sources are resolved against.
func WithWorkingDir(dir string) Option {
	return func(r *Retriever) {
		r.cwd = dir
	}
}

// WithUserAgent sets the User-Agent header sent with URL requests.
func WithUserAgent(ua string) Option {
	return func(r *Retriever) {
		r.userAgent = ua
	}
}

// WithMaxBytes caps the number of bytes read from a source.
func WithMaxBytes(n int64) Option {
	return func(r *Retriever) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

// New creates a Retriever. Defaults: http.DefaultClient, the OS file system,
// the process working directory and a 10 MB read limit.
func New(opts ...Option) *Retriever {
	r := &Retriever{
		httpClient: http.DefaultClient,
		fs:         afero.NewOsFs(),
		userAgent:  "envschema/dev",
		maxBytes:   defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retrieve reads source and parses it as JSON. source is either a local file
// path (relative or absolute) with a ".json" extension or an http(s) URL.
// A single request is made for URLs; there is no retry.
func (r *Retriever) Retrieve(ctx context.Context, source string) (any, error) {
	kind, location, err := classify(source)
	if err != nil {
		return nil, err
	}

	var content []byte
	switch kind {
	case sourceURL:
		content, err = r.retrieveURL(ctx, location)
	default:
		content, err = r.retrieveFile(location)
	}
	if err != nil {
		return nil, err
	}

	return Parse(content)
}

// Parse decodes content as a single JSON value. Numbers are decoded as json.Number.
func Parse(content []byte) (any, error) {
	if len(bytes.TrimSpace(content)) < minJSONLength {
		return nil, newError(KindParseError, "", nil, "the given content is neither string nor object")
	}

	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, newError(KindParseError, "", err, "could not parse the given content as JSON")
	}
	if !json.Valid(content) {
		return nil, newError(KindParseError, "", errors.New("unexpected data after top-level value"),
			"could not parse the given content as JSON")
	}

	return doc, nil
}

// classify decides whether source is a URL or a file path. file:// URLs are
// returned as file paths.
func classify(source string) (sourceKind, string, error) {
	if strings.TrimSpace(source) == "" || strings.ContainsRune(source, 0) {
		return 0, "", newError(KindInvalidSource, source, nil,
			"the source %q must either be a local file path (relative or absolute path) with '.json' extension or a valid URL", source)
	}

	u, err := url.Parse(source)
	// Single-letter schemes are Windows drive letters, not URLs.
	if err != nil || len(u.Scheme) < 2 {
		return sourceFile, source, nil
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return 0, "", newError(KindInvalidSource, source, nil, "the URL %q has no host", source)
		}
		return sourceURL, u.String(), nil
	case "file":
		return sourceFile, filepath.FromSlash(u.Path), nil
	default:
		return 0, "", newError(KindInvalidSource, source, nil,
			"the source %q uses the unsupported URL scheme %q", source, u.Scheme)
	}
}

func (r *Retriever) retrieveFile(path string) ([]byte, error) {
	if filepath.Ext(path) != jsonExt {
		return nil, newError(KindUnsupportedExtension, path, nil, "the file %q must have a '.json' extension", path)
	}

	absPath, err := r.absPath(path)
	if err != nil {
		return nil, newError(KindFileNotFound, path, err, "the file %q does not exist", path)
	}

	f, err := r.fs.Open(absPath)
	if err != nil {
		return nil, newError(KindFileNotFound, absPath, nil, "the file %q does not exist", absPath)
	}
	defer f.Close()

	if info, statErr := f.Stat(); statErr == nil && info.IsDir() {
		return nil, newError(KindFileNotFound, absPath, nil, "the file %q does not exist", absPath)
	}

	content, err := io.ReadAll(io.LimitReader(f, r.maxBytes))
	if err != nil {
		return nil, newError(KindFileNotFound, absPath, err, "the file %q is not readable", absPath)
	}

	return content, nil
}

func (r *Retriever) absPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	if r.cwd != "" {
		return filepath.Join(r.cwd, path), nil
	}
	return filepath.Abs(path)
}

func (r *Retriever) retrieveURL(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, newError(KindNetworkError, reqURL, err, "there was a network error fetching the URL %q", reqURL)
	}

	req.Header.Set("Accept", "application/json, application/schema+json")
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, newError(KindNetworkError, reqURL, err, "there was a network error fetching the URL %q", reqURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		cause := fmt.Errorf("unexpected response from the URL %q: %s", reqURL, resp.Status)
		return nil, newError(KindNetworkError, reqURL, cause, "there was a network error fetching the URL %q", reqURL)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes))
	if err != nil {
		return nil, newError(KindNetworkError, reqURL, err, "there was a network error fetching the URL %q", reqURL)
	}

	return content, nil
}
