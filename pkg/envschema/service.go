// SPDX-License-Identifier: MPL-2.0

package envschema

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/afero"

	"github.com/dcoupld/envschema/internal/dotenv"
	"github.com/dcoupld/envschema/internal/retrieve"
)

const (
	// StageEnvFile means the env file could not be read or parsed.
	StageEnvFile Stage = iota + 1
	// StageCompile means the schema document could not be compiled.
	StageCompile
	// StageValidate means the env values do not satisfy the schema.
	StageValidate
)

type (
	// Retriever loads a JSON document from a file path or URL.
	Retriever interface {
		Retrieve(ctx context.Context, source string) (any, error)
	}

	// Option configures a Service.
	Option func(*Service)

	// Service validates env files against one schema. The schema is loaded
	// once, on first use, and kept for the life of the Service.
	// It is safe for concurrent use.
	Service struct {
		source       SchemaSource
		fs           afero.Fs
		cwd          string
		retriever    Retriever
		logger       *log.Logger
		strict       bool
		assertFormat bool
		draft        *jsonschema.Draft

		mu       sync.Mutex
		doc      map[string]any
		compiled *jsonschema.Schema
	}

	// Stage identifies where Validate failed.
	Stage int

	// RawError is the untranslated failure returned by Validate.
	RawError struct {
		Stage Stage
		Err   error
		// Validation is set when the validator rejected the values.
		Validation *jsonschema.ValidationError
	}
)

// WithFs sets the file system env files and schema files are read from.
func WithFs(fs afero.Fs) Option {
	return func(s *Service) {
		s.fs = fs
	}
}

// WithWorkingDir sets the directory relative paths are resolved against.
// Defaults to the process working directory.
func WithWorkingDir(dir string) Option {
	return func(s *Service) {
		s.cwd = dir
	}
}

// WithRetriever replaces the default schema retriever.
func WithRetriever(r Retriever) Option {
	return func(s *Service) {
		s.retriever = r
	}
}

// WithLogger sets the debug logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStrictKeywords toggles rejecting schemas with unknown keywords (default on).
func WithStrictKeywords(on bool) Option {
	return func(s *Service) {
		s.strict = on
	}
}

// WithFormatAssertion toggles "format" validation (default on).
func WithFormatAssertion(on bool) Option {
	return func(s *Service) {
		s.assertFormat = on
	}
}

// WithDraft sets the draft used when a schema has no "$schema" (default draft-07).
func WithDraft(d *jsonschema.Draft) Option {
	return func(s *Service) {
		if d != nil {
			s.draft = d
		}
	}
}

// New creates a Service for src.
func New(src SchemaSource, opts ...Option) (*Service, error) {
	if err := src.check(); err != nil {
		return nil, err
	}

	s := &Service{
		source:       src,
		fs:           afero.NewOsFs(),
		logger:       log.New(io.Discard),
		strict:       true,
		assertFormat: true,
		draft:        jsonschema.Draft7,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.retriever == nil {
		s.retriever = retrieve.New(retrieve.WithFs(s.fs), retrieve.WithWorkingDir(s.cwd))
	}
	return s, nil
}

// Schema returns the current state of the schema slot. Inline sources are
// reported as loaded from the start.
func (s *Service) Schema() SchemaState {
	if s.source.IsInline() {
		return SchemaState{Inline: true, Value: s.source.document, Loaded: true}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return SchemaState{Locator: s.source.locator, Value: s.doc, Loaded: s.doc != nil}
}

// Run validates each env file and returns one Outcome per file, in order.
// No files means the default ".env" in the working directory.
//
// Every path is resolved before the schema is loaded; if none exists the
// schema is never loaded. A schema that cannot be loaded or compiled aborts
// the batch. Otherwise every file is validated and the returned error is
// the first failed Outcome's error.
func (s *Service) Run(ctx context.Context, envFiles ...string) ([]Outcome, error) {
	if len(envFiles) == 0 {
		envFiles = []string{""}
	}

	outcomes := make([]Outcome, len(envFiles))
	pending := 0
	for i, f := range envFiles {
		outcomes[i] = s.resolve(f)
		if outcomes[i].Err == nil {
			pending++
		}
	}

	if pending == 0 {
		return outcomes, firstError(outcomes)
	}

	doc, sch, err := s.load(ctx)
	if err != nil {
		return outcomes, err
	}

	for i := range outcomes {
		o := &outcomes[i]
		if o.Err != nil {
			continue
		}

		res, raw := s.validateFile(sch, doc, o.EnvFileFullPath)
		if raw != nil {
			o.Err = s.translateRaw(raw, o.EnvFileFullPath)
			s.logger.Debug("env file rejected", "path", o.EnvFileFullPath, "kind", o.Err.Kind, "errors", len(o.Err.Fields))
			continue
		}

		o.Success = true
		o.Variables = res.Variables
		o.Values = res.Values
		s.logger.Debug("env file conforms", "path", o.EnvFileFullPath)
	}

	return outcomes, firstError(outcomes)
}

// Validate checks the env file at envFileFullPath against schema. It reads
// no process state and returns the prepared values. Failures are *RawError.
// ctx bounds the loading of remote $ref targets.
func (s *Service) Validate(ctx context.Context, schema map[string]any, envFileFullPath string) (Result, error) {
	doc, err := normalizeDocument(schema)
	if err != nil {
		return Result{}, &RawError{Stage: StageCompile, Err: err}
	}

	sch, err := s.compile(ctx, inlineResourceURL, doc)
	if err != nil {
		return Result{}, &RawError{Stage: StageCompile, Err: err}
	}

	res, raw := s.validateFile(sch, doc, envFileFullPath)
	if raw != nil {
		return Result{}, raw
	}
	return res, nil
}

func (s *Service) resolve(envFile string) Outcome {
	o := Outcome{EnvFile: envFile}

	full, err := dotenv.ResolvePath(envFile, s.cwd)
	if err != nil {
		o.Err = newError(KindMissingEnvFile, err, "the file at given env file path %q does not exist", envFile)
		return o
	}
	o.EnvFileFullPath = full

	if err := dotenv.CheckExists(s.fs, full); err != nil {
		o.Err = newError(KindMissingEnvFile, nil, "the file at given env file path %q does not exist", full)
		return o
	}

	s.logger.Debug("resolved env file", "file", envFile, "path", full)
	return o
}

// load returns the memoized schema document and its compiled form. Failed
// retrievals are not memoized.
func (s *Service) load(ctx context.Context) (map[string]any, *jsonschema.Schema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.compiled != nil {
		s.logger.Debug("using loaded schema", "source", s.source.String())
		return s.doc, s.compiled, nil
	}

	if s.doc == nil {
		doc, err := s.fetch(ctx)
		if err != nil {
			return nil, nil, err
		}
		s.doc = doc
	}

	sch, err := s.compile(ctx, s.resourceURL(), s.doc)
	if err != nil {
		return nil, nil, s.invalidDocument(err)
	}
	s.compiled = sch
	return s.doc, s.compiled, nil
}

func (s *Service) fetch(ctx context.Context) (map[string]any, error) {
	if s.source.IsInline() {
		doc, err := normalizeDocument(s.source.document)
		if err != nil {
			return nil, s.invalidDocument(err)
		}
		return doc, nil
	}

	s.logger.Debug("loading schema", "locator", s.source.locator)
	v, err := s.retriever.Retrieve(ctx, s.source.locator)
	if err != nil {
		return nil, s.loadError(err)
	}

	doc, ok := v.(map[string]any)
	if !ok {
		return nil, s.invalidDocument(fmt.Errorf("expected a JSON object, got %T", v))
	}
	s.logger.Debug("schema loaded", "locator", s.source.locator)
	return doc, nil
}

func (s *Service) loadError(err error) *Error {
	var own *Error
	if errors.As(err, &own) {
		return own
	}

	var rerr *retrieve.Error
	if !errors.As(err, &rerr) {
		return newError(KindSchemaLoad, err, "could not load the %s", s.source)
	}

	e := &Error{Kind: retrieveKind(rerr.Kind), Message: rerr.Msg}
	if rerr.Err != nil {
		e.Cause = rerr.Err.Error()
	}
	return e
}

func retrieveKind(k retrieve.Kind) Kind {
	switch k {
	case retrieve.KindInvalidSource:
		return KindInvalidSource
	case retrieve.KindUnsupportedExtension:
		return KindUnsupportedExtension
	case retrieve.KindFileNotFound:
		return KindFileNotFound
	case retrieve.KindNetworkError:
		return KindNetworkError
	case retrieve.KindParseError:
		return KindParseError
	default:
		return KindSchemaLoad
	}
}

func (s *Service) invalidDocument(cause error) *Error {
	if s.source.IsInline() {
		return newError(KindInvalidSchemaDocument, cause, "the given schema object is not a valid JSON Schema document")
	}
	return newError(KindInvalidSchemaDocument, cause, "the schema at %q is not a valid JSON Schema document", s.source.locator)
}

func (s *Service) validateFile(sch *jsonschema.Schema, doc map[string]any, path string) (Result, *RawError) {
	env, err := dotenv.Load(s.fs, path)
	if err != nil {
		return Result{}, &RawError{Stage: StageEnvFile, Err: err}
	}

	data, vars := prepare(doc, env)
	if err := sch.Validate(data); err != nil {
		raw := &RawError{Stage: StageValidate, Err: err}
		errors.As(err, &raw.Validation)
		return Result{}, raw
	}

	return Result{Variables: vars, Values: data}, nil
}

func (s *Service) translateRaw(raw *RawError, path string) *Error {
	switch raw.Stage {
	case StageEnvFile:
		if errors.Is(raw.Err, dotenv.ErrNotExist) {
			return newError(KindMissingEnvFile, nil, "the file at given env file path %q does not exist", path)
		}
		return newError(KindInvalidEnvFile, raw.Err, "the env file at %q could not be parsed", path)
	case StageCompile:
		return s.invalidDocument(raw.Err)
	}

	e := &Error{
		Kind:    KindSchemaMismatch,
		Message: fmt.Sprintf("the provided env at %q does not conform to %s", path, s.source),
	}
	if raw.Validation != nil {
		e.Fields = translate(raw.Validation)
	} else {
		e.Cause = raw.Err.Error()
	}
	return e
}

func firstError(outcomes []Outcome) error {
	for _, o := range outcomes {
		if o.Err != nil {
			return o.Err
		}
	}
	return nil
}

// String returns the stage name.
func (s Stage) String() string {
	switch s {
	case StageEnvFile:
		return "env file"
	case StageCompile:
		return "compile"
	case StageValidate:
		return "validate"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Error implements the error interface.
func (e *RawError) Error() string {
	return e.Stage.String() + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *RawError) Unwrap() error { return e.Err }
