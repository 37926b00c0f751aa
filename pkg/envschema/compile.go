// SPDX-License-Identifier: MPL-2.0

package envschema

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// inlineResourceURL is the base URL of inline schemas and of documents
// passed directly to Validate.
const inlineResourceURL = "urn:envschema:inline-schema"

var drafts = map[string]*jsonschema.Draft{
	"draft4":       jsonschema.Draft4,
	"draft6":       jsonschema.Draft6,
	"draft7":       jsonschema.Draft7,
	"draft2019-09": jsonschema.Draft2019,
	"draft2020-12": jsonschema.Draft2020,
}

// DraftByName returns the draft for one of "draft4", "draft6", "draft7",
// "draft2019-09" or "draft2020-12". An empty name means draft7.
func DraftByName(name string) (*jsonschema.Draft, error) {
	if name == "" {
		return jsonschema.Draft7, nil
	}
	d, ok := drafts[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown JSON Schema draft %q", name)
	}
	return d, nil
}

// retrieverLoader resolves $ref targets through the service's Retriever.
type retrieverLoader struct {
	ctx context.Context
	r   Retriever
}

func (l retrieverLoader) Load(u string) (any, error) {
	return l.r.Retrieve(l.ctx, u)
}

func (s *Service) compile(ctx context.Context, loc string, doc map[string]any) (*jsonschema.Schema, error) {
	if s.strict {
		if err := checkStrict(doc); err != nil {
			return nil, err
		}
	}

	c := jsonschema.NewCompiler()
	c.DefaultDraft(s.draft)
	if s.assertFormat {
		c.AssertFormat()
	}

	loader := retrieverLoader{ctx: ctx, r: s.retriever}
	c.UseLoader(jsonschema.SchemeURLLoader{
		"file":  loader,
		"http":  loader,
		"https": loader,
	})

	if err := c.AddResource(loc, doc); err != nil {
		return nil, err
	}
	return c.Compile(loc)
}

// resourceURL is the location a loaded schema is registered under, so
// relative $refs resolve against it.
func (s *Service) resourceURL() string {
	if s.source.IsInline() {
		return inlineResourceURL
	}

	loc := s.source.locator
	if u, err := url.Parse(loc); err == nil && len(u.Scheme) > 1 {
		return loc
	}
	if filepath.IsAbs(loc) {
		return loc
	}
	if s.cwd != "" {
		return filepath.Join(s.cwd, loc)
	}
	if abs, err := filepath.Abs(loc); err == nil {
		return abs
	}
	return loc
}
