// Package manifest reads route verification manifests: the pipeline to
// assemble and the cases to verify against it.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ErrStageKind is returned for a stage that sets no kind or several.
var ErrStageKind = errors.New("manifest: a stage must set exactly one kind")

// Manifest is a verification manifest.
type Manifest struct {
	// Stages are applied in order, like middleware and route registrations
	// in a server's configure function.
	Stages []Stage `yaml:"stages"`
	Cases  []Case  `yaml:"cases"`

	// dir resolves relative file references.
	dir string
}

// Stage is one pipeline component. Exactly one field is set.
type Stage struct {
	Routes      []Route      `yaml:"routes,omitempty"`
	OpenAPI     string       `yaml:"openapi,omitempty"`
	BasicAuth   *BasicAuth   `yaml:"basicAuth,omitempty"`
	BearerAuth  *BearerAuth  `yaml:"bearerAuth,omitempty"`
	ContentType *ContentType `yaml:"contentType,omitempty"`
	SizeLimit   *SizeLimit   `yaml:"sizeLimit,omitempty"`
	RequestID   *RequestID   `yaml:"requestId,omitempty"`
	Recovery    bool         `yaml:"recovery,omitempty"`
}

// Route declares one route and the action it dispatches to.
type Route struct {
	Path        string            `yaml:"path"`
	Prefix      bool              `yaml:"prefix,omitempty"`
	Host        string            `yaml:"host,omitempty"`
	Methods     []string          `yaml:"methods,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
	Queries     map[string]string `yaml:"queries,omitempty"`
	Name        string            `yaml:"name,omitempty"`
	Handler     string            `yaml:"handler"`
	Params      []Param           `yaml:"params,omitempty"`
	Defaults    map[string]string `yaml:"defaults,omitempty"`
	DataTokens  map[string]any    `yaml:"dataTokens,omitempty"`
	RouteValues map[string]string `yaml:"routeValues,omitempty"`
	Order       int               `yaml:"order,omitempty"`
	Consumes    []string          `yaml:"consumes,omitempty"`
	Produces    []string          `yaml:"produces,omitempty"`
	Require     []string          `yaml:"requireHeaders,omitempty"`
}

// Param declares an action parameter.
type Param struct {
	Name     string `yaml:"name"`
	In       string `yaml:"in"`
	From     string `yaml:"from,omitempty"`
	Type     string `yaml:"type,omitempty"`
	Optional bool   `yaml:"optional,omitempty"`
	Default  any    `yaml:"default,omitempty"`
	Validate string `yaml:"validate,omitempty"`
}

// BasicAuth configures a basic authentication stage.
type BasicAuth struct {
	Realm       string            `yaml:"realm,omitempty"`
	Credentials map[string]string `yaml:"credentials"`
}

// BearerAuth configures a JWT bearer authentication stage with an HMAC key.
type BearerAuth struct {
	Key        string   `yaml:"key"`
	Issuer     string   `yaml:"issuer,omitempty"`
	Audience   string   `yaml:"audience,omitempty"`
	Algorithms []string `yaml:"algorithms,omitempty"`
}

// ContentType configures a content type check stage.
type ContentType struct {
	Allowed []string `yaml:"allowed"`
	Methods []string `yaml:"methods,omitempty"`
}

// SizeLimit configures a request size limit stage.
type SizeLimit struct {
	MaxBytes int64 `yaml:"maxBytes"`
}

// RequestID configures a request ID stage.
type RequestID struct {
	Header      string `yaml:"header,omitempty"`
	Require     bool   `yaml:"require,omitempty"`
	RequireUUID bool   `yaml:"requireUUID,omitempty"`
}

// Case is one request and what it should dispatch to.
type Case struct {
	Name    string  `yaml:"name"`
	Request Request `yaml:"request"`

	// Expect is a call such as Items.Show(42).
	Expect string `yaml:"expect,omitempty"`
	// Unresolved expects no handler; the reason must contain the text.
	Unresolved *string `yaml:"unresolved,omitempty"`

	RouteValues map[string]string `yaml:"routeValues,omitempty"`
	DataTokens  map[string]any    `yaml:"dataTokens,omitempty"`
	Valid       *bool             `yaml:"valid,omitempty"`
	Errors      []FieldError      `yaml:"errors,omitempty"`
}

// Request describes the request of a case.
type Request struct {
	Method      string              `yaml:"method,omitempty"`
	URL         string              `yaml:"url"`
	Headers     map[string]string   `yaml:"headers,omitempty"`
	Query       map[string][]string `yaml:"query,omitempty"`
	Cookies     map[string]string   `yaml:"cookies,omitempty"`
	Form        map[string][]string `yaml:"form,omitempty"`
	JSON        any                 `yaml:"json,omitempty"`
	Body        string              `yaml:"body,omitempty"`
	ContentType string              `yaml:"contentType,omitempty"`
}

// FieldError is an expected validation error.
type FieldError struct {
	Key     string `yaml:"key"`
	Message string `yaml:"message"`
}

// Load reads the manifest at path. Relative file references in it resolve
// against the manifest's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}

	m, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w (%s)", err, path)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// Decode reads a manifest from r. Unknown fields are errors.
func Decode(r io.Reader) (*Manifest, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return &m, nil
		}
		return nil, fmt.Errorf("manifest: decoding: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the stages and cases.
func (m *Manifest) Validate() error {
	for i, s := range m.Stages {
		if n := s.kinds(); n != 1 {
			return fmt.Errorf("%w: stage %d sets %d", ErrStageKind, i, n)
		}
		for j, r := range s.Routes {
			if r.Path == "" {
				return fmt.Errorf("manifest: stage %d route %d: path is required", i, j)
			}
			if r.Handler == "" {
				return fmt.Errorf("manifest: stage %d route %d: handler is required", i, j)
			}
		}
	}

	for i, c := range m.Cases {
		if c.Request.URL == "" {
			return fmt.Errorf("manifest: case %d (%s): request url is required", i, c.Name)
		}
		if (c.Expect == "") == (c.Unresolved == nil) {
			return fmt.Errorf("manifest: case %d (%s): set exactly one of expect and unresolved", i, c.Name)
		}
	}
	return nil
}

func (s Stage) kinds() int {
	n := 0
	for _, set := range []bool{
		len(s.Routes) > 0,
		s.OpenAPI != "",
		s.BasicAuth != nil,
		s.BearerAuth != nil,
		s.ContentType != nil,
		s.SizeLimit != nil,
		s.RequestID != nil,
		s.Recovery,
	} {
		if set {
			n++
		}
	}
	return n
}
