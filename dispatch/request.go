package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/net/http/httpguts"
)

const defaultHost = "example.com"

// Request describes a request to dispatch. It is an immutable value: every
// With method returns a modified copy. Errors from building it are reported
// by HTTPRequest.
type Request struct {
	method      string
	url         url.URL
	header      http.Header
	body        []byte
	contentType string
	cookies     []*http.Cookie
	err         error
}

// NewRequest describes a request for method and target. Target is a path
// with an optional query string, or an absolute URL whose host is kept.
func NewRequest(method, target string) Request {
	r := Request{method: strings.ToUpper(method), header: make(http.Header)}

	u, err := url.Parse(target)
	if err != nil {
		r.err = fmt.Errorf("dispatch: invalid target %q: %w", target, err)
		return r
	}
	if u.Path == "" {
		u.Path = "/"
	}
	r.url = *u
	return r
}

// Get describes a GET request for target.
func Get(target string) Request {
	return NewRequest(http.MethodGet, target)
}

// Post describes a POST request for target.
func Post(target string) Request {
	return NewRequest(http.MethodPost, target)
}

func (r Request) clone() Request {
	out := r
	out.header = r.header.Clone()
	if out.header == nil {
		out.header = make(http.Header)
	}
	out.body = bytes.Clone(r.body)
	out.cookies = slices.Clone(r.cookies)
	if r.url.User != nil {
		u := *r.url.User
		out.url.User = &u
	}
	return out
}

// Method returns the request method.
func (r Request) Method() string { return r.method }

// Path returns the unescaped request path.
func (r Request) Path() string { return r.url.Path }

// Host returns the request host, empty when unset.
func (r Request) Host() string { return r.url.Host }

// Query returns a copy of the query values.
func (r Request) Query() url.Values { return r.url.Query() }

// Header returns a copy of the headers.
func (r Request) Header() http.Header { return r.header.Clone() }

// Body returns a copy of the body.
func (r Request) Body() []byte { return bytes.Clone(r.body) }

// ContentType returns the body content type.
func (r Request) ContentType() string { return r.contentType }

// Cookies returns a copy of the cookies.
func (r Request) Cookies() []*http.Cookie {
	out := make([]*http.Cookie, len(r.cookies))
	for i, c := range r.cookies {
		cc := *c
		out[i] = &cc
	}
	return out
}

// WithMethod returns a copy with the given method.
func (r Request) WithMethod(method string) Request {
	out := r.clone()
	out.method = strings.ToUpper(method)
	return out
}

// WithPath returns a copy with the given path. The query is kept.
func (r Request) WithPath(path string) Request {
	out := r.clone()
	out.url.Path = path
	out.url.RawPath = ""
	return out
}

// WithHost returns a copy addressed to host.
func (r Request) WithHost(host string) Request {
	out := r.clone()
	out.url.Host = host
	return out
}

// WithQuery returns a copy with values appended to the query key.
func (r Request) WithQuery(key string, values ...string) Request {
	out := r.clone()
	q := out.url.Query()
	for _, v := range values {
		q.Add(key, v)
	}
	out.url.RawQuery = q.Encode()
	return out
}

// WithHeader returns a copy with the header key set to value.
func (r Request) WithHeader(key, value string) Request {
	out := r.clone()
	out.header.Set(key, value)
	return out
}

// WithBody returns a copy carrying body with the given content type.
func (r Request) WithBody(contentType string, body []byte) Request {
	out := r.clone()
	out.contentType = contentType
	out.body = bytes.Clone(body)
	return out
}

// WithJSON returns a copy carrying v encoded as JSON.
func (r Request) WithJSON(v any) Request {
	body, err := json.Marshal(v)
	if err != nil {
		out := r.clone()
		out.err = fmt.Errorf("dispatch: encode body: %w", err)
		return out
	}
	return r.WithBody("application/json", body)
}

// WithForm returns a copy carrying values as an urlencoded form body.
func (r Request) WithForm(values url.Values) Request {
	return r.WithBody("application/x-www-form-urlencoded", []byte(values.Encode()))
}

// WithCookie returns a copy with the named cookie added.
func (r Request) WithCookie(name, value string) Request {
	out := r.clone()
	out.cookies = append(out.cookies, &http.Cookie{Name: name, Value: value})
	return out
}

// WithCookies returns a copy with every cookie of m added in key order.
func (r Request) WithCookies(m map[string]string) Request {
	out := r
	for _, name := range slices.Sorted(maps.Keys(m)) {
		out = out.WithCookie(name, m[name])
	}
	return out
}

// String returns the method and request URI, e.g. "GET /items/42?x=1".
func (r Request) String() string {
	return r.method + " " + r.url.RequestURI()
}

// HTTPRequest builds the *http.Request the descriptor describes. Invalid
// methods, header names and header values are rejected.
func (r Request) HTTPRequest(ctx context.Context) (*http.Request, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.method == "" || !httpguts.ValidHeaderFieldName(r.method) {
		return nil, fmt.Errorf("dispatch: invalid method %q", r.method)
	}
	for key, values := range r.header {
		if !httpguts.ValidHeaderFieldName(key) {
			return nil, fmt.Errorf("dispatch: invalid header name %q", key)
		}
		for _, v := range values {
			if !httpguts.ValidHeaderFieldValue(v) {
				return nil, fmt.Errorf("dispatch: invalid value for header %q", key)
			}
		}
	}
	if r.contentType != "" && !httpguts.ValidHeaderFieldValue(r.contentType) {
		return nil, fmt.Errorf("dispatch: invalid content type %q", r.contentType)
	}

	u := r.url
	if u.Host == "" {
		u.Host = defaultHost
	}
	if u.Scheme == "" {
		u.Scheme = "http"
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u.String(), bytes.NewReader(r.body))
	if err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	req.Header = r.header.Clone()
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	req.RequestURI = u.RequestURI()
	req.RemoteAddr = "192.0.2.1:1234"

	return req, nil
}
