package mux

import (
	"bytes"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// regexpType represents the type of template being compiled.
type regexpType int

const (
	regexpTypePath regexpType = iota
	regexpTypeHost
	regexpTypePrefix
	regexpTypeQuery
)

// routeRegexp stores a compiled template together with the metadata the
// router needs for ranking and URL building.
type routeRegexp struct {
	// template is the original template string.
	template string
	// matchHost indicates matching against the host.
	matchHost bool
	// matchQuery indicates matching against query strings.
	matchQuery bool
	// useEncodedPath indicates using encoded path for matching.
	useEncodedPath bool
	// regexp is the compiled regular expression.
	regexp *regexp.Regexp
	// reverse is the template with %s placeholders for Sprintf.
	reverse string
	// varsN are the variable names in order.
	varsN []string
	// varsP are the raw patterns of each variable, empty when the default
	// pattern applies.
	varsP []string
	// varsR validate each variable value when building URLs.
	varsR []varMatcher
	// varsI are the submatch indices of each variable.
	varsI []int
	// wildcard indicates a prefix match (no $ anchor).
	wildcard bool
	// queryKey is the query parameter key (only for query type).
	queryKey string
	// literals counts template segments that contain no variable.
	literals int
	// constrained counts variables declared with an explicit pattern.
	constrained int
}

type routeRegexpOptions struct {
	useEncodedPath bool
}

// newRouteRegexp parses a route template and returns a compiled routeRegexp.
func newRouteRegexp(tpl string, typ regexpType, options routeRegexpOptions) (*routeRegexp, error) {
	var queryKey string

	if typ == regexpTypeQuery {
		parts := strings.SplitN(tpl, "=", 2)
		queryKey = parts[0]
		if len(parts) == 2 {
			tpl = parts[1]
		} else {
			tpl = ""
		}
	}

	idxs, err := braceIndices(tpl)
	if err != nil {
		return nil, err
	}

	defaultPattern := "[^/]+"
	switch typ {
	case regexpTypeHost:
		defaultPattern = "[^.]+"
	case regexpTypeQuery:
		defaultPattern = ".*"
	}

	template := tpl
	if typ == regexpTypeHost {
		template = strings.ToLower(tpl)
	}

	var (
		pattern     bytes.Buffer
		reverse     bytes.Buffer
		varsN       []string
		varsP       []string
		varsR       []varMatcher
		end         int
		constrained int
	)

	pattern.WriteByte('^')

	for i := 0; i < len(idxs); i += 2 {
		raw := tpl[end:idxs[i]]
		end = idxs[i+1]

		parts := strings.SplitN(tpl[idxs[i]+1:end-1], ":", 2)
		name := parts[0]
		if name == "" {
			return nil, fmt.Errorf("mux: missing name in %q from %q", tpl[idxs[i]:end], tpl)
		}

		patt := defaultPattern
		declared := ""
		var matcher varMatcher
		if len(parts) == 2 {
			declared = parts[1]
			patt, matcher = expandMacro(parts[1])
			constrained++
		}

		fmt.Fprintf(&pattern, "%s(?P<v%d>%s)", regexp.QuoteMeta(raw), len(varsN), patt)
		reverse.WriteString(strings.ReplaceAll(raw, "%", "%%"))
		reverse.WriteString("%s")

		if matcher == nil {
			re, err := compileRegexp(fmt.Sprintf("^%s$", patt))
			if err != nil {
				return nil, fmt.Errorf("mux: invalid pattern %q in variable %q: %w", patt, name, err)
			}
			matcher = re
		}

		varsN = append(varsN, name)
		varsP = append(varsP, declared)
		varsR = append(varsR, matcher)
	}

	raw := tpl[end:]
	pattern.WriteString(regexp.QuoteMeta(raw))
	reverse.WriteString(strings.ReplaceAll(raw, "%", "%%"))

	wildcard := typ == regexpTypePrefix
	if !wildcard {
		pattern.WriteByte('$')
	}

	reg, err := compileRegexp(pattern.String())
	if err != nil {
		return nil, err
	}

	if err := checkDuplicateVars(varsN); err != nil {
		return nil, err
	}

	varsI := make([]int, len(varsN))
	for i := range varsN {
		varsI[i] = reg.SubexpIndex(fmt.Sprintf("v%d", i))
	}

	return &routeRegexp{
		template:       template,
		matchHost:      typ == regexpTypeHost,
		matchQuery:     typ == regexpTypeQuery,
		useEncodedPath: options.useEncodedPath,
		regexp:         reg,
		reverse:        reverse.String(),
		varsN:          varsN,
		varsP:          varsP,
		varsR:          varsR,
		varsI:          varsI,
		wildcard:       wildcard,
		queryKey:       queryKey,
		literals:       literalSegments(tpl, typ),
		constrained:    constrained,
	}, nil
}

// literalSegments counts the segments of tpl that carry no variable.
// Path templates are split on "/", host templates on ".".
func literalSegments(tpl string, typ regexpType) int {
	sep := byte('/')
	if typ == regexpTypeHost {
		sep = '.'
	}

	var (
		count  int
		level  int
		hasVar bool
		empty  = true
	)
	flush := func() {
		if !empty && !hasVar {
			count++
		}
		hasVar, empty = false, true
	}

	for i := 0; i < len(tpl); i++ {
		switch c := tpl[i]; {
		case c == '{':
			level++
			hasVar = true
			empty = false
		case c == '}':
			level--
		case c == sep && level == 0:
			flush()
		default:
			empty = false
		}
	}
	flush()

	return count
}

// Match checks whether the compiled regexp matches the request.
func (r *routeRegexp) Match(req *http.Request, _ *RouteMatch) bool {
	if r.matchQuery {
		return r.matchQueryString(req)
	}
	if r.matchHost {
		return r.regexp.MatchString(getHost(req))
	}

	p := req.URL.Path
	if r.useEncodedPath {
		p = requestURIPath(req.URL)
	}
	return r.regexp.MatchString(p)
}

// url builds a URL part from the template and the given variable values.
func (r *routeRegexp) url(values map[string]string) (string, error) {
	urlValues := make([]any, len(r.varsN))
	for i, name := range r.varsN {
		v, ok := values[name]
		if !ok {
			return "", fmt.Errorf("mux: missing route variable %q", name)
		}
		if !r.varsR[i].MatchString(v) {
			return "", fmt.Errorf("mux: variable %q doesn't match, expected %q", name, r.varsR[i].String())
		}
		urlValues[i] = v
	}
	return fmt.Sprintf(r.reverse, urlValues...), nil
}

func (r *routeRegexp) matchQueryString(req *http.Request) bool {
	vals, ok := req.URL.Query()[r.queryKey]
	if !ok || len(vals) == 0 {
		// A bare "key=" template is a presence check.
		if len(r.varsN) == 0 && r.template == "" {
			return ok
		}
		return false
	}
	for _, v := range vals {
		if r.regexp.MatchString(v) {
			return true
		}
	}
	return false
}

// braceIndices returns the start and end+1 indices of each top-level
// {...} pair in s. Returns an error if braces are unbalanced.
func braceIndices(s string) ([]int, error) {
	var (
		idxs  []int
		level int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			if level++; level == 1 {
				idxs = append(idxs, i)
			}
		case '}':
			if level--; level == 0 {
				idxs = append(idxs, i+1)
			} else if level < 0 {
				return nil, fmt.Errorf("mux: unbalanced braces in %q", s)
			}
		}
	}
	if level != 0 {
		return nil, fmt.Errorf("mux: unbalanced braces in %q", s)
	}
	return idxs, nil
}

func checkDuplicateVars(vars []string) error {
	seen := make(map[string]bool, len(vars))
	for _, v := range vars {
		if seen[v] {
			return fmt.Errorf("mux: duplicated route variable %q", v)
		}
		seen[v] = true
	}
	return nil
}

// getHost returns the lowercased hostname without port.
func getHost(r *http.Request) string {
	host := r.Host
	if host == "" && r.URL != nil {
		host = r.URL.Host
	}
	if i := strings.LastIndex(host, ":"); i != -1 && !strings.HasSuffix(host, "]") {
		host = host[:i]
	}
	return strings.ToLower(host)
}

// routeRegexpGroup groups host, path, and query regexps for a route.
type routeRegexpGroup struct {
	host    *routeRegexp
	path    *routeRegexp
	queries []*routeRegexp
}

func (v *routeRegexpGroup) varCount() int {
	n := 0
	if v.host != nil {
		n += len(v.host.varsN)
	}
	if v.path != nil {
		n += len(v.path.varsN)
	}
	for _, q := range v.queries {
		n += len(q.varsN)
	}
	return n
}

// setMatch extracts variables from the request into m.Vars.
func (v *routeRegexpGroup) setMatch(req *http.Request, m *RouteMatch) {
	if m.Vars == nil {
		m.Vars = make(map[string]string, v.varCount())
	}

	if v.host != nil && len(v.host.varsN) > 0 {
		v.host.setVars(getHost(req), m.Vars)
	}

	if v.path != nil && len(v.path.varsN) > 0 {
		p := req.URL.Path
		if v.path.useEncodedPath {
			p = requestURIPath(req.URL)
		}
		v.path.setVars(p, m.Vars)
		if v.path.useEncodedPath {
			for _, name := range v.path.varsN {
				if val, ok := m.Vars[name]; ok {
					if unescaped, err := url.PathUnescape(val); err == nil {
						m.Vars[name] = unescaped
					}
				}
			}
		}
	}

	if len(v.queries) > 0 {
		values := m.getQuery(req)
		for _, q := range v.queries {
			if len(q.varsN) == 0 {
				continue
			}
			for _, val := range values[q.queryKey] {
				if q.setVars(val, m.Vars) {
					break
				}
			}
		}
	}
}

// setVars extracts variables from input into dst and reports whether the
// input matched.
func (r *routeRegexp) setVars(input string, dst map[string]string) bool {
	matches := r.regexp.FindStringSubmatch(input)
	if matches == nil {
		return false
	}
	for i, name := range r.varsN {
		if idx := r.varsI[i]; idx > 0 && idx < len(matches) {
			dst[name] = matches[idx]
		}
	}
	return true
}
