package mux

import (
	"fmt"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"slices"
)

// knownMethods are tried, in this order, when listing the methods a path
// accepts.
var knownMethods = []string{
	http.MethodDelete, http.MethodGet, http.MethodHead, http.MethodOptions,
	http.MethodPatch, http.MethodPost, http.MethodPut,
}

// cleanPath returns the canonical path for p, eliminating . and .. elements
// per RFC 3986 Section 5.2.4. A trailing slash is kept.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

// requestURIPath returns the percent-encoded path of u, or the decoded
// path when u carries no raw form.
func requestURIPath(u *url.URL) string {
	if u.RawPath != "" {
		return u.RawPath
	}
	return u.Path
}

// checkPairs returns the number of key/value pairs, or an error for an odd
// count.
func checkPairs(pairs ...string) (int, error) {
	if len(pairs)%2 != 0 {
		return 0, fmt.Errorf("mux: number of parameters must be multiple of 2, got %v", pairs)
	}
	return len(pairs) / 2, nil
}

// mapFromPairs builds a map from key/value pairs, converting every value
// with conv.
func mapFromPairs[V any](conv func(string) (V, error), pairs ...string) (map[string]V, error) {
	n, err := checkPairs(pairs...)
	if err != nil {
		return nil, err
	}
	m := make(map[string]V, n)
	for i := 0; i < len(pairs); i += 2 {
		v, err := conv(pairs[i+1])
		if err != nil {
			return nil, err
		}
		m[pairs[i]] = v
	}
	return m, nil
}

func mapFromPairsToString(pairs ...string) (map[string]string, error) {
	return mapFromPairs(func(s string) (string, error) { return s, nil }, pairs...)
}

func mapFromPairsToRegex(pairs ...string) (map[string]*regexp.Regexp, error) {
	return mapFromPairs(regexp.Compile, pairs...)
}

// uniqueVars returns an error if a variable name appears in both slices.
func uniqueVars(s1, s2 []string) error {
	for _, v := range s2 {
		if slices.Contains(s1, v) {
			return fmt.Errorf("mux: duplicated route variable %q", v)
		}
	}
	return nil
}

// matchValues reports whether every key of want is present in got with a
// value accepted by match. Header names are compared canonically
// (RFC 9110 Section 5.1) when canonicalKey is set.
func matchValues[V any](want map[string]V, got map[string][]string, canonicalKey bool, match func(V, []string) bool) bool {
	for k, v := range want {
		if canonicalKey {
			k = http.CanonicalHeaderKey(k)
		}
		values, ok := got[k]
		if !ok || !match(v, values) {
			return false
		}
	}
	return true
}

// matchMapWithString matches literal values; an empty value only requires
// the key.
func matchMapWithString(want map[string]string, got map[string][]string, canonicalKey bool) bool {
	return matchValues(want, got, canonicalKey, func(v string, values []string) bool {
		return v == "" || slices.Contains(values, v)
	})
}

// matchMapWithRegex matches when any value of a key satisfies its pattern.
func matchMapWithRegex(want map[string]*regexp.Regexp, got map[string][]string, canonicalKey bool) bool {
	return matchValues(want, got, canonicalKey, func(re *regexp.Regexp, values []string) bool {
		return slices.ContainsFunc(values, re.MatchString)
	})
}

// AllowedMethods returns, sorted, the methods under which some route
// matches the request. An ambiguous match counts as allowed, since a
// verifier reports it as a candidate set rather than a miss. The result
// fills the Allow header of 405 responses (RFC 9110 Section 15.5.6).
func (r *Router) AllowedMethods(req *http.Request) []string {
	var allowed []string
	for _, method := range knownMethods {
		trial := req.Clone(req.Context())
		trial.Method = method
		var m RouteMatch
		if r.Match(trial, &m) || m.MatchErr == ErrAmbiguousRoute {
			allowed = append(allowed, method)
		}
	}
	return allowed
}

// methodNotAllowedHandler replies with 405. Router.ServeHTTP sets the Allow
// header first.
func methodNotAllowedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}
