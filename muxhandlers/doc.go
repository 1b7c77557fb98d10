// Package muxhandlers provides guard middleware for the mux router.
//
// Every middleware that refuses a request reports a mux.Rejection before
// writing its response. A route verifier holding a mux.RejectionRecorder
// can therefore tell which filter blocked a request and why, even though the
// handler body never runs.
//
// # Basic Auth Middleware
//
// BasicAuthMiddleware implements HTTP Basic Authentication per RFC 7617.
// Static credentials are compared in constant time.
//
//	mw, err := muxhandlers.BasicAuthMiddleware(muxhandlers.BasicAuthConfig{
//	    Realm:       "My App",
//	    Credentials: map[string]string{"admin": "secret"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	r.Use(mw)
//
// # Bearer Auth Middleware
//
// BearerAuthMiddleware verifies a JWT from the Authorization header per
// RFC 6750. Issuer, audience and signing algorithms can be restricted.
//
//	mw, err := muxhandlers.BearerAuthMiddleware(muxhandlers.BearerAuthConfig{
//	    Key:    []byte("secret"),
//	    Issuer: "https://id.example.com",
//	})
//
// # Content-Type Check Middleware
//
// ContentTypeCheckMiddleware answers 415 when a POST, PUT or PATCH request
// carries a media type outside the allowed list.
//
// # Request Size Limit Middleware
//
// RequestSizeLimitMiddleware answers 413 for declared bodies above the limit
// and caps reads of bodies of unknown length.
//
// # Request ID Middleware
//
// RequestIDMiddleware generates or propagates a request ID and can require
// clients to send a valid UUID.
//
// # Recovery Middleware
//
// RecoveryMiddleware turns handler panics into 500 responses and logs them
// through logrus.
package muxhandlers
