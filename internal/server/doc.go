// Package server runs the short-lived loopback HTTP server used during interactive sign-in.
//
// # Router Infrastructure
//
// [BasicRouter] registers [Handler] values under their [http.ServeMux] patterns, with the
// method in the pattern ("GET /callback"). [Middleware] runs in the order it was added.
//
// # OAuth Callback Handler
//
// [OAuthHandler] receives the identity provider's redirect. It validates the state parameter,
// exchanges the authorization code (with the PKCE verifier) for tokens, and sends the result through a channel.
// Only the first callback is processed.
//
// # Callback Server
//
// [CallbackServer] binds the host and port of the configured redirect URI, serves the router
// until the flow completes, then shuts down.
package server
