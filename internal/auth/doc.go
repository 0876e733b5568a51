// package auth signs users in against the identity provider and hands out API tokens.
//
// Interactive sign-in is an OAuth2 authorization code flow with PKCE, completed on a loopback
// callback server. Tokens are kept in the sessions table and refreshed silently through
// [golang.org/x/oauth2] token sources.
package auth
