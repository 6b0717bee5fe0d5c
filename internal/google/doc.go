// Package google handles the installed-app OAuth2 flow for the Gmail API:
// loading the client secret, exchanging an authorization code, persisting the
// resulting token and building an authorized HTTP client from it.
package google
