// Package main provides the entry point of google-auth, a fiber web service
// that signs users in with Google Workspace OAuth2 / OpenID Connect. Verified
// identities are mapped onto local accounts and roles through email patterns
// managed by administrators; gorm persists accounts, settings and the cached
// discovery endpoints.
package main
