// Package tenantauth carries the tenant across an external OAuth2 redirect.
//
// The challenge seals the identifier of the tenant in effect into the OAuth2
// state parameter. On the callback, CallbackMiddleware opens the state and
// attaches its property bag to the request so tenant.RemoteAuthStrategy
// resolves the tenant that started the flow, whatever host or path the
// provider redirects to.
//
// State is encrypted and authenticated with XChaCha20-Poly1305 under a key
// derived from the configured secret with HKDF-SHA-256, and expires after
// the configured TTL.
package tenantauth
