// Package core contains the OAuth2 authorization code handshake contracts,
// entities and orchestration logic. Storage, provider and transport adapters
// depend on this package; core must not depend on them.
package core
