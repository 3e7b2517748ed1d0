package sqlstore

import "github.com/goliatone/go-oauth-client/core"

var (
	_ core.HandshakeStore  = (*HandshakeStore)(nil)
	_ core.HandshakePurger = (*HandshakeStore)(nil)
	_ core.HandshakeLister = (*HandshakeStore)(nil)
	_ core.HandshakeStore  = (*CachedHandshakeStore)(nil)
	_ core.HandshakePurger = (*CachedHandshakeStore)(nil)
	_ core.HandshakeLister = (*CachedHandshakeStore)(nil)
)
