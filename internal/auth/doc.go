// Package auth verifies the bearer tokens presented during the join
// handshake.
//
// The gateway depends only on the TokenVerifier interface; JWTVerifier is the
// production implementation, validating HS256 tokens whose "userId" claim
// identifies the user. Generate exists for tooling (presence-admin mints
// tokens after checking catalog credentials) and for tests.
package auth
