// Package gateway is the network edge of the presence server.
//
// It upgrades HTTP requests on /ws to websockets and runs one session per
// connection. A session's first frame must be a join carrying a spaceId and a
// signed token; the gateway verifies the token, resolves the room through the
// registry, and from then on pumps movement frames into the room. Everything
// the room broadcasts flows back out through the session's buffered write
// pump, which is the connection's only writer.
//
// Pre-join failures (bad token, unknown space, full space, duplicate user)
// send a single error frame and close the connection. Post-join, the
// connection dying for any reason funnels through one teardown path that
// leaves the room exactly once.
//
// /healthz and /stats are plain HTTP endpoints for probes and dashboards.
package gateway
