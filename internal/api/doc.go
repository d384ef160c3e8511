// Package api provides the local, read-only status API of a door endpoint.
//
// Routes:
//
//	GET /api/v1/health   infrastructure health checks
//	GET /api/v1/status   cycle state, strike state, counters, last outcome
//	GET /api/v1/journal  recent access journal entries
//	GET /api/v1/ws       live outcome stream (WebSocket, server push)
//	GET /metrics         Prometheus exposition
//
// There is deliberately no endpoint that can release the strike.
//
// The server follows the same lifecycle pattern as other components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
