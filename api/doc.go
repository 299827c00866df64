// Package api provides the HTTP edge of the puzzle server.
//
// The api package implements:
//   - Puzzle endpoints for creating, joining, and mutating sessions
//   - Account endpoints for signup, login, and role lookup
//   - The event-bus WebSocket upgrade, authenticated by bearer token
//   - A QR code pointing phones at the server
//   - Prometheus metrics and a health probe
//   - Static file serving for the browser client
//
// Endpoints:
//
// Puzzle:
//   - POST /api/puzzle-api/play - Create a session from an image URL
//   - POST /api/puzzle-api/join - Attach to a running session
//   - POST /api/puzzle-api/swap     - Swap the pieces at two grid positions
//   - GET  /api/puzzle-api/qr       - PNG QR code of the public URL
//   - GET  /api/puzzle-api/sessions - List live sessions for monitoring
//
// Auth:
//   - POST /api/auth-api/login       - Exchange credentials for a token
//   - POST /api/auth-api/auth/signup - Create an account
//   - POST /api/auth-api/auth/role   - Role claim of a valid token (GET
//     also accepted)
//
// Infrastructure:
//   - GET /eventbus - WebSocket upgrade; requires token (header or query)
//   - GET /metrics  - Prometheus scrape endpoint
//   - GET /healthz  - Liveness probe
//
// Request/Response Format:
//
// All endpoints accept and return JSON. Play and join respond with the
// flat board shape the browser client renders from:
//
//	{
//	  "puzzleId": "1",
//	  "dimensionCols": 4,
//	  "position0": 7, "image0": "<base64 jpeg>",
//	  "position1": 2, "image1": "<base64 jpeg>",
//	  ...
//	  "onlineUsers": ["ann", "bob"],
//	  "end": false
//	}
//
// positionN is the current grid position of piece N; imageN is piece N's
// tile. onlineUsers never includes the caller.
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "error message"
//	}
package api
