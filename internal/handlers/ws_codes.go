package handlers

// Custom WebSocket close codes used by the queue, room, and match handlers.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided auth token was invalid or expired.
	InvalidMatchIDError   = 3002 // Target match ID in the WS URL does not exist or is invalid.
	NotParticipantError   = 3003 // Authenticated user is not a participant of the match.
)
