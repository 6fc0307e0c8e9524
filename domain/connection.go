package domain

// ConnectionID identifies one live duplex channel (one tab or device).
// Ephemeral by design: it carries no business state, only the registry
// indexes it, and it dies with the transport session.
type ConnectionID string
