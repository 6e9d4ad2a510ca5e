package session

// Record is the server-side state for one bearer token. Timestamps are unix
// seconds; the token itself is never part of the record.
type Record struct {
	UserID   string
	Username string

	CreatedAt int64
	ExpiresAt int64
}
