package models

// Session identifies the signed-in user on a client.
type Session struct {
	UserID string
	Email  string
}
