// Package api defines the wire messages of the groupchat Connect services.
//
// Messages travel as JSON through the codec registered by Codec; there is
// no generated code.
package api

import "encoding/json"

const (
	// TreeServiceName is the fully-qualified name of the tree service.
	TreeServiceName = "groupchat.v1.TreeService"
	// AuthServiceName is the fully-qualified name of the auth service.
	AuthServiceName = "groupchat.v1.AuthService"
)

// Child is one keyed record of a collection snapshot.
type Child struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// Snapshot is a complete copy of a collection, ordered by key.
type Snapshot struct {
	Collection string  `json:"collection"`
	Children   []Child `json:"children"`
}

type SubscribeRequest struct {
	Collection string `json:"collection"`
}

type NewKeyRequest struct {
	Collection string `json:"collection"`
}

type NewKeyResponse struct {
	Key string `json:"key"`
}

// SetRequest replaces the record at collection/key.
type SetRequest struct {
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Value      json.RawMessage `json:"value"`
}

type SetResponse struct{}

// UpdateRequest merges fields into the record at collection/key. A null
// field value removes the field.
type UpdateRequest struct {
	Collection string                     `json:"collection"`
	Key        string                     `json:"key"`
	Fields     map[string]json.RawMessage `json:"fields"`
}

type UpdateResponse struct{}

type GetRequest struct {
	Collection string `json:"collection"`
}

type GetResponse struct {
	Snapshot Snapshot `json:"snapshot"`
}

// User is the public view of an account.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	CreatedAt   int64  `json:"createdAt"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Telephone   string `json:"telephone,omitempty"`
}

type RegisterResponse struct {
	User      User   `json:"user"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User      User   `json:"user"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expiresAt"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type WhoAmIRequest struct{}

type WhoAmIResponse struct {
	User User `json:"user"`
}
