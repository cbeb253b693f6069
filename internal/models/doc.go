// Package models defines the records that live in the realtime tree and the
// accounts kept by the auth service.
//
// # Tree collections
//
// The tree holds one top-level collection per record type, each keyed by an
// opaque identifier:
//   - Groups: Group records keyed by a server-generated push key
//   - Users: UserEntry projections keyed by user ID
//   - listProfil: public Profile records shown in contact listings
//   - MyProfil: Profile records edited by their owners
//
// Records are stored as JSON objects whose field names match the JSON tags
// below. Field names are shared with existing mobile clients and must not be
// renamed.
//
// # Accounts
//
// User is not a tree record. It is persisted by the auth service and only its
// display name is projected into the Users collection at registration.
package models

// Collection names in the realtime tree.
const (
	CollectionGroups   = "Groups"
	CollectionUsers    = "Users"
	CollectionContacts = "listProfil"
	CollectionProfiles = "MyProfil"
)
