package models

import "slices"

// Group is a chat group stored under Groups/{id}.
// Membership is fixed at creation: the creator first, then the invited
// contacts in the order they were selected.
type Group struct {
	// ID duplicates the record key.
	ID string `json:"id"`

	// Name is the display name chosen at creation.
	Name string `json:"name"`

	// Members lists user IDs. The first entry is always the creator.
	Members []string `json:"members"`
}

// HasMember reports whether userID belongs to the group.
func (g Group) HasMember(userID string) bool {
	return slices.Contains(g.Members, userID)
}

// NewGroup builds a group record for a creator and the selected member IDs.
// The creator is always the first member; selected IDs equal to the creator
// are not repeated.
func NewGroup(id, name, creatorID string, selected []string) Group {
	members := make([]string, 0, len(selected)+1)
	members = append(members, creatorID)
	for _, m := range selected {
		if m != creatorID {
			members = append(members, m)
		}
	}
	return Group{ID: id, Name: name, Members: members}
}
