package screens

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mmynk/groupchat/internal/models"
	"github.com/mmynk/groupchat/internal/realtime"
)

// GroupEntry is one row of the group list.
type GroupEntry struct {
	ID          string
	Name        string
	MemberCount int
	MemberNames []string
}

// groupRecord is the lenient decoding of a Groups child. Members stays raw
// so non-array values can be told apart from missing ones.
type groupRecord struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Nom     string          `json:"nom"`
	Members json.RawMessage `json:"members"`
}

// GroupList shows the groups the current user belongs to.
type GroupList struct {
	screen
	deps      Deps
	currentID string

	groups []realtime.Child
	users  []models.UserEntry
	names  map[string]string
	rows   []GroupEntry
}

// NewGroupList creates the group list of currentID. Call Start to go live.
func NewGroupList(deps Deps, currentID string) *GroupList {
	return &GroupList{
		screen:    newScreen(),
		deps:      deps,
		currentID: currentID,
		names:     make(map[string]string),
	}
}

// Start subscribes to Groups and Users.
func (g *GroupList) Start(ctx context.Context) error {
	return g.subscribe(ctx, g.deps, map[string]func(realtime.Snapshot){
		models.CollectionGroups: g.applyGroups,
		models.CollectionUsers:  g.applyUsers,
	})
}

func (g *GroupList) applyGroups(snap realtime.Snapshot) {
	g.groups = snap.Children
	g.rebuild()
}

func (g *GroupList) applyUsers(snap realtime.Snapshot) {
	users := make([]models.UserEntry, 0, len(snap.Children))
	names := make(map[string]string, len(snap.Children))
	for _, c := range snap.Children {
		var entry models.UserEntry
		if err := c.Decode(&entry); err != nil {
			slog.Debug("Skipping undecodable user", "key", c.Key, "error", err)
			continue
		}
		entry.ID = c.Key
		users = append(users, entry)
		names[c.Key] = entry.Nom
	}
	g.users = users
	g.names = names
	g.rebuild()
}

// rebuild recomputes the rows from the latest snapshots. Callers hold mu.
func (g *GroupList) rebuild() {
	rows := make([]GroupEntry, 0, len(g.rows))
	for _, c := range g.groups {
		var rec groupRecord
		if err := c.Decode(&rec); err != nil {
			slog.Debug("Skipping undecodable group", "key", c.Key, "error", err)
			continue
		}
		members, ok := memberIDs(rec.Members)
		if !ok {
			continue
		}
		group := models.Group{ID: rec.ID, Name: rec.Name, Members: members}
		if !group.HasMember(g.currentID) {
			continue
		}
		if group.ID == "" {
			group.ID = c.Key
		}
		if group.Name == "" {
			group.Name = rec.Nom
		}

		names := make([]string, len(group.Members))
		for i, m := range group.Members {
			if nom := g.names[m]; nom != "" {
				names[i] = nom
			} else {
				names[i] = m
			}
		}

		rows = append(rows, GroupEntry{
			ID:          group.ID,
			Name:        group.Name,
			MemberCount: len(group.Members),
			MemberNames: names,
		})
	}
	g.rows = rows
}

// memberIDs decodes a members value. It reports false unless the value is
// a JSON array; non-string elements are dropped.
func memberIDs(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var values []any
	if err := json.Unmarshal(raw, &values); err != nil || values == nil {
		return nil, false
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids, true
}

// Groups returns the groups the current user belongs to, in key order.
func (g *GroupList) Groups() []GroupEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]GroupEntry, len(g.rows))
	copy(out, g.rows)
	return out
}

// Users returns the latest Users projection.
func (g *GroupList) Users() []models.UserEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.UserEntry, len(g.users))
	copy(out, g.users)
	return out
}

// Open hands off to the group chat. Both groupID and groupName are required.
func (g *GroupList) Open(groupID, groupName string) error {
	if strings.TrimSpace(groupID) == "" || strings.TrimSpace(groupName) == "" {
		err := fmt.Errorf("%w: group id %q, group name %q", ErrMissingRouteParam, groupID, groupName)
		slog.Error("Group ID or group name is missing", "group_id", groupID, "group_name", groupName)
		return err
	}
	if g.Closed() {
		return ErrClosed
	}
	g.deps.navigate(GroupChatRoute{GroupID: groupID, GroupName: groupName, CurrentID: g.currentID})
	return nil
}
