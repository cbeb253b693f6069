package screens

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"

	"github.com/mmynk/groupchat/internal/models"
	"github.com/mmynk/groupchat/internal/realtime"
)

// ContactPicker lists the other users' public profiles, lets the user pick
// several and creates a group with them.
type ContactPicker struct {
	screen
	deps      Deps
	currentID string

	contacts  []models.Profile
	selected  []string
	groupName string
}

// NewContactPicker creates the contact picker of currentID. Call Start to
// go live.
func NewContactPicker(deps Deps, currentID string) *ContactPicker {
	return &ContactPicker{
		screen:    newScreen(),
		deps:      deps,
		currentID: currentID,
	}
}

// Start subscribes to listProfil.
func (c *ContactPicker) Start(ctx context.Context) error {
	return c.subscribe(ctx, c.deps, map[string]func(realtime.Snapshot){
		models.CollectionContacts: c.applyContacts,
	})
}

func (c *ContactPicker) applyContacts(snap realtime.Snapshot) {
	c.contacts = otherProfiles(snap, c.currentID)

	// Drop selections whose contact is gone.
	kept := c.selected[:0]
	for _, id := range c.selected {
		if c.indexOf(id) >= 0 {
			kept = append(kept, id)
		}
	}
	c.selected = kept
}

// otherProfiles decodes the profiles of a snapshot, leaving out currentID
// and repeated ids. The first occurrence of an id wins.
func otherProfiles(snap realtime.Snapshot, currentID string) []models.Profile {
	profiles := make([]models.Profile, 0, len(snap.Children))
	seen := make(map[string]bool, len(snap.Children))
	for _, child := range snap.Children {
		var p models.Profile
		if err := child.Decode(&p); err != nil {
			slog.Debug("Skipping undecodable profile", "collection", snap.Collection, "key", child.Key, "error", err)
			continue
		}
		if p.ID == "" {
			p.ID = child.Key
		}
		if p.ID == currentID || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		profiles = append(profiles, p)
	}
	return profiles
}

// indexOf returns the position of id in contacts. Callers hold mu.
func (c *ContactPicker) indexOf(id string) int {
	return slices.IndexFunc(c.contacts, func(p models.Profile) bool { return p.ID == id })
}

// Contacts returns the listed profiles in key order.
func (c *ContactPicker) Contacts() []models.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.contacts)
}

// Toggle adds id to the selection, or removes it when already selected. It
// reports whether id is selected afterwards.
func (c *ContactPicker) Toggle(id string) (bool, error) {
	var selected bool
	var err error
	ran := c.live(func() {
		if i := slices.Index(c.selected, id); i >= 0 {
			c.selected = slices.Delete(c.selected, i, i+1)
			return
		}
		if c.indexOf(id) < 0 {
			err = fmt.Errorf("%w: %s", ErrUnknownContact, id)
			return
		}
		c.selected = append(c.selected, id)
		selected = true
	})
	if !ran {
		return false, ErrClosed
	}
	return selected, err
}

// IsSelected reports whether id is selected.
func (c *ContactPicker) IsSelected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Contains(c.selected, id)
}

// Selected returns the selected profiles in selection order.
func (c *ContactPicker) Selected() []models.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Profile, 0, len(c.selected))
	for _, id := range c.selected {
		if i := c.indexOf(id); i >= 0 {
			out = append(out, c.contacts[i])
		}
	}
	return out
}

// SetGroupName sets the name of the group to create.
func (c *ContactPicker) SetGroupName(name string) {
	c.live(func() { c.groupName = name })
}

// GroupName returns the pending group name.
func (c *ContactPicker) GroupName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.groupName
}

// CreateGroup writes a new group made of the current user followed by the
// selection, and returns its key. A blank name writes nothing. On success
// the name and the selection are cleared; on failure they are kept so the
// user can retry.
func (c *ContactPicker) CreateGroup(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return "", ErrClosed
	}
	name := strings.TrimSpace(c.groupName)
	selected := slices.Clone(c.selected)
	c.mu.Unlock()

	if name == "" {
		return "", ErrEmptyGroupName
	}

	key, err := c.deps.Store.NewKey(ctx, models.CollectionGroups)
	if err != nil {
		return "", c.groupFailed(fmt.Errorf("failed to reserve group key: %w", err))
	}

	group := models.NewGroup(key, name, c.currentID, selected)
	if err := c.deps.Store.Set(ctx, models.CollectionGroups, key, group); err != nil {
		return "", c.groupFailed(fmt.Errorf("failed to create group: %w", err))
	}
	slog.Info("Group created", "group_id", key, "members", len(group.Members))

	c.live(func() {
		c.groupName = ""
		c.selected = nil
	})
	return key, nil
}

func (c *ContactPicker) groupFailed(err error) error {
	slog.Error("Error creating group", "error", err)
	c.deps.notify("Group not created", err.Error())
	return err
}

// Chat hands off to a direct conversation with secondID.
func (c *ContactPicker) Chat(secondID, nom string) error {
	if strings.TrimSpace(secondID) == "" || strings.TrimSpace(nom) == "" {
		slog.Error("Chat target is missing", "second_id", secondID, "nom", nom)
		return fmt.Errorf("%w: second id %q, nom %q", ErrMissingRouteParam, secondID, nom)
	}
	if c.Closed() {
		return ErrClosed
	}
	slog.Info("Navigating to chat", "current_id", c.currentID, "second_id", secondID)
	c.deps.navigate(DirectChatRoute{CurrentID: c.currentID, SecondID: secondID, Nom: nom})
	return nil
}

// Call dials the contact's telephone number.
func (c *ContactPicker) Call(ctx context.Context, id string) error {
	return c.launch(ctx, id, "tel")
}

// SMS opens a text message to the contact's telephone number.
func (c *ContactPicker) SMS(ctx context.Context, id string) error {
	return c.launch(ctx, id, "sms")
}

// launch opens scheme:telephone in the background. Launch failures are
// only logged.
func (c *ContactPicker) launch(ctx context.Context, id, scheme string) error {
	c.mu.Lock()
	i := c.indexOf(id)
	var telephone string
	if i >= 0 {
		telephone = strings.TrimSpace(c.contacts[i].Telephone)
	}
	c.mu.Unlock()

	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownContact, id)
	}
	if telephone == "" {
		return fmt.Errorf("contact %s has no telephone number", id)
	}
	if c.deps.Launcher == nil {
		return fmt.Errorf("no launcher for %s: URIs", scheme)
	}

	uri := scheme + ":" + url.PathEscape(telephone)
	go func() {
		if err := c.deps.Launcher.Open(context.WithoutCancel(ctx), uri); err != nil {
			slog.Warn("Failed to open URI", "uri", uri, "error", err)
		}
	}()
	return nil
}
