package screens

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/mmynk/groupchat/internal/device"
	"github.com/mmynk/groupchat/internal/models"
	"github.com/mmynk/groupchat/internal/realtime"
)

// Field is an editable profile field.
type Field int

const (
	FieldNom Field = iota
	FieldPseudo
	FieldTelephone
	FieldAdresse
	FieldDateNaissance
	FieldLieuNaissance
	FieldEmploi
)

// Fields lists the editable fields in form order. All are required.
var Fields = []Field{
	FieldNom,
	FieldPseudo,
	FieldTelephone,
	FieldAdresse,
	FieldDateNaissance,
	FieldLieuNaissance,
	FieldEmploi,
}

var fieldNames = [...]string{
	FieldNom:           "nom",
	FieldPseudo:        "pseudo",
	FieldTelephone:     "telephone",
	FieldAdresse:       "adresse",
	FieldDateNaissance: "dateNaissance",
	FieldLieuNaissance: "lieuNaissance",
	FieldEmploi:        "emploi",
}

// String returns the record field name.
func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return fmt.Sprintf("Field(%d)", int(f))
	}
	return fieldNames[f]
}

func (f Field) get(p *models.Profile) *string {
	switch f {
	case FieldNom:
		return &p.Nom
	case FieldPseudo:
		return &p.Pseudo
	case FieldTelephone:
		return &p.Telephone
	case FieldAdresse:
		return &p.Adresse
	case FieldDateNaissance:
		return &p.DateNaissance
	case FieldLieuNaissance:
		return &p.LieuNaissance
	case FieldEmploi:
		return &p.Emploi
	}
	return nil
}

// ImageState describes which picture the editor would save.
type ImageState int

const (
	// ImageNone means no picture is stored or picked.
	ImageNone ImageState = iota
	// ImageStored means the stored picture is kept.
	ImageStored
	// ImagePicked means a newly picked picture replaces the stored one.
	ImagePicked
)

const defaultProfileTitle = "My profile"

// ProfileEditor edits the current user's own profile and lists the other
// profiles of MyProfil.
//
// The form is filled from the stored record until the user edits a field;
// after that snapshots no longer overwrite the form. The stored image is
// always tracked so that saving without a new picture keeps it.
type ProfileEditor struct {
	screen
	deps      Deps
	currentID string

	form        models.Profile
	touched     bool
	storedImage string
	pickedRef   string
	others      []models.Profile
}

// NewProfileEditor creates the profile editor of currentID. Call Start to
// go live.
func NewProfileEditor(deps Deps, currentID string) *ProfileEditor {
	return &ProfileEditor{
		screen:    newScreen(),
		deps:      deps,
		currentID: currentID,
	}
}

// Start subscribes to MyProfil.
func (p *ProfileEditor) Start(ctx context.Context) error {
	return p.subscribe(ctx, p.deps, map[string]func(realtime.Snapshot){
		models.CollectionProfiles: p.applyProfiles,
	})
}

func (p *ProfileEditor) applyProfiles(snap realtime.Snapshot) {
	p.others = otherProfiles(snap, p.currentID)

	own, ok := snap.Child(p.currentID)
	if !ok {
		return
	}
	var stored models.Profile
	if err := own.Decode(&stored); err != nil {
		slog.Debug("Skipping undecodable own profile", "key", own.Key, "error", err)
		return
	}
	p.storedImage = stored.ImageBase64
	if !p.touched {
		for _, f := range Fields {
			*f.get(&p.form) = *f.get(&stored)
		}
	}
}

// Others returns the profiles of MyProfil other than the current user's.
func (p *ProfileEditor) Others() []models.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.others)
}

// SetField edits one form field.
func (p *ProfileEditor) SetField(f Field, value string) {
	p.live(func() {
		if ptr := f.get(&p.form); ptr != nil {
			*ptr = value
			p.touched = true
		}
	})
}

// Field returns the current value of one form field.
func (p *ProfileEditor) Field(f Field) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if ptr := f.get(&p.form); ptr != nil {
		return *ptr
	}
	return ""
}

// Form returns the seven form fields.
func (p *ProfileEditor) Form() models.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.form
}

// Title is "nom pseudo" once both are filled in.
func (p *ProfileEditor) Title() string {
	return p.Form().DisplayTitle(defaultProfileTitle)
}

// Image reports which picture a save would write, and the picked reference
// when there is one.
func (p *ProfileEditor) Image() (ImageState, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.pickedRef != "":
		return ImagePicked, p.pickedRef
	case p.storedImage != "":
		return ImageStored, ""
	}
	return ImageNone, ""
}

// PickImage asks the picker for an image. Cancelling leaves the current
// choice unchanged.
func (p *ProfileEditor) PickImage(ctx context.Context) error {
	if p.deps.Picker == nil {
		return errors.New("no image picker available")
	}
	ref, err := p.deps.Picker.PickImage(ctx)
	if errors.Is(err, device.ErrPickCanceled) {
		return nil
	}
	if err != nil {
		p.deps.notify("Image", "Could not pick an image: "+err.Error())
		return fmt.Errorf("failed to pick image: %w", err)
	}
	return p.AttachImage(ref)
}

// AttachImage selects a local resource reference to upload on the next save.
func (p *ProfileEditor) AttachImage(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return errors.New("empty image reference")
	}
	if !p.live(func() { p.pickedRef = ref }) {
		return ErrClosed
	}
	return nil
}

// Save merges the form, the image and the session email into
// MyProfil/{currentID}. Every required field must be filled in. A picked
// image is encoded first and replaces the stored one; without one the
// stored image is left untouched.
func (p *ProfileEditor) Save(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	form := p.form
	pickedRef := p.pickedRef
	p.mu.Unlock()

	var missing []string
	for _, f := range Fields {
		v := f.get(&form)
		*v = strings.TrimSpace(*v)
		if *v == "" {
			missing = append(missing, f.String())
		}
	}
	if len(missing) > 0 {
		err := &ValidationError{Missing: missing}
		p.deps.notify("Profile", "Please fill in all fields")
		return err
	}

	var session models.Session
	ok := false
	if p.deps.Session != nil {
		session, ok = p.deps.Session.CurrentSession()
	}
	if !ok {
		p.deps.notify("Profile", "You are not signed in")
		return ErrNotSignedIn
	}

	fields := map[string]any{"id": p.currentID, "email": session.Email}
	for _, f := range Fields {
		fields[f.String()] = *f.get(&form)
	}

	var encoded string
	if pickedRef != "" {
		if p.deps.Encoder == nil {
			return errors.New("no image encoder available")
		}
		var err error
		encoded, err = p.deps.Encoder.Encode(ctx, pickedRef)
		if err != nil {
			slog.Error("Image conversion failed", "ref", pickedRef, "error", err)
			p.deps.notify("Profile", "Image conversion failed: "+err.Error())
			return fmt.Errorf("failed to encode image: %w", err)
		}
		fields["imageBase64"] = encoded
	}

	if err := p.deps.Store.Update(ctx, models.CollectionProfiles, p.currentID, fields); err != nil {
		slog.Error("Profile update failed", "user_id", p.currentID, "error", err)
		p.deps.notify("Profile", "Profile update failed: "+err.Error())
		return fmt.Errorf("failed to update profile: %w", err)
	}

	slog.Info("Profile updated", "user_id", p.currentID, "new_image", pickedRef != "")
	p.deps.notify("Profile", "Profile updated")
	p.live(func() {
		if pickedRef != "" && p.pickedRef == pickedRef {
			p.pickedRef = ""
			p.storedImage = encoded
		}
	})
	return nil
}

// SignOut ends the session and hands off to the auth screen. On failure the
// user stays here.
func (p *ProfileEditor) SignOut(ctx context.Context) error {
	if p.deps.Session == nil {
		return ErrNotSignedIn
	}
	if err := p.deps.Session.SignOut(ctx); err != nil {
		slog.Error("Sign-out failed", "error", err)
		p.deps.notify("Sign out", "Sign-out failed: "+err.Error())
		return fmt.Errorf("failed to sign out: %w", err)
	}
	if p.Closed() {
		return nil
	}
	p.deps.navigate(AuthRoute{})
	return nil
}
