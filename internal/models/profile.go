package models

// Profile is a user's profile record, stored under listProfil/{id} for
// contact listings and under MyProfil/{id} for the owner's editor.
type Profile struct {
	// ID duplicates the record key.
	ID string `json:"id"`

	Nom           string `json:"nom"`
	Pseudo        string `json:"pseudo,omitempty"`
	Telephone     string `json:"telephone"`
	Adresse       string `json:"adresse,omitempty"`
	DateNaissance string `json:"dateNaissance,omitempty"`
	LieuNaissance string `json:"lieuNaissance,omitempty"`
	Emploi        string `json:"emploi,omitempty"`

	// ImageBase64 is a complete base64-encoded image without a data-URI
	// prefix. Empty when the user never attached a picture.
	ImageBase64 string `json:"imageBase64,omitempty"`

	// Email is copied from the authenticated session on save; it is never
	// user input.
	Email string `json:"email,omitempty"`

	// Image is an optional picture URI used by contact listings.
	Image string `json:"Image,omitempty"`
}

// DisplayTitle returns "nom pseudo" when both are set, or fallback otherwise.
func (p Profile) DisplayTitle(fallback string) string {
	if p.Nom != "" && p.Pseudo != "" {
		return p.Nom + " " + p.Pseudo
	}
	return fallback
}
