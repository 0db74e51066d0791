package domain

// Profile is the display data for the other side of a conversation.
// It belongs to the profile domain; this engine only reads it to
// annotate conversation views.
type Profile struct {
	ParticipantID string `db:"participant_id" json:"participant_id"`
	DisplayName   string `db:"display_name" json:"display_name"`
	AvatarURL     string `db:"avatar_url" json:"avatar_url"`
}
