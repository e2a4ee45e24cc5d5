package caller

import (
	"time"

	"github.com/google/uuid"
)

// Caller represents a known phone/web caller profile.
// Phone numbers are stored encrypted (AES-GCM); the domain carries the
// ciphertext plus a deterministic hash used for lookups.
type Caller struct {
	ID uuid.UUID `db:"id"`

	// PhoneHash is the SHA-256 hex of the normalized E.164 number,
	// used as the lookup key so the plaintext never hits an index.
	PhoneHash string `db:"phone_hash"`

	// PhoneEncrypted is the AES-256-GCM ciphertext of the number.
	PhoneEncrypted []byte `db:"phone_encrypted"`

	DisplayName string `db:"display_name"`
	Locale      string `db:"locale"`

	// ConversationCount mirrors the Redis greeting counter at last
	// profile sync; the counter itself is authoritative.
	ConversationCount int64 `db:"conversation_count"`

	CreatedAt  time.Time `db:"created_at"`
	LastSeenAt time.Time `db:"last_seen_at"`
}

// Details is the subset of the profile exposed to the model via the
// get_user_details tool. No ciphertext, no hash.
type Details struct {
	DisplayName       string `json:"display_name"`
	Locale            string `json:"locale"`
	ConversationCount int64  `json:"conversation_count"`
	KnownSince        string `json:"known_since"`
}

// Details projects the model-visible profile fields
func (c *Caller) Details() Details {
	return Details{
		DisplayName:       c.DisplayName,
		Locale:            c.Locale,
		ConversationCount: c.ConversationCount,
		KnownSince:        c.CreatedAt.Format("2006-01-02"),
	}
}
