package document

import "time"

// SigningFlow tags a document with one of the three mutually-exclusive
// signing workflows. The flow is fixed at creation and drives participant
// validation and post-send behavior.
type SigningFlow string

const (
	FlowStandard       SigningFlow = "standard"
	FlowEmbeddedSMS    SigningFlow = "embedded_sms"
	FlowSimplifiedAuth SigningFlow = "simplified_auth"
)

// Valid reports whether f is one of the known flow tags.
func (f SigningFlow) Valid() bool {
	switch f {
	case FlowStandard, FlowEmbeddedSMS, FlowSimplifiedAuth:
		return true
	}
	return false
}

// Participant is a signer entry on a document. Identity fields are
// flow-dependent: email for the standard flow, phone number for the
// embedded-SMS flow, neither for simplified-auth.
type Participant struct {
	RemoteID    string `json:"remoteId,omitempty" bson:"remoteId,omitempty"`
	Name        string `json:"name" bson:"name"`
	Email       string `json:"email,omitempty" bson:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty" bson:"phoneNumber,omitempty"`
	Order       int    `json:"order" bson:"order"`
}

// Document mirrors the remote signing envelope locally. ID doubles as the
// caller-generated idempotency key; RemoteID is absent until the first
// successful remote create and immutable afterwards.
type Document struct {
	ID            string        `json:"id" bson:"id"`
	RemoteID      string        `json:"remoteId,omitempty" bson:"remoteId,omitempty"`
	Title         string        `json:"title" bson:"title"`
	Note          string        `json:"note,omitempty" bson:"note,omitempty"`
	Status        Status        `json:"status" bson:"status"`
	Flow          SigningFlow   `json:"flow" bson:"flow"`
	Participants  []Participant `json:"participants,omitempty" bson:"participants,omitempty"`
	FileKeys      []string      `json:"fileKeys,omitempty" bson:"fileKeys,omitempty"`
	RemoteFileIDs []string      `json:"remoteFileIds,omitempty" bson:"remoteFileIds,omitempty"`
	// SentEmbedded marks documents dispatched through the embedded-SMS or
	// simplified-auth flows for case-list rendering.
	SentEmbedded bool      `json:"sentEmbedded" bson:"sentEmbedded"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}
