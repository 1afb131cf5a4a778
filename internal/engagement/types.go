package engagement

import "time"

// Kind distinguishes how an engagement came to exist.
type Kind string

const (
	KindOffer       Kind = "offer"       // company scouted the candidate
	KindApplication Kind = "application" // candidate applied to a posting
)

// Engagement is an offer sent by a company or an application submitted by a
// candidate. All fields are validated once at the store boundary.
type Engagement struct {
	ID         string     `json:"id"`
	CompanyID  string     `json:"companyId"`
	StudentID  string     `json:"studentId"`
	JobID      *string    `json:"jobId"` // nil for offers not tied to a posting
	Kind       Kind       `json:"kind"`
	Status     Status     `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	AcceptedAt *time.Time `json:"acceptedAt"`
	DeclinedAt *time.Time `json:"declinedAt"`
}

// RoomKey identifies the single conversation room shared by a company and a
// candidate. The key is the pair only: a job a room was opened for is kept as
// an attribute of the room, never as part of its identity.
type RoomKey struct {
	CompanyID string
	StudentID string
}

// Room is the persisted channel between the two parties of a RoomKey.
type Room struct {
	ID        string    `json:"id"`
	CompanyID string    `json:"companyId"`
	StudentID string    `json:"studentId"`
	JobID     *string   `json:"jobId"` // posting the room was first opened for, if any
	CreatedAt time.Time `json:"createdAt"`
}

// Message is an entry in a room's timeline.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}
