package engagement

import (
	"context"
	"errors"
)

// ─── Sentinel errors ─────────────────────────────────────────────────────────

// ErrNotFound is returned when a record is missing or does not belong to the
// calling user.
var ErrNotFound = errors.New("record not found")

// ErrRoomExists is returned by InsertRoom when the uniqueness constraint on
// the room key fired: a concurrent caller created the row first. It never
// escapes GetOrCreateRoom.
var ErrRoomExists = errors.New("conversation room already exists")

// ErrUnavailable wraps transient store I/O failures. Callers may retry; the
// workflow is safe to re-enter because every required step is idempotent.
var ErrUnavailable = errors.New("store unavailable")

// ValidationError wraps a user-facing validation message.
type ValidationError struct{ Msg string }

func (e *ValidationError) Error() string { return e.Msg }

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the persistence boundary of the workflow. It is injected into the
// Service so the workflow can be exercised without a live database.
type Store interface {
	// GetEngagement returns the engagement by id, or ErrNotFound.
	GetEngagement(ctx context.Context, id string) (*Engagement, error)

	// TransitionStatus atomically moves the engagement owned by studentID to
	// the target status, but only while the current status is in allowedFrom.
	// It is a single conditional update: two concurrent callers cannot both
	// win. Returns the (possibly unchanged) record and whether this call
	// performed the write. ErrNotFound when the id does not exist or belongs
	// to another candidate.
	TransitionStatus(ctx context.Context, id, studentID string, allowedFrom []Status, to Status) (*Engagement, bool, error)

	// CreateOffer inserts a new offer at SENT status.
	CreateOffer(ctx context.Context, companyID, studentID string, jobID *string) (*Engagement, error)

	// CreateApplication inserts an application at APPLIED status for the
	// given posting, resolving the posting's company. The insert is
	// idempotent on (student, posting): a repeated call returns the existing
	// record with created=false. ErrNotFound when the posting is missing.
	CreateApplication(ctx context.Context, studentID, jobID string) (*Engagement, bool, error)

	// ListEngagements returns all engagements the user participates in,
	// newest first.
	ListEngagements(ctx context.Context, userID string) ([]Engagement, error)

	// FindRoom returns the room for key, or ErrNotFound when absent.
	FindRoom(ctx context.Context, key RoomKey) (*Room, error)

	// InsertRoom creates the room for key, relying on the store-level
	// uniqueness constraint over the key fields. ErrRoomExists on conflict.
	InsertRoom(ctx context.Context, key RoomKey, jobID *string) (*Room, error)

	// InsertSystemMessage inserts a message unless one with the same
	// dedupKey already exists, in which case the existing message is
	// returned with inserted=false.
	InsertSystemMessage(ctx context.Context, roomID, senderID, content, dedupKey string) (*Message, bool, error)

	// ListRoomMessages returns a room's timeline, oldest first.
	ListRoomMessages(ctx context.Context, roomID string) ([]Message, error)
}
