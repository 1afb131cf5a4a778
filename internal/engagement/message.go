package engagement

import "fmt"

// AnnouncementKind selects the fixed system-message template posted into a
// room when an engagement is accepted.
type AnnouncementKind string

const (
	AnnouncementOfferAccepted AnnouncementKind = "OFFER_ACCEPTED"
	AnnouncementApplied       AnnouncementKind = "APPLICATION_SUBMITTED"
)

// announcementContent renders the one-line system message for kind.
func announcementContent(kind AnnouncementKind) string {
	switch kind {
	case AnnouncementApplied:
		return "The candidate applied to this posting. The conversation is now open."
	default:
		return "The candidate accepted the offer. The conversation is now open."
	}
}

// announcementDedupKey derives the deterministic key that makes the insert
// idempotent: retried workflow runs for the same engagement map to the same
// key and hit the store's insert-if-absent path instead of double-posting.
func announcementDedupKey(roomID string, kind AnnouncementKind, engagementID string) string {
	return fmt.Sprintf("%s:%s:%s", roomID, kind, engagementID)
}
