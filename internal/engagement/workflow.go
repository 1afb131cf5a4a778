package engagement

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"scoutlink/engagement-service/internal/notify"
)

// ─── Service ─────────────────────────────────────────────────────────────────

// Service sequences the acceptance workflow. All collaborators are injected:
// the Service holds no global state and is safe under concurrent invocations.
type Service struct {
	store            Store
	dispatcher       notify.Dispatcher
	monitoringUserID string
}

// NewService returns a configured Service.
func NewService(store Store, dispatcher notify.Dispatcher, monitoringUserID string) *Service {
	return &Service{store: store, dispatcher: dispatcher, monitoringUserID: monitoringUserID}
}

// ─── Workflow entry points ───────────────────────────────────────────────────

// AcceptOffer runs the acceptance workflow for an offer:
//
//	status SENT → ACCEPTED, then get-or-create the conversation room,
//	then a best-effort announcement message and notifications.
//
// The first two steps are required and abort on failure; the rest never do.
// The call is safe to repeat: a retried accept finds the status already
// ACCEPTED, skips the write, and still resolves the shared room id.
func (s *Service) AcceptOffer(ctx context.Context, studentID, engagementID string) (roomID string, err error) {
	rec, applied, err := s.store.TransitionStatus(ctx, engagementID, studentID, TransitionSources(StatusAccepted), StatusAccepted)
	if err != nil {
		return "", err
	}
	if !applied && !IsAccepted(rec.Status) {
		return "", &ValidationError{Msg: fmt.Sprintf("offer is %s and can no longer be accepted", rec.Status)}
	}

	room, err := GetOrCreateRoom(ctx, s.store, RoomKey{CompanyID: rec.CompanyID, StudentID: rec.StudentID}, rec.JobID)
	if err != nil {
		return "", err
	}

	s.postAnnouncement(ctx, room, rec, AnnouncementOfferAccepted)
	if applied {
		s.notifyParties(ctx, rec, room)
	}

	return room.ID, nil
}

// DeclineOffer moves an offer SENT → DECLINED. No room is provisioned: a
// declined offer never opens a conversation. Declining twice is a no-op.
func (s *Service) DeclineOffer(ctx context.Context, studentID, engagementID string) error {
	rec, applied, err := s.store.TransitionStatus(ctx, engagementID, studentID, TransitionSources(StatusDeclined), StatusDeclined)
	if err != nil {
		return err
	}
	if !applied && rec.Status != StatusDeclined {
		return &ValidationError{Msg: fmt.Sprintf("offer is %s and can no longer be declined", rec.Status)}
	}
	return nil
}

// ApplyToJob creates an application for a posting and runs the same workflow
// tail as AcceptOffer. An application is accepted the moment it exists, so
// there is no separate transition step; the idempotent insert plays the role
// the Guard plays for offers.
func (s *Service) ApplyToJob(ctx context.Context, studentID, jobID string) (roomID string, err error) {
	rec, created, err := s.store.CreateApplication(ctx, studentID, jobID)
	if err != nil {
		return "", err
	}

	room, err := GetOrCreateRoom(ctx, s.store, RoomKey{CompanyID: rec.CompanyID, StudentID: rec.StudentID}, rec.JobID)
	if err != nil {
		return "", err
	}

	s.postAnnouncement(ctx, room, rec, AnnouncementApplied)
	if created {
		s.notifyParties(ctx, rec, room)
	}

	return room.ID, nil
}

// CreateOffer inserts a new offer at SENT status on behalf of a company.
func (s *Service) CreateOffer(ctx context.Context, companyID, studentID string, jobID *string) (*Engagement, error) {
	if studentID == "" {
		return nil, &ValidationError{Msg: "studentId is required"}
	}
	return s.store.CreateOffer(ctx, companyID, studentID, jobID)
}

// ListEngagements returns all engagements the user participates in.
func (s *Service) ListEngagements(ctx context.Context, userID string) ([]Engagement, error) {
	return s.store.ListEngagements(ctx, userID)
}

// RoomMessages returns a room's timeline, oldest first.
func (s *Service) RoomMessages(ctx context.Context, roomID string) ([]Message, error) {
	return s.store.ListRoomMessages(ctx, roomID)
}

// ─── Best-effort steps ───────────────────────────────────────────────────────

// postAnnouncement inserts the one-line system message authored by the
// candidate. The dedup key makes it at-most-once per engagement; a failure is
// an acceptable degraded outcome and never taints the workflow.
func (s *Service) postAnnouncement(ctx context.Context, room *Room, rec *Engagement, kind AnnouncementKind) {
	content := announcementContent(kind)
	dedupKey := announcementDedupKey(room.ID, kind, rec.ID)
	if _, _, err := s.store.InsertSystemMessage(ctx, room.ID, rec.StudentID, content, dedupKey); err != nil {
		slog.Warn("post announcement failed", "roomId", room.ID, "engagementId", rec.ID, "err", err)
	}
}

// notifyParties dispatches to the counterparty and the monitoring recipient.
// The two dispatches are independent: one failing must not suppress the
// other, and neither can fail the workflow. Only runs after the status write
// and the room are committed, since the payload carries the room id.
func (s *Service) notifyParties(ctx context.Context, rec *Engagement, room *Room) {
	payload, _ := json.Marshal(map[string]any{
		"engagementId": rec.ID,
		"roomId":       room.ID,
		"jobId":        rec.JobID,
	})

	templateType := "ENGAGEMENT_ACCEPTED"
	if rec.Kind == KindApplication {
		templateType = "APPLICATION_RECEIVED"
	}

	for _, recipient := range []string{rec.CompanyID, s.monitoringUserID} {
		job := notify.Job{
			RecipientUserID: recipient,
			TemplateType:    templateType,
			RelatedID:       rec.ID,
			Payload:         payload,
		}
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			slog.Warn("notification dispatch failed", "recipient", recipient, "engagementId", rec.ID, "err", err)
		}
	}
}
