package engagement_test

// Test doubles for the workflow tests: an in-memory Store whose methods are
// atomic under a mutex (mirroring the conditional-update guarantees of the
// real store) and a recording notification dispatcher.

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"scoutlink/engagement-service/internal/engagement"
	"scoutlink/engagement-service/internal/notify"
)

// ── memStore ───────────────────────────────────────────────────────────────

type memStore struct {
	mu          sync.Mutex
	seq         int
	engagements map[string]*engagement.Engagement
	postings    map[string]string // jobID → companyID
	rooms       map[engagement.RoomKey]*engagement.Room
	messages    map[string]*engagement.Message // by dedup key
	msgOrder    []string

	failInsertMessage bool // simulate the message table being down
}

func newMemStore() *memStore {
	return &memStore{
		engagements: make(map[string]*engagement.Engagement),
		postings:    make(map[string]string),
		rooms:       make(map[engagement.RoomKey]*engagement.Room),
		messages:    make(map[string]*engagement.Message),
	}
}

func (m *memStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

// addOffer seeds an offer at SENT status and returns its id.
func (m *memStore) addOffer(companyID, studentID string, jobID *string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID("eng")
	m.engagements[id] = &engagement.Engagement{
		ID:        id,
		CompanyID: companyID,
		StudentID: studentID,
		JobID:     jobID,
		Kind:      engagement.KindOffer,
		Status:    engagement.StatusSent,
		CreatedAt: time.Now(),
	}
	return id
}

// addPosting seeds a job posting owned by companyID.
func (m *memStore) addPosting(jobID, companyID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postings[jobID] = companyID
}

func (m *memStore) roomCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

func (m *memStore) messageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func copyEngagement(rec *engagement.Engagement) *engagement.Engagement {
	cp := *rec
	return &cp
}

func (m *memStore) GetEngagement(ctx context.Context, id string) (*engagement.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.engagements[id]
	if !ok {
		return nil, engagement.ErrNotFound
	}
	return copyEngagement(rec), nil
}

func (m *memStore) TransitionStatus(ctx context.Context, id, studentID string, allowedFrom []engagement.Status, to engagement.Status) (*engagement.Engagement, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.engagements[id]
	if !ok || rec.StudentID != studentID {
		return nil, false, engagement.ErrNotFound
	}

	for _, from := range allowedFrom {
		if rec.Status == from {
			now := time.Now()
			rec.Status = to
			switch to {
			case engagement.StatusAccepted:
				rec.AcceptedAt = &now
			case engagement.StatusDeclined:
				rec.DeclinedAt = &now
			}
			return copyEngagement(rec), true, nil
		}
	}
	return copyEngagement(rec), false, nil
}

func (m *memStore) CreateOffer(ctx context.Context, companyID, studentID string, jobID *string) (*engagement.Engagement, error) {
	id := m.addOffer(companyID, studentID, jobID)
	return m.GetEngagement(ctx, id)
}

func (m *memStore) CreateApplication(ctx context.Context, studentID, jobID string) (*engagement.Engagement, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, rec := range m.engagements {
		if rec.Kind == engagement.KindApplication && rec.StudentID == studentID &&
			rec.JobID != nil && *rec.JobID == jobID {
			return copyEngagement(rec), false, nil
		}
	}

	companyID, ok := m.postings[jobID]
	if !ok {
		return nil, false, engagement.ErrNotFound
	}

	now := time.Now()
	id := m.nextID("eng")
	job := jobID
	rec := &engagement.Engagement{
		ID:         id,
		CompanyID:  companyID,
		StudentID:  studentID,
		JobID:      &job,
		Kind:       engagement.KindApplication,
		Status:     engagement.StatusApplied,
		CreatedAt:  now,
		AcceptedAt: &now,
	}
	m.engagements[id] = rec
	return copyEngagement(rec), true, nil
}

func (m *memStore) ListEngagements(ctx context.Context, userID string) ([]engagement.Engagement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]engagement.Engagement, 0)
	for _, rec := range m.engagements {
		if rec.CompanyID == userID || rec.StudentID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (m *memStore) FindRoom(ctx context.Context, key engagement.RoomKey) (*engagement.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[key]
	if !ok {
		return nil, engagement.ErrNotFound
	}
	cp := *room
	return &cp, nil
}

func (m *memStore) InsertRoom(ctx context.Context, key engagement.RoomKey, jobID *string) (*engagement.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[key]; ok {
		return nil, engagement.ErrRoomExists
	}
	room := &engagement.Room{
		ID:        m.nextID("room"),
		CompanyID: key.CompanyID,
		StudentID: key.StudentID,
		JobID:     jobID,
		CreatedAt: time.Now(),
	}
	m.rooms[key] = room
	cp := *room
	return &cp, nil
}

func (m *memStore) InsertSystemMessage(ctx context.Context, roomID, senderID, content, dedupKey string) (*engagement.Message, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertMessage {
		return nil, false, errors.New("messages table unavailable")
	}
	if msg, ok := m.messages[dedupKey]; ok {
		cp := *msg
		return &cp, false, nil
	}
	msg := &engagement.Message{
		ID:        m.nextID("msg"),
		RoomID:    roomID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now(),
	}
	m.messages[dedupKey] = msg
	m.msgOrder = append(m.msgOrder, dedupKey)
	cp := *msg
	return &cp, true, nil
}

func (m *memStore) ListRoomMessages(ctx context.Context, roomID string) ([]engagement.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]engagement.Message, 0)
	for _, key := range m.msgOrder {
		if msg := m.messages[key]; msg.RoomID == roomID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

// ── recordingDispatcher ────────────────────────────────────────────────────

type recordingDispatcher struct {
	mu   sync.Mutex
	jobs []notify.Job
	fail bool
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, job notify.Job) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail {
		return errors.New("mail relay down")
	}
	d.jobs = append(d.jobs, job)
	return nil
}

func (d *recordingDispatcher) dispatched() []notify.Job {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]notify.Job, len(d.jobs))
	copy(out, d.jobs)
	return out
}
