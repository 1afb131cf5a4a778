// Package postgres implements the engagement store and the notification
// outbox on pgx.
//
// Idempotence leans on three constraints in the schema:
//
//	engagements            UNIQUE (student_id, job_id) WHERE kind = 'application'
//	conversation_rooms     UNIQUE (company_id, student_id)
//	conversation_messages  UNIQUE (dedup_key)
//
// Every insert that can race targets its constraint with ON CONFLICT DO
// NOTHING, so concurrent writers converge on a single row instead of erroring.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"scoutlink/engagement-service/internal/engagement"
	"scoutlink/engagement-service/internal/notify"
)

// Store implements engagement.Store and notify.Outbox over a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a configured Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// unavailable tags transient I/O failures so handlers can answer 503.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, engagement.ErrUnavailable, err)
}

// ─── Engagements ─────────────────────────────────────────────────────────────

const engagementCols = `id, company_id, student_id, job_id, kind, status, created_at, accepted_at, declined_at`

func scanEngagement(row pgx.Row) (*engagement.Engagement, error) {
	var (
		rec          engagement.Engagement
		kind, status string
	)
	err := row.Scan(
		&rec.ID, &rec.CompanyID, &rec.StudentID, &rec.JobID,
		&kind, &status,
		&rec.CreatedAt, &rec.AcceptedAt, &rec.DeclinedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.Kind = engagement.Kind(kind)
	rec.Status = engagement.Status(status)
	return &rec, nil
}

// GetEngagement returns the engagement by id.
func (s *Store) GetEngagement(ctx context.Context, id string) (*engagement.Engagement, error) {
	rec, err := scanEngagement(s.pool.QueryRow(ctx,
		`SELECT `+engagementCols+` FROM engagements WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engagement.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("getEngagement", err)
	}
	return rec, nil
}

// TransitionStatus performs the status move as one conditional UPDATE: the
// allowedFrom check and the write are a single statement, so two concurrent
// callers cannot both observe the source status and both apply the write.
func (s *Store) TransitionStatus(ctx context.Context, id, studentID string, allowedFrom []engagement.Status, to engagement.Status) (*engagement.Engagement, bool, error) {
	allowed := make([]string, len(allowedFrom))
	for i, st := range allowedFrom {
		allowed[i] = string(st)
	}

	rec, err := scanEngagement(s.pool.QueryRow(ctx,
		`UPDATE engagements
		 SET status      = $1::engagement_status,
		     accepted_at = CASE WHEN $1 = 'ACCEPTED' THEN NOW() ELSE accepted_at END,
		     declined_at = CASE WHEN $1 = 'DECLINED' THEN NOW() ELSE declined_at END,
		     updated_at  = NOW()
		 WHERE id = $2 AND student_id = $3
		   AND status = ANY($4::engagement_status[])
		 RETURNING `+engagementCols,
		string(to), id, studentID, allowed,
	))
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, unavailable("transitionStatus update", err)
	}

	// No row matched: either the engagement is gone or its status already
	// left allowedFrom. Re-read to tell the two apart.
	rec, err = scanEngagement(s.pool.QueryRow(ctx,
		`SELECT `+engagementCols+` FROM engagements WHERE id = $1 AND student_id = $2`,
		id, studentID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, engagement.ErrNotFound
	}
	if err != nil {
		return nil, false, unavailable("transitionStatus re-read", err)
	}
	return rec, false, nil
}

// CreateOffer inserts a new offer at SENT status.
func (s *Store) CreateOffer(ctx context.Context, companyID, studentID string, jobID *string) (*engagement.Engagement, error) {
	rec, err := scanEngagement(s.pool.QueryRow(ctx,
		`INSERT INTO engagements (company_id, student_id, job_id, kind, status)
		 VALUES ($1, $2, $3, 'offer', 'SENT')
		 RETURNING `+engagementCols,
		companyID, studentID, jobID,
	))
	if err != nil {
		return nil, unavailable("createOffer", err)
	}
	return rec, nil
}

// CreateApplication inserts an application for the posting, resolving the
// posting's company in the same statement. APPLIED counts as accepted, so
// accepted_at is set at creation.
func (s *Store) CreateApplication(ctx context.Context, studentID, jobID string) (*engagement.Engagement, bool, error) {
	rec, err := scanEngagement(s.pool.QueryRow(ctx,
		`INSERT INTO engagements (company_id, student_id, job_id, kind, status, accepted_at)
		 SELECT p.company_id, $1, p.id, 'application', 'APPLIED', NOW()
		 FROM job_postings p
		 WHERE p.id = $2
		 ON CONFLICT (student_id, job_id) WHERE kind = 'application' DO NOTHING
		 RETURNING `+engagementCols,
		studentID, jobID,
	))
	if err == nil {
		return rec, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, unavailable("createApplication", err)
	}

	// Zero rows: the posting is missing, or this candidate already applied.
	rec, err = scanEngagement(s.pool.QueryRow(ctx,
		`SELECT `+engagementCols+`
		 FROM engagements
		 WHERE student_id = $1 AND job_id = $2 AND kind = 'application'`,
		studentID, jobID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, engagement.ErrNotFound // posting does not exist
	}
	if err != nil {
		return nil, false, unavailable("createApplication re-read", err)
	}
	return rec, false, nil
}

// ListEngagements returns every engagement the user participates in, newest
// first. Companies and candidates share the endpoint, so both sides of the
// pair are matched.
func (s *Store) ListEngagements(ctx context.Context, userID string) ([]engagement.Engagement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+engagementCols+`
		 FROM engagements
		 WHERE company_id = $1 OR student_id = $1
		 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, unavailable("listEngagements query", err)
	}
	defer rows.Close()

	recs := make([]engagement.Engagement, 0)
	for rows.Next() {
		rec, err := scanEngagement(rows)
		if err != nil {
			return nil, unavailable("listEngagements scan", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// ─── Conversation rooms ──────────────────────────────────────────────────────

const roomCols = `id, company_id, student_id, job_id, created_at`

func scanRoom(row pgx.Row) (*engagement.Room, error) {
	var room engagement.Room
	err := row.Scan(&room.ID, &room.CompanyID, &room.StudentID, &room.JobID, &room.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// FindRoom returns the room for key, or engagement.ErrNotFound when absent.
func (s *Store) FindRoom(ctx context.Context, key engagement.RoomKey) (*engagement.Room, error) {
	room, err := scanRoom(s.pool.QueryRow(ctx,
		`SELECT `+roomCols+` FROM conversation_rooms
		 WHERE company_id = $1 AND student_id = $2`,
		key.CompanyID, key.StudentID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engagement.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("findRoom", err)
	}
	return room, nil
}

// InsertRoom creates the room for key. The unique index on
// (company_id, student_id) arbitrates concurrent creators: the loser gets
// zero rows back and engagement.ErrRoomExists.
func (s *Store) InsertRoom(ctx context.Context, key engagement.RoomKey, jobID *string) (*engagement.Room, error) {
	room, err := scanRoom(s.pool.QueryRow(ctx,
		`INSERT INTO conversation_rooms (company_id, student_id, job_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (company_id, student_id) DO NOTHING
		 RETURNING `+roomCols,
		key.CompanyID, key.StudentID, jobID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engagement.ErrRoomExists
	}
	if err != nil {
		return nil, unavailable("insertRoom", err)
	}
	return room, nil
}

// ─── Messages ────────────────────────────────────────────────────────────────

const messageCols = `id, room_id, sender_id, content, created_at`

func scanMessage(row pgx.Row) (*engagement.Message, error) {
	var m engagement.Message
	err := row.Scan(&m.ID, &m.RoomID, &m.SenderID, &m.Content, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// InsertSystemMessage inserts the announcement unless its dedup key is
// already present, in which case the earlier message is returned.
func (s *Store) InsertSystemMessage(ctx context.Context, roomID, senderID, content, dedupKey string) (*engagement.Message, bool, error) {
	m, err := scanMessage(s.pool.QueryRow(ctx,
		`INSERT INTO conversation_messages (room_id, sender_id, content, dedup_key)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (dedup_key) DO NOTHING
		 RETURNING `+messageCols,
		roomID, senderID, content, dedupKey,
	))
	if err == nil {
		return m, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, unavailable("insertSystemMessage", err)
	}

	m, err = scanMessage(s.pool.QueryRow(ctx,
		`SELECT `+messageCols+` FROM conversation_messages WHERE dedup_key = $1`,
		dedupKey,
	))
	if err != nil {
		return nil, false, unavailable("insertSystemMessage re-read", err)
	}
	return m, false, nil
}

// ListRoomMessages returns a room's timeline, oldest first.
func (s *Store) ListRoomMessages(ctx context.Context, roomID string) ([]engagement.Message, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+messageCols+` FROM conversation_messages
		 WHERE room_id = $1
		 ORDER BY created_at ASC`,
		roomID,
	)
	if err != nil {
		return nil, unavailable("listRoomMessages query", err)
	}
	defer rows.Close()

	msgs := make([]engagement.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, unavailable("listRoomMessages scan", err)
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// ─── Notification outbox ─────────────────────────────────────────────────────

// AddNotification records a notification job and returns the outbox row id.
func (s *Store) AddNotification(ctx context.Context, job notify.Job) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`INSERT INTO notification_outbox (recipient_user_id, template_type, related_id, payload)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		job.RecipientUserID, job.TemplateType, job.RelatedID, []byte(job.Payload),
	).Scan(&id)
	if err != nil {
		return "", unavailable("addNotification", err)
	}
	return id, nil
}

// MarkNotificationPublished stamps the row so the sweeper skips it.
func (s *Store) MarkNotificationPublished(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE notification_outbox SET published_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return unavailable("markNotificationPublished", err)
	}
	return nil
}

// ListPendingNotifications returns rows whose publish was never confirmed,
// oldest first.
func (s *Store) ListPendingNotifications(ctx context.Context, limit int) ([]notify.Pending, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, recipient_user_id, template_type, related_id, payload
		 FROM notification_outbox
		 WHERE published_at IS NULL
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, unavailable("listPendingNotifications query", err)
	}
	defer rows.Close()

	pending := make([]notify.Pending, 0)
	for rows.Next() {
		var (
			p       notify.Pending
			payload []byte
		)
		if err := rows.Scan(&p.ID, &p.Job.RecipientUserID, &p.Job.TemplateType, &p.Job.RelatedID, &payload); err != nil {
			return nil, unavailable("listPendingNotifications scan", err)
		}
		p.Job.Payload = json.RawMessage(payload)
		pending = append(pending, p)
	}
	return pending, rows.Err()
}
