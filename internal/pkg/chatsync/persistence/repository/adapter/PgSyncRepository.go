package adapter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/domain"
	"github.com/bdika645-rgb/lovewave-finder-sub000/internal/pkg/chatsync/port"
)

// PgSyncRepository backs every sync-engine port with Postgres: the data
// store, the identity provider, the profile directory and the create-or-get
// collaborator.
type PgSyncRepository struct {
	pool *pgxpool.Pool
}

func NewPgSyncRepository(pool *pgxpool.Pool) *PgSyncRepository {
	return &PgSyncRepository{pool: pool}
}

var (
	_ port.DataStore           = (*PgSyncRepository)(nil)
	_ port.IdentityProvider    = (*PgSyncRepository)(nil)
	_ port.ProfileDirectory    = (*PgSyncRepository)(nil)
	_ port.ConversationCreator = (*PgSyncRepository)(nil)
)

func (r *PgSyncRepository) ConversationIDsFor(ctx context.Context, participantID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT conversation_id::text
		FROM chat.participant
		WHERE participant_id = $1::uuid
	`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PgSyncRepository) ParticipantLinks(ctx context.Context, conversationIDs []string) ([]domain.ParticipantLink, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT conversation_id::text, participant_id::text
		FROM chat.participant
		WHERE conversation_id = ANY($1::uuid[])
	`, conversationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []domain.ParticipantLink
	for rows.Next() {
		var l domain.ParticipantLink
		if err := rows.Scan(&l.ConversationID, &l.ParticipantID); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (r *PgSyncRepository) ConversationsByIDs(ctx context.Context, conversationIDs []string) ([]domain.Conversation, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, created_at, updated_at
		FROM chat.conversation
		WHERE id = ANY($1::uuid[])
		ORDER BY updated_at DESC
	`, conversationIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var convs []domain.Conversation
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

func (r *PgSyncRepository) RecentMessages(ctx context.Context, conversationIDs []string, limit int) ([]domain.Message, error) {
	if len(conversationIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, conversation_id::text, sender_id::text, content, created_at, is_read
		FROM chat.message
		WHERE conversation_id = ANY($1::uuid[])
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, conversationIDs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *PgSyncRepository) MessagesWindow(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	// Take the newest window, then flip it to display order.
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at, is_read FROM (
			SELECT id::text, conversation_id::text, sender_id::text, content, created_at, is_read
			FROM chat.message
			WHERE conversation_id = $1::uuid
			ORDER BY created_at DESC, id DESC
			LIMIT $2
		) window
		ORDER BY created_at ASC, id ASC
	`, conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (r *PgSyncRepository) InsertMessage(ctx context.Context, m domain.Message) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat.message (id, conversation_id, sender_id, content, created_at, is_read)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.ConversationID, m.SenderID, m.Content, m.CreatedAt, m.IsRead)
	return err
}

func (r *PgSyncRepository) MarkConversationRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	ct, err := r.pool.Exec(ctx, `
		UPDATE chat.message
		SET is_read = TRUE
		WHERE conversation_id = $1::uuid AND sender_id <> $2::uuid AND NOT is_read
	`, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return ct.RowsAffected(), nil
}

func (r *PgSyncRepository) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE chat.conversation SET updated_at = $2 WHERE id = $1::uuid
	`, conversationID, at)
	return err
}

// SelfParticipantID maps an auth subject to its participant id. No linked
// profile yet is a soft absence, not an error.
func (r *PgSyncRepository) SelfParticipantID(ctx context.Context, subjectID string) (string, error) {
	var id string
	err := r.pool.QueryRow(ctx, `
		SELECT id::text FROM profiles WHERE auth_subject = $1
	`, subjectID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *PgSyncRepository) ProfilesByParticipantIDs(ctx context.Context, participantIDs []string) (map[string]domain.Profile, error) {
	out := make(map[string]domain.Profile, len(participantIDs))
	if len(participantIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, display_name, COALESCE(avatar_url, '')
		FROM profiles
		WHERE id = ANY($1::uuid[])
	`, participantIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ParticipantID, &p.DisplayName, &p.AvatarURL); err != nil {
			return nil, err
		}
		out[p.ParticipantID] = p
	}
	return out, rows.Err()
}

// CreateOrGet returns the conversation for the given pair, creating it and
// its two participant links atomically on first request. A normalized pair
// key makes the insert idempotent: the same pair always converges on one
// row no matter how many clients race.
func (r *PgSyncRepository) CreateOrGet(ctx context.Context, selfID, otherID string) (string, error) {
	if selfID == otherID {
		return "", errors.New("PgSyncRepository: cannot open a conversation with yourself")
	}
	pairKey := selfID + ":" + otherID
	if otherID < selfID {
		pairKey = otherID + ":" + selfID
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO chat.conversation (pair_key, created_at, updated_at)
		VALUES ($1, $2, $2)
		ON CONFLICT (pair_key) DO UPDATE SET pair_key = EXCLUDED.pair_key
		RETURNING id::text
	`, pairKey, now).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("create conversation: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO chat.participant (conversation_id, participant_id)
		VALUES ($1::uuid, $2::uuid), ($1::uuid, $3::uuid)
		ON CONFLICT (conversation_id, participant_id) DO NOTHING
	`, id, selfID, otherID)
	if err != nil {
		return "", fmt.Errorf("link participants: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.CreatedAt, &m.IsRead); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
