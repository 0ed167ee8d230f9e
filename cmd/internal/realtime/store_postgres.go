// Package realtime contains the presence registry, conversation fan-out
// engine, and WebSocket gateway of the Social-app realtime subsystem.
package realtime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vuducc/Social-app/cmd/internal/identity/ids"
)

// PostgresStore is a ConversationStore backed by PostgreSQL.
//
// Ownership model:
// - PostgresStore does NOT own the pgx pool. The caller must close the pool.
// - Close() is therefore a no-op.
//
// Tables (managed elsewhere; this store only reads/writes rows):
//   - participants(conversation_id, user_id)
//   - messages(message_id, conversation_id, sender_id, content, message_type, created_at)
//   - message_status(message_id, user_id, is_read, read_at)
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption configures PostgresStore behavior.
type PostgresOption func(*PostgresStore) error

// WithSchema sets the DB schema used by this store (default: "social").
// The schema name is validated and safely quoted in queries.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) error {
		schema = strings.TrimSpace(schema)
		if schema == "" {
			return errors.New("realtime: empty schema")
		}
		if !isValidPGIdent(schema) {
			return errors.New("realtime: invalid schema identifier")
		}
		s.schema = schema
		return nil
	}
}

// NewPostgresStore constructs a Postgres-backed ConversationStore.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	st := &PostgresStore{
		pool:   pool,
		schema: "social",
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	if st.pool == nil {
		return nil, errors.New("realtime: nil pool")
	}
	return st, nil
}

// Close is a no-op because the pool is owned by the caller.
func (s *PostgresStore) Close() error { return nil }

// IsParticipant checks the durable participant record for (conversation, user).
func (s *PostgresStore) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	if s == nil || s.pool == nil {
		return false, errors.New("realtime: nil store")
	}
	conversationID = strings.TrimSpace(conversationID)
	userID = strings.TrimSpace(userID)
	if conversationID == "" || userID == "" {
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	participants := pgIdent(s.schema, "participants")

	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM `+participants+` WHERE conversation_id = $1 AND user_id = $2`,
		conversationID, userID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Participants returns every user holding a participant record for the conversation.
func (s *PostgresStore) Participants(ctx context.Context, conversationID string) ([]string, error) {
	if s == nil || s.pool == nil {
		return nil, errors.New("realtime: nil store")
	}
	if strings.TrimSpace(conversationID) == "" {
		return nil, errors.New("realtime: missing conversation_id")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	participants := pgIdent(s.schema, "participants")

	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM `+participants+` WHERE conversation_id = $1`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		out = append(out, userID)
	}
	return out, rows.Err()
}

// CreateMessage commits a message row after verifying the sender's participant
// record inside the same transaction. The returned message id is safe to broadcast.
func (s *PostgresStore) CreateMessage(ctx context.Context, in CreateMessageInput) (Message, error) {
	if s == nil || s.pool == nil {
		return Message{}, errors.New("realtime: nil store")
	}
	if in.ConversationID == "" || in.SenderID == "" || strings.TrimSpace(in.Content) == "" {
		return Message{}, errors.New("realtime: invalid message input")
	}
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	messageType := in.MessageType
	if messageType == "" {
		messageType = MessageTypeText
	}

	messageID, err := ids.NewULID(now)
	if err != nil {
		return Message{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return Message{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	participants := pgIdent(s.schema, "participants")
	messages := pgIdent(s.schema, "messages")

	var one int
	err = tx.QueryRow(ctx,
		`SELECT 1 FROM `+participants+` WHERE conversation_id = $1 AND user_id = $2`,
		in.ConversationID, in.SenderID,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotParticipant
	}
	if err != nil {
		return Message{}, err
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO `+messages+` (
		     message_id, conversation_id, sender_id, content, message_type, created_at
		   ) VALUES ($1, $2, $3, $4, $5, $6)`,
		messageID, in.ConversationID, in.SenderID, in.Content, messageType, now,
	); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, err
	}

	return Message{
		MessageID:      messageID,
		ConversationID: in.ConversationID,
		SenderID:       in.SenderID,
		Content:        in.Content,
		MessageType:    messageType,
		CreatedAt:      now,
	}, nil
}

// MarkRead upserts a read receipt for every message in the conversation that
// userID did not send and has not yet read.
func (s *PostgresStore) MarkRead(ctx context.Context, conversationID, userID string) error {
	if s == nil || s.pool == nil {
		return errors.New("realtime: nil store")
	}
	if conversationID == "" || userID == "" {
		return errors.New("realtime: invalid mark-read input")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ok, err := s.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}

	messages := pgIdent(s.schema, "messages")
	statuses := pgIdent(s.schema, "message_status")

	_, err = s.pool.Exec(ctx,
		`INSERT INTO `+statuses+` (message_id, user_id, is_read, read_at)
		 SELECT m.message_id, $2, TRUE, now()
		   FROM `+messages+` m
		   LEFT JOIN `+statuses+` ms
		     ON ms.message_id = m.message_id AND ms.user_id = $2
		  WHERE m.conversation_id = $1
		    AND m.sender_id <> $2
		    AND (ms.is_read IS NULL OR ms.is_read = FALSE)
		 ON CONFLICT (message_id, user_id)
		 DO UPDATE SET is_read = TRUE, read_at = now()`,
		conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

var pgIdentRE = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidPGIdent(s string) bool {
	return pgIdentRE.MatchString(s)
}

func pgIdent(schema, table string) string {
	// pgx.Identifier safely quotes identifiers, preventing SQL injection.
	return pgx.Identifier{schema, table}.Sanitize()
}
