package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/satriahrh/white-fusion/domain"
)

// StartChat creates c and its first message in one transaction.
func (s *Store) StartChat(ctx context.Context, c *domain.Chat, first *domain.StoredMessage) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return s.insertChat(ctx, tx, c, first)
	})
}

// SaveUpload creates the chat seeded with an upload's text and records the
// upload. Nothing is kept when any insert fails.
func (s *Store) SaveUpload(ctx context.Context, c *domain.Chat, first *domain.StoredMessage, f *domain.UploadedFile) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.insertChat(ctx, tx, c, first); err != nil {
			return err
		}
		f.ChatID = c.ID
		if f.UploadedAt.IsZero() {
			f.UploadedAt = c.Timestamp
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO uploaded_files (user_id, chat_id, file_name, file_type, extracted_text, uploaded_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			f.UserID, f.ChatID, f.FileName, f.FileType, f.ExtractedText, unix(f.UploadedAt),
		)
		if err != nil {
			return fmt.Errorf("insert uploaded file: %w", err)
		}
		f.ID, err = res.LastInsertId()
		return err
	})
}

func (s *Store) insertChat(ctx context.Context, tx *sql.Tx, c *domain.Chat, first *domain.StoredMessage) error {
	if c.Timestamp.IsZero() {
		c.Timestamp = s.now().UTC()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO chats (user_id, title, updated_at) VALUES (?, ?, ?)`,
		c.UserID, c.Title, unix(c.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return err
	}

	first.ChatID = c.ID
	if first.CreatedAt.IsZero() {
		first.CreatedAt = c.Timestamp
	}
	return insertMessage(ctx, tx, first)
}

// ChatByID returns the chat only when it belongs to userID.
func (s *Store) ChatByID(ctx context.Context, userID, chatID int64) (*domain.Chat, error) {
	var (
		c  domain.Chat
		ts int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, updated_at FROM chats WHERE id = ? AND user_id = ?`,
		chatID, userID,
	).Scan(&c.ID, &c.UserID, &c.Title, &ts)
	if err != nil {
		return nil, notFound(err)
	}
	c.Timestamp = fromUnix(ts)
	return &c, nil
}

// ChatsByUser lists chats, most recently active first.
func (s *Store) ChatsByUser(ctx context.Context, userID int64) ([]domain.Chat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, updated_at FROM chats WHERE user_id = ? ORDER BY updated_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	chats := []domain.Chat{}
	for rows.Next() {
		var (
			c  domain.Chat
			ts int64
		)
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &ts); err != nil {
			return nil, err
		}
		c.Timestamp = fromUnix(ts)
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (s *Store) RenameChat(ctx context.Context, userID, chatID int64, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chats SET title = ? WHERE id = ? AND user_id = ?`,
		title, chatID, userID,
	)
	if err != nil {
		return fmt.Errorf("rename chat %d: %w", chatID, err)
	}
	return requireRow(res)
}

func (s *Store) DeleteChat(ctx context.Context, userID, chatID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chats WHERE id = ? AND user_id = ?`, chatID, userID)
	if err != nil {
		return fmt.Errorf("delete chat %d: %w", chatID, err)
	}
	return requireRow(res)
}

// AppendMessage stores m and bumps the chat's activity timestamp.
func (s *Store) AppendMessage(ctx context.Context, m *domain.StoredMessage) error {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now().UTC()
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := insertMessage(ctx, tx, m); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE chats SET updated_at = ? WHERE id = ?`, unix(m.CreatedAt), m.ChatID); err != nil {
			return fmt.Errorf("touch chat %d: %w", m.ChatID, err)
		}
		return nil
	})
}

func insertMessage(ctx context.Context, tx *sql.Tx, m *domain.StoredMessage) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO chat_messages (chat_id, role, content, created_at) VALUES (?, ?, ?, ?)`,
		m.ChatID, string(m.Role), m.Content, unix(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

// Messages returns a chat's messages oldest first.
func (s *Store) Messages(ctx context.Context, chatID int64) ([]domain.StoredMessage, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, chat_id, role, content, created_at FROM chat_messages WHERE chat_id = ? ORDER BY id`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []domain.StoredMessage
	for rows.Next() {
		var (
			m    domain.StoredMessage
			role string
			ts   int64
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &role, &m.Content, &ts); err != nil {
			return nil, err
		}
		m.Role = domain.Role(role)
		m.CreatedAt = fromUnix(ts)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
