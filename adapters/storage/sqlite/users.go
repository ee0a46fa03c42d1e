package sqlite

import (
	"context"
	"fmt"

	"github.com/satriahrh/white-fusion/domain"
)

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES (?, ?, ?)`,
		u.Username, u.Email, u.PasswordHash,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (s *Store) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	return s.user(ctx, `SELECT id, username, email, password_hash FROM users WHERE username = ?`, username)
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.user(ctx, `SELECT id, username, email, password_hash FROM users WHERE email = ?`, email)
}

func (s *Store) user(ctx context.Context, query string, arg any) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Store) SavePendingSignup(ctx context.Context, p *domain.PendingSignup) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO pending_signups (email, otp_hash, password_hash, expires_at, sent_at) VALUES (?, ?, ?, ?, ?)`,
		p.Email, p.OTPHash, p.PasswordHash, unix(p.ExpiresAt), unix(p.SentAt),
	)
	if err != nil {
		return fmt.Errorf("insert pending signup: %w", err)
	}
	p.ID, err = res.LastInsertId()
	return err
}

// LatestPendingSignup returns the entry with the latest expiry for email.
func (s *Store) LatestPendingSignup(ctx context.Context, email string) (*domain.PendingSignup, error) {
	var (
		p                 domain.PendingSignup
		expiresAt, sentAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, otp_hash, password_hash, expires_at, sent_at
		 FROM pending_signups WHERE email = ? ORDER BY expires_at DESC, id DESC LIMIT 1`,
		email,
	).Scan(&p.ID, &p.Email, &p.OTPHash, &p.PasswordHash, &expiresAt, &sentAt)
	if err != nil {
		return nil, notFound(err)
	}
	p.ExpiresAt = fromUnix(expiresAt)
	p.SentAt = fromUnix(sentAt)
	return &p, nil
}

func (s *Store) UpdatePendingSignup(ctx context.Context, p *domain.PendingSignup) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pending_signups SET otp_hash = ?, expires_at = ?, sent_at = ? WHERE id = ?`,
		p.OTPHash, unix(p.ExpiresAt), unix(p.SentAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("update pending signup %d: %w", p.ID, err)
	}
	return requireRow(res)
}

func (s *Store) DeletePendingSignup(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_signups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete pending signup %d: %w", id, err)
	}
	return nil
}
