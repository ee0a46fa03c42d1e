package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a row does not exist or is not
// owned by the requesting user.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when a unique key is already taken.
var ErrDuplicate = errors.New("already exists")

// CurrentUserKey is the request-scoped key holding the authenticated *User.
const CurrentUserKey = "current_user"

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
}

type Chat struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"-"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

// StoredMessage is a persisted turn of a chat.
type StoredMessage struct {
	ID        int64
	ChatID    int64
	Role      Role
	Content   string
	CreatedAt time.Time
}

type UploadedFile struct {
	ID            int64
	UserID        int64
	ChatID        int64
	FileName      string
	FileType      string
	ExtractedText string // JSON document
	UploadedAt    time.Time
}

// PendingSignup is an OTP awaiting verification.
type PendingSignup struct {
	ID           int64
	Email        string
	OTPHash      string
	PasswordHash string
	ExpiresAt    time.Time
	SentAt       time.Time
}

type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	UserByUsername(ctx context.Context, username string) (*User, error)
	UserByEmail(ctx context.Context, email string) (*User, error)
}

type OTPStore interface {
	SavePendingSignup(ctx context.Context, p *PendingSignup) error
	LatestPendingSignup(ctx context.Context, email string) (*PendingSignup, error)
	UpdatePendingSignup(ctx context.Context, p *PendingSignup) error
	DeletePendingSignup(ctx context.Context, id int64) error
}

type ChatStore interface {
	// StartChat creates c together with its first message, all or nothing.
	StartChat(ctx context.Context, c *Chat, first *StoredMessage) error
	ChatByID(ctx context.Context, userID, chatID int64) (*Chat, error)
	ChatsByUser(ctx context.Context, userID int64) ([]Chat, error)
	RenameChat(ctx context.Context, userID, chatID int64, title string) error
	DeleteChat(ctx context.Context, userID, chatID int64) error
	AppendMessage(ctx context.Context, m *StoredMessage) error
	Messages(ctx context.Context, chatID int64) ([]StoredMessage, error)
}

type FileStore interface {
	// SaveUpload creates the chat holding an upload's text and records the
	// upload in one transaction.
	SaveUpload(ctx context.Context, c *Chat, first *StoredMessage, f *UploadedFile) error
}
