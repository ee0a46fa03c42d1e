package usecase

import (
	"context"
	"sort"
	"sync"

	"github.com/satriahrh/white-fusion/domain"
)

// memStore implements the store ports in memory.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*domain.User
	pending  map[int64]*domain.PendingSignup
	chats    map[int64]*domain.Chat
	messages []domain.StoredMessage
	files    []domain.UploadedFile

	// uploadErr fails SaveUpload before anything is stored.
	uploadErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[int64]*domain.User),
		pending: make(map[int64]*domain.PendingSignup),
		chats:   make(map[int64]*domain.Chat),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return domain.ErrDuplicate
		}
	}
	u.ID = m.id()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) UserByUsername(_ context.Context, username string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) SavePendingSignup(_ context.Context, p *domain.PendingSignup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	cp := *p
	m.pending[p.ID] = &cp
	return nil
}

func (m *memStore) LatestPendingSignup(_ context.Context, email string) (*domain.PendingSignup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.PendingSignup
	for _, p := range m.pending {
		if p.Email == email && (latest == nil || p.ExpiresAt.After(latest.ExpiresAt)) {
			latest = p
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *memStore) UpdatePendingSignup(_ context.Context, p *domain.PendingSignup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[p.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *p
	m.pending[p.ID] = &cp
	return nil
}

func (m *memStore) DeletePendingSignup(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, id)
	return nil
}

func (m *memStore) StartChat(_ context.Context, c *domain.Chat, first *domain.StoredMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startChat(c, first)
	return nil
}

func (m *memStore) startChat(c *domain.Chat, first *domain.StoredMessage) {
	c.ID = m.id()
	cp := *c
	m.chats[c.ID] = &cp
	first.ChatID = c.ID
	first.ID = m.id()
	m.messages = append(m.messages, *first)
}

func (m *memStore) ChatByID(_ context.Context, userID, chatID int64) (*domain.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok || c.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) ChatsByUser(_ context.Context, userID int64) ([]domain.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Chat
	for _, c := range m.chats {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) RenameChat(_ context.Context, userID, chatID int64, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok || c.UserID != userID {
		return domain.ErrNotFound
	}
	c.Title = title
	return nil
}

func (m *memStore) DeleteChat(_ context.Context, userID, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[chatID]
	if !ok || c.UserID != userID {
		return domain.ErrNotFound
	}
	delete(m.chats, chatID)
	return nil
}

func (m *memStore) AppendMessage(_ context.Context, msg *domain.StoredMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = m.id()
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memStore) Messages(_ context.Context, chatID int64) ([]domain.StoredMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.StoredMessage
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memStore) SaveUpload(_ context.Context, c *domain.Chat, first *domain.StoredMessage, f *domain.UploadedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return m.uploadErr
	}
	m.startChat(c, first)
	f.ChatID = c.ID
	f.ID = m.id()
	m.files = append(m.files, *f)
	return nil
}
