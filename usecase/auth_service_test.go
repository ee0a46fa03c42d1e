package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/white-fusion/adapters/hasher"
	"github.com/satriahrh/white-fusion/config"
	"github.com/satriahrh/white-fusion/domain"
)

type fakeMailer struct {
	codes map[string][]string
	err   error
}

func (m *fakeMailer) SendOTP(_ context.Context, to, code string) error {
	if m.err != nil {
		return m.err
	}
	if m.codes == nil {
		m.codes = make(map[string][]string)
	}
	m.codes[to] = append(m.codes[to], code)
	return nil
}

func (m *fakeMailer) last(to string) string {
	codes := m.codes[to]
	return codes[len(codes)-1]
}

type authFixture struct {
	svc    *AuthService
	store  *memStore
	mailer *fakeMailer
	clock  *time.Time
}

func newAuthFixture() *authFixture {
	store := newMemStore()
	mailer := &fakeMailer{}
	svc := NewAuthService(store, store, mailer, hasher.New([]byte("pepper")), config.JWT{
		Secret: "test-secret",
		Expiry: 30 * time.Minute,
		Issuer: "white-fusion",
	})
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	f := &authFixture{svc: svc, store: store, mailer: mailer, clock: &now}
	svc.now = func() time.Time { return *f.clock }
	return f
}

func (f *authFixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestAuth_SignupVerifyLogin(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	require.NoError(t, f.svc.Signup(ctx, "a@example.com", "pw"))
	code := f.mailer.last("a@example.com")
	assert.Len(t, code, 6)

	pending, err := f.store.LatestPendingSignup(ctx, "a@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, code, pending.OTPHash)
	assert.NotEqual(t, "pw", pending.PasswordHash)

	msg, err := f.svc.VerifyOTP(ctx, "a@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, "Email successfully verified and user created!", msg)

	_, err = f.store.LatestPendingSignup(ctx, "a@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	token, err := f.svc.Login(ctx, "a@example.com", "pw")
	require.NoError(t, err)
	assert.True(t, f.svc.VerifyToken(token))

	subject, err := f.svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", subject)

	user, err := f.svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", user.Username)
}

func TestAuth_SignupRejectsExistingUser(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	require.NoError(t, f.store.CreateUser(ctx, &domain.User{Username: "a@example.com", Email: "a@example.com"}))

	err := f.svc.Signup(ctx, "a@example.com", "pw")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.EqualError(t, err, "Username already registered")
	assert.Empty(t, f.mailer.codes)
}

func TestAuth_SignupMailFailure(t *testing.T) {
	f := newAuthFixture()
	f.mailer.err = errors.New("smtp down")

	err := f.svc.Signup(context.Background(), "a@example.com", "pw")
	assert.ErrorIs(t, err, f.mailer.err)
	assert.Empty(t, f.store.pending)
}

func TestAuth_SignupRejectsMalformedEmail(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	for _, email := range []string{"not-an-email", "a@", "Alice <a@example.com>", "a@example.com, b@example.com"} {
		err := f.svc.Signup(ctx, email, "pw")
		assert.ErrorIs(t, err, domain.ErrInvalidInput, email)
		assert.EqualError(t, err, "Invalid email address.", email)
	}
	assert.Empty(t, f.store.pending)
	assert.Empty(t, f.mailer.codes)
}

func TestAuth_VerifyOTPFailures(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	_, err := f.svc.VerifyOTP(ctx, "a@example.com", "123456")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.EqualError(t, err, "No OTP found.")

	require.NoError(t, f.svc.Signup(ctx, "a@example.com", "pw"))
	code := f.mailer.last("a@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err = f.svc.VerifyOTP(ctx, "a@example.com", wrong)
	assert.EqualError(t, err, "Invalid OTP.")

	f.advance(6 * time.Minute)
	_, err = f.svc.VerifyOTP(ctx, "a@example.com", code)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.EqualError(t, err, "OTP expired.")
}

func TestAuth_VerifyOTPAlreadyVerified(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	require.NoError(t, f.svc.Signup(ctx, "a@example.com", "pw"))
	code := f.mailer.last("a@example.com")
	require.NoError(t, f.store.CreateUser(ctx, &domain.User{Username: "a@example.com", Email: "a@example.com"}))

	msg, err := f.svc.VerifyOTP(ctx, "a@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, "User already verified.", msg)
}

func TestAuth_ResendOTP(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	err := f.svc.ResendOTP(ctx, "a@example.com")
	assert.EqualError(t, err, "No pending signup found for this email. Please sign up first.")

	require.NoError(t, f.svc.Signup(ctx, "a@example.com", "pw"))
	first := f.mailer.last("a@example.com")

	f.advance(10 * time.Second)
	err = f.svc.ResendOTP(ctx, "a@example.com")
	assert.EqualError(t, err, "Please wait before resending OTP.")

	f.advance(30 * time.Second)
	require.NoError(t, f.svc.ResendOTP(ctx, "a@example.com"))
	second := f.mailer.last("a@example.com")
	assert.Len(t, f.mailer.codes["a@example.com"], 2)

	if first != second {
		_, err = f.svc.VerifyOTP(ctx, "a@example.com", first)
		assert.EqualError(t, err, "Invalid OTP.")
	}

	// The resent code is valid for a fresh five minutes.
	f.advance(4 * time.Minute)
	_, err = f.svc.VerifyOTP(ctx, "a@example.com", second)
	require.NoError(t, err)

	err = f.svc.ResendOTP(ctx, "a@example.com")
	assert.EqualError(t, err, "User already registered and verified. Please login.")
}

func TestAuth_LoginFailures(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	_, err := f.svc.Login(ctx, "nobody", "pw")
	assert.EqualError(t, err, "Invalid credentials")

	require.NoError(t, f.svc.Signup(ctx, "a@example.com", "pw"))
	_, err = f.svc.VerifyOTP(ctx, "a@example.com", f.mailer.last("a@example.com"))
	require.NoError(t, err)

	_, err = f.svc.Login(ctx, "a@example.com", "wrong")
	assert.EqualError(t, err, "Invalid credentials")
}

func TestAuth_TokenValidation(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	assert.False(t, f.svc.VerifyToken("garbage"))

	token, err := f.svc.issueToken("ghost@example.com")
	require.NoError(t, err)
	assert.True(t, f.svc.VerifyToken(token))

	_, err = f.svc.Authenticate(ctx, token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	f.advance(31 * time.Minute)
	assert.False(t, f.svc.VerifyToken(token))

	other := newAuthFixture()
	other.svc.jwt.Secret = "another-secret"
	foreign, err := other.svc.issueToken("a@example.com")
	require.NoError(t, err)
	assert.False(t, f.svc.VerifyToken(foreign))
}

func TestGenerateOTP(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := generateOTP()
		require.NoError(t, err)
		assert.Len(t, code, 6)
		assert.GreaterOrEqual(t, code, "100000")
		assert.LessOrEqual(t, code, "999999")
	}
}
