package usecase

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/satriahrh/white-fusion/config"
	"github.com/satriahrh/white-fusion/domain"
	"github.com/satriahrh/white-fusion/utils/log"
)

const (
	otpDigits      = 6
	otpLifetime    = 5 * time.Minute
	resendCooldown = 30 * time.Second
)

// Claims of an access token. Subject carries the username.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthService handles email signup with OTP verification and token issuing.
type AuthService struct {
	users  domain.UserStore
	otps   domain.OTPStore
	mailer domain.Mailer
	hasher domain.Hasher
	jwt    config.JWT
	now    func() time.Time
}

func NewAuthService(users domain.UserStore, otps domain.OTPStore, mailer domain.Mailer, h domain.Hasher, cfg config.JWT) *AuthService {
	return &AuthService{
		users:  users,
		otps:   otps,
		mailer: mailer,
		hasher: h,
		jwt:    cfg,
		now:    time.Now,
	}
}

// Signup stores a pending account and mails its OTP.
func (s *AuthService) Signup(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.Invalid("Email and password are required.")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return domain.Invalid("Invalid email address.")
	}
	if _, err := s.users.UserByUsername(ctx, email); err == nil {
		return domain.Invalid("Username already registered")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	code, err := generateOTP()
	if err != nil {
		return err
	}

	now := s.now()
	pending := &domain.PendingSignup{
		Email:        email,
		OTPHash:      s.hasher.Hash([]byte(code)),
		PasswordHash: string(passwordHash),
		ExpiresAt:    now.Add(otpLifetime),
		SentAt:       now,
	}
	if err := s.otps.SavePendingSignup(ctx, pending); err != nil {
		return err
	}
	if err := s.mailer.SendOTP(ctx, email, code); err != nil {
		if delErr := s.otps.DeletePendingSignup(ctx, pending.ID); delErr != nil {
			log.WithCtx(ctx).Error("Failed to drop unsent signup", zap.Int64("id", pending.ID), zap.Error(delErr))
		}
		return fmt.Errorf("send otp: %w", err)
	}

	log.WithCtx(ctx).Info("Signup pending verification", zap.String("email", email))
	return nil
}

// VerifyOTP checks the latest OTP for email and creates the user. It
// returns the message for the caller.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	pending, err := s.otps.LatestPendingSignup(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.NotFound("No OTP found.")
	}
	if err != nil {
		return "", err
	}
	if pending.ExpiresAt.Before(s.now()) {
		return "", domain.Invalid("OTP expired.")
	}
	got := s.hasher.Hash([]byte(strings.TrimSpace(code)))
	if subtle.ConstantTimeCompare([]byte(pending.OTPHash), []byte(got)) != 1 {
		return "", domain.Invalid("Invalid OTP.")
	}

	if _, err := s.users.UserByUsername(ctx, email); err == nil {
		return "User already verified.", nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", err
	}

	user := &domain.User{Username: email, Email: email, PasswordHash: pending.PasswordHash}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return "User already verified.", nil
		}
		return "", err
	}
	if err := s.otps.DeletePendingSignup(ctx, pending.ID); err != nil {
		log.WithCtx(ctx).Warn("Failed to delete used OTP", zap.Int64("id", pending.ID), zap.Error(err))
	}

	log.WithCtx(ctx).Info("User verified", zap.Int64("user_id", user.ID))
	return "Email successfully verified and user created!", nil
}

// ResendOTP issues a fresh code for a pending signup.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	if _, err := s.users.UserByEmail(ctx, email); err == nil {
		return domain.Invalid("User already registered and verified. Please login.")
	} else if !errors.Is(err, domain.ErrNotFound) {
		return err
	}

	pending, err := s.otps.LatestPendingSignup(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Invalid("No pending signup found for this email. Please sign up first.")
	}
	if err != nil {
		return err
	}

	now := s.now()
	if now.Sub(pending.SentAt) < resendCooldown {
		return domain.Invalid("Please wait before resending OTP.")
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}
	pending.OTPHash = s.hasher.Hash([]byte(code))
	pending.ExpiresAt = now.Add(otpLifetime)
	pending.SentAt = now
	if err := s.otps.UpdatePendingSignup(ctx, pending); err != nil {
		return err
	}
	return s.mailer.SendOTP(ctx, email, code)
}

// Login checks credentials and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.UserByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return "", domain.Invalid("Invalid credentials")
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", domain.Invalid("Invalid credentials")
	}
	return s.issueToken(user.Username)
}

func (s *AuthService) issueToken(username string) (string, error) {
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    s.jwt.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwt.Expiry)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwt.Secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// ParseToken validates a token and returns its subject.
func (s *AuthService) ParseToken(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwt.Secret), nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", domain.Unauthorized("Could not validate credentials")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", domain.Unauthorized("Could not validate credentials")
	}
	return claims.Subject, nil
}

// VerifyToken reports whether tokenString is a valid access token.
func (s *AuthService) VerifyToken(tokenString string) bool {
	_, err := s.ParseToken(tokenString)
	return err == nil
}

// Authenticate resolves a token to its user.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*domain.User, error) {
	username, err := s.ParseToken(tokenString)
	if err != nil {
		return nil, err
	}
	user, err := s.users.UserByUsername(ctx, username)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Unauthorized("Could not validate credentials")
	}
	return user, err
}

func generateOTP() (string, error) {
	max := big.NewInt(900000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()+100000), nil
}
