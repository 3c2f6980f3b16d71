package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/internal/repository"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
	"github.com/pidb/catalog-api/pkg/tabular"
)

// UserStore reads and updates the user table.
type UserStore interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, username, hash string) error
}

type sessionStore interface {
	Get(ctx context.Context, id string) (*models.SessionState, error)
	Save(ctx context.Context, state models.SessionState) error
	Delete(ctx context.Context, id string) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	Secret         string
	TokenExpiry    time.Duration
	Issuer         string
	DefaultProgram models.Program
	// ResetPolicy decides who may reset another user's password. Users may
	// always reset their own.
	ResetPolicy EditPolicy
}

var errAuthDisabled = appErrors.Clone(appErrors.ErrFeatureDisabled, "login requires the sheets service credential")

// AuthService verifies credentials against the user table and manages sessions.
type AuthService struct {
	users     UserStore
	sessions  sessionStore
	audit     auditRecorder
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
	now       func() time.Time
}

// NewAuthService constructs an AuthService instance. A nil users repository
// disables login and password resets.
func NewAuthService(users UserStore, sessions sessionStore, audit auditRecorder, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TokenExpiry <= 0 {
		config.TokenExpiry = 12 * time.Hour
	}
	if !config.DefaultProgram.Valid() {
		config.DefaultProgram = models.ProgramPharmD
	}
	if config.ResetPolicy == nil {
		config.ResetPolicy = AllowAuthenticated{}
	}
	return &AuthService{
		users:     users,
		sessions:  sessions,
		audit:     audit,
		validator: validate,
		logger:    logger,
		config:    config,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Login authenticates a user, opens a session and returns its token. Unknown
// users and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	if s.users == nil {
		return nil, errAuthDisabled
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, mapStoreError(err, "failed to load user table")
	}

	legacy, ok := verifyPassword(user.PasswordHash, req.Password)
	if !ok {
		return nil, appErrors.ErrInvalidCredentials
	}
	if legacy {
		s.upgradeLegacyHash(ctx, user.Username, req.Password)
	}

	issuedAt := s.now()
	session := models.SessionState{
		ID:        uuid.NewString(),
		Username:  user.Username,
		Role:      user.Role,
		LoggedIn:  true,
		Program:   s.config.DefaultProgram,
		Filter:    models.FilterState{}.Cleared(),
		CreatedAt: issuedAt,
		UpdatedAt: issuedAt,
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session")
	}

	token, err := s.generateToken(session, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create access token")
	}

	warnings := recordAudit(ctx, s.audit, user.Info(), models.AuditActionLogin)

	return &models.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int64(s.config.TokenExpiry.Seconds()),
		IssuedAt:    issuedAt,
		User:        user.Info(),
		Session:     session,
		Warnings:    warnings,
	}, nil
}

// Logout ends the session. The session is dropped even when the audit append fails.
func (s *AuthService) Logout(ctx context.Context, session models.SessionState) []string {
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		s.logger.Warn("failed to delete session", zap.String("session_id", session.ID), zap.Error(err))
	}
	return recordAudit(ctx, s.audit, session.Actor(), models.AuditActionLogout)
}

// ResetPassword stores a new bcrypt hash for req.Username. The audit event is
// attributed to the target user so the log reads per account.
func (s *AuthService) ResetPassword(ctx context.Context, actor models.UserInfo, req models.ResetPasswordRequest) ([]string, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reset password payload")
	}
	if s.users == nil {
		return nil, errAuthDisabled
	}
	if !s.canReset(actor, req.Username) {
		s.logger.Warn("password reset denied",
			zap.String("actor", actor.Username),
			zap.String("role", actor.Role),
			zap.String("username", req.Username),
		)
		return nil, appErrors.Clone(appErrors.ErrForbidden, "user may not reset this password")
	}

	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, appErrors.ErrUserNotFound
		}
		return nil, mapStoreError(err, "failed to load user table")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}
	if err := s.users.UpdatePasswordHash(ctx, user.Username, string(hash)); err != nil {
		return nil, appErrors.WrapAs(err, appErrors.ErrWrite, "failed to store new password")
	}

	s.logger.Info("password reset",
		zap.String("username", user.Username),
		zap.String("actor", actor.Username),
	)
	return recordAudit(ctx, s.audit, user.Info(), models.AuditActionPasswordReset), nil
}

// ValidateToken parses and validates a session token returning its claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok || !token.Valid || claims.SessionID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}

// Authenticate resolves a token to its live session.
func (s *AuthService) Authenticate(ctx context.Context, tokenString string) (*models.SessionState, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.Get(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	if !session.LoggedIn || !strings.EqualFold(session.Username, claims.Username) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session expired")
	}
	return session, nil
}

func (s *AuthService) canReset(actor models.UserInfo, target string) bool {
	name := strings.TrimSpace(actor.Username)
	if name == "" {
		return false
	}
	if strings.EqualFold(name, strings.TrimSpace(target)) {
		return true
	}
	return s.config.ResetPolicy.CanEdit(actor)
}

func (s *AuthService) upgradeLegacyHash(ctx context.Context, username, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Warn("failed to hash password for upgrade", zap.Error(err))
		return
	}
	if err := s.users.UpdatePasswordHash(ctx, username, string(hash)); err != nil {
		s.logger.Warn("failed to upgrade legacy password hash", zap.String("username", username), zap.Error(err))
		return
	}
	s.logger.Info("upgraded legacy password hash", zap.String("username", username))
}

func (s *AuthService) generateToken(session models.SessionState, issuedAt time.Time) (string, error) {
	claims := &models.SessionClaims{
		SessionID: session.ID,
		Username:  session.Username,
		Role:      session.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   session.Username,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.Secret))
}

// verifyPassword checks password against a bcrypt hash or a legacy unsalted
// SHA-256 hex digest. legacy reports a match against the latter.
func verifyPassword(stored, password string) (legacy bool, ok bool) {
	stored = strings.TrimSpace(stored)
	switch {
	case stored == "":
		return false, false
	case strings.HasPrefix(stored, "$2a$"), strings.HasPrefix(stored, "$2b$"), strings.HasPrefix(stored, "$2y$"):
		return false, bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
	case isSHA256Hex(stored):
		sum := sha256.Sum256([]byte(password))
		digest := hex.EncodeToString(sum[:])
		return true, subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(stored))) == 1
	}
	return false, false
}

func isSHA256Hex(s string) bool {
	if len(s) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// mapStoreError converts remote table failures into domain errors.
func mapStoreError(err error, message string) error {
	switch {
	case errors.Is(err, tabular.ErrConnection):
		return appErrors.WrapAs(err, appErrors.ErrConnection, message)
	case errors.Is(err, tabular.ErrRowNotFound):
		return appErrors.WrapAs(err, appErrors.ErrCourseNotFound, "")
	case errors.Is(err, tabular.ErrColumnNotFound), errors.Is(err, tabular.ErrWrite), errors.Is(err, tabular.ErrReadOnly):
		return appErrors.WrapAs(err, appErrors.ErrWrite, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}
