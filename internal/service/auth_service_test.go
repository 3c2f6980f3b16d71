package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pidb/catalog-api/internal/models"
	"github.com/pidb/catalog-api/internal/repository"
	appErrors "github.com/pidb/catalog-api/pkg/errors"
	"github.com/pidb/catalog-api/pkg/tabular"
)

type mockUserRepo struct {
	users     map[string]*models.User
	findErr   error
	updateErr error
	updates   map[string]string
}

func (m *mockUserRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	user, ok := m.users[username]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *mockUserRepo) UpdatePasswordHash(ctx context.Context, username, hash string) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if m.updates == nil {
		m.updates = map[string]string{}
	}
	m.updates[username] = hash
	if user, ok := m.users[username]; ok {
		user.PasswordHash = hash
	}
	return nil
}

type memorySessions struct {
	sessions map[string]models.SessionState
	saveErr  error
}

func newMemorySessions() *memorySessions {
	return &memorySessions{sessions: map[string]models.SessionState{}}
}

func (m *memorySessions) Get(ctx context.Context, id string) (*models.SessionState, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return &s, nil
}

func (m *memorySessions) Save(ctx context.Context, state models.SessionState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.sessions[state.ID] = state
	return nil
}

func (m *memorySessions) Delete(ctx context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func bcryptHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(users *mockUserRepo, sessions *memorySessions, audit *recordingAudit) *AuthService {
	return NewAuthService(users, sessions, audit, validator.New(), zap.NewNop(), AuthConfig{
		Secret:      "secret",
		TokenExpiry: time.Hour,
		Issuer:      "catalog-api",
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	users := &mockUserRepo{users: map[string]*models.User{
		"ana": {Username: "ana", PasswordHash: bcryptHash(t, "s3cret"), Role: "editor"},
	}}
	sessions := newMemorySessions()
	audit := &recordingAudit{}
	svc := newTestAuthService(users, sessions, audit)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "s3cret"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, models.ProgramPharmD, res.Session.Program)
	assert.Equal(t, models.FilterNone, res.Session.Filter.Mode)
	assert.True(t, res.Session.LoggedIn)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{models.AuditActionLogin}, audit.actions())

	session, err := svc.Authenticate(context.Background(), res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.Session.ID, session.ID)
	assert.Equal(t, "editor", session.Role)
}

func TestAuthServiceLoginInvalidCredentialsAreUniform(t *testing.T) {
	users := &mockUserRepo{users: map[string]*models.User{
		"ana": {Username: "ana", PasswordHash: bcryptHash(t, "s3cret")},
	}}
	audit := &recordingAudit{}
	svc := newTestAuthService(users, newMemorySessions(), audit)

	_, wrongPassword := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "nope"})
	_, unknownUser := svc.Login(context.Background(), models.LoginRequest{Username: "luis", Password: "nope"})

	require.Error(t, wrongPassword)
	require.Error(t, unknownUser)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.True(t, errors.Is(wrongPassword, appErrors.ErrInvalidCredentials))
	assert.Empty(t, audit.events, "failed logins are not audited")
}

func TestAuthServiceLoginValidation(t *testing.T) {
	svc := newTestAuthService(&mockUserRepo{}, newMemorySessions(), &recordingAudit{})
	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestAuthServiceLoginConnectionError(t *testing.T) {
	users := &mockUserRepo{findErr: tabular.ErrConnection}
	svc := newTestAuthService(users, newMemorySessions(), &recordingAudit{})
	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrConnection))
}

func TestAuthServiceLoginUpgradesLegacyHash(t *testing.T) {
	sum := sha256.Sum256([]byte("legacy-pass"))
	users := &mockUserRepo{users: map[string]*models.User{
		"Ana": {Username: "Ana", PasswordHash: hex.EncodeToString(sum[:])},
	}}
	svc := newTestAuthService(users, newMemorySessions(), &recordingAudit{})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "Ana", Password: "legacy-pass"})
	require.NoError(t, err)

	upgraded := users.updates["Ana"]
	require.NotEmpty(t, upgraded)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(upgraded), []byte("legacy-pass")))
}

func TestAuthServiceLoginAuditFailureBecomesWarning(t *testing.T) {
	users := &mockUserRepo{users: map[string]*models.User{
		"ana": {Username: "ana", PasswordHash: bcryptHash(t, "s3cret")},
	}}
	svc := newTestAuthService(users, newMemorySessions(), &recordingAudit{err: errors.New("sheet down")})

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "s3cret"})
	require.NoError(t, err)
	assert.Equal(t, []string{auditWarning}, res.Warnings)
}

func TestAuthServiceLogoutDropsSession(t *testing.T) {
	users := &mockUserRepo{users: map[string]*models.User{
		"ana": {Username: "ana", PasswordHash: bcryptHash(t, "s3cret")},
	}}
	sessions := newMemorySessions()
	audit := &recordingAudit{}
	svc := newTestAuthService(users, sessions, audit)

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "s3cret"})
	require.NoError(t, err)

	warnings := svc.Logout(context.Background(), res.Session)
	assert.Empty(t, warnings)
	assert.Equal(t, []string{models.AuditActionLogin, models.AuditActionLogout}, audit.actions())

	_, err = svc.Authenticate(context.Background(), res.AccessToken)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestAuthServiceResetPassword(t *testing.T) {
	users := &mockUserRepo{users: map[string]*models.User{
		"luis": {Username: "luis", PasswordHash: bcryptHash(t, "old-pass"), Role: "viewer"},
	}}
	audit := &recordingAudit{}
	svc := newTestAuthService(users, newMemorySessions(), audit)
	actor := models.UserInfo{Username: "ana", Role: "admin"}

	warnings, err := svc.ResetPassword(context.Background(), actor, models.ResetPasswordRequest{Username: "luis", NewPassword: "new-pass"})
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.updates["luis"]), []byte("new-pass")))
	require.Len(t, audit.events, 1)
	assert.Equal(t, "luis", audit.events[0].Username)
	assert.Equal(t, models.AuditActionPasswordReset, audit.events[0].Action)

	_, err = svc.ResetPassword(context.Background(), actor, models.ResetPasswordRequest{Username: "ghost", NewPassword: "new-pass"})
	assert.True(t, errors.Is(err, appErrors.ErrUserNotFound))

	users.updateErr = tabular.ErrWrite
	_, err = svc.ResetPassword(context.Background(), actor, models.ResetPasswordRequest{Username: "luis", NewPassword: "another"})
	assert.True(t, errors.Is(err, appErrors.ErrWrite))
}

func TestAuthServiceWithoutUserTableRefusesLogin(t *testing.T) {
	sessions := newMemorySessions()
	audit := &recordingAudit{}
	svc := NewAuthService(nil, sessions, audit, validator.New(), zap.NewNop(), AuthConfig{Secret: "secret"})

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "s3cret"})
	assert.True(t, errors.Is(err, appErrors.ErrFeatureDisabled))

	_, err = svc.ResetPassword(context.Background(), models.UserInfo{Username: "ana", Role: "editor"},
		models.ResetPasswordRequest{Username: "ana", NewPassword: "nuevo123"})
	assert.True(t, errors.Is(err, appErrors.ErrFeatureDisabled))
	assert.Empty(t, audit.events)
	assert.Empty(t, sessions.sessions)
}

func TestAuthServiceResetPasswordHonorsPolicy(t *testing.T) {
	users := &mockUserRepo{users: map[string]*models.User{
		"admin": {Username: "admin", PasswordHash: bcryptHash(t, "admin-pass"), Role: "editor"},
		"luis":  {Username: "luis", PasswordHash: bcryptHash(t, "old-pass"), Role: "viewer"},
	}}
	audit := &recordingAudit{}
	svc := NewAuthService(users, newMemorySessions(), audit, validator.New(), zap.NewNop(), AuthConfig{
		Secret:      "secret",
		TokenExpiry: time.Hour,
		ResetPolicy: NewEditPolicy([]string{"editor"}),
	})
	viewer := models.UserInfo{Username: "luis", Role: "viewer"}

	_, err := svc.ResetPassword(context.Background(), viewer, models.ResetPasswordRequest{Username: "admin", NewPassword: "hijacked"})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
	assert.Empty(t, users.updates)
	assert.Empty(t, audit.events)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "admin", Password: "hijacked"})
	assert.True(t, errors.Is(err, appErrors.ErrInvalidCredentials))

	self := models.UserInfo{Username: "Luis", Role: "viewer"}
	_, err = svc.ResetPassword(context.Background(), self, models.ResetPasswordRequest{Username: "luis", NewPassword: "own-new-pass"})
	require.NoError(t, err)
	assert.Contains(t, users.updates, "luis")

	editor := models.UserInfo{Username: "admin", Role: "editor"}
	_, err = svc.ResetPassword(context.Background(), editor, models.ResetPasswordRequest{Username: "luis", NewPassword: "by-editor"})
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(users.updates["luis"]), []byte("by-editor")))
}

func TestAuthServiceValidateTokenRejectsForeignSecret(t *testing.T) {
	users := &mockUserRepo{users: map[string]*models.User{
		"ana": {Username: "ana", PasswordHash: bcryptHash(t, "s3cret")},
	}}
	svc := newTestAuthService(users, newMemorySessions(), &recordingAudit{})
	res, err := svc.Login(context.Background(), models.LoginRequest{Username: "ana", Password: "s3cret"})
	require.NoError(t, err)

	other := NewAuthService(users, newMemorySessions(), nil, nil, nil, AuthConfig{Secret: "different"})
	_, err = other.ValidateToken(res.AccessToken)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestVerifyPassword(t *testing.T) {
	sum := sha256.Sum256([]byte("abc"))
	legacy, ok := verifyPassword(hex.EncodeToString(sum[:]), "abc")
	assert.True(t, legacy)
	assert.True(t, ok)

	_, ok = verifyPassword("plaintext", "plaintext")
	assert.False(t, ok, "unhashed values never match")

	_, ok = verifyPassword("", "")
	assert.False(t, ok)
}
