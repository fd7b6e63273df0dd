package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"ballot-auth/internal/auth"
	"ballot-auth/internal/database"
	"ballot-auth/internal/domain"
)

const testSecret = "test-secret"

func storedUser(t *testing.T, hasher auth.PasswordHasher, password string) *domain.User {
	t.Helper()
	digest, err := hasher.Hash(password)
	require.NoError(t, err)
	return &domain.User{
		ID:           "6650c0ffee",
		Email:        "user@example.com",
		PasswordHash: digest,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		StudentID:    "S-1815",
		Role:         domain.RoleVoter,
		IsActive:     true,
	}
}

func newAuth(conn Connector, hasher auth.PasswordHasher) AuthService {
	return NewAuthService(conn, hasher, auth.NewTokenSigner(testSecret, auth.TokenTTL), quietLogger())
}

func TestAuthenticate_Success(t *testing.T) {
	hasher := &auth.BcryptHasher{Cost: bcrypt.MinCost}
	user := storedUser(t, hasher, "s3cret!")
	conn := &fakeConnector{repo: newFakeUsers(user)}
	svc := newAuth(conn, hasher)

	before := time.Now()
	res, err := svc.Authenticate(context.Background(), "user@example.com", "s3cret!")
	require.NoError(t, err)

	assert.Equal(t, domain.PublicProfile{
		ID:        user.ID,
		Email:     user.Email,
		FirstName: "Ada",
		LastName:  "Lovelace",
		Role:      domain.RoleVoter,
		StudentID: "S-1815",
	}, res.User)

	claims, err := auth.NewTokenSigner(testSecret, auth.TokenTTL).Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, "voter", claims.Role)
	assert.WithinDuration(t, before.Add(24*time.Hour), claims.ExpiresAt.Time, 5*time.Second)
	assert.WithinDuration(t, res.ExpiresAt, claims.ExpiresAt.Time, time.Second)
}

func TestAuthenticate_EmailIsCaseInsensitive(t *testing.T) {
	hasher := plainHasher{}
	users := newFakeUsers(storedUser(t, hasher, "pw"))
	svc := newAuth(&fakeConnector{repo: users}, hasher)

	res, err := svc.Authenticate(context.Background(), "  User@Example.com ", "pw")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", res.User.Email)
	assert.Equal(t, []string{"user@example.com"}, users.lookups)
}

func TestAuthenticate_MissingFields(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"no email", "", "pw"},
		{"blank email", "   ", "pw"},
		{"no password", "user@example.com", ""},
		{"blank password", "user@example.com", " \t"},
		{"nothing", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conn := &fakeConnector{repo: newFakeUsers()}
			svc := newAuth(conn, plainHasher{})

			_, err := svc.Authenticate(context.Background(), tc.email, tc.password)
			require.ErrorIs(t, err, ErrInvalidRequest)
			assert.Zero(t, conn.calls, "validation happens before touching the datastore")
		})
	}
}

func TestAuthenticate_UnknownEmailAndWrongPasswordAreIndistinguishable(t *testing.T) {
	hasher := plainHasher{}
	svc := newAuth(&fakeConnector{repo: newFakeUsers(storedUser(t, hasher, "pw"))}, hasher)

	_, errUnknown := svc.Authenticate(context.Background(), "ghost@example.com", "pw")
	_, errWrong := svc.Authenticate(context.Background(), "user@example.com", "nope")

	require.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	require.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.Equal(t, errUnknown, errWrong)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestAuthenticate_Deactivated(t *testing.T) {
	hasher := plainHasher{}
	user := storedUser(t, hasher, "pw")
	user.IsActive = false
	svc := newAuth(&fakeConnector{repo: newFakeUsers(user)}, hasher)

	_, err := svc.Authenticate(context.Background(), "user@example.com", "pw")
	require.ErrorIs(t, err, ErrAccountDeactivated)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)

	// a wrong password on a deactivated account must not reveal deactivation
	_, err = svc.Authenticate(context.Background(), "user@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticate_DatastoreUnavailable(t *testing.T) {
	cause := &database.ConnectionError{Cause: errors.New("dial tcp 10.0.0.1:5432: i/o timeout")}
	svc := newAuth(&fakeConnector{err: cause}, plainHasher{})

	_, err := svc.Authenticate(context.Background(), "user@example.com", "pw")
	require.ErrorIs(t, err, ErrServiceUnavailable)
	assert.NotContains(t, err.Error(), "10.0.0.1")
}

func TestAuthenticate_DescriptorMissing(t *testing.T) {
	svc := newAuth(&fakeConnector{err: database.ErrConfiguration}, plainHasher{})

	_, err := svc.Authenticate(context.Background(), "user@example.com", "pw")
	require.ErrorIs(t, err, ErrServiceUnavailable)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestAuthenticate_LookupFailure(t *testing.T) {
	users := newFakeUsers()
	users.getErr = errors.New("query timeout")
	svc := newAuth(&fakeConnector{repo: users}, plainHasher{})

	_, err := svc.Authenticate(context.Background(), "user@example.com", "pw")
	require.ErrorIs(t, err, ErrServiceUnavailable)
}

func TestAuthenticate_MissingSecretDoesNotFallBack(t *testing.T) {
	hasher := plainHasher{}
	conn := &fakeConnector{repo: newFakeUsers(storedUser(t, hasher, "pw"))}
	svc := NewAuthService(conn, hasher, auth.NewTokenSigner("", auth.TokenTTL), quietLogger())

	res, err := svc.Authenticate(context.Background(), "user@example.com", "pw")
	require.ErrorIs(t, err, ErrConfiguration)
	assert.Nil(t, res)
}

func TestAuthenticate_PasswordIsNotTrimmedForVerification(t *testing.T) {
	hasher := plainHasher{}
	conn := &fakeConnector{repo: newFakeUsers(storedUser(t, hasher, " padded "))}
	svc := newAuth(conn, hasher)

	_, err := svc.Authenticate(context.Background(), "user@example.com", " padded ")
	require.NoError(t, err)

	_, err = svc.Authenticate(context.Background(), "user@example.com", "padded")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}
