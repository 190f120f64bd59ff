package account_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/geocoder89/sosalert/internal/account"
	"github.com/geocoder89/sosalert/internal/auth"
	"github.com/geocoder89/sosalert/internal/domain/user"
	"github.com/geocoder89/sosalert/internal/repo/memory"
	"github.com/geocoder89/sosalert/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*account.Service, *memory.UsersRepo, *auth.Manager) {
	t.Helper()

	jwtManager, err := auth.NewManager("test-secret-key", time.Hour)
	require.NoError(t, err)

	repo := memory.NewUsersRepo()
	return account.NewService(repo, jwtManager), repo, jwtManager
}

func annInput() account.RegisterInput {
	return account.RegisterInput{
		Name:     "Ann",
		Email:    "ann@x.com",
		Password: "s3cret!",
		Contacts: []user.Contact{{Name: "Bo", Phone: "555-1"}},
	}
}

func TestRegister_MissingFields(t *testing.T) {
	svc, _, _ := newService(t)

	tests := []struct {
		name   string
		mutate func(in *account.RegisterInput)
	}{
		{"no name", func(in *account.RegisterInput) { in.Name = "" }},
		{"no email", func(in *account.RegisterInput) { in.Email = "" }},
		{"no password", func(in *account.RegisterInput) { in.Password = "" }},
		{"nil contacts", func(in *account.RegisterInput) { in.Contacts = nil }},
		{"empty contacts", func(in *account.RegisterInput) { in.Contacts = []user.Contact{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := annInput()
			tt.mutate(&in)

			_, err := svc.Register(context.Background(), in)
			assert.ErrorIs(t, err, account.ErrValidation)
		})
	}
}

func TestRegister_WhitespaceCountsAsPresent(t *testing.T) {
	svc, _, _ := newService(t)

	in := annInput()
	in.Name = "   "

	u, err := svc.Register(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "   ", u.Name)
}

func TestRegister_StoresHashNotPassword(t *testing.T) {
	svc, repo, _ := newService(t)

	u, err := svc.Register(context.Background(), annInput())
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)

	stored, err := repo.FindByEmail(context.Background(), "ann@x.com")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret!", stored.PasswordHash)
	assert.NoError(t, security.CheckPassword(stored.PasswordHash, "s3cret!"))
	assert.Equal(t, []user.Contact{{Name: "Bo", Phone: "555-1"}}, stored.EmergencyContacts)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Register(context.Background(), annInput())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), annInput())
	assert.ErrorIs(t, err, user.ErrEmailTaken)
}

// the lookup passes but the store rejects the insert, as with two racing
// registrations
type racingStore struct {
	*memory.UsersRepo
}

func (racingStore) FindByEmail(context.Context, string) (user.User, error) {
	return user.User{}, user.ErrNotFound
}

func TestRegister_StoreUniquenessWinsRace(t *testing.T) {
	repo := memory.NewUsersRepo()
	jwtManager, err := auth.NewManager("test-secret-key", time.Hour)
	require.NoError(t, err)

	svc := account.NewService(racingStore{repo}, jwtManager)

	_, err = svc.Register(context.Background(), annInput())
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), annInput())
	assert.ErrorIs(t, err, user.ErrEmailTaken)
}

type brokenStore struct {
	*memory.UsersRepo
	err error
}

func (b brokenStore) FindByEmail(context.Context, string) (user.User, error) {
	return user.User{}, b.err
}

func TestRegister_StoreFailureIsInternal(t *testing.T) {
	boom := errors.New("connection reset")
	jwtManager, err := auth.NewManager("test-secret-key", time.Hour)
	require.NoError(t, err)

	svc := account.NewService(brokenStore{memory.NewUsersRepo(), boom}, jwtManager)

	_, err = svc.Register(context.Background(), annInput())
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, user.ErrEmailTaken)
	assert.NotErrorIs(t, err, account.ErrValidation)
}

func TestLogin_Success(t *testing.T) {
	svc, _, _ := newService(t)

	u, err := svc.Register(context.Background(), annInput())
	require.NoError(t, err)

	session, err := svc.Login(context.Background(), "ann@x.com", "s3cret!")
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)
	assert.Equal(t, u.ID, session.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, 5*time.Second)

	userID, err := svc.Verify(session.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, userID)
}

func TestLogin_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Register(context.Background(), annInput())
	require.NoError(t, err)

	_, wrongPassword := svc.Login(context.Background(), "ann@x.com", "nope")
	_, unknownEmail := svc.Login(context.Background(), "nobody@x.com", "s3cret!")

	assert.ErrorIs(t, wrongPassword, account.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, account.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestVerify_RejectsForeignToken(t *testing.T) {
	svc, _, _ := newService(t)

	other, err := auth.NewManager("another-secret", time.Hour)
	require.NoError(t, err)
	token, _, err := other.GenerateAccessToken("u-1")
	require.NoError(t, err)

	_, err = svc.Verify(token)
	assert.ErrorIs(t, err, account.ErrInvalidToken)
}

func TestProfile(t *testing.T) {
	svc, _, _ := newService(t)

	u, err := svc.Register(context.Background(), annInput())
	require.NoError(t, err)

	got, err := svc.Profile(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)

	_, err = svc.Profile(context.Background(), "missing")
	assert.ErrorIs(t, err, user.ErrNotFound)
}
