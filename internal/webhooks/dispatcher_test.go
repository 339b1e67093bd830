package webhooks

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/imaginify/imaginify/backend/go-services/internal/apperror"
	"github.com/imaginify/imaginify/backend/go-services/internal/models"
	"github.com/imaginify/imaginify/backend/go-services/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	calls map[string]string
	err   error
}

func (f *fakeWriter) SetUserMetadata(ctx context.Context, clerkID, userID string) error {
	if f.err != nil {
		return f.err
	}
	if f.calls == nil {
		f.calls = map[string]string{}
	}
	f.calls[clerkID] = userID
	return nil
}

// brokenRepo fails every mutation with a storage error.
type brokenRepo struct {
	users.UserRepository
}

func (brokenRepo) Create(ctx context.Context, p users.CreateParams) (*models.User, error) {
	return nil, apperror.Repository("create user", errors.New("connection reset"))
}

func (brokenRepo) Update(ctx context.Context, id string, p users.UpdateParams) (*models.User, error) {
	return nil, apperror.Repository("update user", errors.New("connection reset"))
}

func (brokenRepo) Delete(ctx context.Context, id string) (*models.User, error) {
	return nil, apperror.Repository("delete user", errors.New("connection reset"))
}

func str(s string) *string { return &s }

func createdEvent(id string, emails ...string) UserCreated {
	var addrs []EmailAddress
	for i, e := range emails {
		addrs = append(addrs, EmailAddress{ID: "idn_" + string(rune('a'+i)), EmailAddress: e})
	}
	return UserCreated{Data: UserData{ID: id, EmailAddresses: addrs}}
}

func TestDispatch_CreateWritesBackMetadata(t *testing.T) {
	repo := users.NewMemoryUserRepository(nil)
	w := &fakeWriter{}
	d := NewDispatcher(repo, w)

	evt := createdEvent("user_1", "a@example.com")
	evt.Data.FirstName = str("Ada")
	evt.Data.ImageURL = str("https://img.example.com/a.png")

	res := d.Dispatch(context.Background(), evt)
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "User created", res.Message)
	require.NotNil(t, res.User)
	assert.Equal(t, "a@example.com", res.User.Email)
	assert.Equal(t, "user_1", res.User.Username, "username falls back to external id")
	assert.Equal(t, "Ada", res.User.FirstName)
	assert.Equal(t, "", res.User.LastName)
	assert.Equal(t, models.DefaultPlanID, res.User.PlanID)
	assert.Equal(t, int64(models.DefaultCreditBalance), res.User.CreditBalance)
	assert.True(t, res.User.MetadataSynced)
	assert.Equal(t, res.User.ID.Hex(), w.calls["user_1"])

	stored, err := repo.FindByExternalID(context.Background(), "user_1")
	require.NoError(t, err)
	assert.True(t, stored.MetadataSynced)
}

func TestDispatch_CreateRedeliveryKeepsOneRecord(t *testing.T) {
	repo := users.NewMemoryUserRepository(nil)
	d := NewDispatcher(repo, &fakeWriter{})

	first := d.Dispatch(context.Background(), createdEvent("user_1", "a@example.com"))
	second := d.Dispatch(context.Background(), createdEvent("user_1", "a@example.com"))
	require.Equal(t, http.StatusOK, second.Status)
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, 1, repo.Len())
}

func TestDispatch_CreateWithoutEmail(t *testing.T) {
	repo := users.NewMemoryUserRepository(nil)
	w := &fakeWriter{}
	res := NewDispatcher(repo, w).Dispatch(context.Background(), createdEvent("user_1"))
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "User email not found", res.Message)
	assert.Nil(t, res.User)
	assert.Equal(t, 0, repo.Len())
	assert.Empty(t, w.calls)
}

func TestDispatch_CreateWriteBackFailure(t *testing.T) {
	repo := users.NewMemoryUserRepository(nil)
	d := NewDispatcher(repo, &fakeWriter{err: errors.New("clerk: 503")})

	res := d.Dispatch(context.Background(), createdEvent("user_1", "a@example.com"))
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, "Error creating user", res.Message)

	stored, err := repo.FindByExternalID(context.Background(), "user_1")
	require.NoError(t, err, "local record stays for the retry")
	assert.False(t, stored.MetadataSynced)
}

func TestDispatch_CreateWithWriteBackDisabled(t *testing.T) {
	repo := users.NewMemoryUserRepository(nil)
	d := NewDispatcher(repo, &fakeWriter{err: users.ErrWriteBackDisabled})

	res := d.Dispatch(context.Background(), createdEvent("user_1", "a@example.com"))
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "User created", res.Message)
	require.NotNil(t, res.User)
	assert.False(t, res.User.MetadataSynced)

	stored, err := repo.FindByExternalID(context.Background(), "user_1")
	require.NoError(t, err)
	assert.False(t, stored.MetadataSynced, "record must stay pending for the reconciler")

	pending, err := repo.ListUnsynced(context.Background(), time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, stored.ID, pending[0].ID)
}

func TestDispatch_CreateRepositoryFailure(t *testing.T) {
	w := &fakeWriter{}
	res := NewDispatcher(brokenRepo{}, w).Dispatch(context.Background(), createdEvent("user_1", "a@example.com"))
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, "Error creating user", res.Message)
	assert.Empty(t, w.calls)
}

func TestDispatch_Update(t *testing.T) {
	repo := users.NewMemoryUserRepository(nil)
	d := NewDispatcher(repo, &fakeWriter{})
	d.Dispatch(context.Background(), createdEvent("user_1", "a@example.com"))

	res := d.Dispatch(context.Background(), UserUpdated{Data: UserData{
		ID:        "user_1",
		FirstName: str("Grace"),
		Username:  str("grace"),
	}})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "User updated", res.Message)
	assert.Equal(t, "Grace", res.User.FirstName)
	assert.Equal(t, "grace", res.User.Username)
	assert.Equal(t, "a@example.com", res.User.Email, "email is never updated")
}

func TestDispatch_UpdateUnknownUser(t *testing.T) {
	d := NewDispatcher(users.NewMemoryUserRepository(nil), &fakeWriter{})
	res := d.Dispatch(context.Background(), UserUpdated{Data: UserData{ID: "user_missing"}})
	assert.Equal(t, http.StatusNotFound, res.Status)
	assert.Equal(t, "User not found", res.Message)
}

func TestDispatch_UpdateRepositoryFailure(t *testing.T) {
	res := NewDispatcher(brokenRepo{}, &fakeWriter{}).Dispatch(context.Background(), UserUpdated{Data: UserData{ID: "user_1"}})
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, "Error updating user", res.Message)
}

func TestDispatch_Delete(t *testing.T) {
	repo := users.NewMemoryUserRepository(nil)
	d := NewDispatcher(repo, &fakeWriter{})
	created := d.Dispatch(context.Background(), createdEvent("user_1", "a@example.com"))

	res := d.Dispatch(context.Background(), UserDeleted{ID: "user_1", Deleted: true})
	require.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "User deleted", res.Message)
	require.NotNil(t, res.User)
	assert.Equal(t, created.User.ID, res.User.ID)
	assert.Equal(t, 0, repo.Len())

	again := d.Dispatch(context.Background(), UserDeleted{ID: "user_1", Deleted: true})
	assert.Equal(t, http.StatusOK, again.Status)
	assert.Equal(t, "User already deleted", again.Message)
	assert.Nil(t, again.User)
}

func TestDispatch_DeleteMissingID(t *testing.T) {
	res := NewDispatcher(users.NewMemoryUserRepository(nil), &fakeWriter{}).Dispatch(context.Background(), UserDeleted{})
	assert.Equal(t, http.StatusBadRequest, res.Status)
	assert.Equal(t, "User ID not found", res.Message)
}

func TestDispatch_DeleteRepositoryFailure(t *testing.T) {
	res := NewDispatcher(brokenRepo{}, &fakeWriter{}).Dispatch(context.Background(), UserDeleted{ID: "user_1"})
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, "Error deleting user", res.Message)
}

func TestDispatch_Unhandled(t *testing.T) {
	repo := users.NewMemoryUserRepository(nil)
	res := NewDispatcher(repo, &fakeWriter{}).Dispatch(context.Background(), Unhandled{EventType: "session.created", ObjectID: "sess_1"})
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Equal(t, "Webhook processed", res.Message)
	assert.Nil(t, res.User)
	assert.Equal(t, 0, repo.Len())
}
