package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/imaginify/imaginify/backend/go-services/internal/apperror"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingInvalidator struct {
	paths []string
	err   error
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, path string) error {
	r.paths = append(r.paths, path)
	return r.err
}

func TestMemoryRepo_CreateIsIdempotentPerClerkID(t *testing.T) {
	r := NewMemoryUserRepository(nil)
	ctx := context.Background()

	u1, err := r.Create(ctx, CreateParams{ClerkID: "user_1", Email: "a@b.c", Username: "alice"})
	require.NoError(t, err)
	require.False(t, u1.ID.IsZero())
	require.Equal(t, int64(10), u1.CreditBalance)
	require.Equal(t, 1, u1.PlanID)

	u2, err := r.Create(ctx, CreateParams{ClerkID: "user_1", Email: "other@b.c", Username: "other"})
	require.NoError(t, err)
	require.Equal(t, u1.ID, u2.ID)
	require.Equal(t, "alice", u2.Username)
	require.Equal(t, 1, r.Len())
}

func TestMemoryRepo_UpdateTouchesOnlyProfileFields(t *testing.T) {
	r := NewMemoryUserRepository(nil)
	ctx := context.Background()
	created, err := r.Create(ctx, CreateParams{ClerkID: "user_1", Email: "a@b.c", Username: "alice"})
	require.NoError(t, err)
	_, err = r.AdjustCredits(ctx, created.ID.Hex(), 5)
	require.NoError(t, err)

	u, err := r.Update(ctx, "user_1", UpdateParams{FirstName: "Al", LastName: "Ice", Username: "al", Photo: "https://img/x.png"})
	require.NoError(t, err)
	require.Equal(t, "Al", u.FirstName)
	require.Equal(t, "https://img/x.png", u.Photo)
	require.Equal(t, "a@b.c", u.Email)
	require.Equal(t, int64(15), u.CreditBalance)

	_, err = r.Update(ctx, "missing", UpdateParams{})
	require.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestMemoryRepo_DeleteInvalidatesRoot(t *testing.T) {
	inv := &recordingInvalidator{}
	r := NewMemoryUserRepository(inv)
	ctx := context.Background()
	created, err := r.Create(ctx, CreateParams{ClerkID: "user_1", Email: "a@b.c"})
	require.NoError(t, err)

	deleted, err := r.Delete(ctx, "user_1")
	require.NoError(t, err)
	require.Equal(t, created.ID, deleted.ID)
	require.Equal(t, []string{"/"}, inv.paths)

	_, err = r.FindByExternalID(ctx, "user_1")
	require.True(t, errors.Is(err, apperror.ErrNotFound))
	require.Equal(t, MsgNotFound, apperror.Message(err))

	// second delete finds nothing and does not invalidate again
	_, err = r.Delete(ctx, "user_1")
	require.True(t, errors.Is(err, apperror.ErrNotFound))
	require.Len(t, inv.paths, 1)
}

func TestMemoryRepo_DeleteSucceedsWhenInvalidationFails(t *testing.T) {
	r := NewMemoryUserRepository(&recordingInvalidator{err: errors.New("redis down")})
	ctx := context.Background()
	_, err := r.Create(ctx, CreateParams{ClerkID: "user_1", Email: "a@b.c"})
	require.NoError(t, err)
	deleted, err := r.Delete(ctx, "user_1")
	require.NoError(t, err)
	require.NotNil(t, deleted)
}

func TestMemoryRepo_AdjustCredits(t *testing.T) {
	r := NewMemoryUserRepository(nil)
	ctx := context.Background()
	created, err := r.Create(ctx, CreateParams{ClerkID: "user_1", Email: "a@b.c"})
	require.NoError(t, err)

	u, err := r.AdjustCredits(ctx, created.ID.Hex(), -3)
	require.NoError(t, err)
	require.Equal(t, int64(7), u.CreditBalance)

	_, err = r.AdjustCredits(ctx, primitive.NewObjectID().Hex(), -3)
	require.True(t, errors.Is(err, apperror.ErrNotFound))
	require.Equal(t, MsgCreditsUpdateFailed, apperror.Message(err))

	_, err = r.AdjustCredits(ctx, "not-an-object-id", 1)
	require.True(t, errors.Is(err, apperror.ErrNotFound))

	again, err := r.FindByExternalID(ctx, "user_1")
	require.NoError(t, err)
	require.Equal(t, int64(7), again.CreditBalance)
}

func TestMemoryRepo_ListUnsyncedAndMark(t *testing.T) {
	r := NewMemoryUserRepository(nil)
	ctx := context.Background()
	a, err := r.Create(ctx, CreateParams{ClerkID: "user_a", Email: "a@b.c"})
	require.NoError(t, err)
	_, err = r.Create(ctx, CreateParams{ClerkID: "user_b", Email: "b@b.c"})
	require.NoError(t, err)

	future := time.Now().Add(time.Hour)
	pending, err := r.ListUnsynced(ctx, future, 0)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, r.MarkMetadataSynced(ctx, a.ID))
	pending, err = r.ListUnsynced(ctx, future, 0)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "user_b", pending[0].ClerkID)

	pending, err = r.ListUnsynced(ctx, time.Now().Add(-time.Hour), 0)
	require.NoError(t, err)
	require.Empty(t, pending)

	require.Error(t, r.MarkMetadataSynced(ctx, primitive.NewObjectID()))
}
