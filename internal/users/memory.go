package users

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/imaginify/imaginify/backend/go-services/internal/apperror"
	"github.com/imaginify/imaginify/backend/go-services/internal/cache"
	"github.com/imaginify/imaginify/backend/go-services/internal/models"
	"github.com/imaginify/imaginify/backend/go-services/pkg/logger"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryUserRepository is an in-memory UserRepository used by tests and when
// no MongoDB URI is configured. Records are copied on the way in and out.
type MemoryUserRepository struct {
	mu          sync.RWMutex
	byID        map[primitive.ObjectID]*models.User
	byClerkID   map[string]primitive.ObjectID
	invalidator cache.Invalidator
}

func NewMemoryUserRepository(inv cache.Invalidator) *MemoryUserRepository {
	if inv == nil {
		inv = cache.NoopInvalidator{}
	}
	return &MemoryUserRepository{
		byID:        make(map[primitive.ObjectID]*models.User),
		byClerkID:   make(map[string]primitive.ObjectID),
		invalidator: inv,
	}
}

func clone(u *models.User) *models.User {
	c := *u
	return &c
}

func (m *MemoryUserRepository) Create(ctx context.Context, p CreateParams) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byClerkID[p.ClerkID]; ok {
		return clone(m.byID[id]), nil
	}
	now := time.Now().UTC()
	u := &models.User{
		ID:            primitive.NewObjectID(),
		ClerkID:       p.ClerkID,
		Email:         p.Email,
		Username:      p.Username,
		FirstName:     p.FirstName,
		LastName:      p.LastName,
		Photo:         p.Photo,
		PlanID:        models.DefaultPlanID,
		CreditBalance: models.DefaultCreditBalance,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	m.byID[u.ID] = u
	m.byClerkID[u.ClerkID] = u.ID
	return clone(u), nil
}

func (m *MemoryUserRepository) FindByExternalID(ctx context.Context, clerkID string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byClerkID[clerkID]
	if !ok {
		return nil, apperror.NotFound(MsgNotFound)
	}
	return clone(m.byID[id]), nil
}

func (m *MemoryUserRepository) Update(ctx context.Context, clerkID string, p UpdateParams) (*models.User, error) {
	m.mu.Lock()
	id, ok := m.byClerkID[clerkID]
	if !ok {
		m.mu.Unlock()
		return nil, apperror.NotFound(MsgUpdateFailed)
	}
	u := m.byID[id]
	u.FirstName = p.FirstName
	u.LastName = p.LastName
	u.Username = p.Username
	u.Photo = p.Photo
	u.UpdatedAt = time.Now().UTC()
	out := clone(u)
	m.mu.Unlock()

	if err := m.invalidator.Invalidate(ctx, UserPath(clerkID)); err != nil {
		logger.Warnf("cache invalidation after updating %s failed: %v", clerkID, err)
	}
	return out, nil
}

func (m *MemoryUserRepository) Delete(ctx context.Context, clerkID string) (*models.User, error) {
	m.mu.Lock()
	id, ok := m.byClerkID[clerkID]
	if !ok {
		m.mu.Unlock()
		return nil, apperror.NotFound(MsgNotFound)
	}
	u := m.byID[id]
	delete(m.byID, id)
	delete(m.byClerkID, clerkID)
	m.mu.Unlock()

	if err := m.invalidator.Invalidate(ctx, "/"); err != nil {
		logger.Warnf("cache invalidation after deleting %s failed: %v", clerkID, err)
	}
	return u, nil
}

func (m *MemoryUserRepository) AdjustCredits(ctx context.Context, userID string, delta int64) (*models.User, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, apperror.NotFound(MsgCreditsUpdateFailed)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[oid]
	if !ok {
		return nil, apperror.NotFound(MsgCreditsUpdateFailed)
	}
	u.CreditBalance += delta
	u.UpdatedAt = time.Now().UTC()
	return clone(u), nil
}

func (m *MemoryUserRepository) MarkMetadataSynced(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return apperror.NotFound(MsgNotFound)
	}
	u.MetadataSynced = true
	return nil
}

func (m *MemoryUserRepository) ListUnsynced(ctx context.Context, createdBefore time.Time, limit int64) ([]*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*models.User{}
	for _, u := range m.byID {
		if !u.MetadataSynced && u.CreatedAt.Before(createdBefore) {
			out = append(out, clone(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of stored users.
func (m *MemoryUserRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
