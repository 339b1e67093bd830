package webhooks

import (
	"context"
	"errors"
	"net/http"

	"github.com/imaginify/imaginify/backend/go-services/internal/apperror"
	"github.com/imaginify/imaginify/backend/go-services/internal/models"
	"github.com/imaginify/imaginify/backend/go-services/internal/users"
	"github.com/imaginify/imaginify/backend/go-services/pkg/logger"
	"github.com/imaginify/imaginify/backend/go-services/pkg/metrics"
)

// Result is the HTTP-shaped outcome of one delivery.
type Result struct {
	Status  int
	Message string
	User    *models.User
}

// Dispatcher applies verified events to the user store. It keeps no state
// between deliveries.
type Dispatcher struct {
	repo     users.UserRepository
	metadata users.MetadataWriter
}

func NewDispatcher(repo users.UserRepository, metadata users.MetadataWriter) *Dispatcher {
	return &Dispatcher{repo: repo, metadata: metadata}
}

func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) Result {
	switch e := evt.(type) {
	case UserCreated:
		return d.userCreated(ctx, e)
	case UserUpdated:
		return d.userUpdated(ctx, e)
	case UserDeleted:
		return d.userDeleted(ctx, e)
	case Unhandled:
		logger.Infof("Webhook received: %s for user %s", e.EventType, e.ObjectID)
		return Result{Status: http.StatusOK, Message: "Webhook processed"}
	default:
		logger.Warnf("webhook: unexpected event value %T", evt)
		return Result{Status: http.StatusOK, Message: "Webhook processed"}
	}
}

func orDefault(p *string, def string) string {
	if p == nil {
		return def
	}
	return *p
}

func (d *Dispatcher) userCreated(ctx context.Context, e UserCreated) Result {
	if e.Data.ID == "" {
		return Result{Status: http.StatusBadRequest, Message: "User ID not found"}
	}
	email := e.Data.PrimaryEmail()
	if email == "" {
		return Result{Status: http.StatusBadRequest, Message: "User email not found"}
	}
	draft := users.CreateParams{
		ClerkID:   e.Data.ID,
		Email:     email,
		Username:  orDefault(e.Data.Username, e.Data.ID),
		FirstName: orDefault(e.Data.FirstName, ""),
		LastName:  orDefault(e.Data.LastName, ""),
		Photo:     orDefault(e.Data.ImageURL, ""),
	}

	u, err := d.repo.Create(ctx, draft)
	if err != nil {
		logger.Errorf("Error creating user %s: %v", draft.ClerkID, err)
		return Result{Status: http.StatusInternalServerError, Message: "Error creating user"}
	}
	if u != nil {
		// the local record is already persisted; the sender's retry replays
		// the upsert and this call
		err := d.metadata.SetUserMetadata(ctx, u.ClerkID, u.ID.Hex())
		if errors.Is(err, users.ErrWriteBackDisabled) {
			// left unsynced for the reconciler once a key is configured
			metrics.MetadataSync.WithLabelValues("skipped").Inc()
			return Result{Status: http.StatusOK, Message: "User created", User: u}
		}
		if err != nil {
			metrics.MetadataSync.WithLabelValues("error").Inc()
			logger.Errorf("Error creating user %s: metadata write-back failed: %v", u.ClerkID, err)
			return Result{Status: http.StatusInternalServerError, Message: "Error creating user"}
		}
		metrics.MetadataSync.WithLabelValues("ok").Inc()
		if err := d.repo.MarkMetadataSynced(ctx, u.ID); err != nil {
			logger.Warnf("marking %s metadata synced failed: %v", u.ClerkID, err)
		} else {
			u.MetadataSynced = true
		}
	}
	return Result{Status: http.StatusOK, Message: "User created", User: u}
}

func (d *Dispatcher) userUpdated(ctx context.Context, e UserUpdated) Result {
	if e.Data.ID == "" {
		return Result{Status: http.StatusBadRequest, Message: "User ID not found"}
	}
	params := users.UpdateParams{
		FirstName: orDefault(e.Data.FirstName, ""),
		LastName:  orDefault(e.Data.LastName, ""),
		Username:  orDefault(e.Data.Username, e.Data.ID),
		Photo:     orDefault(e.Data.ImageURL, ""),
	}
	u, err := d.repo.Update(ctx, e.Data.ID, params)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			// the sender retries on 404, covering an update that arrives
			// before its create
			logger.Warnf("Error updating user %s: %s", e.Data.ID, apperror.Message(err))
			return Result{Status: http.StatusNotFound, Message: "User not found"}
		}
		logger.Errorf("Error updating user %s: %v", e.Data.ID, err)
		return Result{Status: http.StatusInternalServerError, Message: "Error updating user"}
	}
	return Result{Status: http.StatusOK, Message: "User updated", User: u}
}

func (d *Dispatcher) userDeleted(ctx context.Context, e UserDeleted) Result {
	if e.ID == "" {
		return Result{Status: http.StatusBadRequest, Message: "User ID not found"}
	}
	u, err := d.repo.Delete(ctx, e.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			logger.Infof("user %s already deleted", e.ID)
			return Result{Status: http.StatusOK, Message: "User already deleted"}
		}
		logger.Errorf("Error deleting user %s: %v", e.ID, err)
		return Result{Status: http.StatusInternalServerError, Message: "Error deleting user"}
	}
	return Result{Status: http.StatusOK, Message: "User deleted", User: u}
}
