// Package webhooks authenticates identity-provider deliveries and applies
// them to the local user store.
package webhooks

import (
	"encoding/json"
	"errors"

	"github.com/imaginify/imaginify/backend/go-services/internal/apperror"
)

// Event kinds sent by the identity provider.
const (
	TypeUserCreated = "user.created"
	TypeUserUpdated = "user.updated"
	TypeUserDeleted = "user.deleted"
)

// Event is one verified delivery. The set of implementations is closed:
// UserCreated, UserUpdated, UserDeleted and Unhandled.
type Event interface {
	Type() string
	isEvent()
}

type EmailAddress struct {
	ID           string `json:"id"`
	EmailAddress string `json:"email_address"`
}

// UserData is the account object carried by created and updated events.
// Nullable provider fields are pointers so absent and empty differ.
type UserData struct {
	ID                    string         `json:"id"`
	EmailAddresses        []EmailAddress `json:"email_addresses"`
	PrimaryEmailAddressID *string        `json:"primary_email_address_id"`
	Username              *string        `json:"username"`
	FirstName             *string        `json:"first_name"`
	LastName              *string        `json:"last_name"`
	ImageURL              *string        `json:"image_url"`
}

// PrimaryEmail returns the address flagged as primary, else the first one.
func (d UserData) PrimaryEmail() string {
	if d.PrimaryEmailAddressID != nil {
		for _, e := range d.EmailAddresses {
			if e.ID == *d.PrimaryEmailAddressID && e.EmailAddress != "" {
				return e.EmailAddress
			}
		}
	}
	if len(d.EmailAddresses) > 0 {
		return d.EmailAddresses[0].EmailAddress
	}
	return ""
}

type UserCreated struct{ Data UserData }
type UserUpdated struct{ Data UserData }

type UserDeleted struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// Unhandled is any event kind this service does not act on.
type Unhandled struct {
	EventType string
	ObjectID  string
}

func (UserCreated) Type() string { return TypeUserCreated }
func (UserUpdated) Type() string { return TypeUserUpdated }
func (UserDeleted) Type() string { return TypeUserDeleted }
func (e Unhandled) Type() string { return e.EventType }
func (UserCreated) isEvent() {}
func (UserUpdated) isEvent() {}
func (UserDeleted) isEvent() {}
func (Unhandled) isEvent() {}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ParseEvent decodes a delivery body into its typed variant.
func ParseEvent(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apperror.MalformedBody(err)
	}
	if env.Type == "" {
		return nil, apperror.MalformedBody(errors.New("missing event type"))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		env.Data = json.RawMessage("{}")
	}

	switch env.Type {
	case TypeUserCreated:
		var d UserData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, apperror.MalformedBody(err)
		}
		return UserCreated{Data: d}, nil
	case TypeUserUpdated:
		var d UserData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, apperror.MalformedBody(err)
		}
		return UserUpdated{Data: d}, nil
	case TypeUserDeleted:
		var d UserDeleted
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return nil, apperror.MalformedBody(err)
		}
		return d, nil
	default:
		var obj struct {
			ID string `json:"id"`
		}
		// data of other kinds may not be an object; the id is only logged
		_ = json.Unmarshal(env.Data, &obj)
		return Unhandled{EventType: env.Type, ObjectID: obj.ID}, nil
	}
}
