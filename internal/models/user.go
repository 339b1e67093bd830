package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Default values applied when a user record is first created.
const (
	DefaultPlanID        = 1
	DefaultCreditBalance = 10
)

// User is the local record synchronized from the identity provider.
// ClerkID is the provider's account id and the join key for every webhook.
type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ClerkID        string             `bson:"clerkId" json:"clerkId"`
	Email          string             `bson:"email" json:"email"`
	Username       string             `bson:"username" json:"username"`
	FirstName      string             `bson:"firstName" json:"firstName"`
	LastName       string             `bson:"lastName" json:"lastName"`
	Photo          string             `bson:"photo" json:"photo"`
	PlanID         int                `bson:"planId" json:"planId"`
	CreditBalance  int64              `bson:"creditBalance" json:"creditBalance"`
	MetadataSynced bool               `bson:"metadataSynced" json:"-"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt      time.Time          `bson:"updatedAt" json:"updatedAt"`
}
