// models/issuance.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	IssuancePendingSignatures = "pending_signatures"
	IssuanceActive            = "active"
	IssuanceCancelled         = "cancelled"
	IssuanceReturned          = "returned"
)

type Issuance struct {
	ID                 primitive.ObjectID    `bson:"_id,omitempty" json:"id"`
	AssetID            primitive.ObjectID    `bson:"assetId" json:"assetId"`
	AssetTag           string                `bson:"assetTag" json:"assetTag"`
	UserID             primitive.ObjectID    `bson:"userId" json:"userId"`
	IssuedBy           primitive.ObjectID    `bson:"issuedBy" json:"issuedBy"`
	IssuedDate         time.Time             `bson:"issuedDate" json:"issuedDate"`
	ExpectedReturnDate *time.Time            `bson:"expectedReturnDate,omitempty" json:"expectedReturnDate,omitempty"`
	Notes              string                `bson:"notes,omitempty" json:"notes,omitempty"`
	Status             string                `bson:"status" json:"status"`
	Documents          []DocumentRequirement `bson:"documents" json:"documents"`
	CancellationReason string                `bson:"cancellationReason,omitempty" json:"cancellationReason,omitempty"`
	CancelledAt        *time.Time            `bson:"cancelledAt,omitempty" json:"cancelledAt,omitempty"`
	CancelledBy        *primitive.ObjectID   `bson:"cancelledBy,omitempty" json:"cancelledBy,omitempty"`
	ReturnedAt         *time.Time            `bson:"returnedAt,omitempty" json:"returnedAt,omitempty"`
	ReturnedBy         *primitive.ObjectID   `bson:"returnedBy,omitempty" json:"returnedBy,omitempty"`
	CreatedAt          time.Time             `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time             `bson:"updatedAt" json:"updatedAt"`
}

// DocumentRequirement is one compliance document gating this issuance.
type DocumentRequirement struct {
	DocumentType string     `bson:"documentType" json:"documentType"`
	Required     bool       `bson:"required" json:"required"`
	Signed       bool       `bson:"signed" json:"signed"`
	SignedAt     *time.Time `bson:"signedAt,omitempty" json:"signedAt,omitempty"`
}

// Terminal reports whether the issuance can no longer change state.
func (i *Issuance) Terminal() bool {
	return i.Status == IssuanceCancelled || i.Status == IssuanceReturned
}

// AllRequiredSigned reports whether every required document has been signed.
func (i *Issuance) AllRequiredSigned() bool {
	for _, d := range i.Documents {
		if d.Required && !d.Signed {
			return false
		}
	}
	return true
}
