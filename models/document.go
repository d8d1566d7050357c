// models/document.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Template field types understood by the form validator.
const (
	FieldText     = "text"
	FieldEmail    = "email"
	FieldDate     = "date"
	FieldCheckbox = "checkbox"
)

type TemplateField struct {
	Name     string `bson:"name" json:"name"`
	Label    string `bson:"label" json:"label"`
	Type     string `bson:"type" json:"type"`
	Required bool   `bson:"required" json:"required"`
}

type DocumentTemplate struct {
	DocumentType string          `bson:"documentType" json:"documentType"` // key
	Name         string          `bson:"name" json:"name"`
	Content      string          `bson:"content" json:"content"`
	Fields       []TemplateField `bson:"fields" json:"fields"`
}

// SignatureRecord is a permanent evidentiary artifact. It is inserted once
// and never updated or deleted.
type SignatureRecord struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IssuanceID   primitive.ObjectID `bson:"issuanceId" json:"issuanceId"`
	DocumentType string             `bson:"documentType" json:"documentType"`
	FormData     map[string]string  `bson:"formData" json:"formData"`
	Signature    string             `bson:"signature" json:"-"` // opaque blob, content never interpreted
	SignedAt     time.Time          `bson:"signedAt" json:"signedAt"`
	SignerUserID primitive.ObjectID `bson:"signerUserId" json:"signerUserId"`
}
