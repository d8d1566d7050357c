// models/audit_log.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Audit actions. Every state-changing operation writes exactly one entry.
const (
	ActionCreate         = "create"
	ActionUpdate         = "update"
	ActionDelete         = "delete"
	ActionAssign         = "assign"
	ActionUnassign       = "unassign"
	ActionStatusChange   = "status_change"
	ActionSignDocument   = "sign_document"
	ActionCancelIssuance = "cancel_issuance"
)

type AuditLog struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action       string             `bson:"action" json:"action"`
	ResourceType string             `bson:"resourceType" json:"resourceType"` // asset, issuance
	ResourceID   primitive.ObjectID `bson:"resourceId,omitempty" json:"resourceId,omitempty"`
	ResourceName string             `bson:"resourceName,omitempty" json:"resourceName,omitempty"`
	UserID       primitive.ObjectID `bson:"userId" json:"userId"`
	UserName     string             `bson:"userName,omitempty" json:"userName,omitempty"`
	UserRole     string             `bson:"userRole,omitempty" json:"userRole,omitempty"`
	Description  string             `bson:"description" json:"description"`
	Details      bson.M             `bson:"details,omitempty" json:"details,omitempty"`
	AssetTag     string             `bson:"assetTag,omitempty" json:"assetTag,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
}
