// store/store.go
package store

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assettrack/models"
)

// AssetFilter narrows ListAssets. Zero values mean "no filter". Search is a
// case-insensitive match over tag, brand, model, serial number and notes.
type AssetFilter struct {
	Status     string
	Type       string
	Department string
	Search     string
}

// IssuanceFilter narrows ListIssuances.
type IssuanceFilter struct {
	Status  string
	AssetID primitive.ObjectID
	UserID  primitive.ObjectID
}

// AuditFilter narrows ListAudit.
type AuditFilter struct {
	ResourceType string
	ResourceID   primitive.ObjectID
	Action       string
	Limit        int64
}

// StatusTypeDeptCounts are the dashboard aggregates, recomputed per call.
type StatusTypeDeptCounts struct {
	Total        int64            `json:"total"`
	ByStatus     map[string]int64 `json:"byStatus"`
	ByType       map[string]int64 `json:"byType"`
	ByDepartment map[string]int64 `json:"byDepartment"`
}

// Store is the persistence contract shared by the Mongo backend and the
// in-memory backend used in tests. Implementations translate their native
// failures into the apperr taxonomy: missing documents become
// apperr.ErrNotFound, unique-index violations on the asset tag become
// apperr.ErrDuplicateAssetTag, connectivity failures become
// apperr.ErrUnavailable.
type Store interface {
	// WithTx runs fn atomically: every store call made with the ctx passed
	// to fn commits together or not at all. Used to bind each state
	// mutation to its audit entry.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	InsertAsset(ctx context.Context, a *models.Asset) error
	GetAsset(ctx context.Context, id primitive.ObjectID) (*models.Asset, error)
	GetAssetByTag(ctx context.Context, tag string) (*models.Asset, error)
	UpdateAsset(ctx context.Context, a *models.Asset) error
	DeleteAsset(ctx context.Context, id primitive.ObjectID) error
	ListAssets(ctx context.Context, f AssetFilter) ([]models.Asset, error)
	// AssetTagsByPrefix returns every business key starting with prefix+"-".
	AssetTagsByPrefix(ctx context.Context, prefix string) ([]string, error)
	CountAssets(ctx context.Context) (StatusTypeDeptCounts, error)

	InsertIssuance(ctx context.Context, i *models.Issuance) error
	GetIssuance(ctx context.Context, id primitive.ObjectID) (*models.Issuance, error)
	UpdateIssuance(ctx context.Context, i *models.Issuance) error
	ListIssuances(ctx context.Context, f IssuanceFilter) ([]models.Issuance, error)
	// OpenIssuanceForAsset returns the single non-terminal issuance for the
	// asset, or apperr.ErrNotFound when there is none.
	OpenIssuanceForAsset(ctx context.Context, assetID primitive.ObjectID) (*models.Issuance, error)

	GetTemplate(ctx context.Context, documentType string) (*models.DocumentTemplate, error)
	ListTemplates(ctx context.Context) ([]models.DocumentTemplate, error)
	UpsertTemplate(ctx context.Context, t *models.DocumentTemplate) error

	InsertSignature(ctx context.Context, s *models.SignatureRecord) error
	ListSignatures(ctx context.Context, issuanceID primitive.ObjectID) ([]models.SignatureRecord, error)

	AppendAudit(ctx context.Context, e *models.AuditLog) error
	ListAudit(ctx context.Context, f AuditFilter) ([]models.AuditLog, error)

	GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	InsertUser(ctx context.Context, u *models.User) error
}
