// workflow/coordinator.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"assettrack/apperr"
	"assettrack/models"
	"assettrack/store"
)

// Coordinator owns the issuance aggregate and the per-asset state machine:
//
//	available -> pending_for_signature -> in_use -> available (return)
//	pending_for_signature -> available (cancel)
//
// All operations touching one asset are linearized through the shared lock
// table; each either completes atomically or leaves every record unchanged.
type Coordinator struct {
	store   store.Store
	signing *Signing
	audit   *Recorder
	locks   *LockTable
}

func NewCoordinator(st store.Store, signing *Signing, rec *Recorder, locks *LockTable) *Coordinator {
	return &Coordinator{store: st, signing: signing, audit: rec, locks: locks}
}

// IssueInput identifies the asset by business key and the receiving user by
// directory id. DocumentTypes name the compliance documents gating the
// issuance; every one must have a template.
type IssueInput struct {
	AssetTag           string   `json:"assetTag"`
	UserID             string   `json:"userId"`
	ExpectedReturnDate string   `json:"expectedReturnDate"` // optional, YYYY-MM-DD
	Notes              string   `json:"notes"`
	DocumentTypes      []string `json:"documentTypes"`
}

// Issue creates a pending_signatures issuance for an available asset and
// moves the asset to pending_for_signature with the user assigned.
func (c *Coordinator) Issue(ctx context.Context, actor Actor, in IssueInput) (*models.Issuance, *models.Asset, error) {
	if strings.TrimSpace(in.AssetTag) == "" {
		return nil, nil, apperr.NewValidation("assetTag", "is required")
	}
	userID, err := primitive.ObjectIDFromHex(in.UserID)
	if err != nil {
		return nil, nil, apperr.NewValidation("userId", "invalid user id")
	}
	docTypes := dedupe(in.DocumentTypes)
	if len(docTypes) == 0 {
		return nil, nil, apperr.NewValidation("documentTypes", "at least one document type is required")
	}

	var expectedReturn *time.Time
	if in.ExpectedReturnDate != "" {
		d, err := time.Parse(dateLayout, in.ExpectedReturnDate)
		if err != nil {
			return nil, nil, apperr.NewValidation("expectedReturnDate", "invalid date, expected YYYY-MM-DD")
		}
		expectedReturn = &d
	}

	unlock := c.locks.Acquire(in.AssetTag)
	defer unlock()

	asset, err := c.store.GetAssetByTag(ctx, in.AssetTag)
	if err != nil {
		return nil, nil, err
	}
	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if asset.Status != models.AssetAvailable {
		return nil, nil, fmt.Errorf("asset %s is %s: %w", asset.AssetTag, asset.Status, apperr.ErrConflict)
	}

	now := time.Now().UTC()
	if expectedReturn != nil && expectedReturn.Before(now.Truncate(24*time.Hour)) {
		return nil, nil, apperr.NewValidation("expectedReturnDate", "must not be in the past")
	}

	docs := make([]models.DocumentRequirement, 0, len(docTypes))
	for _, dt := range docTypes {
		if _, err := c.store.GetTemplate(ctx, dt); err != nil {
			return nil, nil, err
		}
		docs = append(docs, models.DocumentRequirement{DocumentType: dt, Required: true})
	}

	issuance := &models.Issuance{
		ID:                 primitive.NewObjectID(),
		AssetID:            asset.ID,
		AssetTag:           asset.AssetTag,
		UserID:             user.ID,
		IssuedBy:           actor.ID,
		IssuedDate:         now,
		ExpectedReturnDate: expectedReturn,
		Notes:              in.Notes,
		Status:             models.IssuancePendingSignatures,
		Documents:          docs,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	asset.Status = models.AssetPendingForSignature
	asset.AssignedUserID = &user.ID
	asset.UpdatedAt = now

	err = c.store.WithTx(ctx, func(ctx context.Context) error {
		if err := c.store.InsertIssuance(ctx, issuance); err != nil {
			return err
		}
		if err := c.store.UpdateAsset(ctx, asset); err != nil {
			return err
		}
		return c.audit.Append(ctx, &models.AuditLog{
			Action:       models.ActionAssign,
			ResourceType: "issuance",
			ResourceID:   issuance.ID,
			ResourceName: asset.AssetTag,
			UserID:       actor.ID,
			UserName:     actor.Name,
			UserRole:     actor.Role,
			Description:  "Issued asset " + asset.AssetTag + " to " + user.FullName,
			Details:      bson.M{"userId": user.ID, "documentTypes": docTypes},
			AssetTag:     asset.AssetTag,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return issuance, asset, nil
}

// SignDocument records one signature. The last required signature activates
// the issuance and moves the asset to in_use; that completion is part of the
// same sign_document audit entry (details.activated), not a second entry.
func (c *Coordinator) SignDocument(ctx context.Context, actor Actor, issuanceID primitive.ObjectID, documentType string, formData map[string]string, signature string) (*models.Issuance, *models.Asset, error) {
	issuance, err := c.store.GetIssuance(ctx, issuanceID)
	if err != nil {
		return nil, nil, err
	}

	unlock := c.locks.Acquire(issuance.AssetTag)
	defer unlock()

	issuance, err = c.store.GetIssuance(ctx, issuanceID)
	if err != nil {
		return nil, nil, err
	}

	reqIdx := -1
	for i, d := range issuance.Documents {
		if d.DocumentType == documentType {
			reqIdx = i
			break
		}
	}
	if reqIdx == -1 {
		return nil, nil, fmt.Errorf("document requirement %s: %w", documentType, apperr.ErrNotFound)
	}
	if issuance.Documents[reqIdx].Signed {
		return nil, nil, fmt.Errorf("document %s: %w", documentType, apperr.ErrAlreadySigned)
	}
	if issuance.Status != models.IssuancePendingSignatures {
		return nil, nil, fmt.Errorf("issuance is %s: %w", issuance.Status, apperr.ErrConflict)
	}

	template, err := c.store.GetTemplate(ctx, documentType)
	if err != nil {
		return nil, nil, err
	}
	asset, err := c.store.GetAsset(ctx, issuance.AssetID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	issuance.Documents[reqIdx].Signed = true
	issuance.Documents[reqIdx].SignedAt = &now
	issuance.UpdatedAt = now

	activated := issuance.AllRequiredSigned()
	if activated {
		issuance.Status = models.IssuanceActive
		asset.Status = models.AssetInUse
		asset.UpdatedAt = now
	}

	err = c.store.WithTx(ctx, func(ctx context.Context) error {
		if _, err := c.signing.Record(ctx, issuance.ID, template, formData, signature, issuance.UserID); err != nil {
			return err
		}
		if err := c.store.UpdateIssuance(ctx, issuance); err != nil {
			return err
		}
		if activated {
			if err := c.store.UpdateAsset(ctx, asset); err != nil {
				return err
			}
		}
		return c.audit.Append(ctx, &models.AuditLog{
			Action:       models.ActionSignDocument,
			ResourceType: "issuance",
			ResourceID:   issuance.ID,
			ResourceName: issuance.AssetTag,
			UserID:       actor.ID,
			UserName:     actor.Name,
			UserRole:     actor.Role,
			Description:  "Signed " + template.Name + " for asset " + issuance.AssetTag,
			Details:      bson.M{"documentType": documentType, "activated": activated},
			AssetTag:     issuance.AssetTag,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return issuance, asset, nil
}

// CancelIssuance aborts an issuance that is still waiting on signatures. An
// active issuance must go through ReturnAsset instead.
func (c *Coordinator) CancelIssuance(ctx context.Context, actor Actor, issuanceID primitive.ObjectID, reason string) (*models.Issuance, *models.Asset, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, nil, apperr.NewValidation("reason", "is required")
	}

	issuance, err := c.store.GetIssuance(ctx, issuanceID)
	if err != nil {
		return nil, nil, err
	}

	unlock := c.locks.Acquire(issuance.AssetTag)
	defer unlock()

	issuance, err = c.store.GetIssuance(ctx, issuanceID)
	if err != nil {
		return nil, nil, err
	}
	if issuance.Status != models.IssuancePendingSignatures {
		return nil, nil, fmt.Errorf("issuance is %s: %w", issuance.Status, apperr.ErrConflict)
	}

	asset, err := c.store.GetAsset(ctx, issuance.AssetID)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	issuance.Status = models.IssuanceCancelled
	issuance.CancellationReason = reason
	issuance.CancelledAt = &now
	issuance.CancelledBy = &actor.ID
	issuance.UpdatedAt = now

	asset.Status = models.AssetAvailable
	asset.AssignedUserID = nil
	asset.UpdatedAt = now

	err = c.store.WithTx(ctx, func(ctx context.Context) error {
		if err := c.store.UpdateIssuance(ctx, issuance); err != nil {
			return err
		}
		if err := c.store.UpdateAsset(ctx, asset); err != nil {
			return err
		}
		return c.audit.Append(ctx, &models.AuditLog{
			Action:       models.ActionCancelIssuance,
			ResourceType: "issuance",
			ResourceID:   issuance.ID,
			ResourceName: issuance.AssetTag,
			UserID:       actor.ID,
			UserName:     actor.Name,
			UserRole:     actor.Role,
			Description:  "Cancelled issuance of asset " + issuance.AssetTag,
			Details:      bson.M{"reason": reason},
			AssetTag:     issuance.AssetTag,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return issuance, asset, nil
}

// ReturnAsset closes the active issuance for an in_use asset and makes the
// asset available again.
func (c *Coordinator) ReturnAsset(ctx context.Context, actor Actor, assetTag string) (*models.Issuance, *models.Asset, error) {
	unlock := c.locks.Acquire(assetTag)
	defer unlock()

	asset, err := c.store.GetAssetByTag(ctx, assetTag)
	if err != nil {
		return nil, nil, err
	}
	if asset.Status != models.AssetInUse {
		return nil, nil, fmt.Errorf("asset %s is %s: %w", asset.AssetTag, asset.Status, apperr.ErrConflict)
	}

	issuance, err := c.store.OpenIssuanceForAsset(ctx, asset.ID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			// an in_use asset without an open issuance is corrupted state
			return nil, nil, fmt.Errorf("asset %s is in_use with no open issuance: %w", asset.AssetTag, apperr.ErrFatal)
		}
		return nil, nil, err
	}

	now := time.Now().UTC()
	issuance.Status = models.IssuanceReturned
	issuance.ReturnedAt = &now
	issuance.ReturnedBy = &actor.ID
	issuance.UpdatedAt = now

	asset.Status = models.AssetAvailable
	asset.AssignedUserID = nil
	asset.UpdatedAt = now

	err = c.store.WithTx(ctx, func(ctx context.Context) error {
		if err := c.store.UpdateIssuance(ctx, issuance); err != nil {
			return err
		}
		if err := c.store.UpdateAsset(ctx, asset); err != nil {
			return err
		}
		return c.audit.Append(ctx, &models.AuditLog{
			Action:       models.ActionUnassign,
			ResourceType: "issuance",
			ResourceID:   issuance.ID,
			ResourceName: issuance.AssetTag,
			UserID:       actor.ID,
			UserName:     actor.Name,
			UserRole:     actor.Role,
			Description:  "Returned asset " + asset.AssetTag,
			AssetTag:     asset.AssetTag,
		})
	})
	if err != nil {
		return nil, nil, err
	}
	return issuance, asset, nil
}

func (c *Coordinator) GetIssuance(ctx context.Context, id primitive.ObjectID) (*models.Issuance, error) {
	return c.store.GetIssuance(ctx, id)
}

func (c *Coordinator) ListIssuances(ctx context.Context, f store.IssuanceFilter) ([]models.Issuance, error) {
	return c.store.ListIssuances(ctx, f)
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
