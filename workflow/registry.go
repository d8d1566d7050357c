// workflow/registry.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"assettrack/apperr"
	"assettrack/models"
	"assettrack/store"
)

// Registry owns canonical asset records: create/update/list/delete, business
// key generation and the dashboard aggregates.
type Registry struct {
	store store.Store
	audit *Recorder
	locks *LockTable
}

func NewRegistry(st store.Store, rec *Recorder, locks *LockTable) *Registry {
	return &Registry{store: st, audit: rec, locks: locks}
}

// AssetInput is the payload for CreateAsset. Dates arrive as YYYY-MM-DD.
type AssetInput struct {
	Type           string             `json:"type"`
	Brand          string             `json:"brand"`
	Model          string             `json:"model"`
	SerialNumber   string             `json:"serialNumber"`
	Department     string             `json:"department"`
	Location       string             `json:"location"`
	PurchaseDate   string             `json:"purchaseDate"`
	WarrantyExpiry string             `json:"warrantyExpiry"`
	PurchaseCost   *float64           `json:"purchaseCost"`
	Condition      string             `json:"condition"`
	Notes          string             `json:"notes"`
	Specs          *models.AssetSpecs `json:"specs"`
}

// AssetUpdate carries optional field changes; nil means "leave as is". The
// business key is immutable and absent on purpose. Status may only move
// between available, maintenance and retired here; the issuance states are
// owned by the coordinator.
type AssetUpdate struct {
	Brand          *string            `json:"brand"`
	Model          *string            `json:"model"`
	SerialNumber   *string            `json:"serialNumber"`
	Department     *string            `json:"department"`
	Location       *string            `json:"location"`
	PurchaseDate   *string            `json:"purchaseDate"`
	WarrantyExpiry *string            `json:"warrantyExpiry"`
	PurchaseCost   *float64           `json:"purchaseCost"`
	Condition      *string            `json:"condition"`
	Notes          *string            `json:"notes"`
	Specs          *models.AssetSpecs `json:"specs"`
	Status         *string            `json:"status"`
}

func (r *Registry) CreateAsset(ctx context.Context, actor Actor, in AssetInput) (*models.Asset, error) {
	fields := make(map[string]string)
	requireString(fields, "type", in.Type)
	requireString(fields, "brand", in.Brand)
	requireString(fields, "model", in.Model)
	requireString(fields, "department", in.Department)
	requireString(fields, "condition", in.Condition)

	purchaseDate := requireDate(fields, "purchaseDate", in.PurchaseDate)
	warrantyExpiry := requireDate(fields, "warrantyExpiry", in.WarrantyExpiry)

	if in.Condition != "" && !validCondition(in.Condition) {
		fields["condition"] = "must be one of " + strings.Join(models.AssetConditions, ", ")
	}
	if in.PurchaseCost != nil && *in.PurchaseCost < 0 {
		fields["purchaseCost"] = "must not be negative"
	}
	validateSpecs(fields, in.Specs)
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}

	prefix := TagPrefix(in.Type)
	unlock := r.locks.Acquire("tag:" + prefix)
	defer unlock()

	now := time.Now().UTC()
	asset := &models.Asset{
		Type:           strings.ToLower(strings.TrimSpace(in.Type)),
		Brand:          in.Brand,
		Model:          in.Model,
		SerialNumber:   in.SerialNumber,
		Department:     in.Department,
		Location:       in.Location,
		PurchaseDate:   purchaseDate,
		WarrantyExpiry: warrantyExpiry,
		PurchaseCost:   in.PurchaseCost,
		Condition:      in.Condition,
		Notes:          in.Notes,
		Specs:          in.Specs,
		Status:         models.AssetAvailable,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// Unique index on the tag is the backstop for creates racing from other
	// processes; the per-prefix lock serializes creates in this one.
	for attempt := 0; attempt < 3; attempt++ {
		tag, genErr := r.nextTag(ctx, prefix)
		if genErr != nil {
			return nil, genErr
		}
		asset.ID = primitive.NewObjectID()
		asset.AssetTag = tag

		txErr := r.store.WithTx(ctx, func(ctx context.Context) error {
			if err := r.store.InsertAsset(ctx, asset); err != nil {
				return err
			}
			return r.audit.Append(ctx, &models.AuditLog{
				Action:       models.ActionCreate,
				ResourceType: "asset",
				ResourceID:   asset.ID,
				ResourceName: asset.Brand + " " + asset.Model,
				UserID:       actor.ID,
				UserName:     actor.Name,
				UserRole:     actor.Role,
				Description:  "Created asset " + asset.AssetTag,
				Details:      bson.M{"type": asset.Type, "department": asset.Department},
				AssetTag:     asset.AssetTag,
			})
		})
		if txErr == nil {
			return asset, nil
		}
		if errors.Is(txErr, apperr.ErrDuplicateAssetTag) && attempt < 2 {
			continue
		}
		return nil, txErr
	}
	return nil, fmt.Errorf("asset tag generation for prefix %s: %w", prefix, apperr.ErrDuplicateAssetTag)
}

// TagPrefix derives the business key prefix from the asset type: the first
// three alphanumeric characters, uppercased ("laptop" -> "LAP").
func TagPrefix(assetType string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(assetType) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			if b.Len() >= 3 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "AST"
	}
	return b.String()
}

func (r *Registry) nextTag(ctx context.Context, prefix string) (string, error) {
	tags, err := r.store.AssetTagsByPrefix(ctx, prefix)
	if err != nil {
		return "", err
	}
	max := 0
	for _, tag := range tags {
		rest := strings.TrimPrefix(tag, prefix+"-")
		n, err := strconv.Atoi(rest)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s-%03d", prefix, max+1), nil
}

func (r *Registry) GetAsset(ctx context.Context, id primitive.ObjectID) (*models.Asset, error) {
	return r.store.GetAsset(ctx, id)
}

func (r *Registry) GetAssetByTag(ctx context.Context, tag string) (*models.Asset, error) {
	return r.store.GetAssetByTag(ctx, tag)
}

// ListAssets returns assets ordered by business key ascending. The query is
// re-executed on every call, so consumers can restart iteration at will.
func (r *Registry) ListAssets(ctx context.Context, f store.AssetFilter) ([]models.Asset, error) {
	return r.store.ListAssets(ctx, f)
}

func (r *Registry) UpdateAsset(ctx context.Context, actor Actor, id primitive.ObjectID, upd AssetUpdate) (*models.Asset, error) {
	asset, err := r.store.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := r.locks.Acquire(asset.AssetTag)
	defer unlock()

	// Re-read under the lock; the first read only resolved the lock key.
	asset, err = r.store.GetAsset(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := make(map[string]string)
	statusChanged := false

	if upd.Brand != nil {
		requireString(fields, "brand", *upd.Brand)
		asset.Brand = *upd.Brand
	}
	if upd.Model != nil {
		requireString(fields, "model", *upd.Model)
		asset.Model = *upd.Model
	}
	if upd.SerialNumber != nil {
		asset.SerialNumber = *upd.SerialNumber
	}
	if upd.Department != nil {
		requireString(fields, "department", *upd.Department)
		asset.Department = *upd.Department
	}
	if upd.Location != nil {
		asset.Location = *upd.Location
	}
	if upd.PurchaseDate != nil {
		if d, ok := parseDate(fields, "purchaseDate", *upd.PurchaseDate); ok {
			asset.PurchaseDate = d
		}
	}
	if upd.WarrantyExpiry != nil {
		if d, ok := parseDate(fields, "warrantyExpiry", *upd.WarrantyExpiry); ok {
			asset.WarrantyExpiry = d
		}
	}
	if upd.PurchaseCost != nil {
		if *upd.PurchaseCost < 0 {
			fields["purchaseCost"] = "must not be negative"
		} else {
			asset.PurchaseCost = upd.PurchaseCost
		}
	}
	if upd.Condition != nil {
		if !validCondition(*upd.Condition) {
			fields["condition"] = "must be one of " + strings.Join(models.AssetConditions, ", ")
		} else {
			asset.Condition = *upd.Condition
		}
	}
	if upd.Notes != nil {
		asset.Notes = *upd.Notes
	}
	if upd.Specs != nil {
		validateSpecs(fields, upd.Specs)
		asset.Specs = upd.Specs
	}
	if len(fields) > 0 {
		return nil, &apperr.ValidationError{Fields: fields}
	}

	if upd.Status != nil && *upd.Status != asset.Status {
		if !registryManagedStatus(asset.Status) || !registryManagedStatus(*upd.Status) {
			return nil, fmt.Errorf("status %s -> %s is owned by the issuance workflow: %w",
				asset.Status, *upd.Status, apperr.ErrConflict)
		}
		asset.Status = *upd.Status
		statusChanged = true
	}

	asset.UpdatedAt = time.Now().UTC()

	action := models.ActionUpdate
	desc := "Updated asset " + asset.AssetTag
	if statusChanged {
		action = models.ActionStatusChange
		desc = "Changed status of asset " + asset.AssetTag + " to " + asset.Status
	}

	err = r.store.WithTx(ctx, func(ctx context.Context) error {
		if err := r.store.UpdateAsset(ctx, asset); err != nil {
			return err
		}
		return r.audit.Append(ctx, &models.AuditLog{
			Action:       action,
			ResourceType: "asset",
			ResourceID:   asset.ID,
			ResourceName: asset.Brand + " " + asset.Model,
			UserID:       actor.ID,
			UserName:     actor.Name,
			UserRole:     actor.Role,
			Description:  desc,
			Details:      bson.M{"status": asset.Status},
			AssetTag:     asset.AssetTag,
		})
	})
	if err != nil {
		return nil, err
	}
	return asset, nil
}

func registryManagedStatus(s string) bool {
	switch s {
	case models.AssetAvailable, models.AssetMaintenance, models.AssetRetired:
		return true
	}
	return false
}

// DeleteAsset removes an asset that is available or retired. Issued assets
// (and assets pending signature or under maintenance) cannot be deleted.
func (r *Registry) DeleteAsset(ctx context.Context, actor Actor, id primitive.ObjectID) error {
	asset, err := r.store.GetAsset(ctx, id)
	if err != nil {
		return err
	}

	unlock := r.locks.Acquire(asset.AssetTag)
	defer unlock()

	asset, err = r.store.GetAsset(ctx, id)
	if err != nil {
		return err
	}
	if asset.Status != models.AssetAvailable && asset.Status != models.AssetRetired {
		return fmt.Errorf("asset %s is %s: %w", asset.AssetTag, asset.Status, apperr.ErrConflict)
	}

	return r.store.WithTx(ctx, func(ctx context.Context) error {
		if err := r.store.DeleteAsset(ctx, id); err != nil {
			return err
		}
		return r.audit.Append(ctx, &models.AuditLog{
			Action:       models.ActionDelete,
			ResourceType: "asset",
			ResourceID:   asset.ID,
			ResourceName: asset.Brand + " " + asset.Model,
			UserID:       actor.ID,
			UserName:     actor.Name,
			UserRole:     actor.Role,
			Description:  "Deleted asset " + asset.AssetTag,
			AssetTag:     asset.AssetTag,
		})
	})
}

// DashboardAggregates recomputes the status/type/department counts per call.
func (r *Registry) DashboardAggregates(ctx context.Context) (store.StatusTypeDeptCounts, error) {
	return r.store.CountAssets(ctx)
}

// --- validation helpers ---

func requireString(fields map[string]string, name, v string) {
	if strings.TrimSpace(v) == "" {
		fields[name] = "is required"
	}
}

func requireDate(fields map[string]string, name, v string) time.Time {
	if strings.TrimSpace(v) == "" {
		fields[name] = "is required"
		return time.Time{}
	}
	d, _ := parseDate(fields, name, v)
	return d
}

func parseDate(fields map[string]string, name, v string) (time.Time, bool) {
	d, err := time.Parse(dateLayout, v)
	if err != nil {
		fields[name] = "invalid date, expected YYYY-MM-DD"
		return time.Time{}, false
	}
	return d, true
}

func validCondition(c string) bool {
	for _, v := range models.AssetConditions {
		if c == v {
			return true
		}
	}
	return false
}

func validateSpecs(fields map[string]string, specs *models.AssetSpecs) {
	if specs == nil {
		return
	}
	switch specs.Kind {
	case models.SpecsLaptop:
		if specs.Server != nil || specs.Network != nil {
			fields["specs"] = "laptop specs carry no server or network detail"
		}
	case models.SpecsServer:
		if specs.Server == nil || specs.Server.OS == "" {
			fields["specs"] = "server specs require an operating system"
		}
	case models.SpecsNetworkAppliance:
		if specs.Network == nil || specs.Network.Kind == "" {
			fields["specs"] = "network appliance specs require a kind"
		}
	default:
		fields["specs"] = "unknown specs kind: " + specs.Kind
	}
}
