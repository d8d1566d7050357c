package workflow

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assettrack/models"
	"assettrack/store"
)

// env bundles the services over a fresh in-memory store, seeded with the
// default templates, one directory user and an acting admin.
type env struct {
	st          *store.Memory
	registry    *Registry
	coordinator *Coordinator
	signing     *Signing
	monitor     *Monitor
	recorder    *Recorder
	actor       Actor
	user        models.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMemory()
	locks := NewLockTable()
	rec := NewRecorder(st)
	sign := NewSigning(st)

	e := &env{
		st:          st,
		recorder:    rec,
		signing:     sign,
		registry:    NewRegistry(st, rec, locks),
		coordinator: NewCoordinator(st, sign, rec, locks),
		monitor:     NewMonitor(st, 3),
	}

	ctx := context.Background()
	for _, tmpl := range DefaultTemplates() {
		tm := tmpl
		if err := st.UpsertTemplate(ctx, &tm); err != nil {
			t.Fatalf("seed template: %v", err)
		}
	}

	e.user = models.User{
		ID:         primitive.NewObjectID(),
		FullName:   "Dana Smith",
		Email:      "dana.smith@example.com",
		Department: "Engineering",
		Role:       "staff",
	}
	if err := st.InsertUser(ctx, &e.user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	e.actor = Actor{ID: primitive.NewObjectID(), Name: "IT Admin", Role: "admin"}
	return e
}

func validAssetInput() AssetInput {
	return AssetInput{
		Type:           "laptop",
		Brand:          "Lenovo",
		Model:          "ThinkPad T14",
		SerialNumber:   "SN-1001",
		Department:     "Engineering",
		Location:       "HQ 3F",
		PurchaseDate:   "2025-01-15",
		WarrantyExpiry: "2028-01-15",
		Condition:      "new",
	}
}

func (e *env) createAsset(t *testing.T) *models.Asset {
	t.Helper()
	asset, err := e.registry.CreateAsset(context.Background(), e.actor, validAssetInput())
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	return asset
}

func (e *env) issue(t *testing.T, tag string, docTypes ...string) *models.Issuance {
	t.Helper()
	if len(docTypes) == 0 {
		docTypes = []string{"declaration", "orientation"}
	}
	issuance, _, err := e.coordinator.Issue(context.Background(), e.actor, IssueInput{
		AssetTag:      tag,
		UserID:        e.user.ID.Hex(),
		DocumentTypes: docTypes,
	})
	if err != nil {
		t.Fatalf("issue asset %s: %v", tag, err)
	}
	return issuance
}

func declarationForm() map[string]string {
	return map[string]string{
		"full_name": "Dana Smith",
		"email":     "dana.smith@example.com",
		"date":      "2026-08-27",
		"agree":     "true",
	}
}

func orientationForm() map[string]string {
	return map[string]string{
		"full_name":    "Dana Smith",
		"date":         "2026-08-27",
		"acknowledged": "yes",
	}
}

func (e *env) sign(t *testing.T, issuanceID primitive.ObjectID, docType string) (*models.Issuance, *models.Asset) {
	t.Helper()
	form := declarationForm()
	if docType == "orientation" {
		form = orientationForm()
	}
	issuance, asset, err := e.coordinator.SignDocument(context.Background(), e.actor, issuanceID, docType, form, "data:image/png;base64,iVBOR")
	if err != nil {
		t.Fatalf("sign %s: %v", docType, err)
	}
	return issuance, asset
}

// mustAsset reloads the asset and checks the assignment invariant: the
// assigned user is set exactly when the asset is issued or pending.
func (e *env) mustAsset(t *testing.T, id primitive.ObjectID) *models.Asset {
	t.Helper()
	asset, err := e.st.GetAsset(context.Background(), id)
	if err != nil {
		t.Fatalf("reload asset: %v", err)
	}
	issued := asset.Status == models.AssetPendingForSignature || asset.Status == models.AssetInUse
	if issued && asset.AssignedUserID == nil {
		t.Fatalf("asset %s is %s but has no assigned user", asset.AssetTag, asset.Status)
	}
	if !issued && asset.AssignedUserID != nil {
		t.Fatalf("asset %s is %s but still has an assigned user", asset.AssetTag, asset.Status)
	}
	return asset
}

func (e *env) auditCount(t *testing.T, action string) int {
	t.Helper()
	logs, err := e.st.ListAudit(context.Background(), store.AuditFilter{Action: action})
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	return len(logs)
}

func (e *env) openIssuances(t *testing.T, assetID primitive.ObjectID) int {
	t.Helper()
	all, err := e.st.ListIssuances(context.Background(), store.IssuanceFilter{AssetID: assetID})
	if err != nil {
		t.Fatalf("list issuances: %v", err)
	}
	open := 0
	for _, i := range all {
		if !i.Terminal() {
			open++
		}
	}
	return open
}

func daysAgo(n int) time.Time {
	return time.Now().UTC().Add(-time.Duration(n) * 24 * time.Hour)
}
