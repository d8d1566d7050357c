package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assettrack/apperr"
	"assettrack/models"
	"assettrack/store"
)

func TestTagPrefix(t *testing.T) {
	cases := map[string]string{
		"laptop":  "LAP",
		"Laptop":  "LAP",
		"server":  "SER",
		"tv":      "TV",
		"4g-swch": "4GS",
		"":        "AST",
		"---":     "AST",
	}
	for in, want := range cases {
		if got := TagPrefix(in); got != want {
			t.Errorf("TagPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCreateAssetGeneratesSequentialTags(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.registry.CreateAsset(ctx, e.actor, validAssetInput())
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.AssetTag != "LAP-001" {
		t.Fatalf("first tag = %q, want LAP-001", first.AssetTag)
	}
	if first.Status != models.AssetAvailable {
		t.Fatalf("new asset status = %q, want available", first.Status)
	}

	second, err := e.registry.CreateAsset(ctx, e.actor, validAssetInput())
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if second.AssetTag != "LAP-002" {
		t.Fatalf("second tag = %q, want LAP-002", second.AssetTag)
	}
}

func TestTagGenerationResumesAfterGap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	for _, tag := range []string{"LAP-001", "LAP-003"} {
		err := e.st.InsertAsset(ctx, &models.Asset{
			AssetTag:   tag,
			Type:       "laptop",
			Brand:      "Dell",
			Model:      "XPS",
			Department: "Sales",
			Condition:  "good",
			Status:     models.AssetAvailable,
		})
		if err != nil {
			t.Fatalf("seed %s: %v", tag, err)
		}
	}

	asset, err := e.registry.CreateAsset(ctx, e.actor, validAssetInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if asset.AssetTag != "LAP-004" {
		t.Fatalf("tag = %q, want LAP-004", asset.AssetTag)
	}
}

func TestCreateAssetValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		mutate func(*AssetInput)
		field  string
	}{
		{"missing type", func(in *AssetInput) { in.Type = "" }, "type"},
		{"missing brand", func(in *AssetInput) { in.Brand = "" }, "brand"},
		{"missing department", func(in *AssetInput) { in.Department = "  " }, "department"},
		{"bad purchase date", func(in *AssetInput) { in.PurchaseDate = "15/01/2025" }, "purchaseDate"},
		{"bad warranty date", func(in *AssetInput) { in.WarrantyExpiry = "soon" }, "warrantyExpiry"},
		{"unknown condition", func(in *AssetInput) { in.Condition = "mint" }, "condition"},
		{"negative cost", func(in *AssetInput) { c := -10.0; in.PurchaseCost = &c }, "purchaseCost"},
		{"server specs without os", func(in *AssetInput) {
			in.Specs = &models.AssetSpecs{Kind: models.SpecsServer}
		}, "specs"},
		{"unknown specs kind", func(in *AssetInput) {
			in.Specs = &models.AssetSpecs{Kind: "toaster"}
		}, "specs"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validAssetInput()
			tc.mutate(&in)
			_, err := e.registry.CreateAsset(ctx, e.actor, in)
			var vErr *apperr.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if _, ok := vErr.Fields[tc.field]; !ok {
				t.Fatalf("ValidationError fields %v, want %q", vErr.Fields, tc.field)
			}
		})
	}
}

func TestCreateAssetWithTaggedSpecs(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	in := validAssetInput()
	in.Type = "server"
	in.Specs = &models.AssetSpecs{
		Kind:   models.SpecsServer,
		Server: &models.ServerSpecs{OS: "Ubuntu", OSVersion: "24.04"},
	}
	asset, err := e.registry.CreateAsset(ctx, e.actor, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if asset.AssetTag != "SER-001" {
		t.Fatalf("tag = %q, want SER-001", asset.AssetTag)
	}
	if asset.Specs == nil || asset.Specs.Server == nil || asset.Specs.Server.OS != "Ubuntu" {
		t.Fatalf("specs not preserved: %+v", asset.Specs)
	}
}

func TestConcurrentCreatesYieldDistinctTags(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	const n = 8
	var wg sync.WaitGroup
	tags := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			asset, err := e.registry.CreateAsset(ctx, e.actor, validAssetInput())
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			tags <- asset.AssetTag
		}()
	}
	wg.Wait()
	close(tags)

	seen := make(map[string]bool)
	for tag := range tags {
		if seen[tag] {
			t.Fatalf("duplicate tag generated: %s", tag)
		}
		seen[tag] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d distinct tags, want %d", len(seen), n)
	}
}

func TestUpdateAssetKeepsTagImmutable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	asset := e.createAsset(t)

	brand := "HP"
	updated, err := e.registry.UpdateAsset(ctx, e.actor, asset.ID, AssetUpdate{Brand: &brand})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Brand != "HP" {
		t.Fatalf("brand = %q, want HP", updated.Brand)
	}
	if updated.AssetTag != asset.AssetTag {
		t.Fatalf("tag changed: %q -> %q", asset.AssetTag, updated.AssetTag)
	}
}

func TestUpdateAssetStatusOwnership(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	asset := e.createAsset(t)

	// available -> maintenance is a registry concern
	maint := models.AssetMaintenance
	updated, err := e.registry.UpdateAsset(ctx, e.actor, asset.ID, AssetUpdate{Status: &maint})
	if err != nil {
		t.Fatalf("to maintenance: %v", err)
	}
	if updated.Status != models.AssetMaintenance {
		t.Fatalf("status = %q, want maintenance", updated.Status)
	}

	// the issuance states belong to the coordinator
	inUse := models.AssetInUse
	if _, err := e.registry.UpdateAsset(ctx, e.actor, asset.ID, AssetUpdate{Status: &inUse}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("to in_use err = %v, want Conflict", err)
	}
}

func TestDeleteAssetRules(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	available := e.createAsset(t)
	if err := e.registry.DeleteAsset(ctx, e.actor, available.ID); err != nil {
		t.Fatalf("delete available asset: %v", err)
	}

	issued := e.createAsset(t)
	e.issue(t, issued.AssetTag)
	if err := e.registry.DeleteAsset(ctx, e.actor, issued.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("delete issued asset err = %v, want Conflict", err)
	}
	if _, err := e.st.GetAsset(ctx, issued.ID); err != nil {
		t.Fatalf("issued asset vanished after refused delete: %v", err)
	}
}

func TestDashboardAggregates(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.createAsset(t)
	e.createAsset(t)
	in := validAssetInput()
	in.Type = "monitor"
	in.Department = "Finance"
	if _, err := e.registry.CreateAsset(ctx, e.actor, in); err != nil {
		t.Fatalf("create monitor: %v", err)
	}

	counts, err := e.registry.DashboardAggregates(ctx)
	if err != nil {
		t.Fatalf("aggregates: %v", err)
	}
	if counts.Total != 3 {
		t.Fatalf("total = %d, want 3", counts.Total)
	}
	if counts.ByStatus[models.AssetAvailable] != 3 {
		t.Fatalf("available = %d, want 3", counts.ByStatus[models.AssetAvailable])
	}
	if counts.ByType["laptop"] != 2 || counts.ByType["monitor"] != 1 {
		t.Fatalf("byType = %v", counts.ByType)
	}
	if counts.ByDepartment["Engineering"] != 2 || counts.ByDepartment["Finance"] != 1 {
		t.Fatalf("byDepartment = %v", counts.ByDepartment)
	}
}

func TestListAssetsOrderAndFilters(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	in := validAssetInput()
	in.Type = "monitor"
	if _, err := e.registry.CreateAsset(ctx, e.actor, in); err != nil {
		t.Fatalf("create monitor: %v", err)
	}
	e.createAsset(t)
	e.createAsset(t)

	all, err := e.registry.ListAssets(ctx, store.AssetFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].AssetTag > all[i].AssetTag {
			t.Fatalf("not ordered by tag: %q before %q", all[i-1].AssetTag, all[i].AssetTag)
		}
	}

	laptops, err := e.registry.ListAssets(ctx, store.AssetFilter{Type: "laptop"})
	if err != nil {
		t.Fatalf("list laptops: %v", err)
	}
	if len(laptops) != 2 {
		t.Fatalf("laptops = %d, want 2", len(laptops))
	}

	hits, err := e.registry.ListAssets(ctx, store.AssetFilter{Search: "thinkpad"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("search hits = %d, want 3", len(hits))
	}
}

func TestRegistryMutationsAudit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	asset := e.createAsset(t)
	if got := e.auditCount(t, models.ActionCreate); got != 1 {
		t.Fatalf("create entries = %d, want 1", got)
	}

	brand := "HP"
	if _, err := e.registry.UpdateAsset(ctx, e.actor, asset.ID, AssetUpdate{Brand: &brand}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if got := e.auditCount(t, models.ActionUpdate); got != 1 {
		t.Fatalf("update entries = %d, want 1", got)
	}

	retired := models.AssetRetired
	if _, err := e.registry.UpdateAsset(ctx, e.actor, asset.ID, AssetUpdate{Status: &retired}); err != nil {
		t.Fatalf("retire: %v", err)
	}
	if got := e.auditCount(t, models.ActionStatusChange); got != 1 {
		t.Fatalf("status_change entries = %d, want 1", got)
	}

	if err := e.registry.DeleteAsset(ctx, e.actor, asset.ID); err != nil {
		t.Fatalf("delete retired: %v", err)
	}
	if got := e.auditCount(t, models.ActionDelete); got != 1 {
		t.Fatalf("delete entries = %d, want 1", got)
	}
}

func TestCreateAssetRollsBackWhenAuditFails(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.st.FailAudit = true
	_, err := e.registry.CreateAsset(ctx, e.actor, validAssetInput())
	if !errors.Is(err, apperr.ErrFatal) {
		t.Fatalf("err = %v, want Fatal", err)
	}
	e.st.FailAudit = false

	assets, err := e.registry.ListAssets(ctx, store.AssetFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(assets) != 0 {
		t.Fatalf("asset persisted despite audit failure: %v", assets)
	}
}

func TestUpdateAssetNotFound(t *testing.T) {
	e := newEnv(t)
	brand := "HP"
	_, err := e.registry.UpdateAsset(context.Background(), e.actor, primitive.NewObjectID(), AssetUpdate{Brand: &brand})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want NotFound", err)
	}
}

func TestDeleteRetiredAssetAllowed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	asset := e.createAsset(t)

	retired := models.AssetRetired
	if _, err := e.registry.UpdateAsset(ctx, e.actor, asset.ID, AssetUpdate{Status: &retired}); err != nil {
		t.Fatalf("retire: %v", err)
	}
	if err := e.registry.DeleteAsset(ctx, e.actor, asset.ID); err != nil {
		t.Fatalf("delete retired: %v", err)
	}
	if _, err := e.st.GetAsset(ctx, asset.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("asset still present after delete: %v", err)
	}
}
