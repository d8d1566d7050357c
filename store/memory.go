// store/memory.go
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assettrack/models"
)

// Memory is an in-memory Store used by the test suite and for running the
// service without Mongo. Entries are stored by value and cloned on the way in
// and out, so a transaction can roll back by restoring the pre-tx maps.
type Memory struct {
	txMu sync.Mutex // serializes transactions
	mu   sync.RWMutex

	assets     map[primitive.ObjectID]models.Asset
	tagIndex   map[string]primitive.ObjectID
	issuances  map[primitive.ObjectID]models.Issuance
	templates  map[string]models.DocumentTemplate
	signatures []models.SignatureRecord
	audits     []models.AuditLog
	users      map[primitive.ObjectID]models.User

	// FailAudit forces AppendAudit to report an outage. Test hook.
	FailAudit bool
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		assets:    make(map[primitive.ObjectID]models.Asset),
		tagIndex:  make(map[string]primitive.ObjectID),
		issuances: make(map[primitive.ObjectID]models.Issuance),
		templates: make(map[string]models.DocumentTemplate),
		users:     make(map[primitive.ObjectID]models.User),
	}
}

type memSnapshot struct {
	assets     map[primitive.ObjectID]models.Asset
	tagIndex   map[string]primitive.ObjectID
	issuances  map[primitive.ObjectID]models.Issuance
	templates  map[string]models.DocumentTemplate
	signatures []models.SignatureRecord
	audits     []models.AuditLog
	users      map[primitive.ObjectID]models.User
}

func (m *Memory) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := memSnapshot{
		assets:     copyMap(m.assets),
		tagIndex:   copyMap(m.tagIndex),
		issuances:  copyMap(m.issuances),
		templates:  copyMap(m.templates),
		signatures: append([]models.SignatureRecord(nil), m.signatures...),
		audits:     append([]models.AuditLog(nil), m.audits...),
		users:      copyMap(m.users),
	}
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.assets = snap.assets
		m.tagIndex = snap.tagIndex
		m.issuances = snap.issuances
		m.templates = snap.templates
		m.signatures = snap.signatures
		m.audits = snap.audits
		m.users = snap.users
		m.mu.Unlock()
		return err
	}
	return nil
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// --- assets ---

func (m *Memory) InsertAsset(ctx context.Context, a *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.tagIndex[a.AssetTag]; dup {
		return apperrDuplicate(a.AssetTag)
	}
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	m.assets[a.ID] = cloneAsset(*a)
	m.tagIndex[a.AssetTag] = a.ID
	return nil
}

func (m *Memory) GetAsset(ctx context.Context, id primitive.ObjectID) (*models.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	if !ok {
		return nil, apperrNotFound("asset")
	}
	out := cloneAsset(a)
	return &out, nil
}

func (m *Memory) GetAssetByTag(ctx context.Context, tag string) (*models.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.tagIndex[tag]
	if !ok {
		return nil, apperrNotFound("asset")
	}
	a := cloneAsset(m.assets[id])
	return &a, nil
}

func (m *Memory) UpdateAsset(ctx context.Context, a *models.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.assets[a.ID]
	if !ok {
		return apperrNotFound("asset")
	}
	if cur.AssetTag != a.AssetTag {
		// business key is immutable; refuse silently corrupting the index
		return apperrNotFound("asset")
	}
	m.assets[a.ID] = cloneAsset(*a)
	return nil
}

func (m *Memory) DeleteAsset(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[id]
	if !ok {
		return apperrNotFound("asset")
	}
	delete(m.assets, id)
	delete(m.tagIndex, a.AssetTag)
	return nil
}

func (m *Memory) ListAssets(ctx context.Context, f AssetFilter) ([]models.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Asset
	for _, a := range m.assets {
		if !matchAsset(a, f) {
			continue
		}
		out = append(out, cloneAsset(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetTag < out[j].AssetTag })
	return out, nil
}

func matchAsset(a models.Asset, f AssetFilter) bool {
	if f.Status != "" && a.Status != f.Status {
		return false
	}
	if f.Type != "" && !strings.EqualFold(a.Type, f.Type) {
		return false
	}
	if f.Department != "" && !strings.EqualFold(a.Department, f.Department) {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		hay := strings.ToLower(strings.Join([]string{a.AssetTag, a.Brand, a.Model, a.SerialNumber, a.Notes}, " "))
		if !strings.Contains(hay, q) {
			return false
		}
	}
	return true
}

func (m *Memory) AssetTagsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var tags []string
	p := prefix + "-"
	for tag := range m.tagIndex {
		if strings.HasPrefix(tag, p) {
			tags = append(tags, tag)
		}
	}
	sort.Strings(tags)
	return tags, nil
}

func (m *Memory) CountAssets(ctx context.Context) (StatusTypeDeptCounts, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := StatusTypeDeptCounts{
		ByStatus:     make(map[string]int64),
		ByType:       make(map[string]int64),
		ByDepartment: make(map[string]int64),
	}
	for _, a := range m.assets {
		counts.Total++
		counts.ByStatus[a.Status]++
		counts.ByType[a.Type]++
		counts.ByDepartment[a.Department]++
	}
	return counts, nil
}

// --- issuances ---

func (m *Memory) InsertIssuance(ctx context.Context, i *models.Issuance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i.ID.IsZero() {
		i.ID = primitive.NewObjectID()
	}
	m.issuances[i.ID] = cloneIssuance(*i)
	return nil
}

func (m *Memory) GetIssuance(ctx context.Context, id primitive.ObjectID) (*models.Issuance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.issuances[id]
	if !ok {
		return nil, apperrNotFound("issuance")
	}
	out := cloneIssuance(i)
	return &out, nil
}

func (m *Memory) UpdateIssuance(ctx context.Context, i *models.Issuance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.issuances[i.ID]; !ok {
		return apperrNotFound("issuance")
	}
	m.issuances[i.ID] = cloneIssuance(*i)
	return nil
}

func (m *Memory) ListIssuances(ctx context.Context, f IssuanceFilter) ([]models.Issuance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Issuance
	for _, i := range m.issuances {
		if f.Status != "" && i.Status != f.Status {
			continue
		}
		if !f.AssetID.IsZero() && i.AssetID != f.AssetID {
			continue
		}
		if !f.UserID.IsZero() && i.UserID != f.UserID {
			continue
		}
		out = append(out, cloneIssuance(i))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].IssuedDate.Before(out[b].IssuedDate) })
	return out, nil
}

func (m *Memory) OpenIssuanceForAsset(ctx context.Context, assetID primitive.ObjectID) (*models.Issuance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, i := range m.issuances {
		if i.AssetID == assetID && !i.Terminal() {
			out := cloneIssuance(i)
			return &out, nil
		}
	}
	return nil, apperrNotFound("issuance")
}

// --- templates & signatures ---

func (m *Memory) GetTemplate(ctx context.Context, documentType string) (*models.DocumentTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.templates[documentType]
	if !ok {
		return nil, apperrNotFound("document template")
	}
	out := cloneTemplate(t)
	return &out, nil
}

func (m *Memory) ListTemplates(ctx context.Context) ([]models.DocumentTemplate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.DocumentTemplate, 0, len(m.templates))
	for _, t := range m.templates {
		out = append(out, cloneTemplate(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocumentType < out[j].DocumentType })
	return out, nil
}

func (m *Memory) UpsertTemplate(ctx context.Context, t *models.DocumentTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.templates[t.DocumentType] = cloneTemplate(*t)
	return nil
}

func (m *Memory) InsertSignature(ctx context.Context, s *models.SignatureRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	m.signatures = append(m.signatures, cloneSignature(*s))
	return nil
}

func (m *Memory) ListSignatures(ctx context.Context, issuanceID primitive.ObjectID) ([]models.SignatureRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.SignatureRecord
	for _, s := range m.signatures {
		if s.IssuanceID == issuanceID {
			out = append(out, cloneSignature(s))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SignedAt.Before(out[j].SignedAt) })
	return out, nil
}

// --- audit ---

func (m *Memory) AppendAudit(ctx context.Context, e *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAudit {
		return apperrUnavailable("audit store")
	}
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.audits = append(m.audits, *e)
	return nil
}

func (m *Memory) ListAudit(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.AuditLog
	for _, e := range m.audits {
		if f.ResourceType != "" && e.ResourceType != f.ResourceType {
			continue
		}
		if !f.ResourceID.IsZero() && e.ResourceID != f.ResourceID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// --- users ---

func (m *Memory) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperrNotFound("user")
	}
	out := u
	return &out, nil
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			out := u
			return &out, nil
		}
	}
	return nil, apperrNotFound("user")
}

func (m *Memory) InsertUser(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users[u.ID] = *u
	return nil
}

// --- clone helpers (keep stored values free of caller aliasing) ---

func cloneAsset(a models.Asset) models.Asset {
	if a.PurchaseCost != nil {
		c := *a.PurchaseCost
		a.PurchaseCost = &c
	}
	if a.AssignedUserID != nil {
		id := *a.AssignedUserID
		a.AssignedUserID = &id
	}
	if a.Specs != nil {
		sp := *a.Specs
		if sp.Server != nil {
			sv := *sp.Server
			sp.Server = &sv
		}
		if sp.Network != nil {
			nw := *sp.Network
			sp.Network = &nw
		}
		a.Specs = &sp
	}
	return a
}

func cloneIssuance(i models.Issuance) models.Issuance {
	i.Documents = append([]models.DocumentRequirement(nil), i.Documents...)
	for idx := range i.Documents {
		if i.Documents[idx].SignedAt != nil {
			t := *i.Documents[idx].SignedAt
			i.Documents[idx].SignedAt = &t
		}
	}
	if i.ExpectedReturnDate != nil {
		t := *i.ExpectedReturnDate
		i.ExpectedReturnDate = &t
	}
	if i.CancelledAt != nil {
		t := *i.CancelledAt
		i.CancelledAt = &t
	}
	if i.CancelledBy != nil {
		id := *i.CancelledBy
		i.CancelledBy = &id
	}
	if i.ReturnedAt != nil {
		t := *i.ReturnedAt
		i.ReturnedAt = &t
	}
	if i.ReturnedBy != nil {
		id := *i.ReturnedBy
		i.ReturnedBy = &id
	}
	return i
}

func cloneTemplate(t models.DocumentTemplate) models.DocumentTemplate {
	t.Fields = append([]models.TemplateField(nil), t.Fields...)
	return t
}

func cloneSignature(s models.SignatureRecord) models.SignatureRecord {
	if s.FormData != nil {
		s.FormData = copyMap(s.FormData)
	}
	return s
}
