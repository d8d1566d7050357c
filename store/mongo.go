// store/mongo.go
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"assettrack/apperr"
	"assettrack/models"
)

// Mongo backs Store with MongoDB collections.
type Mongo struct {
	client     *mongo.Client
	assets     *mongo.Collection
	issuances  *mongo.Collection
	templates  *mongo.Collection
	signatures *mongo.Collection
	audits     *mongo.Collection
	users      *mongo.Collection
}

var _ Store = (*Mongo)(nil)

func NewMongo(client *mongo.Client, dbName string) *Mongo {
	db := client.Database(dbName)
	return &Mongo{
		client:     client,
		assets:     db.Collection("assets"),
		issuances:  db.Collection("issuances"),
		templates:  db.Collection("document_templates"),
		signatures: db.Collection("signatures"),
		audits:     db.Collection("audit_logs"),
		users:      db.Collection("users"),
	}
}

// EnsureIndexes creates the indexes the lifecycle invariants lean on: the
// unique asset tag (DuplicateAssetTag under concurrent creates), the
// per-asset open-issuance lookup, the unique signature per issuance+document
// and the audit timeline sort.
func (s *Mongo) EnsureIndexes(ctx context.Context) error {
	_, err := s.assets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "assetTag", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("assets index: %w", err)
	}
	_, err = s.issuances.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "assetId", Value: 1}, {Key: "status", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("issuances index: %w", err)
	}
	_, err = s.signatures.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "issuanceId", Value: 1}, {Key: "documentType", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("signatures index: %w", err)
	}
	_, err = s.audits.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("audit index: %w", err)
	}
	_, err = s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users index: %w", err)
	}
	return nil
}

// WithTx runs fn inside a session transaction so a state mutation and its
// audit entry commit together. Standalone servers reject transactions; in
// that case fn runs without one and the unique indexes remain the backstop.
func (s *Mongo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fn(ctx)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && strings.Contains(err.Error(), "Transaction numbers are only allowed") {
		return fn(ctx)
	}
	return err
}

func mapMongoErr(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperrNotFound(what)
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", what, apperr.ErrDuplicateAssetTag)
	case errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err):
		return fmt.Errorf("%s: %v: %w", what, err, apperr.ErrUnavailable)
	default:
		return fmt.Errorf("%s: %v: %w", what, err, apperr.ErrUnavailable)
	}
}

// --- assets ---

func (s *Mongo) InsertAsset(ctx context.Context, a *models.Asset) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := s.assets.InsertOne(ctx, a)
	return mapMongoErr(err, "asset "+a.AssetTag)
}

func (s *Mongo) GetAsset(ctx context.Context, id primitive.ObjectID) (*models.Asset, error) {
	var a models.Asset
	err := s.assets.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err != nil {
		return nil, mapMongoErr(err, "asset")
	}
	return &a, nil
}

func (s *Mongo) GetAssetByTag(ctx context.Context, tag string) (*models.Asset, error) {
	var a models.Asset
	err := s.assets.FindOne(ctx, bson.M{"assetTag": tag}).Decode(&a)
	if err != nil {
		return nil, mapMongoErr(err, "asset")
	}
	return &a, nil
}

func (s *Mongo) UpdateAsset(ctx context.Context, a *models.Asset) error {
	res, err := s.assets.ReplaceOne(ctx, bson.M{"_id": a.ID, "assetTag": a.AssetTag}, a)
	if err != nil {
		return mapMongoErr(err, "asset")
	}
	if res.MatchedCount == 0 {
		return apperrNotFound("asset")
	}
	return nil
}

func (s *Mongo) DeleteAsset(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.assets.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapMongoErr(err, "asset")
	}
	if res.DeletedCount == 0 {
		return apperrNotFound("asset")
	}
	return nil
}

func (s *Mongo) ListAssets(ctx context.Context, f AssetFilter) ([]models.Asset, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Type != "" {
		filter["type"] = bson.M{"$regex": "^" + escapeRegex(f.Type) + "$", "$options": "i"}
	}
	if f.Department != "" {
		filter["department"] = bson.M{"$regex": "^" + escapeRegex(f.Department) + "$", "$options": "i"}
	}
	if f.Search != "" {
		re := bson.M{"$regex": escapeRegex(f.Search), "$options": "i"}
		filter["$or"] = []bson.M{
			{"assetTag": re}, {"brand": re}, {"model": re}, {"serialNumber": re}, {"notes": re},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "assetTag", Value: 1}})
	cursor, err := s.assets.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapMongoErr(err, "assets")
	}
	defer cursor.Close(ctx)

	var assets []models.Asset
	if err = cursor.All(ctx, &assets); err != nil {
		return nil, mapMongoErr(err, "assets")
	}
	return assets, nil
}

func escapeRegex(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`, `.`, `\.`, `+`, `\+`, `*`, `\*`, `?`, `\?`, `(`, `\(`, `)`, `\)`,
		`[`, `\[`, `]`, `\]`, `{`, `\{`, `}`, `\}`, `^`, `\^`, `$`, `\$`, `|`, `\|`,
	)
	return replacer.Replace(s)
}

func (s *Mongo) AssetTagsByPrefix(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{"assetTag": bson.M{"$regex": "^" + escapeRegex(prefix) + "-"}}
	opts := options.Find().SetProjection(bson.M{"assetTag": 1})
	cursor, err := s.assets.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapMongoErr(err, "asset tags")
	}
	defer cursor.Close(ctx)

	var docs []struct {
		AssetTag string `bson:"assetTag"`
	}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, mapMongoErr(err, "asset tags")
	}
	tags := make([]string, 0, len(docs))
	for _, d := range docs {
		tags = append(tags, d.AssetTag)
	}
	return tags, nil
}

func (s *Mongo) CountAssets(ctx context.Context) (StatusTypeDeptCounts, error) {
	counts := StatusTypeDeptCounts{
		ByStatus:     make(map[string]int64),
		ByType:       make(map[string]int64),
		ByDepartment: make(map[string]int64),
	}

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$facet", Value: bson.M{
			"byStatus": []bson.M{
				{"$group": bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}},
			},
			"byType": []bson.M{
				{"$group": bson.M{"_id": "$type", "count": bson.M{"$sum": 1}}},
			},
			"byDepartment": []bson.M{
				{"$group": bson.M{"_id": "$department", "count": bson.M{"$sum": 1}}},
			},
			"total": []bson.M{
				{"$count": "count"},
			},
		}}},
	}

	cursor, err := s.assets.Aggregate(ctx, pipeline)
	if err != nil {
		return counts, mapMongoErr(err, "asset counts")
	}
	defer cursor.Close(ctx)

	var result []struct {
		ByStatus     []groupCount `bson:"byStatus"`
		ByType       []groupCount `bson:"byType"`
		ByDepartment []groupCount `bson:"byDepartment"`
		Total        []struct {
			Count int64 `bson:"count"`
		} `bson:"total"`
	}
	if err = cursor.All(ctx, &result); err != nil {
		return counts, mapMongoErr(err, "asset counts")
	}
	if len(result) == 0 {
		return counts, nil
	}
	for _, g := range result[0].ByStatus {
		counts.ByStatus[g.ID] = g.Count
	}
	for _, g := range result[0].ByType {
		counts.ByType[g.ID] = g.Count
	}
	for _, g := range result[0].ByDepartment {
		counts.ByDepartment[g.ID] = g.Count
	}
	if len(result[0].Total) > 0 {
		counts.Total = result[0].Total[0].Count
	}
	return counts, nil
}

type groupCount struct {
	ID    string `bson:"_id"`
	Count int64  `bson:"count"`
}

// --- issuances ---

func (s *Mongo) InsertIssuance(ctx context.Context, i *models.Issuance) error {
	if i.ID.IsZero() {
		i.ID = primitive.NewObjectID()
	}
	_, err := s.issuances.InsertOne(ctx, i)
	return mapMongoErr(err, "issuance")
}

func (s *Mongo) GetIssuance(ctx context.Context, id primitive.ObjectID) (*models.Issuance, error) {
	var i models.Issuance
	err := s.issuances.FindOne(ctx, bson.M{"_id": id}).Decode(&i)
	if err != nil {
		return nil, mapMongoErr(err, "issuance")
	}
	return &i, nil
}

func (s *Mongo) UpdateIssuance(ctx context.Context, i *models.Issuance) error {
	res, err := s.issuances.ReplaceOne(ctx, bson.M{"_id": i.ID}, i)
	if err != nil {
		return mapMongoErr(err, "issuance")
	}
	if res.MatchedCount == 0 {
		return apperrNotFound("issuance")
	}
	return nil
}

func (s *Mongo) ListIssuances(ctx context.Context, f IssuanceFilter) ([]models.Issuance, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if !f.AssetID.IsZero() {
		filter["assetId"] = f.AssetID
	}
	if !f.UserID.IsZero() {
		filter["userId"] = f.UserID
	}

	opts := options.Find().SetSort(bson.D{{Key: "issuedDate", Value: 1}})
	cursor, err := s.issuances.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapMongoErr(err, "issuances")
	}
	defer cursor.Close(ctx)

	var issuances []models.Issuance
	if err = cursor.All(ctx, &issuances); err != nil {
		return nil, mapMongoErr(err, "issuances")
	}
	return issuances, nil
}

func (s *Mongo) OpenIssuanceForAsset(ctx context.Context, assetID primitive.ObjectID) (*models.Issuance, error) {
	filter := bson.M{
		"assetId": assetID,
		"status":  bson.M{"$in": []string{models.IssuancePendingSignatures, models.IssuanceActive}},
	}
	var i models.Issuance
	err := s.issuances.FindOne(ctx, filter).Decode(&i)
	if err != nil {
		return nil, mapMongoErr(err, "issuance")
	}
	return &i, nil
}

// --- templates & signatures ---

func (s *Mongo) GetTemplate(ctx context.Context, documentType string) (*models.DocumentTemplate, error) {
	var t models.DocumentTemplate
	err := s.templates.FindOne(ctx, bson.M{"documentType": documentType}).Decode(&t)
	if err != nil {
		return nil, mapMongoErr(err, "document template")
	}
	return &t, nil
}

func (s *Mongo) ListTemplates(ctx context.Context) ([]models.DocumentTemplate, error) {
	opts := options.Find().SetSort(bson.D{{Key: "documentType", Value: 1}})
	cursor, err := s.templates.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, mapMongoErr(err, "document templates")
	}
	defer cursor.Close(ctx)

	var templates []models.DocumentTemplate
	if err = cursor.All(ctx, &templates); err != nil {
		return nil, mapMongoErr(err, "document templates")
	}
	return templates, nil
}

func (s *Mongo) UpsertTemplate(ctx context.Context, t *models.DocumentTemplate) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.templates.ReplaceOne(ctx, bson.M{"documentType": t.DocumentType}, t, opts)
	return mapMongoErr(err, "document template")
}

func (s *Mongo) InsertSignature(ctx context.Context, sig *models.SignatureRecord) error {
	if sig.ID.IsZero() {
		sig.ID = primitive.NewObjectID()
	}
	_, err := s.signatures.InsertOne(ctx, sig)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("signature %s/%s: %w", sig.IssuanceID.Hex(), sig.DocumentType, apperr.ErrAlreadySigned)
	}
	return mapMongoErr(err, "signature")
}

func (s *Mongo) ListSignatures(ctx context.Context, issuanceID primitive.ObjectID) ([]models.SignatureRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "signedAt", Value: 1}})
	cursor, err := s.signatures.Find(ctx, bson.M{"issuanceId": issuanceID}, opts)
	if err != nil {
		return nil, mapMongoErr(err, "signatures")
	}
	defer cursor.Close(ctx)

	var sigs []models.SignatureRecord
	if err = cursor.All(ctx, &sigs); err != nil {
		return nil, mapMongoErr(err, "signatures")
	}
	return sigs, nil
}

// --- audit ---

func (s *Mongo) AppendAudit(ctx context.Context, e *models.AuditLog) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.audits.InsertOne(ctx, e)
	return mapMongoErr(err, "audit entry")
}

func (s *Mongo) ListAudit(ctx context.Context, f AuditFilter) ([]models.AuditLog, error) {
	filter := bson.M{}
	if f.ResourceType != "" {
		filter["resourceType"] = f.ResourceType
	}
	if !f.ResourceID.IsZero() {
		filter["resourceId"] = f.ResourceID
	}
	if f.Action != "" {
		filter["action"] = f.Action
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	cursor, err := s.audits.Find(ctx, filter, opts)
	if err != nil {
		return nil, mapMongoErr(err, "audit entries")
	}
	defer cursor.Close(ctx)

	var logs []models.AuditLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, mapMongoErr(err, "audit entries")
	}
	return logs, nil
}

// --- users ---

func (s *Mongo) GetUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err != nil {
		return nil, mapMongoErr(err, "user")
	}
	return &u, nil
}

func (s *Mongo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&u)
	if err != nil {
		return nil, mapMongoErr(err, "user")
	}
	return &u, nil
}

func (s *Mongo) InsertUser(ctx context.Context, u *models.User) error {
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	_, err := s.users.InsertOne(ctx, u)
	return mapMongoErr(err, "user "+u.Email)
}
