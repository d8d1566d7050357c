// workflow/signing.go
package workflow

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"assettrack/apperr"
	"assettrack/models"
	"assettrack/store"
)

const dateLayout = "2006-01-02"

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Signing owns document templates and signature records. Creating a
// SignatureRecord is its only mutation; records are evidentiary artifacts and
// are never updated or deleted.
type Signing struct {
	store store.Store
}

func NewSigning(st store.Store) *Signing {
	return &Signing{store: st}
}

func (s *Signing) Template(ctx context.Context, documentType string) (*models.DocumentTemplate, error) {
	return s.store.GetTemplate(ctx, documentType)
}

func (s *Signing) ListTemplates(ctx context.Context) ([]models.DocumentTemplate, error) {
	return s.store.ListTemplates(ctx)
}

func (s *Signing) Signatures(ctx context.Context, issuanceID primitive.ObjectID) ([]models.SignatureRecord, error) {
	return s.store.ListSignatures(ctx, issuanceID)
}

// ValidateFormData checks data against the template: required fields present
// and non-empty, email fields matching a basic pattern, date fields parsing
// as calendar dates, required checkboxes ticked. Unknown extra keys pass
// through untouched.
func (s *Signing) ValidateFormData(t *models.DocumentTemplate, data map[string]string) error {
	fields := make(map[string]string)
	for _, f := range t.Fields {
		v, ok := data[f.Name]
		if f.Required && (!ok || v == "") {
			fields[f.Name] = f.Label + " is required"
			continue
		}
		if !ok || v == "" {
			continue
		}
		switch f.Type {
		case models.FieldEmail:
			if !emailPattern.MatchString(v) {
				fields[f.Name] = "invalid email address"
			}
		case models.FieldDate:
			if _, err := time.Parse(dateLayout, v); err != nil {
				fields[f.Name] = "invalid date, expected YYYY-MM-DD"
			}
		case models.FieldCheckbox:
			if f.Required && !checkboxChecked(v) {
				fields[f.Name] = f.Label + " must be accepted"
			}
		}
	}
	if len(fields) > 0 {
		return &apperr.ValidationError{Fields: fields}
	}
	return nil
}

func checkboxChecked(v string) bool {
	switch v {
	case "true", "on", "yes", "1", "checked":
		return true
	}
	return false
}

// Record validates the payload and persists the immutable signature record.
// The signature blob is opaque: non-emptiness is the whole contract.
func (s *Signing) Record(ctx context.Context, issuanceID primitive.ObjectID, t *models.DocumentTemplate, data map[string]string, signature string, signer primitive.ObjectID) (*models.SignatureRecord, error) {
	if signature == "" {
		return nil, apperr.NewValidation("signature", "signature is required")
	}
	if err := s.ValidateFormData(t, data); err != nil {
		return nil, err
	}

	rec := &models.SignatureRecord{
		ID:           primitive.NewObjectID(),
		IssuanceID:   issuanceID,
		DocumentType: t.DocumentType,
		FormData:     data,
		Signature:    signature,
		SignedAt:     time.Now().UTC(),
		SignerUserID: signer,
	}
	if err := s.store.InsertSignature(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// DefaultTemplates are the compliance documents seeded at startup.
func DefaultTemplates() []models.DocumentTemplate {
	return []models.DocumentTemplate{
		{
			DocumentType: "declaration",
			Name:         "Equipment Responsibility Declaration",
			Content: "I acknowledge receipt of the equipment listed and accept responsibility " +
				"for its care and return in accordance with company policy.",
			Fields: []models.TemplateField{
				{Name: "full_name", Label: "Full Name", Type: models.FieldText, Required: true},
				{Name: "email", Label: "Company Email", Type: models.FieldEmail, Required: true},
				{Name: "date", Label: "Date", Type: models.FieldDate, Required: true},
				{Name: "agree", Label: "I agree to the terms above", Type: models.FieldCheckbox, Required: true},
			},
		},
		{
			DocumentType: "orientation",
			Name:         "Security Orientation Acknowledgement",
			Content: "I confirm that I have completed the IT security orientation covering " +
				"acceptable use, data handling and incident reporting.",
			Fields: []models.TemplateField{
				{Name: "full_name", Label: "Full Name", Type: models.FieldText, Required: true},
				{Name: "date", Label: "Completion Date", Type: models.FieldDate, Required: true},
				{Name: "acknowledged", Label: "Orientation completed", Type: models.FieldCheckbox, Required: true},
			},
		},
	}
}
