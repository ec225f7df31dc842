package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"

	"github.com/mandiworks/tradecore-go/internal/domain/partner"
)

// GormDocumentRepository implements partner.DocumentProvider over the
// partner_documents table. The engine only reads; writes come from the
// document-verification pipeline outside this codebase.
type GormDocumentRepository struct {
	db *gorm.DB
}

// NewGormDocumentRepository creates a new GORM document repository
func NewGormDocumentRepository(db *gorm.DB) *GormDocumentRepository {
	return &GormDocumentRepository{db: db}
}

var _ partner.DocumentProvider = (*GormDocumentRepository)(nil)

// VerifiedDocuments returns the verified document set of a partner
func (r *GormDocumentRepository) VerifiedDocuments(ctx context.Context, partnerID string) (*partner.DocumentSet, error) {
	var models []PartnerDocumentModel
	result := dbFrom(ctx, r.db).
		Where("partner_id = ? AND verified = ?", partnerID, true).
		Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to load documents: %w", result.Error)
	}

	docs := make([]*partner.Document, 0, len(models))
	for i := range models {
		doc, err := documentModelToEntity(&models[i])
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return &partner.DocumentSet{PartnerID: partnerID, Documents: docs}, nil
}

// Add inserts a document row as the verification pipeline would
func (r *GormDocumentRepository) Add(ctx context.Context, d *partner.Document) error {
	model, err := documentEntityToModel(d)
	if err != nil {
		return err
	}
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func documentModelToEntity(m *PartnerDocumentModel) (*partner.Document, error) {
	ocr := map[string]string{}
	if m.OCRData != "" {
		if err := json.Unmarshal([]byte(m.OCRData), &ocr); err != nil {
			return nil, fmt.Errorf("corrupt ocr_data for document %s: %w", m.ID, err)
		}
	}
	doc := &partner.Document{
		ID:        m.ID,
		PartnerID: m.PartnerID,
		Type:      partner.DocumentType(m.DocumentType),
		OCRData:   ocr,
		Verified:  m.Verified,
	}
	if m.IssueDate != nil {
		doc.IssueDate = *m.IssueDate
	}
	if m.ExpiryDate != nil {
		doc.ExpiryDate = *m.ExpiryDate
	}
	return doc, nil
}

func documentEntityToModel(d *partner.Document) (*PartnerDocumentModel, error) {
	ocr, err := json.Marshal(d.OCRData)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ocr_data: %w", err)
	}
	model := &PartnerDocumentModel{
		ID:           d.ID,
		PartnerID:    d.PartnerID,
		DocumentType: string(d.Type),
		OCRData:      string(ocr),
		Verified:     d.Verified,
	}
	if !d.IssueDate.IsZero() {
		t := d.IssueDate
		model.IssueDate = &t
	}
	if !d.ExpiryDate.IsZero() {
		t := d.ExpiryDate
		model.ExpiryDate = &t
	}
	return model, nil
}
