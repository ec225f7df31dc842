package partner

import (
	"strings"
	"time"
)

// DocumentType identifies a regulatory document class
type DocumentType string

const (
	DocGST                  DocumentType = "GST"
	DocPAN                  DocumentType = "PAN"
	DocIEC                  DocumentType = "IEC"
	DocForeignExportLicense DocumentType = "FOREIGN_EXPORT_LICENSE"
	DocForeignImportLicense DocumentType = "FOREIGN_IMPORT_LICENSE"
	DocFSSAI                DocumentType = "FSSAI"
	DocPhytosanitary        DocumentType = "PHYTOSANITARY"
)

// ocr_data key carrying the countries a license covers
const ocrKeyLicenseCountries = "license_countries"

// Document is a verified (or pending) regulatory document of a partner.
// OCRData is the extracted key/value payload from the upload pipeline;
// the engine treats it as read-only.
type Document struct {
	ID         string
	PartnerID  string
	Type       DocumentType
	OCRData    map[string]string
	IssueDate  time.Time
	ExpiryDate time.Time
	Verified   bool
}

// IsExpired reports whether the document has lapsed at the given time.
// A zero expiry date means the document does not expire.
func (d *Document) IsExpired(now time.Time) bool {
	return !d.ExpiryDate.IsZero() && now.After(d.ExpiryDate)
}

// IsUsable reports whether the document satisfies regulator rules:
// verified and not expired.
func (d *Document) IsUsable(now time.Time) bool {
	return d.Verified && !d.IsExpired(now)
}

// CoversCountry reports whether a license document covers trades with the
// given country. The OCR payload carries a comma-separated country list;
// the literal "ALL" covers every destination.
func (d *Document) CoversCountry(country string) bool {
	raw, ok := d.OCRData[ocrKeyLicenseCountries]
	if !ok {
		return false
	}
	for _, c := range strings.Split(raw, ",") {
		c = strings.TrimSpace(strings.ToUpper(c))
		if c == "ALL" || strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// DocumentSet is the usable document collection of one partner
type DocumentSet struct {
	PartnerID string
	Documents []*Document
}

// UsableOfType returns the first usable document of the given type
func (s *DocumentSet) UsableOfType(docType DocumentType, now time.Time) *Document {
	for _, d := range s.Documents {
		if d.Type == docType && d.IsUsable(now) {
			return d
		}
	}
	return nil
}

// HasUsable reports whether a usable document of the type exists
func (s *DocumentSet) HasUsable(docType DocumentType, now time.Time) bool {
	return s.UsableOfType(docType, now) != nil
}

// HasExpiredOnly reports whether every document of the type is verified
// but expired. Used to distinguish EXPIRED from MISSING in denial codes.
func (s *DocumentSet) HasExpiredOnly(docType DocumentType, now time.Time) bool {
	sawExpired := false
	for _, d := range s.Documents {
		if d.Type != docType || !d.Verified {
			continue
		}
		if !d.IsExpired(now) {
			return false
		}
		sawExpired = true
	}
	return sawExpired
}
