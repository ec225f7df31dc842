package capability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mandiworks/tradecore-go/internal/adapters/sanctions"
	"github.com/mandiworks/tradecore-go/internal/application/capability"
	"github.com/mandiworks/tradecore-go/internal/domain/partner"
	"github.com/mandiworks/tradecore-go/internal/domain/shared"
	"github.com/mandiworks/tradecore-go/internal/infrastructure/logging"
	"github.com/mandiworks/tradecore-go/test/helpers"
)

type stubDocuments struct {
	sets map[string]*partner.DocumentSet
	err  error
}

func (s *stubDocuments) VerifiedDocuments(_ context.Context, partnerID string) (*partner.DocumentSet, error) {
	if s.err != nil {
		return nil, s.err
	}
	if set, ok := s.sets[partnerID]; ok {
		return set, nil
	}
	return &partner.DocumentSet{PartnerID: partnerID}, nil
}

func newResolver(docs *stubDocuments, sanctioned []string) *capability.Resolver {
	return capability.NewResolver(docs, sanctions.NewStaticList(sanctioned),
		shared.NewMockClock(helpers.FixedTime), logging.Nop())
}

func document(partnerID string, docType partner.DocumentType, expiry time.Time) *partner.Document {
	return &partner.Document{
		ID:         "DOC-" + string(docType),
		PartnerID:  partnerID,
		Type:       docType,
		ExpiryDate: expiry,
		Verified:   true,
	}
}

func docSet(partnerID string, docs ...*partner.Document) *stubDocuments {
	return &stubDocuments{sets: map[string]*partner.DocumentSet{
		partnerID: {PartnerID: partnerID, Documents: docs},
	}}
}

func TestResolver_SanctionedCountryBlocksFirst(t *testing.T) {
	r := newResolver(&stubDocuments{}, []string{"KP"})
	p := helpers.ActivePartner(t, "BP-1", partner.TypeTrader)

	d := r.Resolve(context.Background(), p, partner.SideSell, "KP", nil)

	assert.Equal(t, shared.DecisionFail, d.Status)
	assert.Equal(t, capability.CodeSanctionedCountry, d.Code)
}

func TestResolver_RestrictedDestinationPerCommodity(t *testing.T) {
	r := newResolver(&stubDocuments{}, nil)
	p := helpers.ActivePartner(t, "BP-1", partner.TypeTrader)
	c := helpers.GradedCommodity("COM-RICE")
	c.ExportRegulations.RestrictedCountries = []string{"XX"}

	d := r.Resolve(context.Background(), p, partner.SideSell, "XX", c)
	assert.Equal(t, shared.DecisionFail, d.Status)
	assert.Equal(t, capability.CodeRestrictedDestination, d.Code)
	assert.Equal(t, "COM-RICE", d.Details["commodity_id"])

	// The same destination on the buy side consults import regulations
	d = r.Resolve(context.Background(), p, partner.SideBuy, "XX", c)
	assert.NotEqual(t, capability.CodeRestrictedDestination, d.Code)
}

func TestResolver_ServiceProvidersCannotTrade(t *testing.T) {
	r := newResolver(&stubDocuments{}, nil)
	p := helpers.ActivePartner(t, "BP-1", partner.TypeServiceProvider)

	d := r.Resolve(context.Background(), p, partner.SideBuy, "IN", nil)

	assert.Equal(t, shared.DecisionFail, d.Status)
	assert.Equal(t, capability.CodeServiceProvider, d.Code)
}

func TestResolver_DomesticHomeMarketNeedsGSTAndPAN(t *testing.T) {
	p := helpers.ActivePartner(t, "BP-1", partner.TypeTrader)
	never := time.Time{}

	tests := []struct {
		name string
		docs *stubDocuments
		want string // empty means pass
	}{
		{
			name: "no documents at all",
			docs: docSet("BP-1"),
			want: capability.CodeGSTMissing,
		},
		{
			name: "GST expired",
			docs: docSet("BP-1",
				document("BP-1", partner.DocGST, helpers.FixedTime.Add(-time.Hour)),
				document("BP-1", partner.DocPAN, never)),
			want: capability.CodeGSTExpired,
		},
		{
			name: "GST present, PAN missing",
			docs: docSet("BP-1", document("BP-1", partner.DocGST, never)),
			want: capability.CodePANMissing,
		},
		{
			name: "both usable",
			docs: docSet("BP-1",
				document("BP-1", partner.DocGST, never),
				document("BP-1", partner.DocPAN, never)),
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(tt.docs, nil)
			d := r.Resolve(context.Background(), p, partner.SideBuy, "IN", nil)
			if tt.want == "" {
				assert.Equal(t, shared.DecisionPass, d.Status)
			} else {
				assert.Equal(t, shared.DecisionFail, d.Status)
				assert.Equal(t, tt.want, d.Code)
			}
		})
	}
}

func TestResolver_UnverifiedDocumentCountsAsMissing(t *testing.T) {
	gst := document("BP-1", partner.DocGST, time.Time{})
	gst.Verified = false
	r := newResolver(docSet("BP-1", gst), nil)
	p := helpers.ActivePartner(t, "BP-1", partner.TypeTrader)

	d := r.Resolve(context.Background(), p, partner.SideBuy, "IN", nil)

	assert.Equal(t, capability.CodeGSTMissing, d.Code)
}

func TestResolver_ForeignDomesticMarketsPassWithoutDocuments(t *testing.T) {
	r := newResolver(&stubDocuments{}, nil)
	p := helpers.ActivePartner(t, "BP-1", partner.TypeTrader)
	p.PrimaryCountry = "AE"

	// An AE partner trading inside AE faces no modelled regulator
	d := r.Resolve(context.Background(), p, partner.SideSell, "AE", nil)

	assert.Equal(t, shared.DecisionPass, d.Status)
}

func TestResolver_ForeignEntityCannotTradeThirdCountry(t *testing.T) {
	r := newResolver(&stubDocuments{}, nil)
	p := helpers.ActivePartner(t, "BP-1", partner.TypeTrader)
	p.PrimaryCountry = "AE"

	d := r.Resolve(context.Background(), p, partner.SideSell, "US", nil)

	assert.Equal(t, shared.DecisionFail, d.Status)
	assert.Equal(t, capability.CodeForeignDomestic, d.Code)
}

func TestResolver_ResidentExporterNeedsIEC(t *testing.T) {
	p := helpers.ActivePartner(t, "BP-1", partner.TypeTrader)
	never := time.Time{}

	r := newResolver(docSet("BP-1"), nil)
	d := r.Resolve(context.Background(), p, partner.SideSell, "AE", nil)
	assert.Equal(t, capability.CodeIECMissing, d.Code)

	// With IEC and no license demanded by the commodity, the export passes
	r = newResolver(docSet("BP-1", document("BP-1", partner.DocIEC, never)), nil)
	d = r.Resolve(context.Background(), p, partner.SideSell, "AE", nil)
	assert.Equal(t, shared.DecisionPass, d.Status)
}

func TestResolver_ForeignPartnerLicenseRules(t *testing.T) {
	p := helpers.ActivePartner(t, "BP-1", partner.TypeTrader)
	p.PrimaryCountry = "AE"
	never := time.Time{}

	// No export license at all
	r := newResolver(docSet("BP-1"), nil)
	d := r.Resolve(context.Background(), p, partner.SideSell, "IN", nil)
	assert.Equal(t, capability.CodeExportLicenseMissing, d.Code)

	// Expired license is reported as expired, not missing
	expired := document("BP-1", partner.DocForeignExportLicense, helpers.FixedTime.Add(-time.Hour))
	expired.OCRData = map[string]string{"license_countries": "IN"}
	r = newResolver(docSet("BP-1", expired), nil)
	d = r.Resolve(context.Background(), p, partner.SideSell, "IN", nil)
	assert.Equal(t, capability.CodeExportLicenseExpired, d.Code)

	// Usable license that does not cover the destination
	narrow := document("BP-1", partner.DocForeignExportLicense, never)
	narrow.OCRData = map[string]string{"license_countries": "BD, LK"}
	r = newResolver(docSet("BP-1", narrow), nil)
	d = r.Resolve(context.Background(), p, partner.SideSell, "IN", nil)
	assert.Equal(t, capability.CodeDestinationNotCovered, d.Code)
	assert.Equal(t, narrow.ID, d.Details["document_id"])

	// ALL covers every destination
	broad := document("BP-1", partner.DocForeignExportLicense, never)
	broad.OCRData = map[string]string{"license_countries": "ALL"}
	r = newResolver(docSet("BP-1", broad), nil)
	d = r.Resolve(context.Background(), p, partner.SideSell, "IN", nil)
	assert.Equal(t, shared.DecisionPass, d.Status)

	// Buying into the home market consults the import license instead
	r = newResolver(docSet("BP-1", broad), nil)
	d = r.Resolve(context.Background(), p, partner.SideBuy, "IN", nil)
	assert.Equal(t, capability.CodeImportLicenseMissing, d.Code)
}

func TestResolver_CommodityCanDemandLicenseFromResident(t *testing.T) {
	p := helpers.ActivePartner(t, "BP-1", partner.TypeTrader)
	c := helpers.GradedCommodity("COM-RICE")
	c.ExportRegulations.LicenseRequired = true
	never := time.Time{}

	r := newResolver(docSet("BP-1", document("BP-1", partner.DocIEC, never)), nil)
	d := r.Resolve(context.Background(), p, partner.SideSell, "AE", c)
	assert.Equal(t, capability.CodeExportLicenseMissing, d.Code)

	license := document("BP-1", partner.DocForeignExportLicense, never)
	license.OCRData = map[string]string{"license_countries": "AE"}
	r = newResolver(docSet("BP-1", document("BP-1", partner.DocIEC, never), license), nil)
	d = r.Resolve(context.Background(), p, partner.SideSell, "AE", c)
	assert.Equal(t, shared.DecisionPass, d.Status)
}

func TestResolver_DocumentLookupFailureDenies(t *testing.T) {
	r := newResolver(&stubDocuments{err: errors.New("store offline")}, nil)
	p := helpers.ActivePartner(t, "BP-1", partner.TypeTrader)

	d := r.Resolve(context.Background(), p, partner.SideBuy, "IN", nil)

	assert.Equal(t, shared.DecisionFail, d.Status)
	assert.Equal(t, capability.CodeDocumentsUnavailable, d.Code)
}
