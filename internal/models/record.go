package models

// Field keys for the 17 form fields, used as session value keys and to
// index into the canonical column order.
const (
	FieldCode             = "code"
	FieldFullName         = "full_name"
	FieldPhone            = "phone"
	FieldRegion           = "region"
	FieldLocalArea        = "local_area"
	FieldVisitDate        = "visit_date"
	FieldCustomerCategory = "customer_category"
	FieldSiteName         = "site_name"
	FieldActivityType     = "activity_type"
	FieldServiceTier      = "service_tier"
	FieldPriceTier        = "price_tier"
	FieldContactName      = "contact_name"
	FieldContactTitle     = "contact_title"
	FieldContactPhone     = "contact_phone"
	FieldDealPackage      = "deal_package"
	FieldDealBundle       = "deal_bundle"
	FieldEvidencePhoto    = "evidence_photo"
)

// Placeholder fills columns for the branch not taken, keeping the column
// count fixed in every appended row.
const Placeholder = "-"

// CanonicalFieldOrder is the fixed order of the 16 text/selection columns
// in the backing store, excluding the photo link column.
var CanonicalFieldOrder = []string{
	FieldCode,
	FieldFullName,
	FieldPhone,
	FieldRegion,
	FieldLocalArea,
	FieldVisitDate,
	FieldCustomerCategory,
	FieldSiteName,
	FieldActivityType,
	FieldServiceTier,
	FieldPriceTier,
	FieldContactName,
	FieldContactTitle,
	FieldContactPhone,
	FieldDealPackage,
	FieldDealBundle,
}

// CanonicalHeader is the backing store's fixed header row: the 16 field
// columns plus the evidence photo link appended by the gateway.
var CanonicalHeader = []string{
	"Code",
	"Full Name",
	"Phone",
	"Region",
	"Local Area",
	"Visit Date",
	"Customer Category",
	"Site/Tenant Name",
	"Activity Type",
	"Current Service Tier",
	"Current Price Tier",
	"Contact Person Name",
	"Contact Person Title",
	"Contact Person Phone",
	"Deal Package",
	"Deal Bundle",
	"Evidence Photo Link",
}

// SubmissionRecord is a completed form handed to the submission gateway:
// the 16 text values in canonical order plus the decoded evidence photo.
type SubmissionRecord struct {
	UserID string   `json:"user_id"`
	Values []string `json:"values"`
	Image  []byte   `json:"-"`
}

// Validate checks that the record carries a full set of column values and
// a non-empty image payload.
func (r *SubmissionRecord) Validate() error {
	if len(r.Values) != len(CanonicalFieldOrder) {
		return ErrRecordIncomplete
	}
	for _, v := range r.Values {
		if v == "" {
			return ErrRecordIncomplete
		}
	}
	if len(r.Image) == 0 {
		return ErrRecordIncomplete
	}
	return nil
}

// Value returns the record value for a canonical field key, or the
// placeholder if the key is not part of the canonical order.
func (r *SubmissionRecord) Value(key string) string {
	for i, k := range CanonicalFieldOrder {
		if k == key && i < len(r.Values) {
			return r.Values[i]
		}
	}
	return Placeholder
}
