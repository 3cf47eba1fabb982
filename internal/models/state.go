// Package models defines state identifiers for the form flow.
package models

// State identifies where a session is in the form flow: idle, waiting on
// one specific field, or completed and awaiting confirmation.
type State string

const (
	StateIdle      State = "IDLE"
	StateCompleted State = "COMPLETED"

	StateCode             State = "WAITING_CODE"
	StateFullName         State = "WAITING_FULL_NAME"
	StatePhone            State = "WAITING_PHONE"
	StateRegion           State = "WAITING_REGION"
	StateLocalArea        State = "WAITING_LOCAL_AREA"
	StateVisitDate        State = "WAITING_VISIT_DATE"
	StateCustomerCategory State = "WAITING_CUSTOMER_CATEGORY"
	StateSiteName         State = "WAITING_SITE_NAME"
	StateActivityType     State = "WAITING_ACTIVITY_TYPE"
	StateServiceTier      State = "WAITING_SERVICE_TIER"
	StatePriceTier        State = "WAITING_PRICE_TIER"
	StateContactName      State = "WAITING_CONTACT_NAME"
	StateContactTitle     State = "WAITING_CONTACT_TITLE"
	StateContactPhone     State = "WAITING_CONTACT_PHONE"
	StateDealPackage      State = "WAITING_DEAL_PACKAGE"
	StateDealBundle       State = "WAITING_DEAL_BUNDLE"
	StateEvidencePhoto    State = "WAITING_EVIDENCE_PHOTO"
)
