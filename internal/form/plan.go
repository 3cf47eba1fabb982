// Package form implements the multi-step visit report form: the static
// field plan with its activity-type branches, and the stepper that walks a
// session through it.
package form

import (
	"fmt"

	"github.com/telkomfield/visitbot/internal/models"
	"github.com/telkomfield/visitbot/internal/validate"
)

// Activity type labels that select the branch taken after the activity
// choice.
const (
	ActivityVisit   = "Visit"
	ActivityDealing = "Dealing"
)

// FieldDef is the static description of one form question.
type FieldDef struct {
	Key      string
	State    models.State
	Label    string // display label used in confirmations and the summary
	Prompt   string
	Kind     models.EventKind
	Options  []models.Choice               // selection fields only
	Validate func(string) (string, error) // text fields only
}

// Plan is the form layout: a common prefix ending with the activity-type
// choice, one short branch per activity type, and a shared tail ending
// with the evidence photo. Both branches reconverge into the tail.
type Plan struct {
	Common   []FieldDef
	Branches map[string][]FieldDef
	Tail     []FieldDef
}

// DefaultPlan returns the visit report form layout.
func DefaultPlan() *Plan {
	return &Plan{
		Common: []FieldDef{
			{
				Key:      models.FieldCode,
				State:    models.StateCode,
				Label:    "Code",
				Prompt:   "Enter your sales agent code (e.g. SA001):",
				Kind:     models.EventText,
				Validate: validate.Code,
			},
			{
				Key:      models.FieldFullName,
				State:    models.StateFullName,
				Label:    "Full Name",
				Prompt:   "Enter your full name:",
				Kind:     models.EventText,
				Validate: validate.PersonName,
			},
			{
				Key:      models.FieldPhone,
				State:    models.StatePhone,
				Label:    "Phone",
				Prompt:   "Enter your phone number (e.g. 081234567890):",
				Kind:     models.EventText,
				Validate: validate.Phone,
			},
			{
				Key:    models.FieldRegion,
				State:  models.StateRegion,
				Label:  "Region",
				Prompt: "Select your region:",
				Kind:   models.EventSelection,
				Options: []models.Choice{
					{Key: "region_bali", Label: "Bali"},
					{Key: "region_jatim_barat", Label: "Jatim Barat"},
					{Key: "region_jatim_timur", Label: "Jatim Timur"},
					{Key: "region_nusa_tenggara", Label: "Nusa Tenggara"},
					{Key: "region_semarang_jateng", Label: "Semarang Jateng"},
					{Key: "region_solo_jateng_timur", Label: "Solo Jateng Timur"},
					{Key: "region_suramadu", Label: "Suramadu"},
					{Key: "region_yogya_jateng_selatan", Label: "Yogya Jateng Selatan"},
				},
			},
			{
				Key:      models.FieldLocalArea,
				State:    models.StateLocalArea,
				Label:    "Local Area",
				Prompt:   "Enter your local area office:",
				Kind:     models.EventText,
				Validate: validate.PlaceName,
			},
			{
				Key:      models.FieldVisitDate,
				State:    models.StateVisitDate,
				Label:    "Visit Date",
				Prompt:   "Enter the visit date (DD/MM/YYYY, DD-MM-YYYY, or DD MM YYYY):",
				Kind:     models.EventText,
				Validate: validate.Date,
			},
			{
				Key:    models.FieldCustomerCategory,
				State:  models.StateCustomerCategory,
				Label:  "Customer Category",
				Prompt: "Select the customer category:",
				Kind:   models.EventSelection,
				Options: []models.Choice{
					{Key: "category_industrial_estate", Label: "Kawasan Industri"},
					{Key: "category_village", Label: "Desa"},
					{Key: "category_health_center", Label: "Puskesmas"},
					{Key: "category_district", Label: "Kecamatan"},
				},
			},
			{
				Key:      models.FieldSiteName,
				State:    models.StateSiteName,
				Label:    "Site/Tenant Name",
				Prompt:   "Enter the name of the site, village, health center, or district visited:",
				Kind:     models.EventText,
				Validate: validate.PlaceName,
			},
			{
				Key:    models.FieldActivityType,
				State:  models.StateActivityType,
				Label:  "Activity Type",
				Prompt: "Select the activity type:",
				Kind:   models.EventSelection,
				Options: []models.Choice{
					{Key: "activity_visit", Label: ActivityVisit},
					{Key: "activity_dealing", Label: ActivityDealing},
				},
			},
		},
		Branches: map[string][]FieldDef{
			ActivityVisit: {
				{
					Key:    models.FieldServiceTier,
					State:  models.StateServiceTier,
					Label:  "Current Service Tier",
					Prompt: "Select the service currently in use:",
					Kind:   models.EventSelection,
					Options: []models.Choice{
						{Key: "tier_indihome", Label: "Indihome"},
						{Key: "tier_indibiz", Label: "Indibiz"},
						{Key: "tier_competitor", Label: "Kompetitor"},
					},
				},
				{
					Key:    models.FieldPriceTier,
					State:  models.StatePriceTier,
					Label:  "Current Price Tier",
					Prompt: "Select the current service price tier:",
					Kind:   models.EventSelection,
					Options: []models.Choice{
						{Key: "price_low", Label: "< Rp 200.000"},
						{Key: "price_mid", Label: "Rp 200.000 - Rp 350.000"},
						{Key: "price_high", Label: "> Rp 500.000"},
					},
				},
			},
			ActivityDealing: {
				{
					Key:    models.FieldDealPackage,
					State:  models.StateDealPackage,
					Label:  "Deal Package",
					Prompt: "Select the deal package (Mbps):",
					Kind:   models.EventSelection,
					Options: []models.Choice{
						{Key: "package_50", Label: "50 Mbps"},
						{Key: "package_75", Label: "75 Mbps"},
						{Key: "package_100", Label: "100 Mbps"},
						{Key: "package_over_100", Label: "> 100 Mbps"},
					},
				},
				{
					Key:    models.FieldDealBundle,
					State:  models.StateDealBundle,
					Label:  "Deal Bundle",
					Prompt: "Select the deal bundle:",
					Kind:   models.EventSelection,
					Options: []models.Choice{
						{Key: "bundle_1p", Label: "1P Internet Only"},
						{Key: "bundle_2p_tv", Label: "2P Internet + TV"},
						{Key: "bundle_2p_phone", Label: "2P Internet + Telepon"},
						{Key: "bundle_3p", Label: "3P Internet + TV + Telepon"},
					},
				},
			},
		},
		Tail: []FieldDef{
			{
				Key:      models.FieldContactName,
				State:    models.StateContactName,
				Label:    "Contact Person Name",
				Prompt:   "Enter the customer contact person's name:",
				Kind:     models.EventText,
				Validate: validate.PersonName,
			},
			{
				Key:      models.FieldContactTitle,
				State:    models.StateContactTitle,
				Label:    "Contact Person Title",
				Prompt:   "Enter the contact person's title:",
				Kind:     models.EventText,
				Validate: validate.PersonName,
			},
			{
				Key:      models.FieldContactPhone,
				State:    models.StateContactPhone,
				Label:    "Contact Person Phone",
				Prompt:   "Enter the contact person's phone number:",
				Kind:     models.EventText,
				Validate: validate.Phone,
			},
			{
				Key:    models.FieldEvidencePhoto,
				State:  models.StateEvidencePhoto,
				Label:  "Evidence Photo",
				Prompt: "Upload the visit evidence photo:",
				Kind:   models.EventPhoto,
			},
		},
	}
}

// TotalSteps returns the number of steps a session walks through. Both
// branches are the same length, so the total is the same on either path.
func (p *Plan) TotalSteps() int {
	branchLen := 0
	for _, b := range p.Branches {
		branchLen = len(b)
		break
	}
	return len(p.Common) + branchLen + len(p.Tail)
}

// First returns the first field of the form.
func (p *Plan) First() FieldDef {
	return p.Common[0]
}

// FieldForState looks up the field definition awaited in the given state.
func (p *Plan) FieldForState(state models.State) (FieldDef, bool) {
	for _, f := range p.Common {
		if f.State == state {
			return f, true
		}
	}
	for _, branch := range p.Branches {
		for _, f := range branch {
			if f.State == state {
				return f, true
			}
		}
	}
	for _, f := range p.Tail {
		if f.State == state {
			return f, true
		}
	}
	return FieldDef{}, false
}

// sequence resolves the full linear field order for a chosen activity
// type. Before the activity choice is made only the common prefix is
// reachable, so an empty activity resolves to just the prefix.
func (p *Plan) sequence(activity string) []FieldDef {
	seq := make([]FieldDef, 0, p.TotalSteps())
	seq = append(seq, p.Common...)
	branch, ok := p.Branches[activity]
	if !ok {
		return seq
	}
	seq = append(seq, branch...)
	seq = append(seq, p.Tail...)
	return seq
}

// Next returns the field following the given state on the path selected by
// activity, or ok=false when the given state is the last step. It is a
// total function over every reachable (state, activity) pair; an
// unreachable pair is a contract error.
func (p *Plan) Next(state models.State, activity string) (FieldDef, bool, error) {
	seq := p.sequence(activity)
	for i, f := range seq {
		if f.State != state {
			continue
		}
		if i+1 < len(seq) {
			return seq[i+1], true, nil
		}
		if f.Key == models.FieldEvidencePhoto {
			return FieldDef{}, false, nil
		}
		// The activity branch was never resolved; the plan cannot continue.
		return FieldDef{}, false, fmt.Errorf("%w: state %s with activity %q", models.ErrNoNextState, state, activity)
	}
	return FieldDef{}, false, fmt.Errorf("%w: state %s not on path for activity %q", models.ErrNoNextState, state, activity)
}
