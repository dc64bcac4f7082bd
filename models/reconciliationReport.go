package models

import (
	"fmt"
	"time"
)

// ReconciliationReport is the append-only audit row written once per
// universal-record upload: aggregate counts plus one integer column per
// canonical ledger header counting that field's variations across the upload.
// Rows are never updated after creation.
type ReconciliationReport struct {
	ID                     int       `gorm:"primary_key" json:"id"`
	InsurerName            string    `gorm:"index;size:100;not null" json:"insurer_name"`
	InsurerCode            string    `gorm:"size:50" json:"insurer_code"`
	TotalRecordsProcessed  int       `gorm:"not null;default:0" json:"total_records_processed"`
	TotalRecordsUpdated    int       `gorm:"not null;default:0" json:"total_records_updated"`
	NewRecordsAdded        int       `gorm:"not null;default:0" json:"new_records_added"`
	TotalErrors            int       `gorm:"not null;default:0" json:"total_errors"`
	DataVariancePercentage float64   `gorm:"not null;default:0" json:"data_variance_percentage"`
	ProcessingTimeSeconds  float64   `gorm:"not null;default:0" json:"processing_time_seconds"`
	ProcessedBy            string    `gorm:"size:100;index" json:"processed_by"`
	CreatedAt              time.Time `gorm:"autoCreateTime" json:"created_at"`

	ReportingMonthMmmYyVariations                   int `gorm:"column:reporting_month_mmm_yy_variations;not null;default:0" json:"reporting_month_mmm_yy_variations"`
	ChildIdUserIdProvidedByInsureZealVariations     int `gorm:"column:child_id_user_id_provided_by_insure_zeal_variations;not null;default:0" json:"child_id_user_id_provided_by_insure_zeal_variations"`
	InsurerBrokerCodeVariations                     int `gorm:"column:insurer_broker_code_variations;not null;default:0" json:"insurer_broker_code_variations"`
	PolicyStartDateVariations                       int `gorm:"column:policy_start_date_variations;not null;default:0" json:"policy_start_date_variations"`
	PolicyEndDateVariations                         int `gorm:"column:policy_end_date_variations;not null;default:0" json:"policy_end_date_variations"`
	BookingDateClickToSelectDateVariations          int `gorm:"column:booking_date_click_to_select_date_variations;not null;default:0" json:"booking_date_click_to_select_date_variations"`
	BrokerNameVariations                            int `gorm:"column:broker_name_variations;not null;default:0" json:"broker_name_variations"`
	InsurerNameVariations                           int `gorm:"column:insurer_name_variations;not null;default:0" json:"insurer_name_variations"`
	MajorCategorisationMotorLifeHealthVariations    int `gorm:"column:major_categorisation_motor_life_health_variations;not null;default:0" json:"major_categorisation_motor_life_health_variations"`
	ProductInsurerReportVariations                  int `gorm:"column:product_insurer_report_variations;not null;default:0" json:"product_insurer_report_variations"`
	ProductTypeVariations                           int `gorm:"column:product_type_variations;not null;default:0" json:"product_type_variations"`
	PlanTypeCompStpSaodVariations                   int `gorm:"column:plan_type_comp_stp_saod_variations;not null;default:0" json:"plan_type_comp_stp_saod_variations"`
	GrossPremiumVariations                          int `gorm:"column:gross_premium_variations;not null;default:0" json:"gross_premium_variations"`
	GstAmountVariations                             int `gorm:"column:gst_amount_variations;not null;default:0" json:"gst_amount_variations"`
	NetPremiumVariations                            int `gorm:"column:net_premium_variations;not null;default:0" json:"net_premium_variations"`
	OdPremiumVariations                             int `gorm:"column:od_premium_variations;not null;default:0" json:"od_premium_variations"`
	TpPremiumVariations                             int `gorm:"column:tp_premium_variations;not null;default:0" json:"tp_premium_variations"`
	PolicyNumberVariations                          int `gorm:"column:policy_number_variations;not null;default:0" json:"policy_number_variations"`
	FormattedPolicyNumberVariations                 int `gorm:"column:formatted_policy_number_variations;not null;default:0" json:"formatted_policy_number_variations"`
	RegistrationNoVariations                        int `gorm:"column:registration_no_variations;not null;default:0" json:"registration_no_variations"`
	MakeModelVariations                             int `gorm:"column:make_model_variations;not null;default:0" json:"make_model_variations"`
	ModelVariations                                 int `gorm:"column:model_variations;not null;default:0" json:"model_variations"`
	VehicleVariantVariations                        int `gorm:"column:vehicle_variant_variations;not null;default:0" json:"vehicle_variant_variations"`
	GvwVariations                                   int `gorm:"column:gvw_variations;not null;default:0" json:"gvw_variations"`
	RtoVariations                                   int `gorm:"column:rto_variations;not null;default:0" json:"rto_variations"`
	StateVariations                                 int `gorm:"column:state_variations;not null;default:0" json:"state_variations"`
	ClusterVariations                               int `gorm:"column:cluster_variations;not null;default:0" json:"cluster_variations"`
	FuelTypeVariations                              int `gorm:"column:fuel_type_variations;not null;default:0" json:"fuel_type_variations"`
	CcVariations                                    int `gorm:"column:cc_variations;not null;default:0" json:"cc_variations"`
	AgeYearVariations                               int `gorm:"column:age_year_variations;not null;default:0" json:"age_year_variations"`
	NcbYesNoVariations                              int `gorm:"column:ncb_yes_no_variations;not null;default:0" json:"ncb_yes_no_variations"`
	DiscountVariations                              int `gorm:"column:discount_variations;not null;default:0" json:"discount_variations"`
	BusinessTypeVariations                          int `gorm:"column:business_type_variations;not null;default:0" json:"business_type_variations"`
	SeatingCapacityVariations                       int `gorm:"column:seating_capacity_variations;not null;default:0" json:"seating_capacity_variations"`
	VehWheelsVariations                             int `gorm:"column:veh_wheels_variations;not null;default:0" json:"veh_wheels_variations"`
	CustomerNameVariations                          int `gorm:"column:customer_name_variations;not null;default:0" json:"customer_name_variations"`
	CustomerNumberVariations                        int `gorm:"column:customer_number_variations;not null;default:0" json:"customer_number_variations"`
	CommissionablePremiumVariations                 int `gorm:"column:commissionable_premium_variations;not null;default:0" json:"commissionable_premium_variations"`
	IncomingGridVariations                          int `gorm:"column:incoming_grid_variations;not null;default:0" json:"incoming_grid_variations"`
	ReceivableFromBrokerVariations                  int `gorm:"column:receivable_from_broker_variations;not null;default:0" json:"receivable_from_broker_variations"`
	ExtraGridVariations                             int `gorm:"column:extra_grid_variations;not null;default:0" json:"extra_grid_variations"`
	ExtraAmountReceivableFromBrokerVariations       int `gorm:"column:extra_amount_receivable_from_broker_variations;not null;default:0" json:"extra_amount_receivable_from_broker_variations"`
	TotalReceivableFromBrokerVariations             int `gorm:"column:total_receivable_from_broker_variations;not null;default:0" json:"total_receivable_from_broker_variations"`
	ClaimedByVariations                             int `gorm:"column:claimed_by_variations;not null;default:0" json:"claimed_by_variations"`
	PaymentByVariations                             int `gorm:"column:payment_by_variations;not null;default:0" json:"payment_by_variations"`
	PaymentModeVariations                           int `gorm:"column:payment_mode_variations;not null;default:0" json:"payment_mode_variations"`
	AgentCodeVariations                             int `gorm:"column:agent_code_variations;not null;default:0" json:"agent_code_variations"`
	CutPayAmountReceivedFromAgentVariations         int `gorm:"column:cut_pay_amount_received_from_agent_variations;not null;default:0" json:"cut_pay_amount_received_from_agent_variations"`
	AlreadyGivenToAgentVariations                   int `gorm:"column:already_given_to_agent_variations;not null;default:0" json:"already_given_to_agent_variations"`
	ActualAgentPoVariations                         int `gorm:"column:actual_agent_po_variations;not null;default:0" json:"actual_agent_po_variations"`
	AgentPoAmtVariations                            int `gorm:"column:agent_po_amt_variations;not null;default:0" json:"agent_po_amt_variations"`
	AgentExtraVariations                            int `gorm:"column:agent_extra_variations;not null;default:0" json:"agent_extra_variations"`
	AgentExtraAmountVariations                      int `gorm:"column:agent_extra_amount_variations;not null;default:0" json:"agent_extra_amount_variations"`
	AgentTotalPoAmountVariations                    int `gorm:"column:agent_total_po_amount_variations;not null;default:0" json:"agent_total_po_amount_variations"`
	PaymentByOfficeVariations                       int `gorm:"column:payment_by_office_variations;not null;default:0" json:"payment_by_office_variations"`
	PoPaidToAgentVariations                         int `gorm:"column:po_paid_to_agent_variations;not null;default:0" json:"po_paid_to_agent_variations"`
	RunningBalVariations                            int `gorm:"column:running_bal_variations;not null;default:0" json:"running_bal_variations"`
	TotalReceivableFromBrokerInclude18GstVariations int `gorm:"column:total_receivable_from_broker_include_18_gst_variations;not null;default:0" json:"total_receivable_from_broker_include_18_gst_variations"`
	IzTotalPoVariations                             int `gorm:"column:iz_total_po_variations;not null;default:0" json:"iz_total_po_variations"`
	AsPerBrokerPoVariations                         int `gorm:"column:as_per_broker_po_variations;not null;default:0" json:"as_per_broker_po_variations"`
	AsPerBrokerPoAmtVariations                      int `gorm:"column:as_per_broker_po_amt_variations;not null;default:0" json:"as_per_broker_po_amt_variations"`
	PoDiffBrokerVariations                          int `gorm:"column:po_diff_broker_variations;not null;default:0" json:"po_diff_broker_variations"`
	PoAmtDiffBrokerVariations                       int `gorm:"column:po_amt_diff_broker_variations;not null;default:0" json:"po_amt_diff_broker_variations"`
	AsPerAgentPayoutVariations                      int `gorm:"column:as_per_agent_payout_variations;not null;default:0" json:"as_per_agent_payout_variations"`
	AsPerAgentPayoutAmountVariations                int `gorm:"column:as_per_agent_payout_amount_variations;not null;default:0" json:"as_per_agent_payout_amount_variations"`
	PoDiffAgentVariations                           int `gorm:"column:po_diff_agent_variations;not null;default:0" json:"po_diff_agent_variations"`
	PoAmtDiffAgentVariations                        int `gorm:"column:po_amt_diff_agent_variations;not null;default:0" json:"po_amt_diff_agent_variations"`
	InvoiceStatusVariations                         int `gorm:"column:invoice_status_variations;not null;default:0" json:"invoice_status_variations"`
	InvoiceNumberVariations                         int `gorm:"column:invoice_number_variations;not null;default:0" json:"invoice_number_variations"`
	ClusterCodeVariations                           int `gorm:"column:cluster_code_variations;not null;default:0" json:"cluster_code_variations"`
	RemarksVariations                               int `gorm:"column:remarks_variations;not null;default:0" json:"remarks_variations"`
	MatchVariations                                 int `gorm:"column:match_variations;not null;default:0" json:"match_variations"`
}

func NewReconciliationReport(insurerName, processedBy string) *ReconciliationReport {
	return &ReconciliationReport{
		InsurerName: insurerName,
		ProcessedBy: processedBy,
	}
}

// SetVariation sets one per-field variation column by its canonical slug.
// Unknown slugs are an error so schema drift between the header list and this
// model surfaces immediately instead of dropping counts.
func (r *ReconciliationReport) SetVariation(slug string, count int) error {
	accessor, ok := variationColumns[slug]
	if !ok {
		return fmt.Errorf("no variation column for slug %q", slug)
	}
	*accessor(r) = count
	return nil
}

// Variation reads one per-field variation column by slug.
func (r *ReconciliationReport) Variation(slug string) (int, bool) {
	accessor, ok := variationColumns[slug]
	if !ok {
		return 0, false
	}
	return *accessor(r), true
}

// VariationSlugs lists every slug this model has a column for.
func VariationSlugs() []string {
	out := make([]string, 0, len(variationColumns))
	for slug := range variationColumns {
		out = append(out, slug)
	}
	return out
}

// variationColumns maps canonical header slugs onto their struct fields.
// Static on purpose: the orchestrator addresses columns by map lookup, and a
// test in the recon package asserts this registry covers every canonical
// header.
var variationColumns = map[string]func(*ReconciliationReport) *int{
	"reporting_month_mmm_yy": func(r *ReconciliationReport) *int { return &r.ReportingMonthMmmYyVariations },
	"child_id_user_id_provided_by_insure_zeal": func(r *ReconciliationReport) *int { return &r.ChildIdUserIdProvidedByInsureZealVariations },
	"insurer_broker_code": func(r *ReconciliationReport) *int { return &r.InsurerBrokerCodeVariations },
	"policy_start_date": func(r *ReconciliationReport) *int { return &r.PolicyStartDateVariations },
	"policy_end_date": func(r *ReconciliationReport) *int { return &r.PolicyEndDateVariations },
	"booking_date_click_to_select_date": func(r *ReconciliationReport) *int { return &r.BookingDateClickToSelectDateVariations },
	"broker_name": func(r *ReconciliationReport) *int { return &r.BrokerNameVariations },
	"insurer_name": func(r *ReconciliationReport) *int { return &r.InsurerNameVariations },
	"major_categorisation_motor_life_health": func(r *ReconciliationReport) *int { return &r.MajorCategorisationMotorLifeHealthVariations },
	"product_insurer_report": func(r *ReconciliationReport) *int { return &r.ProductInsurerReportVariations },
	"product_type": func(r *ReconciliationReport) *int { return &r.ProductTypeVariations },
	"plan_type_comp_stp_saod": func(r *ReconciliationReport) *int { return &r.PlanTypeCompStpSaodVariations },
	"gross_premium": func(r *ReconciliationReport) *int { return &r.GrossPremiumVariations },
	"gst_amount": func(r *ReconciliationReport) *int { return &r.GstAmountVariations },
	"net_premium": func(r *ReconciliationReport) *int { return &r.NetPremiumVariations },
	"od_premium": func(r *ReconciliationReport) *int { return &r.OdPremiumVariations },
	"tp_premium": func(r *ReconciliationReport) *int { return &r.TpPremiumVariations },
	"policy_number": func(r *ReconciliationReport) *int { return &r.PolicyNumberVariations },
	"formatted_policy_number": func(r *ReconciliationReport) *int { return &r.FormattedPolicyNumberVariations },
	"registration_no": func(r *ReconciliationReport) *int { return &r.RegistrationNoVariations },
	"make_model": func(r *ReconciliationReport) *int { return &r.MakeModelVariations },
	"model": func(r *ReconciliationReport) *int { return &r.ModelVariations },
	"vehicle_variant": func(r *ReconciliationReport) *int { return &r.VehicleVariantVariations },
	"gvw": func(r *ReconciliationReport) *int { return &r.GvwVariations },
	"rto": func(r *ReconciliationReport) *int { return &r.RtoVariations },
	"state": func(r *ReconciliationReport) *int { return &r.StateVariations },
	"cluster": func(r *ReconciliationReport) *int { return &r.ClusterVariations },
	"fuel_type": func(r *ReconciliationReport) *int { return &r.FuelTypeVariations },
	"cc": func(r *ReconciliationReport) *int { return &r.CcVariations },
	"age_year": func(r *ReconciliationReport) *int { return &r.AgeYearVariations },
	"ncb_yes_no": func(r *ReconciliationReport) *int { return &r.NcbYesNoVariations },
	"discount": func(r *ReconciliationReport) *int { return &r.DiscountVariations },
	"business_type": func(r *ReconciliationReport) *int { return &r.BusinessTypeVariations },
	"seating_capacity": func(r *ReconciliationReport) *int { return &r.SeatingCapacityVariations },
	"veh_wheels": func(r *ReconciliationReport) *int { return &r.VehWheelsVariations },
	"customer_name": func(r *ReconciliationReport) *int { return &r.CustomerNameVariations },
	"customer_number": func(r *ReconciliationReport) *int { return &r.CustomerNumberVariations },
	"commissionable_premium": func(r *ReconciliationReport) *int { return &r.CommissionablePremiumVariations },
	"incoming_grid": func(r *ReconciliationReport) *int { return &r.IncomingGridVariations },
	"receivable_from_broker": func(r *ReconciliationReport) *int { return &r.ReceivableFromBrokerVariations },
	"extra_grid": func(r *ReconciliationReport) *int { return &r.ExtraGridVariations },
	"extra_amount_receivable_from_broker": func(r *ReconciliationReport) *int { return &r.ExtraAmountReceivableFromBrokerVariations },
	"total_receivable_from_broker": func(r *ReconciliationReport) *int { return &r.TotalReceivableFromBrokerVariations },
	"claimed_by": func(r *ReconciliationReport) *int { return &r.ClaimedByVariations },
	"payment_by": func(r *ReconciliationReport) *int { return &r.PaymentByVariations },
	"payment_mode": func(r *ReconciliationReport) *int { return &r.PaymentModeVariations },
	"agent_code": func(r *ReconciliationReport) *int { return &r.AgentCodeVariations },
	"cut_pay_amount_received_from_agent": func(r *ReconciliationReport) *int { return &r.CutPayAmountReceivedFromAgentVariations },
	"already_given_to_agent": func(r *ReconciliationReport) *int { return &r.AlreadyGivenToAgentVariations },
	"actual_agent_po": func(r *ReconciliationReport) *int { return &r.ActualAgentPoVariations },
	"agent_po_amt": func(r *ReconciliationReport) *int { return &r.AgentPoAmtVariations },
	"agent_extra": func(r *ReconciliationReport) *int { return &r.AgentExtraVariations },
	"agent_extra_amount": func(r *ReconciliationReport) *int { return &r.AgentExtraAmountVariations },
	"agent_total_po_amount": func(r *ReconciliationReport) *int { return &r.AgentTotalPoAmountVariations },
	"payment_by_office": func(r *ReconciliationReport) *int { return &r.PaymentByOfficeVariations },
	"po_paid_to_agent": func(r *ReconciliationReport) *int { return &r.PoPaidToAgentVariations },
	"running_bal": func(r *ReconciliationReport) *int { return &r.RunningBalVariations },
	"total_receivable_from_broker_include_18_gst": func(r *ReconciliationReport) *int { return &r.TotalReceivableFromBrokerInclude18GstVariations },
	"iz_total_po": func(r *ReconciliationReport) *int { return &r.IzTotalPoVariations },
	"as_per_broker_po": func(r *ReconciliationReport) *int { return &r.AsPerBrokerPoVariations },
	"as_per_broker_po_amt": func(r *ReconciliationReport) *int { return &r.AsPerBrokerPoAmtVariations },
	"po_diff_broker": func(r *ReconciliationReport) *int { return &r.PoDiffBrokerVariations },
	"po_amt_diff_broker": func(r *ReconciliationReport) *int { return &r.PoAmtDiffBrokerVariations },
	"as_per_agent_payout": func(r *ReconciliationReport) *int { return &r.AsPerAgentPayoutVariations },
	"as_per_agent_payout_amount": func(r *ReconciliationReport) *int { return &r.AsPerAgentPayoutAmountVariations },
	"po_diff_agent": func(r *ReconciliationReport) *int { return &r.PoDiffAgentVariations },
	"po_amt_diff_agent": func(r *ReconciliationReport) *int { return &r.PoAmtDiffAgentVariations },
	"invoice_status": func(r *ReconciliationReport) *int { return &r.InvoiceStatusVariations },
	"invoice_number": func(r *ReconciliationReport) *int { return &r.InvoiceNumberVariations },
	"cluster_code": func(r *ReconciliationReport) *int { return &r.ClusterCodeVariations },
	"remarks": func(r *ReconciliationReport) *int { return &r.RemarksVariations },
	"match": func(r *ReconciliationReport) *int { return &r.MatchVariations },
}
