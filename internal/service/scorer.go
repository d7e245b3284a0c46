package service

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"linkintel/internal/models"

	"github.com/google/uuid"
)

// Pair thresholds: candidates at or below the threshold are discarded.
const (
	customerPairThreshold     = 0.15
	subscriptionPairThreshold = 0.20
)

// Customer pair signal weights.
const (
	weightEmailDomain   = 0.40
	weightNameBase      = 0.30
	weightPhone         = 0.50
	weightCountry       = 0.15
	weightTagsBase      = 0.20
	weightTagsPerShared = 0.05
	weightCategory      = 0.10
	weightGroup         = 0.30

	nameSimilarityFloor = 0.60
)

// Subscription pair signal weights.
const (
	weightVendor         = 0.40
	weightPlan           = 0.20
	weightCostCycle      = 0.15
	weightSubCountry     = 0.10
	weightSubCategory    = 0.10
	weightRenewalWeek    = 0.15
	weightRenewalMonth   = 0.05
	weightSameCustomer   = 0.20
	renewalWeekMaxDays   = 7
	renewalMonthMaxDays  = 30
)

const noEvidence = "No strong evidence"

// signal is one fired heuristic: its weight contribution and the
// human-readable clause justifying it.
type signal struct {
	weight float64
	clause string
}

// foldSignals reduces fired signals into a capped confidence and a
// semicolon-joined evidence string. No signals means zero confidence
// and the fixed no-evidence marker.
func foldSignals(signals []signal) (float64, string) {
	if len(signals) == 0 {
		return 0.0, noEvidence
	}

	var confidence float64
	clauses := make([]string, 0, len(signals))
	for _, s := range signals {
		confidence += s.weight
		clauses = append(clauses, s.clause)
	}
	if confidence > 1.0 {
		confidence = 1.0
	}
	return confidence, strings.Join(clauses, "; ")
}

// scoreCustomerPair evaluates every customer-pair signal in fixed order
// and folds the fired ones into (confidence, evidence).
func scoreCustomerPair(a, b *models.Customer) (float64, string) {
	var signals []signal

	if domain := ExtractDomain(a.Email); domain != "" && domain == ExtractDomain(b.Email) {
		signals = append(signals, signal{weightEmailDomain, fmt.Sprintf("Same email domain (%s)", domain)})
	}

	if ratio := NameSimilarity(a.Name, b.Name); ratio > nameSimilarityFloor {
		signals = append(signals, signal{weightNameBase * ratio, fmt.Sprintf("Similar names (%.0f%% match)", ratio*100)})
	}

	if a.Phone != "" && a.Phone == b.Phone {
		signals = append(signals, signal{weightPhone, "Same phone number"})
	}

	if a.Country != "" && a.Country == b.Country {
		signals = append(signals, signal{weightCountry, fmt.Sprintf("Same country (%s)", a.Country)})
	}

	if shared := sharedTags(a.Tags, b.Tags); len(shared) > 0 {
		weight := weightTagsBase + weightTagsPerShared*float64(len(shared))
		signals = append(signals, signal{weight, "Shared tags: " + strings.Join(shared, ", ")})
	}

	// Fires for two uncategorized customers as well: both-null counts as
	// the same category.
	if uuidPtrEqual(a.CategoryID, b.CategoryID) {
		signals = append(signals, signal{weightCategory, "Same category"})
	}

	if a.GroupID != nil && b.GroupID != nil && *a.GroupID == *b.GroupID {
		signals = append(signals, signal{weightGroup, "Same customer group"})
	}

	return foldSignals(signals)
}

// scoreSubscriptionPair evaluates every subscription-pair signal in
// fixed order and folds the fired ones into (confidence, evidence).
func scoreSubscriptionPair(a, b *models.Subscription) (float64, string) {
	var signals []signal

	sameVendor := strings.EqualFold(a.VendorName, b.VendorName)
	if sameVendor {
		signals = append(signals, signal{weightVendor, fmt.Sprintf("Same vendor (%s)", a.VendorName)})
	}

	if sameVendor && a.PlanName != "" && b.PlanName != "" && strings.EqualFold(a.PlanName, b.PlanName) {
		signals = append(signals, signal{weightPlan, fmt.Sprintf("Same plan (%s)", a.PlanName)})
	}

	if a.Cost == b.Cost && a.BillingCycle == b.BillingCycle {
		signals = append(signals, signal{weightCostCycle, "Same cost and billing cycle"})
	}

	if a.Country != "" && a.Country == b.Country {
		signals = append(signals, signal{weightSubCountry, fmt.Sprintf("Same country (%s)", a.Country)})
	}

	if a.CategoryID != nil && b.CategoryID != nil && *a.CategoryID == *b.CategoryID {
		signals = append(signals, signal{weightSubCategory, "Same category"})
	}

	if a.NextRenewalDate != nil && b.NextRenewalDate != nil {
		days := int(math.Abs(a.NextRenewalDate.Sub(*b.NextRenewalDate).Hours()) / 24)
		if days <= renewalWeekMaxDays {
			signals = append(signals, signal{weightRenewalWeek, "Renewal dates within a week"})
		} else if days <= renewalMonthMaxDays {
			signals = append(signals, signal{weightRenewalMonth, "Renewal dates in the same month"})
		}
	}

	if a.CustomerID == b.CustomerID {
		signals = append(signals, signal{weightSameCustomer, "Same customer"})
	}

	return foldSignals(signals)
}

// sharedTags intersects two comma-separated tag lists, case-insensitively.
// The result is sorted so evidence strings are deterministic.
func sharedTags(a, b string) []string {
	setA := splitTags(a)
	if len(setA) == 0 {
		return nil
	}

	var shared []string
	for tag := range splitTags(b) {
		if _, ok := setA[tag]; ok {
			shared = append(shared, tag)
		}
	}
	sort.Strings(shared)
	return shared
}

func splitTags(tags string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag != "" {
			set[tag] = struct{}{}
		}
	}
	return set
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
