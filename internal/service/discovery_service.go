package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"linkintel/internal/models"
	"linkintel/pkg/config"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// crossCategoryConfidence is the fixed score of a cross-category link
// inferred from a shared email domain.
const crossCategoryConfidence = 0.8

// Generator produces a short natural-language annotation for a prompt.
// *LLMService implements it; a nil Generator disables refinement.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type customerReader interface {
	ListAll(ctx context.Context) ([]*models.Customer, error)
}

type subscriptionReader interface {
	ListAll(ctx context.Context) ([]*models.Subscription, error)
}

// linkWriter is the slice of the link store the pipeline writes through.
type linkWriter interface {
	Create(ctx context.Context, link *models.Link) (bool, error)
	FindByTuple(ctx context.Context, sourceType models.EntityType, sourceID uuid.UUID, targetType models.EntityType, targetID uuid.UUID) (*models.Link, error)
}

// AnalyzeResult is what a full pipeline run reports back.
type AnalyzeResult struct {
	TotalAnalyzed int
	NewLinks      []*models.Link
}

// DiscoveryService runs the link discovery pipeline: pairwise scoring of
// customers and subscriptions, the domain grouping pass, optional LLM
// refinement, and persistence of the surviving candidates.
//
// Pairwise passes compare every record against every later record, so a
// run costs O(n^2) comparisons per entity type. The whole record set is
// held in memory for the duration of the run.
type DiscoveryService struct {
	customers     customerReader
	subscriptions subscriptionReader
	links         linkWriter
	generator     Generator
	cfg           *config.DiscoveryConfig
	logger        *zap.Logger
}

func NewDiscoveryService(
	customers customerReader,
	subscriptions subscriptionReader,
	links linkWriter,
	generator Generator,
	cfg *config.DiscoveryConfig,
	logger *zap.Logger,
) *DiscoveryService {
	return &DiscoveryService{
		customers:     customers,
		subscriptions: subscriptions,
		links:         links,
		generator:     generator,
		cfg:           cfg,
		logger:        logger,
	}
}

// Run executes the full pipeline: all three analysis passes, refinement
// when enabled, then commit.
func (s *DiscoveryService) Run(ctx context.Context, refine bool) (*AnalyzeResult, error) {
	customerCands, err := s.AnalyzeCustomers(ctx)
	if err != nil {
		return nil, fmt.Errorf("customer analysis failed: %w", err)
	}

	subscriptionCands, err := s.AnalyzeSubscriptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("subscription analysis failed: %w", err)
	}

	crossCands, err := s.AnalyzeCrossCategory(ctx)
	if err != nil {
		return nil, fmt.Errorf("cross-category analysis failed: %w", err)
	}

	candidates := make([]models.Candidate, 0, len(customerCands)+len(subscriptionCands)+len(crossCands))
	candidates = append(candidates, customerCands...)
	candidates = append(candidates, subscriptionCands...)
	candidates = append(candidates, crossCands...)

	candidates = s.Refine(ctx, candidates, refine)

	return s.Commit(ctx, candidates)
}

// AnalyzeCustomers scores every unordered customer pair and keeps those
// above the customer threshold.
func (s *DiscoveryService) AnalyzeCustomers(ctx context.Context) ([]models.Candidate, error) {
	customers, err := s.customers.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []models.Candidate
	for i := 0; i < len(customers); i++ {
		for j := i + 1; j < len(customers); j++ {
			confidence, evidence := scoreCustomerPair(customers[i], customers[j])
			if confidence <= customerPairThreshold {
				continue
			}
			candidates = append(candidates, s.newCandidate(
				models.EntityCustomer, customers[i].ID,
				models.EntityCustomer, customers[j].ID,
				confidence, evidence,
			))
		}
	}

	s.logger.Info("Customer analysis completed",
		zap.Int("customers", len(customers)),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// AnalyzeSubscriptions scores every unordered subscription pair and
// keeps those above the subscription threshold.
func (s *DiscoveryService) AnalyzeSubscriptions(ctx context.Context) ([]models.Candidate, error) {
	subscriptions, err := s.subscriptions.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	var candidates []models.Candidate
	for i := 0; i < len(subscriptions); i++ {
		for j := i + 1; j < len(subscriptions); j++ {
			confidence, evidence := scoreSubscriptionPair(subscriptions[i], subscriptions[j])
			if confidence <= subscriptionPairThreshold {
				continue
			}
			candidates = append(candidates, s.newCandidate(
				models.EntitySubscription, subscriptions[i].ID,
				models.EntitySubscription, subscriptions[j].ID,
				confidence, evidence,
			))
		}
	}

	s.logger.Info("Subscription analysis completed",
		zap.Int("subscriptions", len(subscriptions)),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// AnalyzeCrossCategory groups customers by email domain and links every
// pair inside a multi-category domain group whose categories differ.
// This pass is additive to the pairwise same-domain signal; overlap is
// resolved only by the exact-tuple dedup at commit time.
func (s *DiscoveryService) AnalyzeCrossCategory(ctx context.Context) ([]models.Candidate, error) {
	customers, err := s.customers.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	// Group by domain, preserving first-seen domain order so output is
	// deterministic.
	groups := make(map[string][]*models.Customer)
	var domains []string
	for _, c := range customers {
		domain := ExtractDomain(c.Email)
		if domain == "" {
			continue
		}
		if _, seen := groups[domain]; !seen {
			domains = append(domains, domain)
		}
		groups[domain] = append(groups[domain], c)
	}

	var candidates []models.Candidate
	for _, domain := range domains {
		members := groups[domain]
		if len(members) < 2 {
			continue
		}

		distinct := make(map[string]struct{})
		for _, c := range members {
			distinct[categoryKey(c.CategoryID)] = struct{}{}
		}
		if len(distinct) < 2 {
			continue
		}

		evidence := fmt.Sprintf("Same organization domain (%s) across categories", domain)
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				if categoryKey(members[i].CategoryID) == categoryKey(members[j].CategoryID) {
					continue
				}
				candidates = append(candidates, s.newCandidate(
					models.EntityCustomer, members[i].ID,
					models.EntityCustomer, members[j].ID,
					crossCategoryConfidence, evidence,
				))
			}
		}
	}

	s.logger.Info("Cross-category analysis completed",
		zap.Int("domains", len(domains)),
		zap.Int("candidates", len(candidates)),
	)
	return candidates, nil
}

// Refine sends the first RefineLimit candidates to the generator and
// appends its explanation to their evidence. Every call is sequential and
// failure-isolated: a generator error leaves that candidate untouched.
// The input slice is never mutated.
func (s *DiscoveryService) Refine(ctx context.Context, candidates []models.Candidate, enabled bool) []models.Candidate {
	if !enabled || s.generator == nil || len(candidates) == 0 {
		return candidates
	}

	refined := make([]models.Candidate, len(candidates))
	copy(refined, candidates)

	limit := s.cfg.RefineLimit
	if limit > len(refined) {
		limit = len(refined)
	}

	for i := 0; i < limit; i++ {
		cand := refined[i]
		prompt := fmt.Sprintf(
			"A heuristic scan proposed a link between a %s (%s) and a %s (%s) with confidence %.2f.\nEvidence: %s\n\nIn one or two sentences, explain to a reviewer why these records are likely related.",
			cand.SourceType, cand.SourceID, cand.TargetType, cand.TargetID, cand.Confidence, cand.EvidenceText,
		)

		explanation, err := s.generator.Generate(ctx, prompt)
		if err != nil {
			s.logger.Warn("Refinement failed, keeping original evidence",
				zap.Int("candidate", i),
				zap.Error(err),
			)
			continue
		}
		if explanation == "" {
			continue
		}
		refined[i].EvidenceText = cand.EvidenceText + " | AI: " + explanation
	}

	return refined
}

// Commit persists candidates not already present under their exact
// directional tuple and returns the freshly created links. Each write is
// independent: an aborted run leaves earlier writes in place.
func (s *DiscoveryService) Commit(ctx context.Context, candidates []models.Candidate) (*AnalyzeResult, error) {
	var newLinks []*models.Link
	for _, cand := range candidates {
		existing, err := s.links.FindByTuple(ctx, cand.SourceType, cand.SourceID, cand.TargetType, cand.TargetID)
		if err != nil {
			return nil, fmt.Errorf("dedup lookup failed: %w", err)
		}
		if existing != nil {
			continue
		}

		link := &models.Link{
			ID:           uuid.New(),
			SourceType:   cand.SourceType,
			SourceID:     cand.SourceID,
			TargetType:   cand.TargetType,
			TargetID:     cand.TargetID,
			Confidence:   cand.Confidence,
			EvidenceText: cand.EvidenceText,
			UserDecision: models.DecisionPending,
			CreatedAt:    time.Now().UTC(),
		}

		inserted, err := s.links.Create(ctx, link)
		if err != nil {
			return nil, fmt.Errorf("failed to persist link: %w", err)
		}
		if !inserted {
			// Lost the insert race to a concurrent run; treat as existing.
			continue
		}
		newLinks = append(newLinks, link)
	}

	s.logger.Info("Commit completed",
		zap.Int("analyzed", len(candidates)),
		zap.Int("new_links", len(newLinks)),
	)
	return &AnalyzeResult{
		TotalAnalyzed: len(candidates),
		NewLinks:      newLinks,
	}, nil
}

// newCandidate builds a candidate, optionally canonicalizing same-type
// pair order by entity id when configured.
func (s *DiscoveryService) newCandidate(
	sourceType models.EntityType, sourceID uuid.UUID,
	targetType models.EntityType, targetID uuid.UUID,
	confidence float64, evidence string,
) models.Candidate {
	if s.cfg.CanonicalizePairs && sourceType == targetType && bytes.Compare(targetID[:], sourceID[:]) < 0 {
		sourceID, targetID = targetID, sourceID
	}
	return models.Candidate{
		SourceType:   sourceType,
		SourceID:     sourceID,
		TargetType:   targetType,
		TargetID:     targetID,
		Confidence:   confidence,
		EvidenceText: evidence,
	}
}

func categoryKey(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
