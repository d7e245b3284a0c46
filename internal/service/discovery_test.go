package service

import (
	"context"
	"errors"
	"sort"
	"testing"

	"linkintel/internal/models"
	"linkintel/internal/repository"
	"linkintel/pkg/config"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCustomerReader struct {
	customers []*models.Customer
	err       error
}

func (f *fakeCustomerReader) ListAll(ctx context.Context) ([]*models.Customer, error) {
	return f.customers, f.err
}

type fakeSubscriptionReader struct {
	subscriptions []*models.Subscription
	err           error
}

func (f *fakeSubscriptionReader) ListAll(ctx context.Context) ([]*models.Subscription, error) {
	return f.subscriptions, f.err
}

// fakeLinkStore mimics the links table, including the unique tuple index.
type fakeLinkStore struct {
	links map[uuid.UUID]*models.Link
}

func newFakeLinkStore() *fakeLinkStore {
	return &fakeLinkStore{links: make(map[uuid.UUID]*models.Link)}
}

func (f *fakeLinkStore) Create(ctx context.Context, link *models.Link) (bool, error) {
	existing, _ := f.FindByTuple(ctx, link.SourceType, link.SourceID, link.TargetType, link.TargetID)
	if existing != nil {
		return false, nil
	}
	stored := *link
	f.links[link.ID] = &stored
	return true, nil
}

func (f *fakeLinkStore) FindByTuple(_ context.Context, sourceType models.EntityType, sourceID uuid.UUID, targetType models.EntityType, targetID uuid.UUID) (*models.Link, error) {
	for _, link := range f.links {
		if link.SourceType == sourceType && link.SourceID == sourceID &&
			link.TargetType == targetType && link.TargetID == targetID {
			return link, nil
		}
	}
	return nil, nil
}

func (f *fakeLinkStore) GetByID(_ context.Context, id uuid.UUID) (*models.Link, error) {
	link, ok := f.links[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return link, nil
}

func (f *fakeLinkStore) List(_ context.Context, filter repository.LinkFilter) ([]*models.Link, error) {
	var out []*models.Link
	for _, link := range f.links {
		if filter.SourceType != nil && link.SourceType != *filter.SourceType {
			continue
		}
		if filter.SourceID != nil && link.SourceID != *filter.SourceID {
			continue
		}
		if filter.TargetType != nil && link.TargetType != *filter.TargetType {
			continue
		}
		if filter.TargetID != nil && link.TargetID != *filter.TargetID {
			continue
		}
		if filter.PendingOnly && link.UserDecision != models.DecisionPending {
			continue
		}
		out = append(out, link)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	return out, nil
}

func (f *fakeLinkStore) UpdateDecision(_ context.Context, id uuid.UUID, decision models.LinkDecision) error {
	link, ok := f.links[id]
	if !ok {
		return pgx.ErrNoRows
	}
	link.UserDecision = decision
	return nil
}

func (f *fakeLinkStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.links[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.links, id)
	return nil
}

type fakeGenerator struct {
	reply   string
	errAt   map[int]error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	idx := len(g.prompts)
	g.prompts = append(g.prompts, prompt)
	if err, ok := g.errAt[idx]; ok {
		return "", err
	}
	return g.reply, nil
}

func newTestDiscovery(
	customers []*models.Customer,
	subscriptions []*models.Subscription,
	store *fakeLinkStore,
	generator Generator,
	cfg *config.DiscoveryConfig,
) *DiscoveryService {
	if cfg == nil {
		cfg = &config.DiscoveryConfig{RefineLimit: 5}
	}
	return NewDiscoveryService(
		&fakeCustomerReader{customers: customers},
		&fakeSubscriptionReader{subscriptions: subscriptions},
		store,
		generator,
		cfg,
		zap.NewNop(),
	)
}

func TestAnalyzeCustomers(t *testing.T) {
	category1 := uuid.New()
	category2 := uuid.New()
	category3 := uuid.New()
	group := uuid.New()

	t.Run("keeps only pairs above the threshold", func(t *testing.T) {
		a := &models.Customer{ID: uuid.New(), Name: "Alice", Email: "a@one.com", CategoryID: uuidPtr(category1), GroupID: uuidPtr(group)}
		b := &models.Customer{ID: uuid.New(), Name: "Boris", Email: "b@two.com", CategoryID: uuidPtr(category2), GroupID: uuidPtr(group)}
		c := &models.Customer{ID: uuid.New(), Name: "Zelda", Email: "z@three.com", CategoryID: uuidPtr(category3)}

		svc := newTestDiscovery([]*models.Customer{a, b, c}, nil, newFakeLinkStore(), nil, nil)
		candidates, err := svc.AnalyzeCustomers(context.Background())
		require.NoError(t, err)

		// Only A-B shares a group (0.30 > 0.15).
		require.Len(t, candidates, 1)
		assert.Equal(t, a.ID, candidates[0].SourceID)
		assert.Equal(t, b.ID, candidates[0].TargetID)
		assert.Equal(t, models.EntityCustomer, candidates[0].SourceType)
		assert.InDelta(t, 0.30, candidates[0].Confidence, 1e-9)
		assert.Equal(t, "Same customer group", candidates[0].EvidenceText)
	})

	t.Run("enumerates every unordered pair once", func(t *testing.T) {
		var customers []*models.Customer
		for i := 0; i < 4; i++ {
			customers = append(customers, &models.Customer{
				ID: uuid.New(), Name: "X", Email: "x@ex.com", Country: "US",
				CategoryID: uuidPtr(category1),
			})
		}

		svc := newTestDiscovery(customers, nil, newFakeLinkStore(), nil, nil)
		candidates, err := svc.AnalyzeCustomers(context.Background())
		require.NoError(t, err)

		// 4 records -> 6 pairs, all identical and above threshold.
		assert.Len(t, candidates, 6)
		for _, cand := range candidates {
			assert.GreaterOrEqual(t, cand.Confidence, 0.0)
			assert.LessOrEqual(t, cand.Confidence, 1.0)
		}
	})

	t.Run("canonicalizes pair order when configured", func(t *testing.T) {
		high := uuid.MustParse("ffffffff-ffff-ffff-ffff-ffffffffffff")
		low := uuid.MustParse("00000000-0000-0000-0000-000000000001")
		a := &models.Customer{ID: high, Name: "Alice", Email: "a@one.com", CategoryID: uuidPtr(category1), GroupID: uuidPtr(group)}
		b := &models.Customer{ID: low, Name: "Boris", Email: "b@two.com", CategoryID: uuidPtr(category2), GroupID: uuidPtr(group)}

		cfg := &config.DiscoveryConfig{RefineLimit: 5, CanonicalizePairs: true}
		svc := newTestDiscovery([]*models.Customer{a, b}, nil, newFakeLinkStore(), nil, cfg)
		candidates, err := svc.AnalyzeCustomers(context.Background())
		require.NoError(t, err)

		require.Len(t, candidates, 1)
		assert.Equal(t, low, candidates[0].SourceID)
		assert.Equal(t, high, candidates[0].TargetID)
	})

	t.Run("propagates reader errors", func(t *testing.T) {
		svc := NewDiscoveryService(
			&fakeCustomerReader{err: errors.New("db down")},
			&fakeSubscriptionReader{},
			newFakeLinkStore(),
			nil,
			&config.DiscoveryConfig{RefineLimit: 5},
			zap.NewNop(),
		)
		_, err := svc.AnalyzeCustomers(context.Background())
		assert.Error(t, err)
	})
}

func TestAnalyzeSubscriptions(t *testing.T) {
	customer := uuid.New()

	a := &models.Subscription{ID: uuid.New(), CustomerID: customer, VendorName: "Figma", PlanName: "Professional", Cost: 15, BillingCycle: "monthly"}
	b := &models.Subscription{ID: uuid.New(), CustomerID: customer, VendorName: "Figma", PlanName: "Organization", Cost: 45, BillingCycle: "annual"}
	c := &models.Subscription{ID: uuid.New(), CustomerID: uuid.New(), VendorName: "Notion", PlanName: "Plus", Cost: 10, BillingCycle: "monthly"}

	svc := newTestDiscovery(nil, []*models.Subscription{a, b, c}, newFakeLinkStore(), nil, nil)
	candidates, err := svc.AnalyzeSubscriptions(context.Background())
	require.NoError(t, err)

	// A-B: vendor 0.40 + customer 0.20; A-C and B-C stay below 0.20.
	require.Len(t, candidates, 1)
	assert.Equal(t, a.ID, candidates[0].SourceID)
	assert.Equal(t, b.ID, candidates[0].TargetID)
	assert.Equal(t, models.EntitySubscription, candidates[0].SourceType)
	assert.InDelta(t, 0.60, candidates[0].Confidence, 1e-9)
}

func TestAnalyzeCrossCategory(t *testing.T) {
	category1 := uuid.New()
	category2 := uuid.New()

	t.Run("one candidate per differing pair in a shared domain", func(t *testing.T) {
		a := &models.Customer{ID: uuid.New(), Name: "Alice", Email: "alice@x.com", CategoryID: uuidPtr(category1)}
		b := &models.Customer{ID: uuid.New(), Name: "Boris", Email: "boris@x.com", CategoryID: uuidPtr(category2)}

		svc := newTestDiscovery([]*models.Customer{a, b}, nil, newFakeLinkStore(), nil, nil)
		candidates, err := svc.AnalyzeCrossCategory(context.Background())
		require.NoError(t, err)

		require.Len(t, candidates, 1)
		assert.Equal(t, 0.8, candidates[0].Confidence)
		assert.Equal(t, "Same organization domain (x.com) across categories", candidates[0].EvidenceText)
		assert.Equal(t, a.ID, candidates[0].SourceID)
		assert.Equal(t, b.ID, candidates[0].TargetID)
	})

	t.Run("same-category members of the group are not paired", func(t *testing.T) {
		a := &models.Customer{ID: uuid.New(), Name: "Alice", Email: "alice@x.com", CategoryID: uuidPtr(category1)}
		b := &models.Customer{ID: uuid.New(), Name: "Boris", Email: "boris@x.com", CategoryID: uuidPtr(category2)}
		c := &models.Customer{ID: uuid.New(), Name: "Carol", Email: "carol@x.com", CategoryID: uuidPtr(category1)}

		svc := newTestDiscovery([]*models.Customer{a, b, c}, nil, newFakeLinkStore(), nil, nil)
		candidates, err := svc.AnalyzeCrossCategory(context.Background())
		require.NoError(t, err)

		// A-B and B-C differ; A-C shares a category and is skipped.
		require.Len(t, candidates, 2)
		for _, cand := range candidates {
			assert.False(t, cand.SourceID == a.ID && cand.TargetID == c.ID, "A-C must not be linked")
		}
	})

	t.Run("single-category domains emit nothing", func(t *testing.T) {
		a := &models.Customer{ID: uuid.New(), Name: "Alice", Email: "alice@x.com", CategoryID: uuidPtr(category1)}
		c := &models.Customer{ID: uuid.New(), Name: "Carol", Email: "carol@x.com", CategoryID: uuidPtr(category1)}

		svc := newTestDiscovery([]*models.Customer{a, c}, nil, newFakeLinkStore(), nil, nil)
		candidates, err := svc.AnalyzeCrossCategory(context.Background())
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("malformed emails are excluded from grouping", func(t *testing.T) {
		a := &models.Customer{ID: uuid.New(), Name: "Alice", Email: "not-an-email", CategoryID: uuidPtr(category1)}
		b := &models.Customer{ID: uuid.New(), Name: "Boris", Email: "", CategoryID: uuidPtr(category2)}

		svc := newTestDiscovery([]*models.Customer{a, b}, nil, newFakeLinkStore(), nil, nil)
		candidates, err := svc.AnalyzeCrossCategory(context.Background())
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})
}

func TestRefine(t *testing.T) {
	makeCandidates := func(n int) []models.Candidate {
		out := make([]models.Candidate, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, models.Candidate{
				SourceType:   models.EntityCustomer,
				SourceID:     uuid.New(),
				TargetType:   models.EntityCustomer,
				TargetID:     uuid.New(),
				Confidence:   0.5,
				EvidenceText: "Same phone number",
			})
		}
		return out
	}

	t.Run("annotates only the first five candidates", func(t *testing.T) {
		gen := &fakeGenerator{reply: "Both records share a contact number."}
		svc := newTestDiscovery(nil, nil, newFakeLinkStore(), gen, nil)

		input := makeCandidates(7)
		refined := svc.Refine(context.Background(), input, true)

		require.Len(t, refined, 7)
		for i := 0; i < 5; i++ {
			assert.Equal(t, "Same phone number | AI: Both records share a contact number.", refined[i].EvidenceText)
		}
		for i := 5; i < 7; i++ {
			assert.Equal(t, "Same phone number", refined[i].EvidenceText)
		}
		assert.Len(t, gen.prompts, 5)
		// Input slice is never mutated.
		assert.Equal(t, "Same phone number", input[0].EvidenceText)
	})

	t.Run("a failed call leaves that candidate untouched", func(t *testing.T) {
		gen := &fakeGenerator{
			reply: "Looks related.",
			errAt: map[int]error{1: errors.New("timeout")},
		}
		svc := newTestDiscovery(nil, nil, newFakeLinkStore(), gen, nil)

		refined := svc.Refine(context.Background(), makeCandidates(3), true)
		assert.Contains(t, refined[0].EvidenceText, " | AI: ")
		assert.Equal(t, "Same phone number", refined[1].EvidenceText)
		assert.Contains(t, refined[2].EvidenceText, " | AI: ")
	})

	t.Run("disabled refinement is a no-op", func(t *testing.T) {
		gen := &fakeGenerator{reply: "ignored"}
		svc := newTestDiscovery(nil, nil, newFakeLinkStore(), gen, nil)

		input := makeCandidates(2)
		refined := svc.Refine(context.Background(), input, false)
		assert.Equal(t, input, refined)
		assert.Empty(t, gen.prompts)
	})

	t.Run("missing generator is a no-op", func(t *testing.T) {
		svc := newTestDiscovery(nil, nil, newFakeLinkStore(), nil, nil)

		input := makeCandidates(2)
		refined := svc.Refine(context.Background(), input, true)
		assert.Equal(t, input, refined)
	})
}

func TestCommit(t *testing.T) {
	candidates := []models.Candidate{
		{SourceType: models.EntityCustomer, SourceID: uuid.New(), TargetType: models.EntityCustomer, TargetID: uuid.New(), Confidence: 0.9, EvidenceText: "Same phone number"},
		{SourceType: models.EntitySubscription, SourceID: uuid.New(), TargetType: models.EntitySubscription, TargetID: uuid.New(), Confidence: 0.6, EvidenceText: "Same vendor (Figma)"},
	}

	t.Run("persists new candidates as pending links", func(t *testing.T) {
		store := newFakeLinkStore()
		svc := newTestDiscovery(nil, nil, store, nil, nil)

		result, err := svc.Commit(context.Background(), candidates)
		require.NoError(t, err)

		assert.Equal(t, 2, result.TotalAnalyzed)
		require.Len(t, result.NewLinks, 2)
		for _, link := range result.NewLinks {
			assert.Equal(t, models.DecisionPending, link.UserDecision)
			assert.False(t, link.CreatedAt.IsZero())
			assert.NotEqual(t, uuid.Nil, link.ID)
		}
	})

	t.Run("second run over unchanged data creates nothing", func(t *testing.T) {
		store := newFakeLinkStore()
		svc := newTestDiscovery(nil, nil, store, nil, nil)

		first, err := svc.Commit(context.Background(), candidates)
		require.NoError(t, err)
		require.Len(t, first.NewLinks, 2)

		second, err := svc.Commit(context.Background(), candidates)
		require.NoError(t, err)
		assert.Equal(t, 2, second.TotalAnalyzed)
		assert.Empty(t, second.NewLinks)
	})

	t.Run("reversed direction is not a duplicate by default", func(t *testing.T) {
		store := newFakeLinkStore()
		svc := newTestDiscovery(nil, nil, store, nil, nil)

		forward := candidates[0]
		reversed := forward
		reversed.SourceID, reversed.TargetID = forward.TargetID, forward.SourceID

		_, err := svc.Commit(context.Background(), []models.Candidate{forward})
		require.NoError(t, err)
		result, err := svc.Commit(context.Background(), []models.Candidate{reversed})
		require.NoError(t, err)
		assert.Len(t, result.NewLinks, 1)
	})
}

func TestRun(t *testing.T) {
	category1 := uuid.New()
	category2 := uuid.New()
	group := uuid.New()

	a := &models.Customer{ID: uuid.New(), Name: "Alice", Email: "alice@x.com", CategoryID: uuidPtr(category1), GroupID: uuidPtr(group)}
	b := &models.Customer{ID: uuid.New(), Name: "Boris", Email: "boris@x.com", CategoryID: uuidPtr(category2), GroupID: uuidPtr(group)}

	store := newFakeLinkStore()
	svc := newTestDiscovery([]*models.Customer{a, b}, nil, store, nil, nil)

	// A-B surfaces from both the pairwise pass (domain + group) and the
	// cross-category pass; same tuple, so only one link survives commit.
	result, err := svc.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalAnalyzed)
	require.Len(t, result.NewLinks, 1)

	// Re-running against unchanged data persists nothing new.
	again, err := svc.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, again.NewLinks)
}
