package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/skinmatch/backend/internal/domain"
)

// Defaults for the live verification pipeline
const (
	DefaultTopN           = 20
	DefaultCacheTTL       = 15 * time.Minute
	DefaultRecentWindow   = 24 * time.Hour
	DefaultAdapterTimeout = 8 * time.Second
	DefaultDeadlineBuffer = 5 * time.Second
)

// VerifierConfig holds configuration for the live verifier.
type VerifierConfig struct {
	TopN           int
	CacheTTL       time.Duration
	RecentWindow   time.Duration
	AdapterTimeout time.Duration
	DeadlineBuffer time.Duration
}

// AdapterRegistry resolves the adapter for a retailer. Built once at startup.
type AdapterRegistry interface {
	Lookup(retailer domain.Retailer) (domain.RetailerAdapter, bool)
}

// VerifiedCandidate is a candidate that survived live verification.
type VerifiedCandidate struct {
	Product *domain.Product
	Score   float64
	Live    *domain.LiveResult
}

// LiveVerifier decides, per top-scored candidate, whether a cached or recent
// value suffices or a live check is required, and fans live checks out
// concurrently under per-adapter rate limits and one overall deadline.
type LiveVerifier struct {
	cache    domain.ResultCache
	store    domain.VerificationStore
	registry AdapterRegistry
	logger   *zap.Logger

	topN         int
	cacheTTL     time.Duration
	recentWindow time.Duration
	deadline     time.Duration

	now func() time.Time
}

// NewLiveVerifier creates a live verifier with dependencies.
func NewLiveVerifier(
	cache domain.ResultCache,
	store domain.VerificationStore,
	registry AdapterRegistry,
	logger *zap.Logger,
	config VerifierConfig,
) *LiveVerifier {
	topN := config.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}
	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = DefaultCacheTTL
	}
	recentWindow := config.RecentWindow
	if recentWindow <= 0 {
		recentWindow = DefaultRecentWindow
	}
	adapterTimeout := config.AdapterTimeout
	if adapterTimeout <= 0 {
		adapterTimeout = DefaultAdapterTimeout
	}
	buffer := config.DeadlineBuffer
	if buffer <= 0 {
		buffer = DefaultDeadlineBuffer
	}

	return &LiveVerifier{
		cache:        cache,
		store:        store,
		registry:     registry,
		logger:       logger,
		topN:         topN,
		cacheTTL:     cacheTTL,
		recentWindow: recentWindow,
		deadline:     adapterTimeout + buffer,
		now:          time.Now,
	}
}

// VerifyCandidates verifies the top-N scored candidates concurrently. On
// deadline expiry it returns whatever subset completed; it never fails the
// batch because some verifications are slow, and a failure in one candidate
// never aborts the others. The returned order is unspecified; callers
// re-sort by score.
func (v *LiveVerifier) VerifyCandidates(
	ctx context.Context,
	candidates []domain.ScoredCandidate,
	postcode string,
) []VerifiedCandidate {
	if len(candidates) > v.topN {
		candidates = candidates[:v.topN]
	}
	if len(candidates) == 0 {
		return nil
	}

	// Soft deadline for the whole phase: in-flight calls past it are
	// abandoned, not cancelled mid-request. Adapters carry their own
	// request-level timeouts as the true per-call upper bound.
	ctx, cancel := context.WithTimeout(ctx, v.deadline)
	defer cancel()

	results := make(chan VerifiedCandidate, len(candidates))
	var wg sync.WaitGroup
	for _, candidate := range candidates {
		wg.Add(1)
		go func(c domain.ScoredCandidate) {
			defer wg.Done()
			if live := v.verifyOne(ctx, c.Product, postcode); live != nil {
				results <- VerifiedCandidate{Product: c.Product, Score: c.Score, Live: live}
			}
		}(candidate)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	verified := make([]VerifiedCandidate, 0, len(candidates))
	for {
		select {
		case r := <-results:
			verified = append(verified, r)
		case <-done:
			// Drain anything that raced the close.
			for {
				select {
				case r := <-results:
					verified = append(verified, r)
				default:
					v.logger.Info("live verification completed",
						zap.Int("verified", len(verified)),
						zap.Int("attempted", len(candidates)))
					return verified
				}
			}
		case <-ctx.Done():
			v.logger.Warn("live verification deadline expired, returning partial results",
				zap.Int("verified", len(verified)),
				zap.Int("attempted", len(candidates)))
			return verified
		}
	}
}

// verifyOne runs the per-candidate state machine: cache hit, then
// recent-verification short-circuit, then live fetch. A nil return means the
// candidate is unverifiable on this pass and is dropped, never an error.
func (v *LiveVerifier) verifyOne(ctx context.Context, product *domain.Product, postcode string) *domain.LiveResult {
	key := cacheKey(product, postcode)

	if cached := v.cachedResult(ctx, key); cached != nil {
		v.logger.Debug("using cached live result", zap.String("sku", product.RetailerSKU))
		return cached
	}

	if recent := v.recentResult(product, postcode); recent != nil {
		v.logger.Debug("using recent verification", zap.String("sku", product.RetailerSKU))
		v.cacheResult(ctx, key, recent)
		return recent
	}

	adapter, ok := v.registry.Lookup(product.Retailer)
	if !ok {
		// Unverifiable, not an error: the candidate just drops out of this pass.
		v.logger.Warn("no adapter registered for retailer",
			zap.String("retailer", string(product.Retailer)),
			zap.Error(domain.ErrUnavailableAdapter))
		return nil
	}

	live := adapter.LiveCheck(ctx, product, postcode)
	if !live.OK() {
		v.logger.Warn("live check failed, dropping candidate",
			zap.String("retailer", string(product.Retailer)),
			zap.String("sku", product.RetailerSKU),
			zap.String("status", live.StatusCode),
			zap.Error(domain.ErrLiveCheckFailure))
		return nil
	}

	// Persist price and verification timestamp together with the snapshot.
	// The store owns the row update; the candidate itself is never written,
	// it may be shared with concurrent requests. A rollback here must not
	// lose the verified value for the caller.
	if err := v.store.RecordVerification(ctx, product, live); err != nil {
		v.logger.Error("failed to persist verification result",
			zap.String("sku", product.RetailerSKU),
			zap.Error(fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)))
	}

	v.cacheResult(ctx, key, live)
	return live
}

// recentResult synthesizes a live result from the stored product row when
// the last verification is within the recency window.
func (v *LiveVerifier) recentResult(product *domain.Product, postcode string) *domain.LiveResult {
	if product.LastLiveVerified == nil {
		return nil
	}
	if v.now().Sub(*product.LastLiveVerified) > v.recentWindow {
		return nil
	}
	return &domain.LiveResult{
		Price:               product.Price,
		Currency:            product.Currency,
		InStock:             domain.StockUnknown,
		DeliverablePostcode: postcode,
		IngredientsRaw:      product.IngredientsRaw,
		StatusCode:          "recent",
		FetchedAt:           *product.LastLiveVerified,
		Source:              domain.SourceDatabase,
	}
}

func (v *LiveVerifier) cachedResult(ctx context.Context, key string) *domain.LiveResult {
	data, err := v.cache.Get(ctx, key)
	if err != nil {
		return nil
	}
	var result domain.LiveResult
	if err := json.Unmarshal(data, &result); err != nil {
		v.logger.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return nil
	}
	return &result
}

func (v *LiveVerifier) cacheResult(ctx context.Context, key string, result *domain.LiveResult) {
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := v.cache.Set(ctx, key, data, v.cacheTTL); err != nil {
		v.logger.Warn("failed to write live result to cache", zap.String("key", key), zap.Error(err))
	}
}

func cacheKey(product *domain.Product, postcode string) string {
	if postcode == "" {
		postcode = "none"
	}
	return fmt.Sprintf("live:%s:%s:%s", product.Retailer, product.RetailerSKU, postcode)
}
