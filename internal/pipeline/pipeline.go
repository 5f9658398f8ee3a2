// Package pipeline runs the company enhancement state machine: cache check,
// credit check, discovery, site selection, crawl, summary, news validation,
// then persist and charge.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/company-intel/internal/discover"
	"github.com/sells-group/company-intel/internal/filings"
	"github.com/sells-group/company-intel/internal/model"
	"github.com/sells-group/company-intel/internal/store"
)

// Caller errors.
var (
	ErrMissingIdentity = eris.New("pipeline: company id or name is required")
	ErrMissingUser     = eris.New("pipeline: user id is required")
	ErrUnknownCompany  = eris.New("pipeline: unknown company")
)

// DefaultRecentLimit is the length of the live recent-filings list.
const DefaultRecentLimit = 10

// Discoverer finds candidate URLs, social profiles and news for a company.
type Discoverer interface {
	Discover(ctx context.Context, ref model.CompanyRef) discover.Discovery
}

// Selector picks the official website among candidates, or "".
type Selector interface {
	Select(ctx context.Context, ref model.CompanyRef, candidates []discover.Candidate) string
}

// Crawler fetches pages from a selected site.
type Crawler interface {
	Crawl(ctx context.Context, site string) CrawlResult
}

// Validator keeps only the news candidates that are about the company.
type Validator interface {
	Validate(ctx context.Context, ref model.CompanyRef, candidates []discover.Candidate) []model.NewsItem
}

// Summarizer writes the grounded company summary.
type Summarizer interface {
	Summarize(ctx context.Context, in SummaryInput) Summary
}

// Deps are the Enhancer's collaborators.
type Deps struct {
	Records    store.Records
	Credits    store.Credits
	Filings    filings.Provider
	Discoverer Discoverer
	Selector   Selector
	Crawler    Crawler
	Validator  Validator
	Summarizer Summarizer

	// Now defaults to time.Now.
	Now func() time.Time
	// RecentLimit defaults to DefaultRecentLimit.
	RecentLimit int
}

// EnhanceRequest identifies the company and the paying user. Either
// CompanyID or CompanyName is required; a bare id is resolved through the
// filings provider.
type EnhanceRequest struct {
	CompanyID    string `json:"company_id"`
	CompanyName  string `json:"company_name"`
	BrandHint    string `json:"brand_hint"`
	IndustryHint string `json:"industry_hint"`
	UserID       string `json:"user_id"`
}

// Enhancer orchestrates enhancement runs.
type Enhancer struct {
	deps  Deps
	locks *keyLock
}

// New creates an Enhancer.
func New(deps Deps) *Enhancer {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.RecentLimit <= 0 {
		deps.RecentLimit = DefaultRecentLimit
	}
	return &Enhancer{deps: deps, locks: newKeyLock()}
}

// Enhance returns the company's tearsheet, running the pipeline and
// charging one credit only when no fresh record exists and the run finds
// something useful. Runs for the same company are serialized, so a second
// concurrent caller sees the first caller's record as a cache hit.
func (e *Enhancer) Enhance(ctx context.Context, req EnhanceRequest) (Outcome, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrMissingUser
	}
	ref, err := e.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	key := ref.CacheKey()

	log := zap.L().With(
		zap.String("run_id", uuid.NewString()),
		zap.String("company", key),
		zap.String("user_id", req.UserID),
	)

	unlock, err := e.locks.Lock(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: wait for company lock")
	}
	defer unlock()

	rec, err := e.deps.Records.GetRecord(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: cache check")
	}
	if rec.Fresh(e.deps.Now()) {
		log.Info("pipeline: cache hit", zap.Time("expires_at", rec.ExpiresAt))
		return CacheHit{Tearsheet: e.tearsheet(ctx, *rec)}, nil
	}

	balance, err := e.deps.Credits.Balance(ctx, req.UserID)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: credit check")
	}
	if balance <= 0 {
		log.Info("pipeline: payment required", zap.Int("credits", balance))
		return PaymentRequired{Credits: balance}, nil
	}

	return e.run(ctx, log, ref, req.UserID, balance)
}

// resolve builds the CompanyRef, looking up the legal name when only an id
// was given.
func (e *Enhancer) resolve(ctx context.Context, req EnhanceRequest) (model.CompanyRef, error) {
	id := strings.TrimSpace(req.CompanyID)
	name := strings.TrimSpace(req.CompanyName)
	if id == "" && name == "" {
		return model.CompanyRef{}, ErrMissingIdentity
	}
	if name == "" {
		ident, err := e.deps.Filings.Identity(ctx, id)
		if errors.Is(err, filings.ErrNotFound) {
			return model.CompanyRef{}, ErrUnknownCompany
		}
		if err != nil {
			return model.CompanyRef{}, eris.Wrapf(err, "pipeline: resolve company %s", id)
		}
		name = ident.LegalName()
	}

	ref := model.NewCompanyRef(id, name, req.BrandHint, req.IndustryHint)
	if ref.CacheKey() == "" {
		return model.CompanyRef{}, ErrMissingIdentity
	}
	return ref, nil
}

func (e *Enhancer) run(ctx context.Context, log *zap.Logger, ref model.CompanyRef, userID string, balance int) (Outcome, error) {
	start := time.Now()
	log.Info("pipeline: starting enhancement", zap.Strings("aliases", ref.Aliases))

	stats := e.stats(ctx, log, ref.ID)
	if ref.IndustryHint == "" {
		ref.IndustryHint = stats.IndustryHint
	}
	if ref.BrandHint == "" && len(stats.Brands) > 0 {
		ref.BrandHint = stats.Brands[0].Name
	}

	disc := e.deps.Discoverer.Discover(ctx, ref)

	var (
		website *model.Website
		crawl   CrawlResult
	)
	if site := e.deps.Selector.Select(ctx, ref, disc.Candidates); site != "" {
		crawl = e.deps.Crawler.Crawl(ctx, site)
		if conf, ok := crawl.Confidence(); ok {
			website = &model.Website{URL: site, Confidence: conf}
		} else {
			log.Info("pipeline: selected site unreachable, discarding", zap.String("url", site))
		}
	}

	in := SummaryInput{Ref: ref, Filings: stats, Pages: crawl.Pages, Social: disc.Social}
	if website != nil {
		in.Website = website.URL
	}
	summary := e.deps.Summarizer.Summarize(ctx, in)

	news := e.deps.Validator.Validate(ctx, ref, disc.NewsLike)

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "pipeline: run abandoned")
	}

	rec := buildRecord(ref, stats, website, summary, news, disc.Social)
	rec.Stamp(e.deps.Now())
	out := Completed{Tearsheet: e.tearsheet(ctx, rec), CreditsRemaining: balance}

	fields := []zap.Field{
		zap.Bool("website", website != nil),
		zap.Bool("summary", rec.HasSummary()),
		zap.String("summary_confidence", string(summary.Confidence)),
		zap.Int("news", len(rec.News)),
		zap.Bool("social", !rec.Social.IsEmpty()),
	}

	if !useful(website, summary) {
		log.Info("pipeline: dead end, not persisting or charging",
			append(fields, zap.Int64("duration_ms", time.Since(start).Milliseconds()))...)
		return out, nil
	}

	var errs []error
	key := ref.CacheKey()
	if err := e.deps.Records.PutRecord(ctx, key, &rec); err != nil {
		log.Error("pipeline: persist record failed", zap.Error(err))
		errs = append(errs, eris.Wrap(err, "pipeline: persist record"))
	} else {
		out.Persisted = true
	}

	remaining, err := e.deps.Credits.Debit(ctx, userID, "enhance:"+key)
	switch {
	case errors.Is(err, store.ErrInsufficientCredits):
		log.Warn("pipeline: balance exhausted before charge")
		out.CreditsRemaining = 0
	case err != nil:
		log.Error("pipeline: charge failed", zap.Error(err))
		errs = append(errs, eris.Wrap(err, "pipeline: charge credit"))
	default:
		out.Charged = true
		out.CreditsRemaining = remaining
	}

	log.Info("pipeline: enhancement complete", append(fields,
		zap.Bool("persisted", out.Persisted),
		zap.Bool("charged", out.Charged),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)...)
	return out, errors.Join(errs...)
}

// useful reports whether a run produced something worth paying for: a
// website, or a summary the model did not flag as low confidence. The
// summary prompt rates filings-only summaries low, so a run with no
// website is charged only when page text still backed a medium or high
// summary (for example a site whose pages were fetched but then rejected).
func useful(website *model.Website, s Summary) bool {
	if website != nil {
		return true
	}
	return s.Text != nil && *s.Text != "" && s.Confidence != model.ConfidenceLow
}

func (e *Enhancer) stats(ctx context.Context, log *zap.Logger, companyID string) model.CompanyFilings {
	if companyID == "" || e.deps.Filings == nil {
		return model.CompanyFilings{}
	}
	stats, err := e.deps.Filings.Stats(ctx, companyID)
	if err != nil {
		log.Warn("pipeline: filing stats unavailable", zap.Error(err))
		return model.CompanyFilings{}
	}
	return stats
}

func buildRecord(ref model.CompanyRef, f model.CompanyFilings, website *model.Website, s Summary, news []model.NewsItem, social *model.Social) model.EnhancementRecord {
	rec := model.EnhancementRecord{
		CompanyID:    ref.ID,
		CompanyName:  ref.Name,
		Website:      website,
		FilingStats:  f.Stats,
		Distribution: model.Distribution{States: f.States},
		Brands:       f.Brands,
		Categories:   f.Categories,
		Summary:      s.Text,
		News:         news,
		Social:       social,
	}
	if rec.Distribution.States == nil {
		rec.Distribution.States = []string{}
	}
	if rec.Brands == nil {
		rec.Brands = []model.BrandCount{}
	}
	if rec.Categories == nil {
		rec.Categories = map[string]int{}
	}
	if rec.News == nil {
		rec.News = []model.NewsItem{}
	}
	return rec
}

// tearsheet attaches the live recent-filings list to rec.
func (e *Enhancer) tearsheet(ctx context.Context, rec model.EnhancementRecord) model.Tearsheet {
	ts := model.Tearsheet{EnhancementRecord: rec, RecentFilings: []model.Filing{}}
	if rec.CompanyID == "" || e.deps.Filings == nil {
		return ts
	}
	recent, err := e.deps.Filings.Recent(ctx, rec.CompanyID, e.deps.RecentLimit)
	if err != nil {
		zap.L().Warn("pipeline: recent filings unavailable", zap.String("company", rec.CompanyID), zap.Error(err))
		return ts
	}
	if recent != nil {
		ts.RecentFilings = recent
	}
	return ts
}

// Status reports whether a fresh record exists for companyID without
// running anything or charging.
func (e *Enhancer) Status(ctx context.Context, companyID string) (StatusResult, error) {
	companyID = strings.TrimSpace(companyID)
	if companyID == "" {
		return StatusResult{}, ErrMissingIdentity
	}
	rec, err := e.deps.Records.GetRecord(ctx, companyID)
	if err != nil {
		return StatusResult{}, eris.Wrap(err, "pipeline: status")
	}
	if !rec.Fresh(e.deps.Now()) {
		return StatusResult{Status: StatusNotFound}, nil
	}
	ts := e.tearsheet(ctx, *rec)
	return StatusResult{Status: StatusComplete, Tearsheet: &ts}, nil
}
