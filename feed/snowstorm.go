package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/termbridge/core"
	"github.com/poiesic/termbridge/retry"
	"golang.org/x/time/rate"
)

const (
	// DefaultSnowstormURL is the public SNOMED International browser.
	DefaultSnowstormURL = "https://browser.ihtsdotools.org/snowstorm/snomed-ct"

	// DefaultBranch is the edition branch concepts are read from.
	DefaultBranch = "MAIN"

	// DefaultPacing is the minimum gap between two requests.
	DefaultPacing = 100 * time.Millisecond
)

// DefaultSnowstormIDs are common clinical findings fetched when no ids are
// given.
var DefaultSnowstormIDs = []string{
	"386661006", // fever
	"25064002",  // headache
	"49727002",  // cough
	"22253000",  // pain
	"267036007", // dyspnea
	"62315008",  // diarrhea
	"422400008", // vomiting
	"271807003", // rash
	"84229001",  // fatigue
	"68962001",  // muscle pain
}

type snowstormTerm struct {
	Term string `json:"term"`
	Lang string `json:"lang,omitempty"`
}

type snowstormDescription struct {
	Term   string `json:"term"`
	Type   string `json:"type"`
	Active bool   `json:"active"`
}

type snowstormConcept struct {
	ConceptID    string                 `json:"conceptId"`
	Active       bool                   `json:"active"`
	ModuleID     string                 `json:"moduleId"`
	FSN          snowstormTerm          `json:"fsn"`
	PT           snowstormTerm          `json:"pt"`
	SemanticTag  string                 `json:"semanticTag"`
	Descriptions []snowstormDescription `json:"descriptions"`
}

func (c *snowstormConcept) raw() core.RawConcept {
	rec := core.RawConcept{
		Code:       c.ConceptID,
		Display:    c.PT.Term,
		Definition: c.FSN.Term,
	}
	if rec.Display == "" {
		rec.Display = c.FSN.Term
	}
	for _, d := range c.Descriptions {
		if d.Type == "SYNONYM" && d.Active && d.Term != rec.Display {
			rec.Synonyms = append(rec.Synonyms, d.Term)
		}
	}
	if c.SemanticTag != "" {
		rec.SemanticTags = append(rec.SemanticTags, c.SemanticTag)
	}
	if c.ModuleID != "" {
		rec.SemanticTags = append(rec.SemanticTags, "module:"+c.ModuleID)
	}
	return rec
}

// Snowstorm fetches SNOMED CT concepts by id from a Snowstorm terminology
// server. Requests are paced and each one is retried on 429 and 5xx
// responses. Ids that fail are skipped; Fetch fails only when none succeed.
type Snowstorm struct {
	baseURL string
	branch  string
	ids     []string
	client  *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *slog.Logger
}

var _ Provider = (*Snowstorm)(nil)

// SnowstormOption configures a Snowstorm provider.
type SnowstormOption func(*Snowstorm) error

// WithHTTPClient sets the client used for requests.
func WithHTTPClient(client *http.Client) SnowstormOption {
	return func(s *Snowstorm) error {
		if client == nil {
			client = http.DefaultClient
		}
		s.client = client
		return nil
	}
}

// WithBranch sets the edition branch, for example "MAIN/SNOMEDCT-US".
func WithBranch(branch string) SnowstormOption {
	return func(s *Snowstorm) error {
		if branch = strings.Trim(branch, "/"); branch == "" {
			return fmt.Errorf("%w: empty branch", ErrInvalidOption)
		}
		s.branch = branch
		return nil
	}
}

// WithPacing sets the minimum gap between requests. Zero disables pacing.
func WithPacing(d time.Duration) SnowstormOption {
	return func(s *Snowstorm) error {
		if d <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 1)
			return nil
		}
		s.limiter = rate.NewLimiter(rate.Every(d), 1)
		return nil
	}
}

// WithRetryPolicy replaces the per-request retry policy.
func WithRetryPolicy(p retry.Policy) SnowstormOption {
	return func(s *Snowstorm) error {
		if p.MaxAttempts <= 0 {
			return retry.ErrInvalidMaxAttempts
		}
		s.policy = p
		return nil
	}
}

// WithSnowstormLogger sets a custom logger for the provider.
func WithSnowstormLogger(logger *slog.Logger) SnowstormOption {
	return func(s *Snowstorm) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "feed-snowstorm")
		return nil
	}
}

// NewSnowstorm creates a provider reading ids from the server at baseURL.
// An empty baseURL uses DefaultSnowstormURL and empty ids use
// DefaultSnowstormIDs.
func NewSnowstorm(baseURL string, ids []string, opts ...SnowstormOption) (*Snowstorm, error) {
	if baseURL == "" {
		baseURL = DefaultSnowstormURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse snowstorm url: %w", err)
	}
	if len(ids) == 0 {
		ids = DefaultSnowstormIDs
	}
	s := &Snowstorm{
		baseURL: strings.TrimRight(baseURL, "/"),
		branch:  DefaultBranch,
		ids:     append([]string(nil), ids...),
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(DefaultPacing), 1),
		policy:  retry.DefaultPolicy(),
		logger:  slog.Default().With("component", "feed-snowstorm"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name implements Provider.
func (s *Snowstorm) Name() string { return "snowstorm:" + s.baseURL }

// System implements Provider.
func (s *Snowstorm) System() core.System { return core.SystemSNOMEDCT }

// Fetch implements Provider. Concepts are requested one at a time in id
// order.
func (s *Snowstorm) Fetch(ctx context.Context) ([]core.RawConcept, error) {
	var (
		records []core.RawConcept
		errs    []error
	)
	for _, id := range s.ids {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		var concept *snowstormConcept
		err := retry.Do(ctx, s.policy, func(ctx context.Context) error {
			var err error
			concept, err = s.fetchConcept(ctx, id)
			return err
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			s.logger.Warn("skipping SNOMED concept", "id", id, "err", err)
			errs = append(errs, fmt.Errorf("concept %s: %w", id, err))
			continue
		}
		if !concept.Active {
			s.logger.Debug("skipping inactive SNOMED concept", "id", id)
			continue
		}
		records = append(records, concept.raw())
	}
	if len(records) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	s.logger.Info("fetched SNOMED concepts", "requested", len(s.ids), "fetched", len(records), "failed", len(errs))
	return records, nil
}

func (s *Snowstorm) fetchConcept(ctx context.Context, id string) (*snowstormConcept, error) {
	endpoint := fmt.Sprintf("%s/browser/%s/concepts/%s", s.baseURL, s.branch, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, retry.Permanent(fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status))
	}

	var concept snowstormConcept
	if err := json.NewDecoder(resp.Body).Decode(&concept); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode concept %s: %w", id, err))
	}
	if concept.ConceptID == "" {
		concept.ConceptID = id
	}
	return &concept, nil
}
