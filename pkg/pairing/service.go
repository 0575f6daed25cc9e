// Package pairing drives the affiliate pairing workflow: range
// registrations, calculations against the service and pair details.
package pairing

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/Angel-Nizama/web-operaciones-v2/pkg/apiclient"
	"github.com/Angel-Nizama/web-operaciones-v2/pkg/matching"
)

const (
	calculateEndpoint  = "/emparejador/calcular"
	affiliatesEndpoint = "/emparejador/afiliados"
	detailsEndpoint    = "/emparejador/detalles"

	// DefaultConcurrency bounds parallel range loads.
	DefaultConcurrency = 3
)

var validate = validator.New()

// Requester is the subset of *apiclient.Client the service uses.
type Requester interface {
	Read(ctx context.Context, endpoint string, params apiclient.Params) (*apiclient.Envelope, error)
	Create(ctx context.Context, endpoint string, body any) (*apiclient.Envelope, error)
	Remove(ctx context.Context, endpoint string, params apiclient.Params) (*apiclient.Envelope, error)
}

// Service is the pairing workflow bound to one configuration manager and
// one snapshot store.
type Service struct {
	client      Requester
	config      *matching.Manager
	store       *matching.Store
	limit       int
	concurrency int
	log         apiclient.Logger
}

// Option configures Service.
type Option func(*Service)

// WithLimit caps the number of results the service returns.
func WithLimit(n int) Option {
	return func(s *Service) {
		s.limit = n
	}
}

// WithStore shares an existing store instead of creating one.
func WithStore(st *matching.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithConcurrency sets how many ranges LoadAllRanges fetches at once.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		s.concurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(l apiclient.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService returns a Service. config is required.
func NewService(client Requester, config *matching.Manager, opts ...Option) *Service {
	s := &Service{
		client:      client,
		config:      config,
		store:       matching.NewStore(),
		concurrency: DefaultConcurrency,
		log:         nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the snapshot store updated by Calculate.
func (s *Service) Store() *matching.Store {
	return s.store
}

// Calculate requests a calculation with the current configuration and
// swaps in the resulting snapshot. On failure the previous snapshot stays
// in place and the error is recorded in the store.
func (s *Service) Calculate(ctx context.Context) (*matching.Snapshot, error) {
	cfg := s.config.Get()
	s.store.Begin()

	snap, err := s.calculate(ctx, cfg)
	if err != nil {
		s.store.Fail(err)
		return nil, err
	}
	s.store.Complete(snap)
	s.log.Infof("Calculation returned %d pairs", snap.Len())
	return snap, nil
}

func (s *Service) calculate(ctx context.Context, cfg matching.ScoringConfiguration) (*matching.Snapshot, error) {
	env, err := s.client.Create(ctx, calculateEndpoint, matching.NewCalculationRequest(cfg, s.limit))
	if err != nil {
		return nil, err
	}
	if err := env.Err("could not calculate pairs"); err != nil {
		return nil, err
	}

	var results []matching.MatchResult
	if err := env.DecodeData(&results); err != nil {
		return nil, &apiclient.Error{
			Kind:       apiclient.KindServer,
			Message:    "server error: malformed pairing results",
			HTTPStatus: env.HTTPStatus,
			Err:        err,
		}
	}

	opts := []matching.SnapshotOption{matching.WithExecutionTime(env.Field("execution_time").Float())}
	if h := env.Field("historial"); h.Exists() && h.Raw != "null" {
		opts = append(opts, matching.WithHistory([]byte(h.Raw)))
	}
	return matching.NewSnapshot(results, cfg, opts...), nil
}

// RangeAffiliates lists the affiliates registered in r.
func (s *Service) RangeAffiliates(ctx context.Context, r Range) (*RangeListing, error) {
	env, err := s.client.Read(ctx, affiliatesEndpoint, r.params())
	if err != nil {
		return nil, err
	}
	if err := env.Err("could not load range affiliates"); err != nil {
		return nil, err
	}
	listing := &RangeListing{Range: r, Total: int(env.Field("total_afiliados").Int())}
	if err := env.DecodeData(&listing.Affiliates); err != nil {
		return nil, err
	}
	return listing, nil
}

// LoadAllRanges fetches every default range concurrently. Listings are
// returned in DefaultRanges order; failed ranges are omitted and their
// errors returned alongside.
func (s *Service) LoadAllRanges(ctx context.Context) ([]*RangeListing, []error) {
	return s.loadRanges(ctx, DefaultRanges)
}

func (s *Service) loadRanges(ctx context.Context, ranges []Range) ([]*RangeListing, []error) {
	concurrency := s.concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	jobs := make(chan int, len(ranges))
	for i := range ranges {
		jobs <- i
	}
	close(jobs)

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		listings = make([]*RangeListing, len(ranges))
		errs     []error
	)
	for w := 0; w < concurrency && w < len(ranges); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if ctx.Err() != nil {
					return
				}
				listing, err := s.RangeAffiliates(ctx, ranges[i])
				mu.Lock()
				if err != nil {
					s.log.Warnf("Could not load range %s: %v", ranges[i].Key(), err)
					errs = append(errs, fmt.Errorf("range %s: %w", ranges[i].Key(), err))
				} else {
					listings[i] = listing
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	out := make([]*RangeListing, 0, len(listings))
	for _, l := range listings {
		if l != nil {
			out = append(out, l)
		}
	}
	if err := ctx.Err(); err != nil && len(out)+len(errs) < len(ranges) {
		errs = append(errs, err)
	}
	return out, errs
}

// AddRangeAffiliate registers an affiliate in a range and returns the
// server's confirmation message.
func (s *Service) AddRangeAffiliate(ctx context.Context, a RangeAssignment) (string, error) {
	if err := validate.Struct(a); err != nil {
		return "", &apiclient.Error{
			Kind:    apiclient.KindClientLogic,
			Message: "invalid range assignment",
			Err:     err,
		}
	}
	env, err := s.client.Create(ctx, affiliatesEndpoint, a)
	if err != nil {
		return "", err
	}
	if err := env.Err("could not add affiliate to range"); err != nil {
		return "", err
	}
	return env.Message, nil
}

// RemoveRangeAffiliate removes one registration by id.
func (s *Service) RemoveRangeAffiliate(ctx context.Context, id int) (string, error) {
	return s.remove(ctx, affiliatesEndpoint+"/"+strconv.Itoa(id), nil, "could not remove affiliate from range")
}

// ClearRange removes every registration in r.
func (s *Service) ClearRange(ctx context.Context, r Range) (string, error) {
	return s.remove(ctx, affiliatesEndpoint+"/rango", r.params(), "could not clear range")
}

// ClearAllRanges removes every registration in every range.
func (s *Service) ClearAllRanges(ctx context.Context) (string, error) {
	return s.remove(ctx, affiliatesEndpoint+"/todos", nil, "could not clear ranges")
}

func (s *Service) remove(ctx context.Context, endpoint string, params apiclient.Params, fallback string) (string, error) {
	env, err := s.client.Remove(ctx, endpoint, params)
	if err != nil {
		return "", err
	}
	if err := env.Err(fallback); err != nil {
		return "", err
	}
	return env.Message, nil
}

// PastOperation is one recorded operation between a pair.
type PastOperation struct {
	Date   string  `json:"fecha"`
	Time   string  `json:"hora"`
	Amount float64 `json:"monto"`
}

// PairDetails describes a candidate pair: recent operations between them,
// suggested amounts and whether either side receives through Izipay.
type PairDetails struct {
	AffiliateA       string          `json:"afiliado1"`
	AffiliateB       string          `json:"afiliado2"`
	History          []PastOperation `json:"historial"`
	SuggestedAmounts []float64       `json:"montos_sugeridos"`
	UsesIzipay       bool            `json:"usa_izipay"`
}

// PairDetails loads the details of the pair (a, b).
func (s *Service) PairDetails(ctx context.Context, a, b string) (*PairDetails, error) {
	if a == "" || b == "" {
		return nil, &apiclient.Error{
			Kind:    apiclient.KindClientLogic,
			Message: "both affiliates are required",
			Err:     fmt.Errorf("pair details: got %q and %q", a, b),
		}
	}
	endpoint := detailsEndpoint + "/" + url.PathEscape(a) + "/" + url.PathEscape(b)
	env, err := s.client.Read(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if err := env.Err("could not load pair details"); err != nil {
		return nil, err
	}

	d := &PairDetails{AffiliateA: a, AffiliateB: b, UsesIzipay: env.Field("usa_izipay").Bool()}
	if err := env.DecodeData(&d.History); err != nil {
		return nil, err
	}
	for _, m := range env.Field("montos_sugeridos").Array() {
		d.SuggestedAmounts = append(d.SuggestedAmounts, m.Float())
	}
	return d, nil
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}
