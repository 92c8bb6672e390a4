// Package abbreviation resolves equipment descriptions to short codes.
//
// Resolution walks an ordered chain of providers (vocabulary, then the run's code table) for the
// equipment name and then the equipment system. Descriptions nobody knows go to an external
// Abbreviator, at most once per description per run.
package abbreviation

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"assetid-workers/internal/assetid/codetable"
	"assetid-workers/internal/assetid/normalize"
	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/logger"
	"assetid-workers/internal/models"
)

// WarnAIFallback marks a code that came from the external abbreviator.
const WarnAIFallback = "ABBREVIATION_AI_FALLBACK"

const defaultTimeout = 5 * time.Second

// ErrEmptyAbbreviation is returned when the abbreviator answers with nothing usable.
var ErrEmptyAbbreviation = stderrors.New("abbreviator returned no usable code")

// Abbreviator is the external capability: description in, short code out.
type Abbreviator interface {
	Abbreviate(ctx context.Context, text string) (string, error)
}

// AbbreviatorFunc adapts a function to Abbreviator.
type AbbreviatorFunc func(ctx context.Context, text string) (string, error)

func (f AbbreviatorFunc) Abbreviate(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// Lookup reads cached resolutions. *codetable.CodeTable and *codetable.Txn satisfy it.
type Lookup interface {
	Abbreviation(key string) (codetable.Abbreviation, bool)
}

// Store is a Lookup that accepts new resolutions.
type Store interface {
	Lookup
	PutAbbreviation(a codetable.Abbreviation)
}

// Provider is one step of the resolution chain. Keys are canonical descriptions.
type Provider interface {
	Find(key string, cache Lookup) (code string, source models.CodeSource, ok bool)
}

type vocabularyProvider struct{ vocab *Vocabulary }

func (p vocabularyProvider) Find(key string, _ Lookup) (string, models.CodeSource, bool) {
	code, ok := p.vocab.LookupKey(key)
	return code, models.SourceKnownTable, ok
}

type tableProvider struct{}

func (tableProvider) Find(key string, cache Lookup) (string, models.CodeSource, bool) {
	if cache == nil {
		return "", "", false
	}
	a, ok := cache.Abbreviation(key)
	if !ok {
		return "", "", false
	}
	return a.Code, a.Source, true
}

// Options configures a Resolver.
type Options struct {
	Vocabulary  *Vocabulary
	Abbreviator Abbreviator
	Normalizer  *normalize.Normalizer
	// Providers run after the vocabulary and the table cache.
	Providers []Provider
	Timeout   time.Duration
	Logger    logger.Logger
}

// Resolution is the outcome for one row's equipment.
type Resolution struct {
	Code     string
	Source   models.CodeSource
	Key      string
	Warnings []models.Warning
}

// Resolver is immutable after construction; per-run state lives in a Session.
type Resolver struct {
	providers   []Provider
	abbreviator Abbreviator
	normalizer  *normalize.Normalizer
	timeout     time.Duration
	logger      logger.Logger
}

func NewResolver(opts Options) (*Resolver, error) {
	n := opts.Normalizer
	if n == nil {
		var err error
		if n, err = normalize.New(normalize.DefaultRules()); err != nil {
			return nil, err
		}
	}
	vocab := opts.Vocabulary
	if vocab == nil {
		vocab = DefaultEquipment()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}

	providers := []Provider{vocabularyProvider{vocab: vocab}, tableProvider{}}
	providers = append(providers, opts.Providers...)

	return &Resolver{
		providers:   providers,
		abbreviator: opts.Abbreviator,
		normalizer:  n,
		timeout:     timeout,
		logger:      log,
	}, nil
}

// NewSession starts run-scoped state: the external-call memo and its single-flight group.
func (r *Resolver) NewSession() *Session {
	return &Session{r: r, memo: make(map[string]outcome)}
}

type outcome struct {
	code   string
	source models.CodeSource
	warn   *models.Warning
}

// Session is safe for concurrent use.
type Session struct {
	r     *Resolver
	mu    sync.Mutex
	memo  map[string]outcome
	group singleflight.Group
	calls atomic.Int64
}

// Calls is the number of external abbreviator invocations made in this session.
func (s *Session) Calls() int { return int(s.calls.Load()) }

// Resolve finds the equipment code for a row. It never fails: unreachable abbreviators degrade to a
// normalized code with a warning. AI-derived codes are staged into store.
func (s *Session) Resolve(ctx context.Context, store Store, name, system string) Resolution {
	nameKey, sysKey := normalize.Canonical(name), normalize.Canonical(system)

	if nameKey == "" && sysKey == "" {
		code, w := s.r.normalizer.Normalize("", models.LevelEquipment)
		res := Resolution{Code: code, Source: models.SourcePlaceholder}
		if w != nil {
			w.Field = models.FieldEquipmentName
			res.Warnings = append(res.Warnings, *w)
		}
		return res
	}

	if code, source, key, ok := s.r.known(store, nameKey, sysKey); ok {
		res := Resolution{Code: code, Source: source, Key: key}
		if source == models.SourceFallbackAI {
			res.Warnings = append(res.Warnings, aiWarning(key, code))
		}
		return res
	}

	desc, key, field := name, nameKey, models.FieldEquipmentName
	if key == "" {
		desc, key, field = system, sysKey, models.FieldEquipmentSystem
	}

	o := s.external(ctx, desc, key)
	res := Resolution{Code: o.code, Source: o.source, Key: key}
	if o.source == models.SourceFallbackAI {
		store.PutAbbreviation(codetable.Abbreviation{Key: key, Raw: desc, Code: o.code, Source: o.source})
		res.Warnings = append(res.Warnings, aiWarning(key, o.code))
	} else if o.warn != nil {
		w := *o.warn
		w.Field = field
		res.Warnings = append(res.Warnings, w)
	}
	return res
}

// Description is a name/system pair for Prefetch.
type Description struct {
	Name   string
	System string
}

// Prefetch resolves the distinct unknown descriptions concurrently with at most workers calls in
// flight, so later Resolve calls hit the session memo. Nothing is written to a table here.
func (s *Session) Prefetch(ctx context.Context, cache Lookup, items []Description, workers int) error {
	if s.r.abbreviator == nil || len(items) == 0 {
		return nil
	}
	if workers < 1 {
		workers = 1
	}

	type pending struct{ desc, key string }
	seen := make(map[string]bool)
	var todo []pending
	for _, it := range items {
		nameKey, sysKey := normalize.Canonical(it.Name), normalize.Canonical(it.System)
		if nameKey == "" && sysKey == "" {
			continue
		}
		if _, _, _, ok := s.r.known(cache, nameKey, sysKey); ok {
			continue
		}
		p := pending{it.Name, nameKey}
		if nameKey == "" {
			p = pending{it.System, sysKey}
		}
		if !seen[p.key] {
			seen[p.key] = true
			todo = append(todo, p)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, p := range todo {
		p := p
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s.external(gctx, p.desc, p.key)
			return nil
		})
	}
	return g.Wait()
}

func (r *Resolver) known(cache Lookup, keys ...string) (string, models.CodeSource, string, bool) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		for _, p := range r.providers {
			if code, source, ok := p.Find(key, cache); ok {
				return code, source, key, true
			}
		}
	}
	return "", "", "", false
}

func (s *Session) external(ctx context.Context, desc, key string) outcome {
	s.mu.Lock()
	o, ok := s.memo[key]
	s.mu.Unlock()
	if ok {
		return o
	}

	v, _, _ := s.group.Do(key, func() (interface{}, error) {
		s.mu.Lock()
		if o, ok := s.memo[key]; ok {
			s.mu.Unlock()
			return o, nil
		}
		s.mu.Unlock()

		o := s.call(ctx, desc)

		s.mu.Lock()
		s.memo[key] = o
		s.mu.Unlock()
		return o, nil
	})
	return v.(outcome)
}

func (s *Session) call(ctx context.Context, desc string) outcome {
	r := s.r
	if r.abbreviator == nil {
		return s.degrade(desc, errors.NewAbbreviationServiceError(false, stderrors.New("no abbreviator configured")))
	}

	cctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	s.calls.Add(1)
	raw, err := r.abbreviate(cctx, desc)
	if err == nil && len(normalize.Tokens(raw)) == 0 {
		err = ErrEmptyAbbreviation
	}
	if err != nil {
		timedOut := stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(cctx.Err(), context.DeadlineExceeded)
		r.logger.Warn("Abbreviation service failed, using normalized code", map[string]interface{}{
			"description": desc,
			"timeout":     timedOut,
			"error":       err.Error(),
		})
		return s.degrade(desc, errors.NewAbbreviationServiceError(timedOut, err))
	}

	code, _ := r.normalizer.Normalize(raw, models.LevelEquipment)
	return outcome{code: code, source: models.SourceFallbackAI}
}

type answer struct {
	raw string
	err error
}

// abbreviate returns when the abbreviator answers or ctx is done, whichever comes first.
// An abbreviator that ignores ctx is left to finish on its own; its answer is discarded.
func (r *Resolver) abbreviate(ctx context.Context, desc string) (string, error) {
	done := make(chan answer, 1)
	go func() {
		raw, err := r.abbreviator.Abbreviate(ctx, desc)
		done <- answer{raw: raw, err: err}
	}()

	select {
	case a := <-done:
		if a.err == nil && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return a.raw, a.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *Session) degrade(desc string, cause *errors.StandardError) outcome {
	code, _ := s.r.normalizer.Normalize(desc, models.LevelEquipment)
	return outcome{
		code:   code,
		source: models.SourcePlaceholder,
		warn: &models.Warning{
			Level:   models.LevelEquipment,
			Code:    string(cause.Code),
			Message: fmt.Sprintf("abbreviation for %q unavailable (%s); using %s", desc, cause.Details, code),
		},
	}
}

func aiWarning(key, code string) models.Warning {
	return models.Warning{
		Field:   models.FieldEquipmentName,
		Level:   models.LevelEquipment,
		Code:    WarnAIFallback,
		Message: fmt.Sprintf("equipment %q resolved via AI fallback as %s", key, code),
	}
}
