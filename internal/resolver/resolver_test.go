package resolver

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lyrik/internal/lyrics"
	"lyrik/pkg/source"
)

// fakeSource 模拟歌词提供商
type fakeSource struct {
	name       string
	confidence source.Confidence
	err        error
	delay      time.Duration
	panics     bool
	ignoreCtx  bool
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, q source.Query, allowFuzzy bool) (*source.Result, error) {
	if f.panics {
		panic("provider exploded")
	}
	if f.delay > 0 {
		if f.ignoreCtx {
			time.Sleep(f.delay)
		} else {
			select {
			case <-ctx.Done():
				return nil, source.Connectivity(f.name, ctx.Err())
			case <-time.After(f.delay):
			}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &source.Result{
		SourceName: f.name,
		Confidence: f.confidence,
		Lyrics:     "[00:00.00]" + f.name + " " + q.Title,
	}, nil
}

func exact(name string) *fakeSource { return &fakeSource{name: name, confidence: source.Exact} }
func fuzzy(name string) *fakeSource { return &fakeSource{name: name, confidence: source.Fuzzy} }
func notFound(name string) *fakeSource {
	return &fakeSource{name: name, err: source.NotFound(name, "nothing")}
}
func offline(name string) *fakeSource {
	return &fakeSource{name: name, err: source.Connectivity(name, errors.New("dial tcp: refused"))}
}

func newResolver(t *testing.T, cfg Config, sources ...source.Source) *Resolver {
	t.Helper()
	reg, err := source.NewRegistry(sources...)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return New(reg, cfg)
}

var track = lyrics.Track{Title: "Song", Album: "Album", Artists: []string{"Artist"}}

func TestLookupSelection(t *testing.T) {
	tests := []struct {
		name       string
		cfg        Config
		sources    []source.Source
		allowFuzzy bool
		wantKind   Kind
		wantSource string
	}{
		{
			name:       "ExactBeatsHigherPriorityFuzzy",
			cfg:        Config{Priority: []string{"hi", "lo"}},
			sources:    []source.Source{fuzzy("hi"), exact("lo")},
			allowFuzzy: true,
			wantKind:   Found,
			wantSource: "lo",
		},
		{
			name:       "PriorityWithinExactTier",
			cfg:        Config{Priority: []string{"first", "second"}},
			sources:    []source.Source{exact("second"), exact("first")},
			wantKind:   Found,
			wantSource: "first",
		},
		{
			name:       "UnlistedRanksLowest",
			cfg:        Config{Priority: []string{"listed"}},
			sources:    []source.Source{exact("unlisted"), exact("listed")},
			wantKind:   Found,
			wantSource: "listed",
		},
		{
			name:       "TieBrokenByRegistrationOrder",
			sources:    []source.Source{exact("a"), exact("b")},
			wantKind:   Found,
			wantSource: "a",
		},
		{
			name:       "FuzzyWhenAllowed",
			cfg:        Config{Priority: []string{"b", "a"}},
			sources:    []source.Source{fuzzy("a"), fuzzy("b"), notFound("c")},
			allowFuzzy: true,
			wantKind:   Found,
			wantSource: "b",
		},
		{
			name:     "FuzzyIgnoredWhenNotAllowed",
			sources:  []source.Source{fuzzy("a"), notFound("b")},
			wantKind: NoMatch,
		},
		{
			name:       "AllConnectivity",
			sources:    []source.Source{offline("a"), offline("b")},
			allowFuzzy: true,
			wantKind:   Unreachable,
		},
		{
			name:       "AllNotFound",
			sources:    []source.Source{notFound("a"), notFound("b")},
			allowFuzzy: true,
			wantKind:   NoMatch,
		},
		{
			name:       "MixedFailures",
			sources:    []source.Source{offline("a"), notFound("b")},
			allowFuzzy: true,
			wantKind:   NoMatch,
		},
		{
			name:       "FailureDoesNotHideSuccess",
			sources:    []source.Source{offline("a"), &fakeSource{name: "b", panics: true}, exact("c")},
			allowFuzzy: true,
			wantKind:   Found,
			wantSource: "c",
		},
		{
			name:       "DisabledSourceSkipped",
			cfg:        Config{Disabled: []string{"a"}},
			sources:    []source.Source{exact("a"), fuzzy("b")},
			allowFuzzy: true,
			wantKind:   Found,
			wantSource: "b",
		},
		{
			name:     "NoSources",
			wantKind: NoMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newResolver(t, tt.cfg, tt.sources...)
			out := r.Lookup(context.Background(), track, tt.allowFuzzy)

			if out.Kind != tt.wantKind {
				t.Fatalf("Expected %v, got %v", tt.wantKind, out.Kind)
			}
			if tt.wantKind != Found {
				return
			}
			if out.SourceName != tt.wantSource || out.Result.SourceName != tt.wantSource {
				t.Errorf("Expected source %q, got %q (%q)", tt.wantSource, out.SourceName, out.Result.SourceName)
			}
		})
	}
}

func TestLookupTimeoutIsConnectivity(t *testing.T) {
	slow := &fakeSource{name: "slow", confidence: source.Exact, delay: time.Second, ignoreCtx: true}
	r := newResolver(t, Config{Timeout: 50 * time.Millisecond}, slow)

	start := time.Now()
	out := r.Lookup(context.Background(), track, true)
	if out.Kind != Unreachable {
		t.Fatalf("Expected Unreachable, got %v", out.Kind)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Lookup waited %v for a source past its timeout", elapsed)
	}
}

func TestLookupUnclassifiedErrorIsConnectivity(t *testing.T) {
	r := newResolver(t, Config{}, &fakeSource{name: "weird", err: errors.New("weird failure")})

	if out := r.Lookup(context.Background(), track, true); out.Kind != Unreachable {
		t.Fatalf("Expected Unreachable, got %v", out.Kind)
	}
}

func TestResolveGenerations(t *testing.T) {
	slow := &fakeSource{name: "slow", confidence: source.Exact, delay: 200 * time.Millisecond}
	r := newResolver(t, Config{}, slow)

	var mu sync.Mutex
	var outcomes []Outcome
	var wg sync.WaitGroup
	wg.Add(2)
	done := func(o Outcome) {
		mu.Lock()
		outcomes = append(outcomes, o)
		mu.Unlock()
		wg.Done()
	}

	g1 := r.Resolve(context.Background(), lyrics.Track{Title: "A"}, true, done)
	g2 := r.Resolve(context.Background(), lyrics.Track{Title: "B"}, true, done)
	wg.Wait()

	if g2 <= g1 {
		t.Fatalf("Expected increasing generations, got %d then %d", g1, g2)
	}
	if r.IsCurrent(g1) || !r.IsCurrent(g2) {
		t.Errorf("Expected only generation %d to be current", g2)
	}

	for _, o := range outcomes {
		switch o.Generation {
		case g1:
			// 旧调用被取消
			if o.Kind == Found {
				t.Errorf("Expected superseded resolution to be cancelled, got %v", o.Kind)
			}
		case g2:
			if o.Kind != Found || o.Track.Title != "B" {
				t.Errorf("Expected B to be found, got %v for %q", o.Kind, o.Track.Title)
			}
		default:
			t.Errorf("Unexpected generation %d", o.Generation)
		}
	}
}

type upperNormalizer struct{}

func (upperNormalizer) Normalize(ctx context.Context, t lyrics.Track) (lyrics.Track, error) {
	return lyrics.Track{Title: "Clean " + t.Title, Artists: t.Artists}, nil
}

type fakeTranslator struct{ err error }

func (f fakeTranslator) Target() string { return "en" }

func (f fakeTranslator) Translate(ctx context.Context, lrc string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "[00:00.00]translated", nil
}

func TestLookupEnrichment(t *testing.T) {
	r := newResolver(t, Config{Normalizer: upperNormalizer{}, Translator: fakeTranslator{}}, exact("a"))

	out := r.Lookup(context.Background(), track, true)
	if out.Kind != Found {
		t.Fatalf("Expected Found, got %v", out.Kind)
	}
	if out.Result.Lyrics != "[00:00.00]a Clean Song" {
		t.Errorf("Expected normalized query, got lyrics %q", out.Result.Lyrics)
	}
	if out.Result.Translations["en"] != "[00:00.00]translated" {
		t.Errorf("Expected machine translation, got %v", out.Result.Translations)
	}
	if out.Track.Title != "Song" {
		t.Errorf("Expected outcome to carry the original track, got %q", out.Track.Title)
	}

	r = newResolver(t, Config{Translator: fakeTranslator{err: errors.New("quota")}}, exact("a"))
	out = r.Lookup(context.Background(), track, true)
	if out.Kind != Found || len(out.Result.Translations) != 0 {
		t.Errorf("Expected untranslated result when translation fails, got %+v", out)
	}
}
