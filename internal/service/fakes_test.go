package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lshigami/PlacementPrep/config"
	"github.com/lshigami/PlacementPrep/internal/apperr"
	"github.com/lshigami/PlacementPrep/internal/cache"
)

type stubResearch struct {
	delay    time.Duration
	failFor  map[string]bool
	calls    atomic.Int32
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (r *stubResearch) Research(ctx context.Context, company string) (*ResearchResult, error) {
	r.calls.Add(1)
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		seen := r.maxSeen.Load()
		if n <= seen || r.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.failFor[company] {
		return nil, apperr.Wrap(apperr.KindExternalService, apperr.CodeServiceUnavailable,
			"research service unavailable", fmt.Errorf("provider down for %s", company))
	}
	return &ResearchResult{
		Content:  strings.Repeat("Pattern notes for "+company+". ", 10),
		Elapsed:  time.Millisecond,
		Provider: "stub",
	}, nil
}

// stubSynthesis answers with count questions split over two sections. The
// first question of each section has answer A, the rest B.
type stubSynthesis struct {
	mu           sync.Mutex
	plainCalls   int
	chunkedCalls int
	lastChunk    int
	err          error
}

func (s *stubSynthesis) Synthesize(_ context.Context, _, company string, count int) (*SynthesisResult, error) {
	s.mu.Lock()
	s.plainCalls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.result(company, count), nil
}

func (s *stubSynthesis) SynthesizeChunked(_ context.Context, _, company string, count, chunkSize int) (*SynthesisResult, error) {
	s.mu.Lock()
	s.chunkedCalls++
	s.lastChunk = chunkSize
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.result(company, count), nil
}

func (s *stubSynthesis) result(company string, count int) *SynthesisResult {
	names := []string{"Quantitative Aptitude", "Verbal Ability"}
	sections := make([]SynthesizedSection, 0, len(names))
	for i, name := range names {
		share := count / len(names)
		if i < count%len(names) {
			share++
		}
		sec := SynthesizedSection{Name: name, TimeLimitMinutes: 15}
		for j := 0; j < share; j++ {
			answer := "B"
			if j == 0 {
				answer = "A"
			}
			sec.Questions = append(sec.Questions, SynthesizedQuestion{
				QuestionText:  fmt.Sprintf("%s %s question %d", company, name, j+1),
				Options:       []string{"A) 10", "B) 20", "C) 30", "D) 40"},
				CorrectAnswer: answer,
				Explanation:   "worked solution",
				Difficulty:    "medium",
				Topic:         name,
			})
		}
		sections = append(sections, sec)
	}
	renumberQuestions(sections)
	return &SynthesisResult{Sections: sections, TotalQuestions: count, Elapsed: time.Millisecond}
}

// countingCache is an in-memory RankingCache that records invalidations.
// Slots carry the generation like the Redis cache does.
type countingCache struct {
	mu            sync.Mutex
	generation    int
	entries       map[cache.Slot][]rankedUser
	gets          int
	hits          int
	invalidations int
}

func newCountingCache() *countingCache {
	return &countingCache{entries: make(map[cache.Slot][]rankedUser)}
}

func (c *countingCache) Get(_ context.Context, key string, dst any) (cache.Slot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	slot := cache.Slot(fmt.Sprintf("%d:%s", c.generation, key))
	v, ok := c.entries[slot]
	if !ok {
		return slot, false, nil
	}
	p, ok := dst.(*[]rankedUser)
	if !ok {
		return slot, false, fmt.Errorf("unexpected destination %T", dst)
	}
	c.hits++
	*p = append([]rankedUser(nil), v...)
	return slot, true, nil
}

func (c *countingCache) Set(_ context.Context, slot cache.Slot, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := value.([]rankedUser)
	if !ok {
		return fmt.Errorf("unexpected value %T", value)
	}
	c.entries[slot] = append([]rankedUser(nil), v...)
	return nil
}

func (c *countingCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidations++
	c.generation++
	return nil
}

func (c *countingCache) invalidated() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invalidations
}

func testConfig() *config.Config {
	return &config.Config{
		Generation: config.Generation{CacheWindow: 24 * time.Hour, BatchConcurrency: 3},
		Synthesis:  config.Synthesis{ChunkThreshold: 15, ChunkSize: 8},
	}
}
