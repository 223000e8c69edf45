package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"propmatch/internal/model"
)

// searchPreamble is prepended to every user query sent to the agent
const searchPreamble = "You are a smart property search agent. Your goal is to find the right match of properties based on the user's query. " +
	"Queries may not be structured properly, therefore use your intelligence to understand the query well. " +
	"Determine if the request is for sale or rent. " +
	"Find properties that match the query and pick only the active ones. " +
	"If a specific requirement (like a pool) isn't met exactly, suggest the closest match. " +
	"Always return the Ref No, Location/Building Name, Size, No of Bedrooms, Price, and a short 'Why it fits' summary for each matching property."

// ExhaustedMessage is returned when every retry failed on rate limiting.
// It is a normal answer, not an error.
const ExhaustedMessage = "Could not complete search — rate limit exceeded. Please try again in a few minutes."

// backoffStep is multiplied by the attempt number for rate-limit backoff
const backoffStep = 40 * time.Second

// CacheKey returns the deterministic cache key for a query.
// Queries are normalized (trimmed, lowercased) before hashing so that
// trivially different spellings of the same query share an entry.
func CacheKey(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Matchmaker owns one chat session: the query cache, the call throttle,
// the conversation transcript and feedback. Answers for repeated queries
// are served from the cache without touching the external agent.
type Matchmaker struct {
	agent      Agent
	throttle   *Throttle
	maxRetries int
	maxEntries int

	mu       sync.Mutex
	cache    map[string]string
	order    []string // insertion order, for FIFO eviction
	turns    []model.Turn
	feedback []model.Feedback

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	// injectable for tests
	sleep func(time.Duration)
}

// NewMatchmaker creates a session around the given agent.
// maxEntries bounds the cache; zero means unbounded.
func NewMatchmaker(agent Agent, throttle *Throttle, maxRetries, maxEntries int) *Matchmaker {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Matchmaker{
		agent:      agent,
		throttle:   throttle,
		maxRetries: maxRetries,
		maxEntries: maxEntries,
		cache:      make(map[string]string),
		sleep:      time.Sleep,
	}
}

// Search answers a natural-language property query.
//
// Cache hits return immediately with no external call. On a miss the
// throttle is acquired once, then the agent is invoked up to maxRetries
// times: rate-limit failures back off and retry, any other failure is
// returned to the caller. When all retries are consumed the sentinel
// ExhaustedMessage is returned as a normal answer.
func (m *Matchmaker) Search(ctx context.Context, query string, onEvent AgentEventFunc) (*model.ChatResponse, error) {
	start := time.Now()
	key := CacheKey(query)

	if answer, ok := m.lookup(key); ok {
		log.Printf("✅ Returning cached result (no API call used)")
		m.record(query, answer, true)
		emit(onEvent, "cache", map[string]any{"hit": true})
		return &model.ChatResponse{
			Answer: answer,
			Cached: true,
			Took:   time.Since(start).Milliseconds(),
		}, nil
	}
	m.misses.Add(1)

	emit(onEvent, "throttle", nil)
	m.throttle.Acquire()

	instruction := searchPreamble + "\n\nUser Request: " + query

	for attempt := 1; attempt <= m.maxRetries; attempt++ {
		emit(onEvent, "attempt", map[string]any{"attempt": attempt, "max": m.maxRetries})

		answer, err := m.agent.Run(ctx, instruction, onEvent)
		if err == nil {
			m.store(key, answer)
			m.record(query, answer, false)
			return &model.ChatResponse{
				Answer: answer,
				Cached: false,
				Took:   time.Since(start).Milliseconds(),
			}, nil
		}

		if !IsRateLimited(err) {
			return nil, err
		}

		log.Printf("⚠️ Attempt %d/%d rate limited: %v", attempt, m.maxRetries, err)
		if attempt < m.maxRetries {
			wait := time.Duration(attempt) * backoffStep
			log.Printf("⏳ Rate limited. Waiting %.0fs...", wait.Seconds())
			emit(onEvent, "backoff", map[string]any{"seconds": wait.Seconds()})
			m.sleep(wait)
		}
	}

	m.record(query, ExhaustedMessage, false)
	return &model.ChatResponse{
		Answer: ExhaustedMessage,
		Cached: false,
		Took:   time.Since(start).Milliseconds(),
	}, nil
}

// lookup returns the cached answer for a key, counting the hit
func (m *Matchmaker) lookup(key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	answer, ok := m.cache[key]
	if ok {
		m.hits.Add(1)
	}
	return answer, ok
}

// store caches an answer, evicting the oldest entry when full
func (m *Matchmaker) store(key, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cache[key]; !exists {
		if m.maxEntries > 0 && len(m.order) >= m.maxEntries {
			oldest := m.order[0]
			m.order = m.order[1:]
			delete(m.cache, oldest)
			m.evictions.Add(1)
		}
		m.order = append(m.order, key)
	}
	m.cache[key] = answer
}

// record appends a user/assistant turn pair to the session transcript
func (m *Matchmaker) record(query, answer string, cached bool) {
	now := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns,
		model.Turn{Role: "user", Content: query, Timestamp: now},
		model.Turn{Role: "assistant", Content: answer, Cached: cached, Timestamp: now},
	)
}

// History returns a copy of the session transcript
func (m *Matchmaker) History() []model.Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	turns := make([]model.Turn, len(m.turns))
	copy(turns, m.turns)
	return turns
}

// AddFeedback stores user feedback for the session
func (m *Matchmaker) AddFeedback(fb model.Feedback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.feedback = append(m.feedback, fb)
}

// Stats returns cache performance counters
func (m *Matchmaker) Stats() model.CacheStats {
	m.mu.Lock()
	entries := len(m.cache)
	m.mu.Unlock()
	return model.CacheStats{
		Entries:   entries,
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Evictions: m.evictions.Load(),
	}
}

// emit calls the event callback when one is set, ignoring its error:
// progress events are advisory and must not abort a search
func emit(onEvent AgentEventFunc, event string, data any) {
	if onEvent == nil {
		return
	}
	if err := onEvent(event, data); err != nil {
		log.Printf("Warning: event callback failed: %v", err)
	}
}
