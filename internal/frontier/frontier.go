package frontier

import (
	"sync"

	"github.com/rohmanhakim/scoutly/internal/config"
	"github.com/rohmanhakim/scoutly/pkg/urlutil"
)

/*
Responsibilities
- Maintain BFS ordering across discovery depths
- Deduplicate URLs by link-equivalence, across the whole crawl lifetime
- Enforce MaxDepth and MaxPages admission limits
- Knows nothing about fetching, extraction, or validation

It is a data structure + admission policy module, not a pipeline executor:
every candidate handed to Submit is already robots/scope-checked by the
Crawl Engine.
*/

// CrawlFrontier is the BFS frontier: one FIFO queue per discovery depth,
// drained from the shallowest non-empty depth first, plus a visited set
// keyed by link-equivalence so a URL is ever enqueued once.
type CrawlFrontier struct {
	mu            sync.Mutex
	cfg           config.Config
	queuesByDepth map[int]*FIFOQueue[CrawlToken]
	visited       Set[string]
	maxSeenDepth  int
}

func NewCrawlFrontier() *CrawlFrontier {
	return &CrawlFrontier{
		queuesByDepth: make(map[int]*FIFOQueue[CrawlToken]),
		visited:       NewSet[string](),
		maxSeenDepth:  -1,
	}
}

func (f *CrawlFrontier) Init(cfg config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
}

// Submit admits candidate into the frontier, or silently drops it when it
// exceeds MaxDepth, has already been visited, or MaxPages has been reached.
// A dropped candidate is never an error: rejection here is routine crawl
// scoping, not a failure condition. The returned bool reports whether the
// candidate was admitted, so a caller tracking in-flight work (the Crawl
// Engine's quiescence counter) knows whether to expect a matching Dequeue.
func (f *CrawlFrontier) Submit(candidate CrawlAdmissionCandidate) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	depth := candidate.DiscoveryMetadata().Depth()
	if depth > f.cfg.MaxDepth() {
		return false
	}

	key := urlutil.LinkEquivalenceKey(candidate.TargetURL(), f.cfg.KeepFragments())
	if f.visited.Contains(key) {
		return false
	}

	if maxPages := f.cfg.MaxPages(); maxPages > 0 && f.visited.Size() >= maxPages {
		return false
	}

	f.visited.Add(key)

	queue, exists := f.queuesByDepth[depth]
	if !exists {
		queue = NewFIFOQueue[CrawlToken]()
		f.queuesByDepth[depth] = queue
	}
	queue.Enqueue(NewCrawlToken(candidate.TargetURL(), depth, candidate.DiscoveryMetadata().DelayOverride()))

	if depth > f.maxSeenDepth {
		f.maxSeenDepth = depth
	}

	return true
}

// Dequeue returns the next token in strict BFS order: the shallowest depth
// that still has a pending entry, regardless of whether intermediate
// depths were ever populated.
func (f *CrawlFrontier) Dequeue() (CrawlToken, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for depth := 0; depth <= f.maxSeenDepth; depth++ {
		queue, exists := f.queuesByDepth[depth]
		if !exists {
			continue
		}
		if token, ok := queue.Dequeue(); ok {
			return token, true
		}
	}

	var zero CrawlToken
	return zero, false
}

// IsDepthExhausted reports whether depth has no pending entries left. A
// depth that was never populated, or a negative depth, is exhausted.
func (f *CrawlFrontier) IsDepthExhausted(depth int) bool {
	if depth < 0 {
		return true
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	queue, exists := f.queuesByDepth[depth]
	return !exists || queue.Size() == 0
}

// CurrentMinDepth returns the shallowest depth with a pending entry, or -1
// when the frontier is empty.
func (f *CrawlFrontier) CurrentMinDepth() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	for depth := 0; depth <= f.maxSeenDepth; depth++ {
		queue, exists := f.queuesByDepth[depth]
		if exists && queue.Size() > 0 {
			return depth
		}
	}
	return -1
}

// VisitedCount is the number of unique URLs ever admitted, including ones
// already dequeued: the visited set is append-only for the crawl's lifetime.
func (f *CrawlFrontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.visited.Size()
}
