package service

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/deskflow/service-desk/internal/domain"
)

// AssignmentPolicy chooses the agent a new ticket is routed to. It returns
// nil when the pool is empty.
type AssignmentPolicy interface {
	SelectAgent(agents []domain.Agent, openCounts map[int64]int) *domain.Agent
}

// LeastLoadedPolicy picks the agent with the fewest OPEN tickets. Ties are
// broken uniformly at random among every agent sharing the minimum.
type LeastLoadedPolicy struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLeastLoadedPolicy creates the policy. A nil rng is seeded from the clock.
func NewLeastLoadedPolicy(rng *rand.Rand) *LeastLoadedPolicy {
	if rng == nil {
		seed := uint64(time.Now().UnixNano())
		rng = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &LeastLoadedPolicy{rng: rng}
}

// SelectAgent implements AssignmentPolicy. Agents missing from openCounts
// have no open tickets.
func (p *LeastLoadedPolicy) SelectAgent(agents []domain.Agent, openCounts map[int64]int) *domain.Agent {
	if len(agents) == 0 {
		return nil
	}

	minimum := -1
	var candidates []int
	for i := range agents {
		count := openCounts[agents[i].ID]
		switch {
		case minimum < 0 || count < minimum:
			minimum = count
			candidates = append(candidates[:0], i)
		case count == minimum:
			candidates = append(candidates, i)
		}
	}

	pick := candidates[0]
	if len(candidates) > 1 {
		p.mu.Lock()
		pick = candidates[p.rng.IntN(len(candidates))]
		p.mu.Unlock()
	}
	chosen := agents[pick]
	return &chosen
}
