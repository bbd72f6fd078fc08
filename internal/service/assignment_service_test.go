package service_test

import (
	"math/rand/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/deskflow/service-desk/internal/domain"
	"github.com/deskflow/service-desk/internal/service"
)

var _ = Describe("LeastLoadedPolicy", func() {
	var policy *service.LeastLoadedPolicy

	agents := func(ids ...int64) []domain.Agent {
		out := make([]domain.Agent, 0, len(ids))
		for _, id := range ids {
			out = append(out, domain.Agent{ID: id, Username: "agent"})
		}
		return out
	}

	BeforeEach(func() {
		policy = service.NewLeastLoadedPolicy(rand.New(rand.NewPCG(7, 11)))
	})

	It("returns nil for an empty pool", func() {
		Expect(policy.SelectAgent(nil, map[int64]int{})).To(BeNil())
	})

	It("returns the only agent", func() {
		chosen := policy.SelectAgent(agents(5), map[int64]int{5: 40})
		Expect(chosen.ID).To(Equal(int64(5)))
	})

	It("prefers the agent with the fewest open tickets", func() {
		chosen := policy.SelectAgent(agents(1, 2, 3), map[int64]int{1: 3, 2: 0, 3: 1})
		Expect(chosen.ID).To(Equal(int64(2)))
	})

	It("treats agents without an entry as having no open tickets", func() {
		chosen := policy.SelectAgent(agents(1, 2), map[int64]int{1: 1})
		Expect(chosen.ID).To(Equal(int64(2)))
	})

	It("spreads ties evenly across every tied agent", func() {
		pool := agents(1, 2, 3, 4)
		counts := map[int64]int{1: 2, 2: 2, 3: 2, 4: 9}
		picks := map[int64]int{}
		const rounds = 6000
		for i := 0; i < rounds; i++ {
			picks[policy.SelectAgent(pool, counts).ID]++
		}

		Expect(picks).NotTo(HaveKey(int64(4)))
		for _, id := range []int64{1, 2, 3} {
			Expect(picks[id]).To(BeNumerically("~", rounds/3, rounds/10))
		}
	})

	It("returns a copy of the chosen agent", func() {
		pool := agents(1)
		chosen := policy.SelectAgent(pool, nil)
		chosen.Username = "changed"
		Expect(pool[0].Username).To(Equal("agent"))
	})
})
