package idgen_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/deskflow/service-desk/internal/idgen"
)

var _ = Describe("Generators", func() {
	It("sequence starts after the seed and increments by one", func() {
		seq := idgen.NewSequence(41)
		Expect(seq.Next()).To(Equal(int64(42)))
		Expect(seq.Next()).To(Equal(int64(43)))
	})

	It("snowflake ids are strictly increasing", func() {
		gen, err := idgen.NewSnowflake(1)
		Expect(err).NotTo(HaveOccurred())
		prev := gen.Next()
		for i := 0; i < 100; i++ {
			next := gen.Next()
			Expect(next).To(BeNumerically(">", prev))
			prev = next
		}
	})

	It("rejects unknown strategies", func() {
		_, err := idgen.New("uuid", 0)
		Expect(err).To(HaveOccurred())
	})

	It("rejects out-of-range snowflake nodes", func() {
		_, err := idgen.New("snowflake", 5000)
		Expect(err).To(HaveOccurred())
	})
})
