package cache_test

import (
	"github.com/JoaquimCruz/Multicore-simulator/internal/cache"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("L1 Cache eviction sequencing", func() {
	var (
		c             *cache.Cache
		writtenBack   map[uint32]int32
		writebackSink cache.WritebackSink
	)

	BeforeEach(func() {
		c = cache.New(2)
		writtenBack = make(map[uint32]int32)
		writebackSink = func(addr uint32, value int32) {
			writtenBack[addr] = value
		}
	})

	When("a clean entry is evicted", func() {
		It("does not call the write-back sink", func() {
			c.Insert(10, 1, nil)
			c.Insert(20, 2, nil)
			c.Insert(30, 3, writebackSink) // evicts 10, clean

			Expect(writtenBack).To(BeEmpty())
		})
	})

	When("a dirty entry is evicted", func() {
		It("writes its current value back exactly once", func() {
			c.Insert(10, 1, nil)
			c.Update(10, 99, nil)
			c.Insert(20, 2, nil)
			c.Insert(30, 3, writebackSink) // LRU is 10, dirty

			Expect(writtenBack).To(HaveKeyWithValue(uint32(10), int32(99)))
			Expect(writtenBack).To(HaveLen(1))
		})
	})

	When("capacity is exceeded repeatedly", func() {
		It("never grows past its configured capacity", func() {
			for addr := uint32(0); addr < 50; addr++ {
				c.Insert(addr, int32(addr), writebackSink)
			}

			Expect(c.Len()).To(Equal(2))
		})
	})
})
