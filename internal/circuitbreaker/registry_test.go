package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/circuit-breaker/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		var err error
		registry, err = circuitbreaker.NewRegistry(5, 30*time.Second)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		registry.StopAll()
	})

	Describe("NewRegistry", func() {
		It("should create a registry", func() {
			Expect(registry).NotTo(BeNil())
		})

		It("should reject a non-positive threshold", func() {
			_, err := circuitbreaker.NewRegistry(0, 30*time.Second)
			Expect(err).To(MatchError(circuitbreaker.ErrInvalidThreshold))
		})

		It("should reject a sub-second timeout", func() {
			_, err := circuitbreaker.NewRegistry(5, 100*time.Millisecond)
			Expect(err).To(MatchError(circuitbreaker.ErrInvalidTimeout))
		})
	})

	Describe("GetBreaker", func() {
		It("should create a new breaker for an unknown name", func() {
			cb := registry.GetBreaker("billing")
			Expect(cb).NotTo(BeNil())
			Expect(cb.IsClosed()).To(BeTrue())
		})

		It("should return the same breaker for the same name", func() {
			cb1 := registry.GetBreaker("billing")
			cb2 := registry.GetBreaker("billing")
			Expect(cb1).To(BeIdenticalTo(cb2))
		})

		It("should return different breakers for different names", func() {
			cb1 := registry.GetBreaker("billing")
			cb2 := registry.GetBreaker("accounts")
			Expect(cb1).NotTo(BeIdenticalTo(cb2))
		})

		It("should use the registry threshold for new breakers", func() {
			var err error
			registry.StopAll()
			registry, err = circuitbreaker.NewRegistry(2, time.Second)
			Expect(err).NotTo(HaveOccurred())

			cb := registry.GetBreaker("billing")
			cb.OperationFailed()
			Expect(cb.IsClosed()).To(BeTrue())
			cb.OperationFailed()
			Expect(cb.IsOpen()).To(BeTrue())
		})

		It("should be safe under concurrent access", func() {
			var wg sync.WaitGroup
			results := make([]*circuitbreaker.CircuitBreaker, 20)

			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func(idx int) {
					defer wg.Done()
					results[idx] = registry.GetBreaker("billing")
				}(i)
			}
			wg.Wait()

			for _, cb := range results {
				Expect(cb).To(BeIdenticalTo(results[0]))
			}
		})
	})

	Describe("Stats", func() {
		It("should report the state of every breaker", func() {
			registry.GetBreaker("billing")
			registry.GetBreaker("accounts")

			stats := registry.Stats()
			Expect(stats).To(HaveLen(2))
			Expect(stats["billing"]).To(Equal(circuitbreaker.StateClosed))
			Expect(stats["accounts"]).To(Equal(circuitbreaker.StateClosed))
		})

		It("should reflect a tripped breaker", func() {
			var err error
			registry.StopAll()
			registry, err = circuitbreaker.NewRegistry(1, time.Second)
			Expect(err).NotTo(HaveOccurred())

			registry.GetBreaker("billing").OperationFailed()
			Expect(registry.Stats()["billing"]).To(Equal(circuitbreaker.StateOpen))
		})
	})

	Describe("StopAll", func() {
		It("should empty the registry", func() {
			registry.GetBreaker("billing")
			registry.StopAll()
			Expect(registry.Stats()).To(BeEmpty())
		})

		It("should hand out fresh breakers afterwards", func() {
			cb1 := registry.GetBreaker("billing")
			registry.StopAll()
			cb2 := registry.GetBreaker("billing")
			Expect(cb1).NotTo(BeIdenticalTo(cb2))
		})
	})
})
