package circuitbreaker_test

import (
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/circuit-breaker/internal/circuitbreaker"
)

var _ = Describe("CircuitBreaker", func() {
	var cb *circuitbreaker.CircuitBreaker

	AfterEach(func() {
		if cb != nil {
			cb.Stop()
		}
	})

	Describe("New", func() {
		It("should create a breaker in closed state", func() {
			var err error
			cb, err = circuitbreaker.New(5, 30*time.Second)
			Expect(err).NotTo(HaveOccurred())
			Expect(cb.IsClosed()).To(BeTrue())
			Expect(cb.IsOpen()).To(BeFalse())
			Expect(cb.IsHalfOpen()).To(BeFalse())
			Expect(cb.Failures()).To(Equal(0))
		})

		It("should reject a zero threshold", func() {
			_, err := circuitbreaker.New(0, 30*time.Second)
			Expect(err).To(MatchError(circuitbreaker.ErrInvalidThreshold))
		})

		It("should reject a negative threshold", func() {
			_, err := circuitbreaker.New(-1, 30*time.Second)
			Expect(err).To(MatchError(circuitbreaker.ErrInvalidThreshold))
		})

		It("should reject a sub-second timeout", func() {
			_, err := circuitbreaker.New(5, 500*time.Millisecond)
			Expect(err).To(MatchError(circuitbreaker.ErrInvalidTimeout))
		})

		It("should reject a zero timeout", func() {
			_, err := circuitbreaker.New(5, 0)
			Expect(err).To(MatchError(circuitbreaker.ErrInvalidTimeout))
		})

		It("should truncate the timeout to whole seconds", func() {
			var err error
			cb, err = circuitbreaker.New(5, 1500*time.Millisecond)
			Expect(err).NotTo(HaveOccurred())
			Expect(cb).NotTo(BeNil())
		})
	})

	Describe("CLOSED state", func() {
		BeforeEach(func() {
			var err error
			cb, err = circuitbreaker.New(3, time.Second)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should keep the failure count at zero across successes", func() {
			for i := 0; i < 10; i++ {
				cb.OperationSucceeded()
			}
			Expect(cb.Failures()).To(Equal(0))
			Expect(cb.IsClosed()).To(BeTrue())
		})

		It("should count failures below the threshold without tripping", func() {
			cb.OperationFailed()
			cb.OperationFailed()
			Expect(cb.Failures()).To(Equal(2))
			Expect(cb.IsClosed()).To(BeTrue())
		})

		It("should reset the count on success", func() {
			cb.OperationFailed()
			cb.OperationFailed()
			cb.OperationSucceeded()
			Expect(cb.Failures()).To(Equal(0))

			// One more failure should not trip
			cb.OperationFailed()
			Expect(cb.IsClosed()).To(BeTrue())
		})

		It("should trip to OPEN when failures reach the threshold", func() {
			cb.OperationFailed()
			cb.OperationFailed()
			cb.OperationFailed()
			Expect(cb.IsOpen()).To(BeTrue())
			Expect(cb.IsClosed()).To(BeFalse())
		})

		It("should reset the failure count when tripping", func() {
			cb.OperationFailed()
			cb.OperationFailed()
			cb.OperationFailed()
			Expect(cb.Failures()).To(Equal(0))
		})

		It("should raise the Open notification exactly once", func() {
			var opened atomic.Int32
			cb.OnOpen(func() { opened.Add(1) })

			cb.OperationFailed()
			cb.OperationFailed()
			cb.OperationFailed()
			Expect(opened.Load()).To(Equal(int32(1)))
		})
	})

	Describe("OPEN state", func() {
		var opened, closed, halfOpened atomic.Int32

		BeforeEach(func() {
			var err error
			cb, err = circuitbreaker.New(3, 2*time.Second)
			Expect(err).NotTo(HaveOccurred())

			opened.Store(0)
			closed.Store(0)
			halfOpened.Store(0)
			cb.OnOpen(func() { opened.Add(1) })
			cb.OnClosed(func() { closed.Add(1) })
			cb.OnHalfOpen(func() { halfOpened.Add(1) })

			cb.OperationFailed()
			cb.OperationFailed()
			cb.OperationFailed()
			Expect(cb.IsOpen()).To(BeTrue())
		})

		It("should ignore reported outcomes", func() {
			for i := 0; i < 5; i++ {
				cb.OperationSucceeded()
				cb.OperationFailed()
			}
			Expect(cb.IsOpen()).To(BeTrue())
			Expect(opened.Load()).To(Equal(int32(1)))
			Expect(closed.Load()).To(Equal(int32(0)))
		})

		It("should stay OPEN before the timeout elapses", func() {
			Consistently(cb.IsOpen, 1200*time.Millisecond, 100*time.Millisecond).Should(BeTrue())
			Expect(halfOpened.Load()).To(Equal(int32(0)))
		})

		It("should transition to HALF-OPEN after the timeout", func() {
			Eventually(cb.IsHalfOpen, 4*time.Second, 50*time.Millisecond).Should(BeTrue())
			Expect(halfOpened.Load()).To(Equal(int32(1)))
		})
	})

	Describe("HALF-OPEN state", func() {
		BeforeEach(func() {
			var err error
			cb, err = circuitbreaker.New(3, time.Second)
			Expect(err).NotTo(HaveOccurred())

			cb.OperationFailed()
			cb.OperationFailed()
			cb.OperationFailed()
			Eventually(cb.IsHalfOpen, 3*time.Second, 50*time.Millisecond).Should(BeTrue())
		})

		It("should close on a successful probe", func() {
			var closes atomic.Int32
			cb.OnClosed(func() { closes.Add(1) })

			cb.OperationSucceeded()
			Expect(cb.IsClosed()).To(BeTrue())
			Expect(cb.Failures()).To(Equal(0))
			Expect(closes.Load()).To(Equal(int32(1)))
		})

		It("should re-trip on a failed probe", func() {
			var opens atomic.Int32
			cb.OnOpen(func() { opens.Add(1) })

			cb.OperationFailed()
			Expect(cb.IsOpen()).To(BeTrue())
			Expect(opens.Load()).To(Equal(int32(1)))
		})

		It("should stay open for a full timeout after re-tripping", func() {
			cb.OperationFailed()
			Consistently(cb.IsOpen, 600*time.Millisecond, 100*time.Millisecond).Should(BeTrue())
			Eventually(cb.IsHalfOpen, 3*time.Second, 50*time.Millisecond).Should(BeTrue())
		})
	})

	Describe("concurrent failure reports", func() {
		It("should trip exactly once regardless of interleaving", func() {
			var err error
			cb, err = circuitbreaker.New(3, 30*time.Second)
			Expect(err).NotTo(HaveOccurred())

			var opens atomic.Int32
			cb.OnOpen(func() { opens.Add(1) })

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					cb.OperationFailed()
				}()
			}
			wg.Wait()

			Expect(cb.IsOpen()).To(BeTrue())
			Expect(opens.Load()).To(Equal(int32(1)))
		})
	})

	Describe("end to end", func() {
		It("should survive a full trip, probe and recovery cycle", func() {
			var err error
			cb, err = circuitbreaker.New(3, 2*time.Second)
			Expect(err).NotTo(HaveOccurred())

			// Three failures trip the circuit
			cb.OperationFailed()
			cb.OperationFailed()
			cb.OperationFailed()
			Expect(cb.IsOpen()).To(BeTrue())

			// Timeout leads to a probe window
			Eventually(cb.IsHalfOpen, 4*time.Second, 50*time.Millisecond).Should(BeTrue())

			// Successful probe fully resets
			cb.OperationSucceeded()
			Expect(cb.IsClosed()).To(BeTrue())
			Expect(cb.Failures()).To(Equal(0))

			// The next cycle is independent of the previous one
			cb.OperationFailed()
			cb.OperationFailed()
			Expect(cb.IsClosed()).To(BeTrue())
			cb.OperationFailed()
			Expect(cb.IsOpen()).To(BeTrue())
		})

		It("should fail fast with a threshold of one", func() {
			var err error
			cb, err = circuitbreaker.New(1, time.Second)
			Expect(err).NotTo(HaveOccurred())

			cb.OperationFailed()
			Expect(cb.IsOpen()).To(BeTrue())

			// A success while open is ignored
			cb.OperationSucceeded()
			Expect(cb.IsOpen()).To(BeTrue())
		})
	})

	Describe("State.String", func() {
		It("should return the canonical names", func() {
			Expect(circuitbreaker.StateClosed.String()).To(Equal("CLOSED"))
			Expect(circuitbreaker.StateOpen.String()).To(Equal("OPEN"))
			Expect(circuitbreaker.StateHalfOpen.String()).To(Equal("HALF-OPEN"))
		})
	})
})
