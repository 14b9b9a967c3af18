package circuit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type BreakerSuite struct {
	suite.Suite
	now time.Time
}

func TestBreakerSuite(t *testing.T) {
	suite.Run(t, new(BreakerSuite))
}

func (s *BreakerSuite) SetupTest() {
	s.now = time.Unix(1_700_000_000, 0)
}

func (s *BreakerSuite) newBreaker(opts ...Option) *Breaker {
	opts = append([]Option{WithClock(func() time.Time { return s.now })}, opts...)
	return New("redis-state", opts...)
}

func (s *BreakerSuite) TestStartsClosed() {
	b := s.newBreaker()
	s.Equal(StateClosed, b.State())
	s.Equal("redis-state", b.Name())
	s.True(b.Allow())
}

func (s *BreakerSuite) TestOpensOnConsecutiveFailures() {
	b := s.newBreaker(WithFailureThreshold(3))

	for range 2 {
		useFallback, change := b.RecordFailure()
		s.False(useFallback)
		s.False(change.Opened)
	}
	useFallback, change := b.RecordFailure()
	s.True(useFallback)
	s.True(change.Opened)
	s.True(b.IsOpen())

	// Further failures while open are not new transitions.
	useFallback, change = b.RecordFailure()
	s.True(useFallback)
	s.False(change.Opened)
}

func (s *BreakerSuite) TestSuccessBetweenFailuresKeepsClosed() {
	b := s.newBreaker(WithFailureThreshold(2))

	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	s.False(b.IsOpen(), "failures were not consecutive")

	b.RecordFailure()
	s.True(b.IsOpen())
}

func (s *BreakerSuite) TestClosesAfterConsecutiveProbeSuccesses() {
	b := s.newBreaker(WithFailureThreshold(1), WithSuccessThreshold(3))
	b.RecordFailure()

	b.RecordSuccess()
	b.RecordSuccess()
	b.RecordFailure() // a failed probe restarts the count
	usePrimary, change := b.RecordSuccess()
	s.False(usePrimary)
	s.False(change.Closed)

	b.RecordSuccess()
	usePrimary, change = b.RecordSuccess()
	s.True(usePrimary)
	s.True(change.Closed)
	s.Equal(StateClosed, b.State())
}

func (s *BreakerSuite) TestProbesAreThrottledWhileOpen() {
	b := s.newBreaker(WithFailureThreshold(1), WithCooldown(time.Second))
	b.RecordFailure()

	s.False(b.Allow(), "no probe inside cooldown")
	s.now = s.now.Add(999 * time.Millisecond)
	s.False(b.Allow())
	s.now = s.now.Add(time.Millisecond)
	s.True(b.Allow(), "one probe once cooldown elapsed")
	s.False(b.Allow(), "next probe waits another cooldown")
}

func (s *BreakerSuite) TestReset() {
	b := s.newBreaker(WithFailureThreshold(1))
	b.RecordFailure()
	b.Reset()

	s.False(b.IsOpen())
	s.True(b.Allow())
}

func (s *BreakerSuite) TestIgnoresNonPositiveOptions() {
	b := s.newBreaker(WithFailureThreshold(0), WithSuccessThreshold(-1), WithCooldown(-time.Second))
	s.Equal(defaultFailureThreshold, b.failureThreshold)
	s.Equal(defaultSuccessThreshold, b.successThreshold)
	s.Equal(defaultCooldown, b.cooldown)
}

func TestBreaker_ConcurrentRecords(t *testing.T) {
	b := New("concurrent", WithFailureThreshold(50))

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
			b.Allow()
		}()
	}
	wg.Wait()

	assert.True(t, b.IsOpen())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
}
