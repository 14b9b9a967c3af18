package validator_test

import (
	"context"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"travelguard/internal/state/store/memory"
	"travelguard/internal/topology"
	"travelguard/internal/validator"
	"travelguard/internal/validator/mocks"
	"travelguard/pkg/platform/sentinel"
)

type ValidatorSuite struct {
	suite.Suite
	now       time.Time
	store     *memory.InMemoryStore
	topology  *topology.Topology
	validator *validator.Validator
	ctx       context.Context
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	s.now = time.Unix(1_700_000_000, 0)
	s.store = memory.New(memory.WithClock(func() time.Time { return s.now }))
	s.topology = topology.Default(topology.WithLogger(discardLogger()))
	s.validator = s.newValidator(validator.DefaultConfig())
	s.ctx = context.Background()
}

func (s *ValidatorSuite) newValidator(cfg validator.Config, opts ...validator.Option) *validator.Validator {
	opts = append([]validator.Option{
		validator.WithConfig(cfg),
		validator.WithLogger(discardLogger()),
	}, opts...)
	v, err := validator.New(s.store, s.topology, opts...)
	s.Require().NoError(err)
	return v
}

func (s *ValidatorSuite) validate(entity string, ts float64, zone string) validator.Decision {
	return s.validator.Validate(s.ctx, validator.LocationEvent{EntityID: entity, Timestamp: ts, Zone: zone})
}

func (s *ValidatorSuite) storedZone(entity string) string {
	st, ok := s.store.GetState(s.ctx, entity)
	s.Require().True(ok, "expected stored state for %s", entity)
	return st.Zone
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *ValidatorSuite) TestFirstObservation() {
	d := s.validate("S1", 100, "Zone_1")

	s.True(d.Accepted)
	s.Equal(validator.CodeFirstObservation, d.Code)
	s.Equal("Zone_1", s.storedZone("S1"))
}

func (s *ValidatorSuite) TestImpossibleTravelIsDebounced() {
	s.Run("default 30s threshold", func() {
		s.Equal(validator.CodeFirstObservation, s.validate("S1", 0, "Zone_1").Code)

		d := s.validate("S1", 10, "Zone_4")
		s.Equal(validator.CodeWarningPotentialViolation, d.Code)
		s.True(d.Accepted)
		s.InDelta(70.7, d.Velocity, 0.05)
		s.Equal("Zone_1", s.storedZone("S1"), "state is not moved while pending")

		s.Equal(validator.CodeWarningPendingViolation, s.validate("S1", 12, "Zone_4").Code)
		s.Equal(validator.CodeWarningPendingViolation, s.validate("S1", 36, "Zone_4").Code, "26s has not reached 30s")

		d = s.validate("S1", 40, "Zone_4")
		s.Equal(validator.CodeConfirmedViolation, d.Code)
		s.False(d.Accepted)
		s.True(d.IsAlert())
		s.Contains(d.Detail, "v=17.7 m/s")
		s.Equal("Zone_4", s.storedZone("S1"), "confirmed claim becomes the state")
		_, pending := s.store.GetViolation(s.ctx, "S1")
		s.False(pending, "record cleared on confirmation")
	})

	s.Run("5s threshold", func() {
		cfg := validator.DefaultConfig()
		cfg.DebounceThreshold = 5 * time.Second
		v := s.newValidator(cfg)

		steps := []struct {
			ts   float64
			zone string
			want Code
		}{
			{0, "Zone_1", validator.CodeFirstObservation},
			{10, "Zone_4", validator.CodeWarningPotentialViolation},
			{12, "Zone_4", validator.CodeWarningPendingViolation},
			{16, "Zone_4", validator.CodeConfirmedViolation},
		}
		for _, step := range steps {
			d := v.Validate(s.ctx, validator.LocationEvent{EntityID: "fast", Timestamp: step.ts, Zone: step.zone})
			s.Equal(step.want, d.Code, "t=%v", step.ts)
		}
	})

	s.Run("threshold reached exactly confirms", func() {
		cfg := validator.DefaultConfig()
		cfg.DebounceThreshold = 5 * time.Second
		v := s.newValidator(cfg)

		v.Validate(s.ctx, validator.LocationEvent{EntityID: "edge", Timestamp: 0, Zone: "Zone_1"})
		v.Validate(s.ctx, validator.LocationEvent{EntityID: "edge", Timestamp: 10, Zone: "Zone_4"})
		d := v.Validate(s.ctx, validator.LocationEvent{EntityID: "edge", Timestamp: 15, Zone: "Zone_4"})
		s.Equal(validator.CodeConfirmedViolation, d.Code)
	})
}

func (s *ValidatorSuite) TestSingleImplausibleEventNeverConfirms() {
	s.validate("S1", 0, "Zone_1")
	for i := range 20 {
		// Each attempt is well inside the threshold of the first.
		d := s.validate("S1", 1+float64(i), "Zone_4")
		s.NotEqual(validator.CodeConfirmedViolation, d.Code)
		s.True(d.Accepted)
	}
}

func (s *ValidatorSuite) TestSelfHealing() {
	s.validate("S1", 0, "Zone_1")
	s.Equal(validator.CodeWarningPotentialViolation, s.validate("S1", 10, "Zone_4").Code)

	d := s.validate("S1", 40, "Zone_2")
	s.Equal(validator.CodeValidTransition, d.Code, "100m in 40s is plausible")
	_, pending := s.store.GetViolation(s.ctx, "S1")
	s.False(pending, "plausible event clears the pending record")
	s.Equal("Zone_2", s.storedZone("S1"))

	s.Equal(validator.CodeWarningPotentialViolation, s.validate("S1", 50, "Zone_4").Code,
		"a new jump starts a fresh debounce instead of continuing the old one")
}

func (s *ValidatorSuite) TestConflictResolution() {
	s.Run("higher weight wins in either order", func() {
		orders := [][2]string{{"Library", "Lab"}, {"Lab", "Library"}}
		for i, order := range orders {
			entity := []string{"S2a", "S2b"}[i]
			first := s.validate(entity, 100.0, order[0])
			second := s.validate(entity, 100.1, order[1])

			s.Equal(validator.CodeFirstObservation, first.Code)
			s.Equal("Lab", s.storedZone(entity), "order %v", order)
			if order[1] == "Library" {
				s.Equal(validator.CodeConflictResolvedIgnored, second.Code)
			} else {
				s.Equal(validator.CodeValidTransition, second.Code)
			}
			s.True(second.Accepted)
		}
	})

	s.Run("tie keeps prior", func() {
		s.validate("tie", 0, "Library")
		d := s.validate("tie", 0.2, "Main Hall")
		s.Equal(validator.CodeConflictResolvedIgnored, d.Code)
		s.Equal("Library", s.storedZone("tie"))
	})

	s.Run("winner keeps latest timestamp", func() {
		s.validate("late", 10.3, "Library")
		s.validate("late", 10.0, "Lab")
		st, ok := s.store.GetState(s.ctx, "late")
		s.Require().True(ok)
		s.Equal("Lab", st.Zone)
		s.Equal(10.3, st.Timestamp)
	})

	s.Run("window edge is simultaneous", func() {
		s.validate("edge", 0, "Library")
		d := s.validate("edge", 0.5, "Lab")
		s.Equal(validator.CodeValidTransition, d.Code)
		s.Contains(d.Detail, "conflict resolved")
	})
}

func (s *ValidatorSuite) TestIdempotence() {
	first := s.validate("S1", 100, "Zone_1")
	before, _ := s.store.GetState(s.ctx, "S1")
	second := s.validate("S1", 100, "Zone_1")
	after, _ := s.store.GetState(s.ctx, "S1")

	s.Equal(validator.CodeFirstObservation, first.Code)
	s.Equal(validator.CodeDuplicate, second.Code)
	s.True(second.Accepted)
	s.Equal(before, after)
}

func (s *ValidatorSuite) TestLateEventsKeepState() {
	s.validate("S1", 100, "Zone_1")

	s.Run("same zone is a duplicate", func() {
		d := s.validate("S1", 50, "Zone_1")
		s.Equal(validator.CodeDuplicate, d.Code)
		s.True(d.Accepted)
		s.Contains(d.Detail, "stale")
	})

	s.Run("heavier zone is still ignored", func() {
		d := s.validate("S1", 50, "Zone_2")
		s.Equal(validator.CodeConflictResolvedIgnored, d.Code)
		s.True(d.Accepted)
		s.Contains(d.Detail, "stale: older than stored state")
	})

	s.Run("distant zone opens no violation", func() {
		d := s.validate("S1", 50, "Zone_4")
		s.Equal(validator.CodeConflictResolvedIgnored, d.Code)
		_, pending := s.store.GetViolation(s.ctx, "S1")
		s.False(pending)
	})

	st, ok := s.store.GetState(s.ctx, "S1")
	s.Require().True(ok)
	s.Equal("Zone_1", st.Zone)
	s.Equal(100.0, st.Timestamp)
}

func (s *ValidatorSuite) TestStateExpiresAfterInactivity() {
	s.validate("S1", 100, "Zone_1")

	s.now = s.now.Add(validator.DefaultStateTTL)
	_, ok := s.store.GetState(s.ctx, "S1")
	s.False(ok)

	s.Equal(validator.CodeFirstObservation, s.validate("S1", 1400, "Zone_4").Code)
}

func (s *ValidatorSuite) TestAcceptedTransitionRenewsTTL() {
	s.validate("S1", 0, "Zone_1")
	s.now = s.now.Add(validator.DefaultStateTTL - time.Minute)
	s.Equal(validator.CodeValidTransition, s.validate("S1", 60, "Zone_1").Code)
	s.now = s.now.Add(validator.DefaultStateTTL - time.Minute)

	_, ok := s.store.GetState(s.ctx, "S1")
	s.True(ok)
}

func (s *ValidatorSuite) TestInvalidFormat() {
	nan := math.NaN()
	tooConfident := 1.5
	tests := []struct {
		name string
		ev   validator.LocationEvent
	}{
		{"missing entity", validator.LocationEvent{Timestamp: 1, Zone: "Zone_1"}},
		{"blank entity", validator.LocationEvent{EntityID: "  ", Timestamp: 1, Zone: "Zone_1"}},
		{"missing zone", validator.LocationEvent{EntityID: "S1", Timestamp: 1}},
		{"nan timestamp", validator.LocationEvent{EntityID: "S1", Timestamp: nan, Zone: "Zone_1"}},
		{"infinite timestamp", validator.LocationEvent{EntityID: "S1", Timestamp: math.Inf(1), Zone: "Zone_1"}},
		{"confidence above one", validator.LocationEvent{EntityID: "S1", Timestamp: 1, Zone: "Zone_1", Confidence: &tooConfident}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			d := s.validator.Validate(s.ctx, tt.ev)
			s.Equal(validator.CodeInvalidFormat, d.Code)
			s.False(d.Accepted)
			s.NotEmpty(d.Detail)
		})
	}
	s.Zero(s.store.Len(), "malformed events never touch state")
}

func (s *ValidatorSuite) TestWhitespaceTrimmed() {
	s.validate(" S1 ", 1, " Zone_1 ")
	s.Equal("Zone_1", s.storedZone("S1"))
}

func (s *ValidatorSuite) TestConcurrentConflictsResolveDeterministically() {
	s.validate("S3", 100, "Corridor")

	var wg sync.WaitGroup
	for i := range 64 {
		zone := []string{"Library", "Lab", "Canteen", "Classroom"}[i%4]
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.validator.Validate(s.ctx, validator.LocationEvent{EntityID: "S3", Timestamp: 100.2, Zone: zone})
		}()
	}
	wg.Wait()

	s.Equal("Lab", s.storedZone("S3"), "heaviest zone wins regardless of interleaving")
}

func (s *ValidatorSuite) TestEntitiesIndependent() {
	s.validate("A", 0, "Zone_1")
	s.validate("B", 0, "Zone_1")
	s.Equal(validator.CodeWarningPotentialViolation, s.validate("A", 10, "Zone_4").Code)
	s.Equal(validator.CodeValidTransition, s.validate("B", 10, "Zone_1").Code)
	s.Equal(validator.CodeWarningPotentialViolation, s.validate("B", 20, "Zone_4").Code,
		"B starts its own debounce, not A's")
}

// Any sequential pair whose implied speed is within bounds is accepted.
func TestPlausibilityInvariant(t *testing.T) {
	topo := topology.Default(topology.WithLogger(discardLogger()))
	zones := topo.Zones()
	rng := rand.New(rand.NewPCG(7, 11))

	for i := range 500 {
		store := memory.New()
		v, err := validator.New(store, topo, validator.WithLogger(discardLogger()))
		require.NoError(t, err)

		from := zones[rng.IntN(len(zones))]
		to := zones[rng.IntN(len(zones))]
		minDt := topo.Distance(from, to) / validator.DefaultMaxVelocity
		dt := math.Max(minDt, validator.DefaultConflictWindow.Seconds()+0.01) + rng.Float64()*100

		t0 := 1000 + rng.Float64()*1000
		first := v.Validate(context.Background(), validator.LocationEvent{EntityID: "p", Timestamp: t0, Zone: from})
		second := v.Validate(context.Background(), validator.LocationEvent{EntityID: "p", Timestamp: t0 + dt, Zone: to})

		assert.Equal(t, validator.CodeFirstObservation, first.Code, "case %d", i)
		assert.Equal(t, validator.CodeValidTransition, second.Code, "case %d: %s -> %s in %.2fs", i, from, to, dt)
		assert.LessOrEqual(t, second.Velocity, validator.DefaultMaxVelocity+1e-9)
	}
}

func TestValidator_PublishesEveryDecision(t *testing.T) {
	ctrl := gomock.NewController(t)
	publisher := mocks.NewMockDecisionPublisher(ctrl)

	v, err := validator.New(memory.New(), topology.Default(), validator.WithPublisher(publisher), validator.WithLogger(discardLogger()))
	require.NoError(t, err)

	gomock.InOrder(
		publisher.EXPECT().Publish(gomock.Any(), gomock.Cond(func(d validator.Decision) bool {
			return d.Code == validator.CodeFirstObservation && d.EntityID == "S1"
		})),
		publisher.EXPECT().Publish(gomock.Any(), gomock.Cond(func(d validator.Decision) bool {
			return d.Code == validator.CodeInvalidFormat
		})),
	)

	v.Validate(context.Background(), validator.LocationEvent{EntityID: "S1", Timestamp: 1, Zone: "Zone_1"})
	v.Validate(context.Background(), validator.LocationEvent{Timestamp: 1, Zone: "Zone_1"})
}

func TestValidator_RecoversFromPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	topo := mocks.NewMockTopology(ctrl)
	topo.EXPECT().Weight(gomock.Any()).DoAndReturn(func(string) float64 {
		panic("weight table corrupted")
	}).AnyTimes()

	store := memory.New()
	v, err := validator.New(store, topo, validator.WithLogger(discardLogger()))
	require.NoError(t, err)

	v.Validate(context.Background(), validator.LocationEvent{EntityID: "S1", Timestamp: 1, Zone: "A"})

	var d validator.Decision
	require.NotPanics(t, func() {
		d = v.Validate(context.Background(), validator.LocationEvent{EntityID: "S1", Timestamp: 1.1, Zone: "B"})
	})
	assert.Equal(t, validator.CodeInvalidFormat, d.Code)
	assert.Contains(t, d.Detail, "weight table corrupted")

	// The entity lock was released.
	d = v.Validate(context.Background(), validator.LocationEvent{EntityID: "S1", Timestamp: 1, Zone: "A"})
	assert.Equal(t, validator.CodeDuplicate, d.Code)
}

type panickingPublisher struct{}

func (panickingPublisher) Publish(context.Context, validator.Decision) {
	panic("sink unreachable")
}

func TestValidator_PublisherPanicIsContained(t *testing.T) {
	store := memory.New()
	v, err := validator.New(store, topology.Default(), validator.WithPublisher(panickingPublisher{}), validator.WithLogger(discardLogger()))
	require.NoError(t, err)

	var d validator.Decision
	require.NotPanics(t, func() {
		d = v.Validate(context.Background(), validator.LocationEvent{EntityID: "S1", Timestamp: 1, Zone: "Zone_1"})
	})
	assert.Equal(t, validator.CodeFirstObservation, d.Code)
	assert.True(t, d.Accepted)

	_, ok := store.GetState(context.Background(), "S1")
	assert.True(t, ok, "the decision was committed before publishing")

	require.NotPanics(t, func() {
		d = v.Validate(context.Background(), validator.LocationEvent{EntityID: "S1", Timestamp: 1, Zone: "Zone_1"})
	})
	assert.Equal(t, validator.CodeDuplicate, d.Code)
}

func TestNew_Validation(t *testing.T) {
	_, err := validator.New(nil, topology.Default())
	require.Error(t, err)

	_, err = validator.New(memory.New(), nil)
	require.Error(t, err)

	cfg := validator.DefaultConfig()
	cfg.ViolationTTL = 10 * time.Second
	_, err = validator.New(memory.New(), topology.Default(), validator.WithConfig(cfg))
	require.ErrorIs(t, err, sentinel.ErrInvalidConfig)
}

func TestConfig_Validate(t *testing.T) {
	mutate := map[string]func(*validator.Config){
		"negative window":         func(c *validator.Config) { c.ConflictWindow = -time.Second },
		"zero velocity":           func(c *validator.Config) { c.MaxVelocity = 0 },
		"nan velocity":            func(c *validator.Config) { c.MaxVelocity = math.NaN() },
		"zero debounce":           func(c *validator.Config) { c.DebounceThreshold = 0 },
		"zero state ttl":          func(c *validator.Config) { c.StateTTL = 0 },
		"violation ttl too short": func(c *validator.Config) { c.ViolationTTL = c.DebounceThreshold - time.Second },
		"window reaches debounce": func(c *validator.Config) { c.ConflictWindow = c.DebounceThreshold },
	}
	for name, fn := range mutate {
		t.Run(name, func(t *testing.T) {
			cfg := validator.DefaultConfig()
			fn(&cfg)
			assert.ErrorIs(t, cfg.Validate(), sentinel.ErrInvalidConfig)
		})
	}
	assert.NoError(t, validator.DefaultConfig().Validate())
}
