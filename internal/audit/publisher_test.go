package audit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"travelguard/internal/audit"
	"travelguard/internal/audit/metrics"
	"travelguard/internal/audit/mocks"
	"travelguard/internal/audit/store/memory"
	"travelguard/internal/validator"
)

func decision(entity string, code validator.Code) validator.Decision {
	return validator.Decision{
		EntityID:  entity,
		Zone:      "Zone_1",
		Timestamp: 10,
		Accepted:  code != validator.CodeConfirmedViolation,
		Code:      code,
	}
}

func TestPublisher_SyncMode(t *testing.T) {
	ledger := memory.NewInMemoryStore()
	pub := audit.NewPublisher(ledger)
	defer pub.Close()

	pub.Publish(context.Background(), decision("badge-1", validator.CodeFirstObservation))

	recs, err := ledger.ListByEntity(context.Background(), "badge-1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, audit.CategoryDecision, recs[0].Category)
	assert.Equal(t, validator.CodeFirstObservation, recs[0].Decision.Code)
	assert.NotEqual(t, uuid.Nil, recs[0].ID)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	ledger := memory.NewInMemoryStore()
	pub := audit.NewPublisher(ledger, audit.WithAsyncBuffer(100))

	for range 10 {
		pub.Publish(context.Background(), decision("badge-1", validator.CodeValidTransition))
	}
	pub.Close()

	recs, err := ledger.ListByEntity(context.Background(), "badge-1")
	require.NoError(t, err)
	assert.Len(t, recs, 10, "all decisions should be drained on close")
}

func TestPublisher_AlertsOnlyConfirmedViolations(t *testing.T) {
	ctrl := gomock.NewController(t)
	alerts := mocks.NewMockSink(ctrl)
	ledger := memory.NewInMemoryStore()

	alerts.EXPECT().
		Publish(gomock.Any(), gomock.Cond(func(rec audit.Record) bool {
			return rec.Category == audit.CategoryAlert && rec.Decision.Code == validator.CodeConfirmedViolation
		})).
		Return(nil).
		Times(1)

	pub := audit.NewPublisher(ledger, audit.WithAlertSink(alerts))
	defer pub.Close()

	for _, code := range validator.Codes {
		pub.Publish(context.Background(), decision("badge-1", code))
	}

	recs, err := ledger.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, recs, len(validator.Codes))
}

func TestPublisher_SinkFailureIsAbsorbed(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	failing := audit.SinkFunc(func(context.Context, audit.Record) error {
		return errors.New("broker down")
	})

	pub := audit.NewPublisher(failing, audit.WithMetrics(m))
	defer pub.Close()

	assert.NotPanics(t, func() {
		pub.Publish(context.Background(), decision("badge-1", validator.CodeFirstObservation))
	})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failed.WithLabelValues(string(audit.CategoryDecision))))
}

func TestPublisher_BufferFull_DropsDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	ledger := memory.NewInMemoryStore()

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	blocking := audit.SinkFunc(func(ctx context.Context, rec audit.Record) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return ledger.Publish(ctx, rec)
	})

	pub := audit.NewPublisher(blocking, audit.WithAsyncBuffer(1), audit.WithMetrics(m))

	pub.Publish(context.Background(), decision("a", validator.CodeFirstObservation))
	<-started
	pub.Publish(context.Background(), decision("b", validator.CodeFirstObservation))
	pub.Publish(context.Background(), decision("c", validator.CodeFirstObservation))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped))

	close(release)
	pub.Close()

	recs, err := ledger.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].Decision.EntityID)
	assert.Equal(t, "b", recs[1].Decision.EntityID)
}

func TestPublisher_ConcurrentPublishAndClose(t *testing.T) {
	ledger := memory.NewInMemoryStore()
	pub := audit.NewPublisher(ledger, audit.WithAsyncBuffer(1))

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pub.Publish(context.Background(), decision("badge-1", validator.CodeFirstObservation))
		}()
	}
	pub.Close()
	wg.Wait()

	// Publishing after Close drops instead of panicking on the closed inbox.
	assert.NotPanics(t, func() {
		pub.Publish(context.Background(), decision("badge-1", validator.CodeFirstObservation))
	})
}

func TestPublisher_SetsRecordedAt(t *testing.T) {
	fixed := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	ledger := memory.NewInMemoryStore()
	pub := audit.NewPublisher(ledger, audit.WithClock(func() time.Time { return fixed }))
	defer pub.Close()

	pub.Publish(context.Background(), decision("badge-1", validator.CodeFirstObservation))

	recs, err := ledger.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, fixed, recs[0].RecordedAt)
}
