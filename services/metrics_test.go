package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/NewtonMutugi/ict-innovations-africa-backend/models"
	awspkg "github.com/NewtonMutugi/ict-innovations-africa-backend/pkg/aws"
	"github.com/NewtonMutugi/ict-innovations-africa-backend/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	mu     sync.Mutex
	counts map[string]int
}

func (m *countingMetrics) RecordCount(_ context.Context, name string, _ map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[name]++
	return nil
}

func (m *countingMetrics) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	return nil
}

func (m *countingMetrics) IsEnabled() bool { return true }

func (m *countingMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

func TestCallback_RecordsMetricsBeforeReturning(t *testing.T) {
	f := newFixture(t, "REF123")
	f.pub.On("Publish", mock.Anything, mock.Anything).Return(nil)
	metrics := &countingMetrics{}
	svc := services.NewPaymentService(f.repo, f.gateway,
		services.FixedTariff{Value: decimal.NewFromInt(2500), Currency: "KES"},
		f.pub, nil, metrics, services.Options{}, nopLogger())
	req := validRequest()
	req.HostingPlanID = nil

	_, err := svc.Initialize(context.Background(), req)
	require.NoError(t, err)
	f.gateway.setStatus("REF123", models.StatusSuccess)
	f.gateway.setStatus("GHOST", models.StatusSuccess)
	_, err = svc.Callback(context.Background(), "REF123")
	require.NoError(t, err)
	_, err = svc.Callback(context.Background(), "GHOST")
	require.Error(t, err)

	assert.Equal(t, 1, metrics.count(awspkg.MetricPaymentInitialized))
	assert.Equal(t, 1, metrics.count(awspkg.MetricPaymentSucceeded))
	assert.Equal(t, 1, metrics.count(awspkg.MetricRecordNotFound))
}
