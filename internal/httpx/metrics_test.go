package httpx

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMeterProvider_ExportsIntoRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	mp, err := NewMeterProvider(reg)
	if err != nil {
		t.Fatalf("NewMeterProvider() error = %v", err)
	}

	counter, err := mp.Meter(InstrumentationName).Int64Counter("weekcal.test.fetches")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(context.Background(), 2)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var found bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "weekcal_test_fetches") {
			found = true
			if got := f.GetMetric()[0].GetCounter().GetValue(); got != 2 {
				t.Errorf("counter value = %v, want 2", got)
			}
		}
	}
	if !found {
		t.Errorf("counter not exported; got %d families", len(families))
	}

	if err := Shutdown(context.Background(), mp); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	if err := Shutdown(context.Background(), nil); err != nil {
		t.Errorf("Shutdown(nil) error = %v", err)
	}
}
