package datadog

import (
	"errors"
	"reflect"
	"testing"

	"autoinspect/internal/metrics"

	"github.com/DataDog/datadog-go/v5/statsd"
)

type sent struct {
	name  string
	value float64
	tags  []string
}

type fakeStatsd struct {
	*statsd.NoOpClient
	counts     []sent
	histograms []sent
	closed     bool
	closeErr   error
}

func (f *fakeStatsd) Count(name string, value int64, tags []string, rate float64) error {
	f.counts = append(f.counts, sent{name, float64(value), tags})
	return nil
}

func (f *fakeStatsd) Histogram(name string, value float64, tags []string, rate float64) error {
	f.histograms = append(f.histograms, sent{name, value, tags})
	return nil
}

func (f *fakeStatsd) Close() error {
	f.closed = true
	return f.closeErr
}

func TestNewBackend_RequiresAddr(t *testing.T) {
	if _, err := NewBackend(Config{}); err == nil {
		t.Fatal("NewBackend() without Addr expected error")
	}
}

func TestBackend_Forwarding(t *testing.T) {
	fake := &fakeStatsd{NoOpClient: &statsd.NoOpClient{}}
	b := newWithClient(fake)

	b.IncCounter(metrics.StepTotal, 2.9, metrics.Labels{"step": "submit", "job": "inspect", "status": "success"})
	b.ObserveHistogram(metrics.StepDuration, 0.25, metrics.Labels{"step": "load"})

	if len(fake.counts) != 1 {
		t.Fatalf("got %d counts, want 1", len(fake.counts))
	}
	wantTags := []string{"job:inspect", "status:success", "step:submit"}
	if got := fake.counts[0]; got.name != metrics.StepTotal || got.value != 2 || !reflect.DeepEqual(got.tags, wantTags) {
		t.Errorf("count = %+v, want value 2 with tags %v", got, wantTags)
	}
	if got := fake.histograms[0]; got.value != 0.25 || !reflect.DeepEqual(got.tags, []string{"step:load"}) {
		t.Errorf("histogram = %+v", got)
	}
}

func TestBackend_FlushClosesClient(t *testing.T) {
	fake := &fakeStatsd{NoOpClient: &statsd.NoOpClient{}, closeErr: errors.New("closed twice")}
	b := newWithClient(fake)

	if err := b.Flush(); err == nil {
		t.Error("Flush() did not return the client error")
	}
	if !fake.closed {
		t.Error("Flush() did not close the client")
	}
}

func TestLabelsToTags(t *testing.T) {
	if got := labelsToTags(nil); got != nil {
		t.Errorf("labelsToTags(nil) = %v", got)
	}
	got := labelsToTags(metrics.Labels{"b": "2", "a": "1"})
	if !reflect.DeepEqual(got, []string{"a:1", "b:2"}) {
		t.Errorf("labelsToTags() = %v", got)
	}
}
