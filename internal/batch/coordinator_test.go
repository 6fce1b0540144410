package batch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/report"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/tabular"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/trip"
)

const threeTrips = "latitude,longitude,device_timestamp,trip_id\n" +
	"12.97,77.59,04/02/25 16:00,1\n" +
	"12.98,77.60,04/02/25 16:10,1\n" +
	"abc,77.60,04/02/25 16:00,2\n" +
	"13.01,77.63,04/02/25 16:20,2\n" +
	"13.05,77.70,04/02/25 16:00,3\n" +
	"13.06,77.71,04/02/25 16:30,3\n"

type fakeTimer struct{ stopped bool }

func (f *fakeTimer) Stop() bool {
	f.stopped = true
	return true
}

type recordingArchiver struct {
	mu    sync.Mutex
	trips []string
}

func (a *recordingArchiver) Record(_ context.Context, _ string, s trip.Summary) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.trips = append(a.trips, s.TripID)
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Broadcast(_ string, payload []byte) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type harness struct {
	coord   *Coordinator
	store   *report.Store
	pending []func()
	timers  []*fakeTimer
	mu      sync.Mutex
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	store := report.NewStore(t.TempDir())
	h := &harness{store: store}
	h.coord = NewCoordinator(NewRegistry(), report.NewRenderer("TN93C4414", ""), store, opts)
	h.coord.afterFunc = func(_ time.Duration, f func()) stopper {
		h.mu.Lock()
		defer h.mu.Unlock()
		ft := &fakeTimer{}
		h.timers = append(h.timers, ft)
		h.pending = append(h.pending, f)
		return ft
	}
	return h
}

func (h *harness) fireAll() {
	h.mu.Lock()
	fns := h.pending
	h.pending = nil
	h.mu.Unlock()
	for _, f := range fns {
		f()
	}
}

func readCSV(t *testing.T, s string) tabular.RecordSet {
	t.Helper()
	rs, err := tabular.ReadCSV(strings.NewReader(s))
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	return rs
}

func waitFinished(t *testing.T, c *Coordinator, id string) Status {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		st, err := c.Status(id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if st.Status != StateProcessing {
			return st
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("batch %s did not finish", id)
	return Status{}
}

func TestBatchSkipsMalformedTrip(t *testing.T) {
	archiver := &recordingArchiver{}
	h := newHarness(t, Options{Archiver: archiver})

	id, err := h.coord.Start(readCSV(t, threeTrips))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	st := waitFinished(t, h.coord, id)

	if st.Status != StateCompleted {
		t.Fatalf("expected completed, got %s (%s)", st.Status, st.Error)
	}
	if st.TotalTrips != 3 || st.CompletedTrips != 2 || len(st.PDFs) != 2 {
		t.Fatalf("unexpected counts %+v", st)
	}
	if st.Progress != 66.67 {
		t.Fatalf("expected progress 66.67, got %v", st.Progress)
	}
	if len(st.Skipped) != 1 || st.Skipped[0].TripID != "2" {
		t.Fatalf("expected trip 2 skipped, got %+v", st.Skipped)
	}
	if st.PDFs[0].TripID != "1" || st.PDFs[1].TripID != "3" {
		t.Fatalf("unexpected report order %+v", st.PDFs)
	}
	for _, d := range st.PDFs {
		if _, err := h.store.Path(d.Filename); err != nil {
			t.Fatalf("report %s not stored: %v", d.Filename, err)
		}
		if !strings.HasSuffix(d.Filename, "_"+id+".pdf") {
			t.Fatalf("unexpected file name %s", d.Filename)
		}
	}
	archiver.mu.Lock()
	defer archiver.mu.Unlock()
	if len(archiver.trips) != 2 {
		t.Fatalf("expected 2 archived summaries, got %v", archiver.trips)
	}
}

func TestBatchPublishesProgress(t *testing.T) {
	pub := &recordingPublisher{}
	h := newHarness(t, Options{Publisher: pub})

	id, err := h.coord.Start(readCSV(t, threeTrips))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFinished(t, h.coord, id)
	if err := h.coord.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.events) != 4 {
		t.Fatalf("expected 3 trip events and a final one, got %d", len(pub.events))
	}
	last := pub.events[len(pub.events)-1]
	if last.Status != StateCompleted || last.CompletedTrips != 2 || last.BatchID != id {
		t.Fatalf("unexpected final event %+v", last)
	}
	for _, ev := range pub.events {
		if ev.CompletedTrips < 0 || ev.CompletedTrips > ev.TotalTrips {
			t.Fatalf("progress out of range %+v", ev)
		}
	}
}

func TestBatchCleanupRemovesFilesAndJob(t *testing.T) {
	h := newHarness(t, Options{CleanupDelay: time.Minute})

	id, err := h.coord.Start(readCSV(t, threeTrips))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	st := waitFinished(t, h.coord, id)
	if err := h.coord.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	h.fireAll()
	if _, err := h.coord.Status(id); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected job removed, got %v", err)
	}
	for _, d := range st.PDFs {
		if _, err := os.Stat(filepath.Join(h.store.Dir(), d.Filename)); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed", d.Filename)
		}
	}
	// a second run for the same id is a no-op
	h.coord.cleanup(id)
}

func TestBatchShutdownStopsTimers(t *testing.T) {
	h := newHarness(t, Options{})
	id, err := h.coord.Start(readCSV(t, threeTrips))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFinished(t, h.coord, id)
	if err := h.coord.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.timers) != 1 || !h.timers[0].stopped {
		t.Fatalf("expected cleanup timer stopped")
	}
	if _, err := h.coord.Start(readCSV(t, threeTrips)); !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}

func TestBatchStartValidation(t *testing.T) {
	h := newHarness(t, Options{})
	if _, err := h.coord.Start(tabular.RecordSet{}); !trip.IsValidation(err) {
		t.Fatalf("expected validation error for empty set, got %v", err)
	}
	_, err := h.coord.Start(readCSV(t, "lat,lng,trip_id\n1,2,3\n"))
	if !trip.IsValidation(err) {
		t.Fatalf("expected validation error for missing columns, got %v", err)
	}
	if h.coord.registry.Len() != 0 {
		t.Fatalf("rejected input must not register a job")
	}
}

func TestBatchStatusUnknown(t *testing.T) {
	h := newHarness(t, Options{})
	if _, err := h.coord.Status("does-not-exist"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func TestBatchWithoutTripColumn(t *testing.T) {
	h := newHarness(t, Options{})
	id, err := h.coord.Start(readCSV(t, "latitude,longitude,device_timestamp\n"+
		"0,0,04/02/25 16:00\n0,1,04/02/25 17:00\n"))
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	st := waitFinished(t, h.coord, id)
	if st.TotalTrips != 1 || st.CompletedTrips != 1 || st.PDFs[0].TripID != trip.SingleTripID {
		t.Fatalf("unexpected status %+v", st)
	}
	if st.Progress != 100 {
		t.Fatalf("expected progress 100, got %v", st.Progress)
	}
}

func TestBatchOuterErrorMarksJob(t *testing.T) {
	h := newHarness(t, Options{})
	h.coord.registry.Insert(Job{ID: "gone", State: StateProcessing, Total: 1})
	h.coord.registry.Delete("gone")

	err := h.coord.process(context.Background(), "gone", trip.GroupByTrip(readCSV(t, threeTrips)))
	if err == nil {
		t.Fatalf("expected loop error for an unregistered job")
	}

	h.coord.registry.Insert(Job{ID: "job", State: StateProcessing, Total: 1})
	h.coord.finish("job", errors.New("boom"))
	st, err := h.coord.Status("job")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.Status != StateError || st.Error != "boom" {
		t.Fatalf("unexpected status %+v", st)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.timers) != 1 {
		t.Fatalf("expected cleanup scheduled for errored job")
	}
}

func TestBatchFinishingAfterShutdownSchedulesNothing(t *testing.T) {
	h := newHarness(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// an expired context may win the race against the idle wait group
	_ = h.coord.Shutdown(ctx)

	h.coord.registry.Insert(Job{ID: "late", State: StateProcessing, Total: 1})
	h.coord.finish("late", nil)

	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.timers) != 0 {
		t.Fatalf("expected no cleanup timer after shutdown, got %d", len(h.timers))
	}
}
