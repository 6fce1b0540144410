// Package batch generates reports for every trip of an upload in the
// background and tracks each run as a pollable job.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/report"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/tabular"
	"github.com/KrishnaKumarSoni/ft-trip-analytics/internal/trip"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Archiver keeps the summary of every trip a batch rendered.
type Archiver interface {
	Record(ctx context.Context, batchID string, s trip.Summary) error
}

// Publisher fans progress payloads out to subscribers of a batch.
type Publisher interface {
	Broadcast(batchID string, payload []byte)
}

type Options struct {
	CleanupDelay  time.Duration
	MaxConcurrent int64
	Archiver      Archiver
	Publisher     Publisher
}

type stopper interface {
	Stop() bool
}

type Coordinator struct {
	registry  *Registry
	renderer  trip.Renderer
	store     *report.Store
	pool      *semaphore.Weighted
	delay     time.Duration
	archiver  Archiver
	publisher Publisher

	afterFunc func(time.Duration, func()) stopper
	now       func() time.Time

	wg     sync.WaitGroup
	mu     sync.Mutex
	timers  map[string]stopper
	closed  bool
	stopped bool
}

func NewCoordinator(registry *Registry, renderer trip.Renderer, store *report.Store, opts Options) *Coordinator {
	if opts.CleanupDelay <= 0 {
		opts.CleanupDelay = time.Hour
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	return &Coordinator{
		registry:  registry,
		renderer:  renderer,
		store:     store,
		pool:      semaphore.NewWeighted(opts.MaxConcurrent),
		delay:     opts.CleanupDelay,
		archiver:  opts.Archiver,
		publisher: opts.Publisher,
		afterFunc: func(d time.Duration, f func()) stopper { return time.AfterFunc(d, f) },
		now:       time.Now,
		timers:    map[string]stopper{},
	}
}

// Start registers a job for rs and processes it in the background. Input
// that can never produce a report is rejected before a job exists.
func (c *Coordinator) Start(rs tabular.RecordSet) (string, error) {
	if rs.Len() == 0 {
		return "", &trip.ValidationError{Msg: "trip data is empty"}
	}
	if err := trip.CheckSchema(rs); err != nil {
		return "", err
	}
	groups := trip.GroupByTrip(rs)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return "", ErrShuttingDown
	}

	id := uuid.NewString()
	c.registry.Insert(Job{
		ID:        id,
		State:     StateProcessing,
		Total:     len(groups),
		CreatedAt: c.now(),
	})
	c.wg.Add(1)
	go c.run(id, groups)

	log.Printf("batch %s started with %d trips", id, len(groups))
	return id, nil
}

func (c *Coordinator) Status(id string) (Status, error) {
	job, ok := c.registry.Get(id)
	if !ok {
		return Status{}, ErrJobNotFound
	}
	return job.Status(), nil
}

func (c *Coordinator) run(id string, groups []trip.Group) {
	defer c.wg.Done()

	ctx := context.Background()
	if err := c.pool.Acquire(ctx, 1); err != nil {
		c.finish(id, fmt.Errorf("acquire worker: %w", err))
		return
	}
	err := c.process(ctx, id, groups)
	c.pool.Release(1)
	c.finish(id, err)
}

// process walks the groups in order. Only failures of the loop itself are
// returned; a failing trip is recorded on the job and skipped.
func (c *Coordinator) process(ctx context.Context, id string, groups []trip.Group) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("batch processing panic: %v", r)
		}
	}()

	for i, g := range groups {
		desc, tripErr := c.processTrip(ctx, id, g)
		job, ok := c.registry.Update(id, func(j *Job) {
			if tripErr != nil {
				j.Skipped = append(j.Skipped, Skipped{TripID: g.TripID, Reason: tripErr.Error()})
				return
			}
			j.Reports = append(j.Reports, desc)
			j.Completed++
		})
		if !ok {
			return fmt.Errorf("batch %s is no longer registered", id)
		}
		if tripErr != nil {
			log.Printf("batch %s: skipping trip %q: %v", id, g.TripID, tripErr)
		} else {
			log.Printf("batch %s: generated report for trip %s (%d/%d)", id, g.TripID, i+1, len(groups))
		}
		c.publish(job.event(g.TripID))
	}
	return nil
}

func (c *Coordinator) processTrip(ctx context.Context, id string, g trip.Group) (desc Descriptor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if strings.TrimSpace(g.TripID) == "" {
		return Descriptor{}, fmt.Errorf("missing trip id on %d rows", g.Records.Len())
	}
	if g.Records.Len() < 2 {
		return Descriptor{}, fmt.Errorf("insufficient data (only %d pings)", g.Records.Len())
	}
	if blank := trip.BlankFields(g.Records); len(blank) > 0 {
		return Descriptor{}, fmt.Errorf("missing values for %s", strings.Join(blank, ", "))
	}

	enriched, err := trip.ProcessRecords(g.Records)
	if err != nil {
		return Descriptor{}, err
	}
	doc, err := c.renderer.Render(g.TripID, enriched, c.now())
	if err != nil {
		return Descriptor{}, fmt.Errorf("render report: %w", err)
	}
	name := c.store.FileName(g.TripID, id)
	if err := c.store.Save(name, doc); err != nil {
		return Descriptor{}, err
	}

	summary := trip.Summarize(g.TripID, enriched)
	if c.archiver != nil {
		if err := c.archiver.Record(ctx, id, summary); err != nil {
			log.Printf("batch %s: archive trip %s: %v", id, g.TripID, err)
		}
	}
	return Descriptor{
		Filename:      name,
		TripID:        g.TripID,
		PingCount:     summary.PingCount,
		TotalDistance: summary.TotalDistance,
		AvgSpeed:      summary.AvgSpeed,
	}, nil
}

func (c *Coordinator) finish(id string, runErr error) {
	job, ok := c.registry.Update(id, func(j *Job) {
		if runErr != nil {
			j.State = StateError
			j.Err = runErr.Error()
			return
		}
		j.State = StateCompleted
	})
	if !ok {
		log.Printf("batch %s finished after it was removed", id)
		return
	}
	if runErr != nil {
		log.Printf("batch %s failed: %v", id, runErr)
	} else {
		log.Printf("batch %s completed: %d reports generated", id, job.Completed)
	}
	c.publish(job.event(""))
	c.scheduleCleanup(id)
}

// scheduleCleanup is a no-op once Shutdown has stopped the pending timers.
func (c *Coordinator) scheduleCleanup(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.timers[id] = c.afterFunc(c.delay, func() { c.cleanup(id) })
}

// cleanup deletes a job's reports and then the job itself. Unknown ids are
// ignored.
func (c *Coordinator) cleanup(id string) {
	c.mu.Lock()
	delete(c.timers, id)
	c.mu.Unlock()

	job, ok := c.registry.Get(id)
	if !ok {
		return
	}
	for _, d := range job.Reports {
		if err := c.store.Remove(d.Filename); err != nil {
			log.Printf("batch %s: cleanup %s: %v", id, d.Filename, err)
			continue
		}
		log.Printf("cleaned up file: %s", d.Filename)
	}
	c.registry.Delete(id)
	log.Printf("cleaned up batch job: %s", id)
}

func (c *Coordinator) publish(ev Event) {
	if c.publisher == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("batch %s: encode progress: %v", ev.BatchID, err)
		return
	}
	c.publisher.Broadcast(ev.BatchID, payload)
}

// Shutdown refuses new batches, waits for running ones until ctx is done and
// stops pending cleanups.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	c.mu.Lock()
	c.stopped = true
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()
	return err
}
