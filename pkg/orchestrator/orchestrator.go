// Package orchestrator manages the lifecycle of browser instances.
//
// The Orchestrator owns the registry of live instances. An instance enters
// the registry only after its session has been materialized and verified,
// and leaves it after its session has been torn down. Creation retries with
// exponential backoff; the wait never holds a lock and ends early when the
// context is cancelled.
//
// Every created instance gets a cell of one grid sized for all live and
// in-flight instances; after creation the visible instances are re-tiled so
// their windows never overlap.
//
// Operations on the same id are serialized by a per-id lock. Operations on
// different ids run concurrently. Reads copy the record under a read lock and
// query the session engine without holding any lock.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/LagoAI/LiebExplorer/pkg/engine"
	"github.com/LagoAI/LiebExplorer/pkg/events"
	"github.com/LagoAI/LiebExplorer/pkg/identity"
	"github.com/LagoAI/LiebExplorer/pkg/layout"
	"github.com/LagoAI/LiebExplorer/pkg/logging"
	"github.com/LagoAI/LiebExplorer/pkg/profile"
	"github.com/LagoAI/LiebExplorer/pkg/security/navguard"
)

const defaultBatchConcurrency = 4

// Options configures an Orchestrator. Engine is required.
type Options struct {
	Engine      engine.Engine
	Synthesizer *identity.Synthesizer
	Layout      *layout.Engine

	// Profiles persists navigation targets and zoom; nil disables it.
	Profiles profile.Store

	// Guard filters navigation targets; nil allows every http(s) host.
	Guard *navguard.Guard

	Events *events.Bus[events.InstanceEvent]
	Retry  RetryPolicy

	// ProfilesDir is the parent of per-instance browser profiles. Empty
	// leaves the choice to the engine.
	ProfilesDir string

	// MaxInstances bounds live plus in-flight instances; zero is unbounded.
	MaxInstances int

	DefaultZoom      float64
	BatchConcurrency int

	Logger logging.Interface
}

// Orchestrator is the concurrency-safe instance registry.
type Orchestrator struct {
	mu        sync.RWMutex
	instances map[string]*Instance
	creating  map[string]struct{}
	locks     *lockTable

	// tileMu serializes re-tiling so the last pass sees every registration.
	tileMu sync.Mutex

	engine      engine.Engine
	synth       *identity.Synthesizer
	layout      *layout.Engine
	profiles    profile.Store
	guard       *navguard.Guard
	events      *events.Bus[events.InstanceEvent]
	retry       RetryPolicy
	profilesDir string
	maxInst     int
	defaultZoom float64
	batchSize   int
	logger      logging.Interface
}

// New creates an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Engine == nil {
		return nil, errors.New("orchestrator requires a session engine")
	}
	if opts.Synthesizer == nil {
		opts.Synthesizer = identity.NewRandomSynthesizer()
	}
	if opts.Layout == nil {
		opts.Layout = layout.NewEngine(layout.Options{Screen: layout.DefaultScreen})
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = DefaultRetryPolicy()
	}
	if opts.DefaultZoom <= 0 {
		opts.DefaultZoom = engine.DefaultZoom
	}
	if opts.Guard == nil {
		guard, err := navguard.New(navguard.Rules{})
		if err != nil {
			return nil, err
		}
		opts.Guard = guard
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = defaultBatchConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	return &Orchestrator{
		instances:   make(map[string]*Instance),
		creating:    make(map[string]struct{}),
		locks:       newLockTable(),
		engine:      opts.Engine,
		synth:       opts.Synthesizer,
		layout:      opts.Layout,
		profiles:    opts.Profiles,
		guard:       opts.Guard,
		events:      opts.Events,
		retry:       opts.Retry.normalized(),
		profilesDir: opts.ProfilesDir,
		maxInst:     opts.MaxInstances,
		defaultZoom: engine.ClampZoom(opts.DefaultZoom),
		batchSize:   opts.BatchConcurrency,
		logger:      logger,
	}, nil
}

// CreateInstance creates and registers instance id. It returns false with
// ErrDuplicateInstance when id is live or already being created, and false
// with a *CreationError when every attempt failed.
func (o *Orchestrator) CreateInstance(ctx context.Context, id string) (bool, error) {
	if err := o.reserve(id); err != nil {
		return false, err
	}
	ok, err := o.create(ctx, id)
	if ok {
		o.retileAfterCreate(ctx)
	}
	return ok, err
}

// CreateInstances allocates count fresh ids, the smallest positive integers
// not in use, and creates them. Results follow id order.
func (o *Orchestrator) CreateInstances(ctx context.Context, count int) []Result {
	if count <= 0 {
		return nil
	}

	o.mu.Lock()
	ids := o.nextIDsLocked(count)
	failed := make(map[string]error)
	for _, id := range ids {
		if err := o.reserveLocked(id); err != nil {
			failed[id] = err
		}
	}
	o.mu.Unlock()

	results := o.runBatch(ids, func(id string) (bool, error) {
		if err, ok := failed[id]; ok {
			return false, err
		}
		return o.create(ctx, id)
	})
	for _, r := range results {
		if r.Success {
			o.retileAfterCreate(ctx)
			break
		}
	}
	return results
}

// nextIDsLocked returns the count smallest positive integer ids that are
// neither live nor being created.
func (o *Orchestrator) nextIDsLocked(count int) []string {
	ids := make([]string, 0, count)
	for n := 1; len(ids) < count; n++ {
		id := strconv.Itoa(n)
		if _, live := o.instances[id]; live {
			continue
		}
		if _, busy := o.creating[id]; busy {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func (o *Orchestrator) reserve(id string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reserveLocked(id)
}

func (o *Orchestrator) reserveLocked(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	if _, exists := o.instances[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateInstance, id)
	}
	if _, busy := o.creating[id]; busy {
		return fmt.Errorf("%w: %s is being created", ErrDuplicateInstance, id)
	}
	if o.maxInst > 0 && len(o.instances)+len(o.creating) >= o.maxInst {
		return fmt.Errorf("%w (%d)", ErrCapacityReached, o.maxInst)
	}
	o.creating[id] = struct{}{}
	return nil
}

func (o *Orchestrator) release(id string) {
	o.mu.Lock()
	delete(o.creating, id)
	o.mu.Unlock()
}

// create runs the attempts for a reserved id.
func (o *Orchestrator) create(ctx context.Context, id string) (bool, error) {
	defer o.release(id)

	var last error
	attempts := 0
	for attempt := 1; attempt <= o.retry.MaxAttempts; attempt++ {
		attempts = attempt
		inst, err := o.attempt(ctx, id)
		if err == nil {
			o.register(inst)
			o.logger.Infof("Instance %s running after %d attempt(s)", id, attempt)
			o.publish(events.InstanceCreated, id, StatusRunning, "")
			o.restore(ctx, inst)
			return true, nil
		}

		last = err
		o.logger.Warnf("Instance %s attempt %d/%d failed: %v", id, attempt, o.retry.MaxAttempts, err)
		if ctx.Err() != nil {
			break
		}
		if attempt < o.retry.MaxAttempts {
			if werr := wait(ctx, o.retry.Delay(attempt)); werr != nil {
				last = werr
				break
			}
		}
	}

	o.publish(events.InstanceFailed, id, StatusError, last.Error())
	if ctxErr := ctx.Err(); ctxErr != nil {
		o.logger.Warnf("Instance %s creation cancelled: %v", id, ctxErr)
		return false, fmt.Errorf("create instance %s: %w", id, ctxErr)
	}
	o.logger.Errorf("Instance %s creation failed after %d attempt(s): %v", id, attempts, last)
	return false, &CreationError{ID: id, Attempts: attempts, Last: last}
}

// attempt materializes and verifies one session. A session that fails
// verification is torn down before returning.
func (o *Orchestrator) attempt(ctx context.Context, id string) (*Instance, error) {
	fp := o.synth.Generate()
	ordinal, count := o.slot(id)
	placement := o.layout.Assign(ordinal, count)

	spec := engine.Spec{
		InstanceID: id,
		Identity:   fp,
		Placement:  placement,
	}
	if o.profilesDir != "" {
		spec.ProfileDir = filepath.Join(o.profilesDir, "profile_"+id)
	}

	h, err := o.engine.Materialize(ctx, spec)
	if err != nil {
		return nil, err
	}
	if err := o.engine.Verify(ctx, h); err != nil {
		if terr := o.engine.Teardown(context.WithoutCancel(ctx), h); terr != nil {
			o.logger.Debugf("Teardown after failed verification of %s: %v", id, terr)
		}
		return nil, err
	}

	return &Instance{
		ID:          id,
		Status:      StatusRunning,
		Fingerprint: fp,
		Placement:   placement,
		LaunchTime:  time.Now().UTC(),
		ZoomLevel:   o.defaultZoom,
		handle:      h,
	}, nil
}

// slot returns the 1-based position of id among the live and in-flight
// ids, in id order, and the size of that set.
func (o *Orchestrator) slot(id string) (ordinal, count int) {
	o.mu.RLock()
	ids := make([]string, 0, len(o.instances)+len(o.creating)+1)
	for k := range o.instances {
		ids = append(ids, k)
	}
	for k := range o.creating {
		if _, live := o.instances[k]; !live {
			ids = append(ids, k)
		}
	}
	o.mu.RUnlock()

	sortIDs(ids)
	for i, k := range ids {
		if k == id {
			return i + 1, len(ids)
		}
	}
	return len(ids) + 1, len(ids) + 1
}

func (o *Orchestrator) register(inst *Instance) {
	o.mu.Lock()
	o.instances[inst.ID] = inst
	o.mu.Unlock()
}

// restore reapplies the persisted zoom and navigation target of a freshly
// created instance. Failures are logged only.
func (o *Orchestrator) restore(ctx context.Context, inst *Instance) {
	unlock := o.locks.lock(inst.ID)
	defer unlock()

	zoom := o.defaultZoom
	var rec profile.Record
	found := false
	if o.profiles != nil {
		r, err := o.profiles.Get(ctx, inst.ID)
		switch {
		case err == nil:
			rec, found = r, true
			if r.ZoomLevel > 0 {
				zoom = engine.ClampZoom(r.ZoomLevel)
			}
		case !errors.Is(err, profile.ErrNotFound):
			o.logger.Warnf("Failed to load profile of %s: %v", inst.ID, err)
		}
	}

	if err := o.engine.SetZoom(ctx, inst.handle, zoom); err != nil {
		o.logger.Warnf("Failed to apply zoom to %s: %v", inst.ID, err)
	} else {
		o.setZoomLevel(inst.ID, zoom)
	}

	if found && rec.URL != "" {
		if err := o.engine.Navigate(ctx, inst.handle, rec.URL); err != nil {
			o.logger.Warnf("Failed to restore %s to %s: %v", inst.ID, rec.URL, err)
		} else {
			o.setURL(inst.ID, rec.URL)
		}
	}

	o.checkpoint(ctx, inst.ID)
}

// DeleteInstance tears down and unregisters id. It returns false with
// ErrInstanceNotFound when id is not live. Teardown failures are logged and
// do not keep the entry.
func (o *Orchestrator) DeleteInstance(ctx context.Context, id string) (bool, error) {
	unlock := o.locks.lock(id)
	defer unlock()

	o.mu.RLock()
	_, ok := o.instances[id]
	o.mu.RUnlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}

	o.checkpoint(ctx, id)

	o.mu.Lock()
	inst := o.instances[id]
	inst.Status = StatusTerminated
	h := inst.handle
	o.mu.Unlock()

	if err := o.engine.Teardown(context.WithoutCancel(ctx), h); err != nil {
		o.logger.Errorf("Teardown of instance %s failed: %v", id, err)
	}

	o.mu.Lock()
	delete(o.instances, id)
	o.mu.Unlock()

	o.logger.Infof("Instance %s deleted", id)
	o.publish(events.InstanceDeleted, id, StatusTerminated, "")
	return true, nil
}

// VisitURL navigates id to url. It returns false when id is absent, the
// URL is rejected, or navigation fails. An absent id is reported before a
// rejected URL.
func (o *Orchestrator) VisitURL(ctx context.Context, id, url string) (bool, error) {
	unlock := o.locks.lock(id)
	defer unlock()

	h, ok := o.handle(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	if err := o.guard.Check(url); err != nil {
		return false, fmt.Errorf("%w: %w", ErrNavigationRejected, err)
	}

	if err := o.engine.Navigate(ctx, h, url); err != nil {
		o.logger.Warnf("Instance %s failed to visit %s: %v", id, url, err)
		o.publish(events.InstanceError, id, StatusRunning, err.Error())
		return false, err
	}

	o.setURL(id, url)
	o.checkpoint(ctx, id)
	o.publish(events.InstanceVisited, id, StatusRunning, url)
	return true, nil
}

// InstanceInfo returns a snapshot of id with its live page state. A failed
// page query marks the instance as errored.
func (o *Orchestrator) InstanceInfo(ctx context.Context, id string) (Info, bool) {
	o.mu.RLock()
	inst, ok := o.instances[id]
	var snap Instance
	if ok {
		snap = *inst
	}
	o.mu.RUnlock()
	if !ok {
		return Info{}, false
	}

	info := snap.info()
	state, err := o.engine.Query(ctx, snap.handle)
	if err != nil {
		info.Status = StatusError
		info.Error = err.Error()
		if o.markError(id, snap.handle) {
			o.logger.Warnf("Instance %s is unresponsive: %v", id, err)
			o.publish(events.InstanceError, id, StatusError, err.Error())
		}
		return info, true
	}
	info.URL = state.URL
	info.Title = state.Title
	return info, true
}

// markError moves a running record to error if it still holds h.
func (o *Orchestrator) markError(id string, h engine.Handle) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	inst, ok := o.instances[id]
	if !ok || inst.handle != h || inst.Status != StatusRunning {
		return false
	}
	inst.Status = StatusError
	return true
}

// AllInstances returns info for every id live when the call started. Ids
// removed meanwhile are omitted.
func (o *Orchestrator) AllInstances(ctx context.Context) map[string]Info {
	ids := o.IDs()
	out := make(map[string]Info, len(ids))
	for _, id := range ids {
		if info, ok := o.InstanceInfo(ctx, id); ok {
			out[id] = info
		}
	}
	return out
}

// IDs returns the live ids in numeric-then-lexical order.
func (o *Orchestrator) IDs() []string {
	o.mu.RLock()
	ids := make([]string, 0, len(o.instances))
	for id := range o.instances {
		ids = append(ids, id)
	}
	o.mu.RUnlock()
	sortIDs(ids)
	return ids
}

// Cleanup deletes every instance. Failures are logged and the sweep goes on.
func (o *Orchestrator) Cleanup(ctx context.Context) {
	ids := o.IDs()
	for _, id := range ids {
		if _, err := o.DeleteInstance(ctx, id); err != nil && !errors.Is(err, ErrInstanceNotFound) {
			o.logger.Errorf("Cleanup of instance %s failed: %v", id, err)
		}
	}
	o.logger.Infof("Cleanup finished (%d instance(s))", len(ids))
}

// BatchVisit visits url on every id concurrently.
func (o *Orchestrator) BatchVisit(ctx context.Context, ids []string, url string) []Result {
	return o.runBatch(ids, func(id string) (bool, error) {
		return o.VisitURL(ctx, id, url)
	})
}

// BatchDelete deletes every id concurrently.
func (o *Orchestrator) BatchDelete(ctx context.Context, ids []string) []Result {
	return o.runBatch(ids, func(id string) (bool, error) {
		return o.DeleteInstance(ctx, id)
	})
}

// runBatch applies fn to each id with bounded concurrency. Results keep the
// input order.
func (o *Orchestrator) runBatch(ids []string, fn func(id string) (bool, error)) []Result {
	results := make([]Result, len(ids))
	sem := make(chan struct{}, o.batchSize)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, id string) {
			defer wg.Done()
			defer func() { <-sem }()
			ok, err := fn(id)
			results[i] = Result{ID: id, Success: ok, Err: err}
		}(i, id)
	}
	wg.Wait()
	return results
}

// Arrange recomputes the grid for the visible instances and repositions
// each of them.
func (o *Orchestrator) Arrange(ctx context.Context) error {
	n, err := o.retile(ctx)
	rows, cols := o.layout.Grid(n)
	o.logger.Infof("Arranged %d instance(s) in a %dx%d grid", n, rows, cols)
	o.publish(events.LayoutArranged, "", "", fmt.Sprintf("%d instances in %dx%d grid", n, rows, cols))
	return err
}

// retile places every visible instance, running or errored, on one grid in
// id order and returns how many were placed.
func (o *Orchestrator) retile(ctx context.Context) (int, error) {
	o.tileMu.Lock()
	defer o.tileMu.Unlock()

	ids := o.IDs()
	var visible []string
	o.mu.RLock()
	for _, id := range ids {
		inst, ok := o.instances[id]
		if ok && (inst.Status == StatusRunning || inst.Status == StatusError) {
			visible = append(visible, id)
		}
	}
	o.mu.RUnlock()

	var errs []error
	for i, id := range visible {
		rect := o.layout.Assign(i+1, len(visible))
		if err := o.reposition(ctx, id, rect); err != nil {
			errs = append(errs, err)
		}
	}
	return len(visible), errors.Join(errs...)
}

func (o *Orchestrator) retileAfterCreate(ctx context.Context) {
	if _, err := o.retile(ctx); err != nil {
		o.logger.Warnf("Re-tiling after creation failed: %v", err)
	}
}

func (o *Orchestrator) reposition(ctx context.Context, id string, rect layout.Rect) error {
	unlock := o.locks.lock(id)
	defer unlock()

	h, ok := o.handle(id)
	if !ok {
		return nil
	}
	if err := o.engine.Reposition(ctx, h, rect); err != nil {
		return fmt.Errorf("reposition %s: %w", id, err)
	}
	o.mu.Lock()
	if inst, ok := o.instances[id]; ok {
		inst.Placement = rect
	}
	o.mu.Unlock()
	return nil
}

// SaveLayout writes a persisted record for every running instance.
func (o *Orchestrator) SaveLayout(ctx context.Context) error {
	if o.profiles == nil {
		return nil
	}
	var errs []error
	for _, id := range o.IDs() {
		unlock := o.locks.lock(id)
		err := o.save(ctx, id)
		unlock()
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetZoom clamps level to the accepted range and applies it to id.
func (o *Orchestrator) SetZoom(ctx context.Context, id string, level float64) (bool, error) {
	level = engine.ClampZoom(level)

	unlock := o.locks.lock(id)
	defer unlock()

	h, ok := o.handle(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	if err := o.engine.SetZoom(ctx, h, level); err != nil {
		return false, err
	}
	o.setZoomLevel(id, level)
	o.checkpoint(ctx, id)
	return true, nil
}

// Stats counts instances by status.
func (o *Orchestrator) Stats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()

	s := Stats{Total: len(o.instances), Creating: len(o.creating), Limit: o.maxInst}
	for _, inst := range o.instances {
		switch inst.Status {
		case StatusRunning:
			s.Running++
		case StatusError:
			s.Error++
		case StatusTerminated:
			s.Terminated++
		case StatusPending:
			s.Pending++
		}
	}
	return s
}

// checkpoint persists id's state, logging failures. Callers hold the id lock.
func (o *Orchestrator) checkpoint(ctx context.Context, id string) {
	if o.profiles == nil {
		return
	}
	if err := o.save(ctx, id); err != nil {
		o.logger.Warnf("Failed to persist profile of %s: %v", id, err)
	}
}

func (o *Orchestrator) save(ctx context.Context, id string) error {
	o.mu.RLock()
	inst, ok := o.instances[id]
	var snap Instance
	if ok {
		snap = *inst
	}
	o.mu.RUnlock()
	if !ok || snap.Status != StatusRunning {
		return nil
	}

	url := snap.URL
	if state, err := o.engine.Query(ctx, snap.handle); err == nil && state.URL != "" && state.URL != "about:blank" {
		url = state.URL
	}
	fp := snap.Fingerprint.Clone()
	return o.profiles.Put(ctx, profile.Record{
		ID:          id,
		URL:         url,
		Placement:   snap.Placement,
		ZoomLevel:   snap.ZoomLevel,
		Fingerprint: &fp,
	})
}

func (o *Orchestrator) handle(id string) (engine.Handle, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	inst, ok := o.instances[id]
	if !ok {
		return nil, false
	}
	return inst.handle, true
}

func (o *Orchestrator) setURL(id, url string) {
	o.mu.Lock()
	if inst, ok := o.instances[id]; ok {
		inst.URL = url
	}
	o.mu.Unlock()
}

func (o *Orchestrator) setZoomLevel(id string, level float64) {
	o.mu.Lock()
	if inst, ok := o.instances[id]; ok {
		inst.ZoomLevel = level
	}
	o.mu.Unlock()
}

func (o *Orchestrator) publish(eventType, id string, status Status, message string) {
	if o.events == nil {
		return
	}
	o.events.Publish(events.NewInstanceEvent(eventType, id, string(status), message))
}

// sortIDs orders numeric ids numerically before other ids.
func sortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool {
		a, aerr := strconv.Atoi(ids[i])
		b, berr := strconv.Atoi(ids[j])
		switch {
		case aerr == nil && berr == nil:
			return a < b
		case aerr == nil:
			return true
		case berr == nil:
			return false
		default:
			return ids[i] < ids[j]
		}
	})
}
