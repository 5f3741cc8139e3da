package orchestrator

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LagoAI/LiebExplorer/pkg/engine"
	"github.com/LagoAI/LiebExplorer/pkg/engine/enginetest"
	"github.com/LagoAI/LiebExplorer/pkg/events"
	"github.com/LagoAI/LiebExplorer/pkg/identity"
	"github.com/LagoAI/LiebExplorer/pkg/layout"
	"github.com/LagoAI/LiebExplorer/pkg/profile"
	"github.com/LagoAI/LiebExplorer/pkg/security/navguard"
)

var fastRetry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 2}

func newTestOrchestrator(t *testing.T, fake *enginetest.Fake, mutate ...func(*Options)) *Orchestrator {
	t.Helper()
	opts := Options{
		Engine:      fake,
		Synthesizer: identity.NewSeededSynthesizer(7),
		Layout:      layout.NewEngine(layout.Options{Screen: layout.DefaultScreen}),
		Retry:       fastRetry,
	}
	for _, m := range mutate {
		m(&opts)
	}
	o, err := New(opts)
	require.NoError(t, err)
	return o
}

func TestNew_RequiresEngine(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestCreateInstance_Success(t *testing.T) {
	fake := enginetest.NewFake()
	o := newTestOrchestrator(t, fake)

	ok, err := o.CreateInstance(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, ok)

	info, found := o.InstanceInfo(context.Background(), "1")
	require.True(t, found)
	assert.Equal(t, StatusRunning, info.Status)
	assert.Equal(t, "about:blank", info.URL)
	assert.NoError(t, info.Fingerprint.Validate())
	assert.Equal(t, 100.0, info.ZoomLevel)
	assert.False(t, info.LaunchTime.IsZero())
	assert.Equal(t, 1, fake.LiveFor("1"))
}

func TestCreateInstance_InvalidID(t *testing.T) {
	o := newTestOrchestrator(t, enginetest.NewFake())

	ok, err := o.CreateInstance(context.Background(), "  ")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestCreateInstance_ConcurrentDuplicateHasOneWinner(t *testing.T) {
	fake := enginetest.NewFake()
	o := newTestOrchestrator(t, fake)

	const callers = 16
	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		wins       int
		duplicates int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := o.CreateInstance(context.Background(), "1")
			mu.Lock()
			defer mu.Unlock()
			if ok {
				wins++
			} else if errors.Is(err, ErrDuplicateInstance) {
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, duplicates)
	assert.Equal(t, 1, fake.Attempts("1"))
	assert.Equal(t, 1, fake.Live())
	assert.Equal(t, []string{"1"}, o.IDs())
}

func TestCreateInstance_DuplicateWhileCreating(t *testing.T) {
	fake := enginetest.NewFake()
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fake.BeforeMaterialize = func(engine.Spec) {
		once.Do(func() {
			close(entered)
			<-release
		})
	}
	o := newTestOrchestrator(t, fake)

	done := make(chan bool)
	go func() {
		ok, _ := o.CreateInstance(context.Background(), "1")
		done <- ok
	}()

	<-entered
	ok, err := o.CreateInstance(context.Background(), "1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrDuplicateInstance)
	assert.Equal(t, 1, o.Stats().Creating)

	close(release)
	assert.True(t, <-done)
	assert.Equal(t, 0, o.Stats().Creating)
}

func TestCreateInstance_VerifyFailsTwiceThenSucceeds(t *testing.T) {
	fake := enginetest.NewFake()
	fake.VerifyErr = enginetest.FailFirst(2)
	o := newTestOrchestrator(t, fake)

	ok, err := o.CreateInstance(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 3, fake.Attempts("1"))
	assert.Equal(t, 2, fake.Teardowns("1"))
	assert.Equal(t, 1, fake.LiveFor("1"))

	info, found := o.InstanceInfo(context.Background(), "1")
	require.True(t, found)
	assert.Equal(t, StatusRunning, info.Status)
}

func TestCreateInstance_Exhausted(t *testing.T) {
	fake := enginetest.NewFake()
	fake.MaterializeErr = enginetest.FailAlways()
	bus := events.NewBus[events.InstanceEvent](context.Background(), events.BusOptions{HistorySize: 8})
	t.Cleanup(bus.Close)
	o := newTestOrchestrator(t, fake, func(opts *Options) { opts.Events = bus })

	ok, err := o.CreateInstance(context.Background(), "1")
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCreationExhausted)
	assert.ErrorIs(t, err, enginetest.ErrInjected)

	var cerr *CreationError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "1", cerr.ID)
	assert.Equal(t, 3, cerr.Attempts)

	assert.Equal(t, 3, fake.Attempts("1"))
	assert.Equal(t, 0, fake.Live())
	assert.Empty(t, o.IDs())

	history := bus.History(0)
	require.Len(t, history, 1)
	assert.Equal(t, events.InstanceFailed, history[0].Type)
	assert.Equal(t, "1", history[0].InstanceID)
}

func TestCreateInstance_VerifyExhaustedLeavesNoLiveHandle(t *testing.T) {
	fake := enginetest.NewFake()
	fake.VerifyErr = enginetest.FailAlways()
	o := newTestOrchestrator(t, fake)

	ok, err := o.CreateInstance(context.Background(), "7")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrCreationExhausted)
	assert.Equal(t, 3, fake.Teardowns("7"))
	assert.Equal(t, 0, fake.Live())
	_, found := o.InstanceInfo(context.Background(), "7")
	assert.False(t, found)
}

func TestCreateInstance_CancelledDuringBackoff(t *testing.T) {
	fake := enginetest.NewFake()
	fake.MaterializeErr = enginetest.FailAlways()
	o := newTestOrchestrator(t, fake, func(opts *Options) {
		opts.Retry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Hour, Multiplier: 2}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	ok, err := o.CreateInstance(ctx, "1")
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, fake.Attempts("1"))
	assert.Equal(t, 0, o.Stats().Creating)

	// The id is free again once the cancelled creation returned.
	fake.MaterializeErr = nil
	ok, err = o.CreateInstance(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateInstance_Capacity(t *testing.T) {
	o := newTestOrchestrator(t, enginetest.NewFake(), func(opts *Options) { opts.MaxInstances = 2 })

	results := o.CreateInstances(context.Background(), 3)
	require.Len(t, results, 3)
	assert.True(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.False(t, results[2].Success)
	assert.ErrorIs(t, results[2].Err, ErrCapacityReached)
	assert.Equal(t, 2, o.Stats().Limit)
}

func TestCreateInstances_AllocatesSmallestFreeIDs(t *testing.T) {
	o := newTestOrchestrator(t, enginetest.NewFake())
	ctx := context.Background()

	results := o.CreateInstances(ctx, 3)
	require.Len(t, results, 3)
	for i, want := range []string{"1", "2", "3"} {
		assert.Equal(t, want, results[i].ID)
		assert.True(t, results[i].Success)
	}

	ok, err := o.DeleteInstance(ctx, "2")
	require.NoError(t, err)
	require.True(t, ok)

	results = o.CreateInstances(ctx, 2)
	require.Len(t, results, 2)
	assert.Equal(t, "2", results[0].ID)
	assert.Equal(t, "4", results[1].ID)
	assert.Equal(t, []string{"1", "2", "3", "4"}, o.IDs())

	assert.Nil(t, o.CreateInstances(ctx, 0))
}

func TestDeleteInstance_Missing(t *testing.T) {
	fake := enginetest.NewFake()
	o := newTestOrchestrator(t, fake)
	_, err := o.CreateInstance(context.Background(), "1")
	require.NoError(t, err)

	ok, err := o.DeleteInstance(context.Background(), "missing")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInstanceNotFound)
	assert.Equal(t, []string{"1"}, o.IDs())
	assert.Equal(t, 1, fake.Live())
}

func TestDeleteInstance_TeardownFailureStillRemoves(t *testing.T) {
	fake := enginetest.NewFake()
	fake.TeardownErr = func(string) error { return enginetest.ErrInjected }
	bus := events.NewBus[events.InstanceEvent](context.Background(), events.BusOptions{HistorySize: 8})
	t.Cleanup(bus.Close)
	o := newTestOrchestrator(t, fake, func(opts *Options) { opts.Events = bus })

	_, err := o.CreateInstance(context.Background(), "1")
	require.NoError(t, err)

	ok, err := o.DeleteInstance(context.Background(), "1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, o.IDs())

	history := bus.History(0)
	require.Len(t, history, 2)
	assert.Equal(t, events.InstanceCreated, history[0].Type)
	assert.Equal(t, events.InstanceDeleted, history[1].Type)
}

func TestCleanup_FailingTeardown(t *testing.T) {
	fake := enginetest.NewFake()
	fake.TeardownErr = func(id string) error {
		if id == "2" {
			return enginetest.ErrInjected
		}
		return nil
	}
	o := newTestOrchestrator(t, fake)
	ctx := context.Background()
	o.CreateInstances(ctx, 3)
	require.Len(t, o.IDs(), 3)

	o.Cleanup(ctx)

	assert.Empty(t, o.IDs())
	assert.Empty(t, o.AllInstances(ctx))
	assert.Equal(t, 0, fake.Live())
	assert.Equal(t, 0, o.locks.size())
}

func TestBatchDelete(t *testing.T) {
	o := newTestOrchestrator(t, enginetest.NewFake())
	ctx := context.Background()
	o.CreateInstances(ctx, 2)

	results := o.BatchDelete(ctx, []string{"1", "missing", "2"})
	require.Len(t, results, 3)

	assert.Equal(t, "1", results[0].ID)
	assert.True(t, results[0].Success)
	assert.NoError(t, results[0].Err)

	assert.Equal(t, "missing", results[1].ID)
	assert.False(t, results[1].Success)
	assert.ErrorIs(t, results[1].Err, ErrInstanceNotFound)

	assert.Equal(t, "2", results[2].ID)
	assert.True(t, results[2].Success)
	assert.Empty(t, o.IDs())
}

func TestVisitURL(t *testing.T) {
	guard, err := navguard.New(navguard.Rules{Denied: []string{"*.blocked.test"}})
	require.NoError(t, err)

	tests := []struct {
		name    string
		id      string
		url     string
		wantOK  bool
		wantErr error
	}{
		{name: "allowed", id: "1", url: "https://example.com/page", wantOK: true},
		{name: "missing instance", id: "9", url: "https://example.com", wantErr: ErrInstanceNotFound},
		{name: "missing instance with denied host", id: "9", url: "https://ads.blocked.test/", wantErr: ErrInstanceNotFound},
		{name: "bad scheme", id: "1", url: "ftp://example.com", wantErr: ErrNavigationRejected},
		{name: "denied host", id: "1", url: "https://ads.blocked.test/", wantErr: ErrNavigationRejected},
		{name: "malformed", id: "1", url: "not a url", wantErr: ErrNavigationRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := enginetest.NewFake()
			o := newTestOrchestrator(t, fake, func(opts *Options) { opts.Guard = guard })
			_, err := o.CreateInstance(context.Background(), "1")
			require.NoError(t, err)

			ok, err := o.VisitURL(context.Background(), tt.id, tt.url)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				session, _ := fake.SessionFor("1")
				assert.Empty(t, session.Visits)
				return
			}
			require.NoError(t, err)

			info, _ := o.InstanceInfo(context.Background(), "1")
			assert.Equal(t, tt.url, info.URL)
			assert.Equal(t, "Title of "+tt.url, info.Title)
		})
	}
}

func TestVisitURL_NavigationFailure(t *testing.T) {
	fake := enginetest.NewFake()
	fake.NavigateErr = func(string, string) error { return enginetest.ErrInjected }
	o := newTestOrchestrator(t, fake)
	_, err := o.CreateInstance(context.Background(), "1")
	require.NoError(t, err)

	ok, err := o.VisitURL(context.Background(), "1", "https://example.com")
	assert.False(t, ok)
	assert.ErrorIs(t, err, enginetest.ErrInjected)
}

func TestBatchVisit(t *testing.T) {
	fake := enginetest.NewFake()
	o := newTestOrchestrator(t, fake)
	ctx := context.Background()
	o.CreateInstances(ctx, 3)

	results := o.BatchVisit(ctx, []string{"3", "missing", "1"}, "https://example.com")
	require.Len(t, results, 3)
	assert.Equal(t, "3", results[0].ID)
	assert.True(t, results[0].Success)
	assert.ErrorIs(t, results[1].Err, ErrInstanceNotFound)
	assert.True(t, results[2].Success)

	s1, _ := fake.SessionFor("1")
	s2, _ := fake.SessionFor("2")
	assert.Equal(t, []string{"https://example.com"}, s1.Visits)
	assert.Empty(t, s2.Visits)
}

func TestInstanceInfo_QueryFailureMarksError(t *testing.T) {
	fake := enginetest.NewFake()
	o := newTestOrchestrator(t, fake)
	ctx := context.Background()
	o.CreateInstances(ctx, 2)

	fake.QueryErr = func(id string) error {
		if id == "2" {
			return enginetest.ErrInjected
		}
		return nil
	}

	info, found := o.InstanceInfo(ctx, "2")
	require.True(t, found)
	assert.Equal(t, StatusError, info.Status)
	assert.Contains(t, info.Error, "injected fault")

	all := o.AllInstances(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, StatusRunning, all["1"].Status)
	assert.Equal(t, StatusError, all["2"].Status)

	stats := o.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Running)
	assert.Equal(t, 1, stats.Error)

	_, found = o.InstanceInfo(ctx, "missing")
	assert.False(t, found)
}

func TestArrange(t *testing.T) {
	fake := enginetest.NewFake()
	o := newTestOrchestrator(t, fake)
	ctx := context.Background()
	o.CreateInstances(ctx, 5)

	require.NoError(t, o.Arrange(ctx))

	var rects []layout.Rect
	for _, id := range o.IDs() {
		s, ok := fake.SessionFor(id)
		require.True(t, ok)
		info, _ := o.InstanceInfo(ctx, id)
		assert.Equal(t, s.Placement, info.Placement)
		assert.True(t, layout.DefaultScreen.Contains(s.Placement), "placement %v out of bounds", s.Placement)
		rects = append(rects, s.Placement)
	}
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			assert.False(t, rects[i].Overlaps(rects[j]), "%v overlaps %v", rects[i], rects[j])
		}
	}
}

// assertDisjoint checks that the live engine windows of ids are in bounds
// and pairwise disjoint, and that the registry agrees with the engine.
func assertDisjoint(t *testing.T, o *Orchestrator, fake *enginetest.Fake) {
	t.Helper()
	ctx := context.Background()
	ids := o.IDs()
	rects := make([]layout.Rect, 0, len(ids))
	for _, id := range ids {
		s, ok := fake.SessionFor(id)
		require.True(t, ok, "no live session for %s", id)
		info, _ := o.InstanceInfo(ctx, id)
		assert.Equal(t, s.Placement, info.Placement, "instance %s", id)
		assert.True(t, layout.DefaultScreen.Contains(s.Placement), "placement %v out of bounds", s.Placement)
		rects = append(rects, s.Placement)
	}
	for i := range rects {
		for j := i + 1; j < len(rects); j++ {
			assert.False(t, rects[i].Overlaps(rects[j]), "%s %v overlaps %s %v", ids[i], rects[i], ids[j], rects[j])
		}
	}
}

func TestCreate_WindowsNeverOverlap(t *testing.T) {
	fake := enginetest.NewFake()
	o := newTestOrchestrator(t, fake)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		results := o.CreateInstances(ctx, 1)
		require.Len(t, results, 1)
		require.True(t, results[0].Success)
		assertDisjoint(t, o, fake)
	}

	_, err := o.CreateInstance(ctx, "alpha")
	require.NoError(t, err)
	assertDisjoint(t, o, fake)

	results := o.CreateInstances(ctx, 5)
	require.Len(t, results, 5)
	require.Len(t, o.IDs(), 9)
	assertDisjoint(t, o, fake)

	_, err = o.DeleteInstance(ctx, "2")
	require.NoError(t, err)
	_, err = o.CreateInstance(ctx, "2")
	require.NoError(t, err)
	assertDisjoint(t, o, fake)
}

func TestCreate_ConcurrentWindowsNeverOverlap(t *testing.T) {
	fake := enginetest.NewFake()
	o := newTestOrchestrator(t, fake)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 6; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := o.CreateInstance(ctx, id)
			assert.NoError(t, err)
		}(strconv.Itoa(i))
	}
	wg.Wait()

	require.Len(t, o.IDs(), 6)
	assertDisjoint(t, o, fake)
}

func TestArrange_IncludesErroredInstances(t *testing.T) {
	fake := enginetest.NewFake()
	o := newTestOrchestrator(t, fake)
	ctx := context.Background()
	o.CreateInstances(ctx, 3)

	fake.QueryErr = func(id string) error {
		if id == "2" {
			return enginetest.ErrInjected
		}
		return nil
	}
	info, _ := o.InstanceInfo(ctx, "2")
	require.Equal(t, StatusError, info.Status)
	fake.QueryErr = nil

	_, err := o.CreateInstance(ctx, "4")
	require.NoError(t, err)
	require.NoError(t, o.Arrange(ctx))

	s, ok := fake.SessionFor("2")
	require.True(t, ok)
	assert.Equal(t, o.layout.Assign(2, 4), s.Placement)
	assertDisjoint(t, o, fake)
}

func TestArrange_ReportsRepositionErrors(t *testing.T) {
	fake := enginetest.NewFake()
	fake.RepositionErr = func(id string) error {
		if id == "1" {
			return enginetest.ErrInjected
		}
		return nil
	}
	o := newTestOrchestrator(t, fake)
	o.CreateInstances(context.Background(), 2)

	err := o.Arrange(context.Background())
	assert.ErrorIs(t, err, enginetest.ErrInjected)
}

func TestSetZoom(t *testing.T) {
	fake := enginetest.NewFake()
	o := newTestOrchestrator(t, fake)
	ctx := context.Background()
	_, err := o.CreateInstance(ctx, "1")
	require.NoError(t, err)

	tests := []struct {
		level float64
		want  float64
	}{
		{level: 150, want: 150},
		{level: 500, want: 200},
		{level: 1, want: 25},
	}
	for _, tt := range tests {
		ok, err := o.SetZoom(ctx, "1", tt.level)
		require.NoError(t, err)
		assert.True(t, ok)

		info, _ := o.InstanceInfo(ctx, "1")
		assert.Equal(t, tt.want, info.ZoomLevel)
		s, _ := fake.SessionFor("1")
		assert.Equal(t, tt.want, s.Zoom)
	}

	ok, err := o.SetZoom(ctx, "missing", 100)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrInstanceNotFound)
}

func TestProfileRestoredOnRecreate(t *testing.T) {
	store, err := profile.NewFileStore(t.TempDir())
	require.NoError(t, err)
	fake := enginetest.NewFake()
	o := newTestOrchestrator(t, fake, func(opts *Options) { opts.Profiles = store })
	ctx := context.Background()

	_, err = o.CreateInstance(ctx, "1")
	require.NoError(t, err)
	_, err = o.VisitURL(ctx, "1", "https://example.com/saved")
	require.NoError(t, err)
	_, err = o.SetZoom(ctx, "1", 150)
	require.NoError(t, err)
	_, err = o.DeleteInstance(ctx, "1")
	require.NoError(t, err)

	rec, err := store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/saved", rec.URL)
	assert.Equal(t, 150.0, rec.ZoomLevel)
	require.NotNil(t, rec.Fingerprint)

	_, err = o.CreateInstance(ctx, "1")
	require.NoError(t, err)

	s, ok := fake.SessionFor("1")
	require.True(t, ok)
	assert.Equal(t, []string{"https://example.com/saved"}, s.Visits)
	assert.Equal(t, 150.0, s.Zoom)

	info, _ := o.InstanceInfo(ctx, "1")
	assert.Equal(t, "https://example.com/saved", info.URL)
	assert.Equal(t, 150.0, info.ZoomLevel)
}

func TestSaveLayout(t *testing.T) {
	store, err := profile.NewFileStore(t.TempDir())
	require.NoError(t, err)
	o := newTestOrchestrator(t, enginetest.NewFake(), func(opts *Options) { opts.Profiles = store })
	ctx := context.Background()
	o.CreateInstances(ctx, 3)

	require.NoError(t, o.SaveLayout(ctx))

	records, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		info, ok := o.InstanceInfo(ctx, r.ID)
		require.True(t, ok)
		assert.Equal(t, info.Placement, r.Placement)
		assert.Empty(t, r.URL)
	}
}

func TestSaveLayout_NoStore(t *testing.T) {
	o := newTestOrchestrator(t, enginetest.NewFake())
	assert.NoError(t, o.SaveLayout(context.Background()))
}

func TestRetryPolicy_Delay(t *testing.T) {
	tests := []struct {
		name    string
		policy  RetryPolicy
		attempt int
		want    time.Duration
	}{
		{name: "first", policy: DefaultRetryPolicy(), attempt: 1, want: time.Second},
		{name: "second", policy: DefaultRetryPolicy(), attempt: 2, want: 2 * time.Second},
		{name: "third", policy: DefaultRetryPolicy(), attempt: 3, want: 4 * time.Second},
		{name: "capped", policy: DefaultRetryPolicy(), attempt: 10, want: 30 * time.Second},
		{name: "zero attempt", policy: DefaultRetryPolicy(), attempt: 0, want: time.Second},
		{name: "flat multiplier", policy: RetryPolicy{BaseDelay: time.Second}, attempt: 4, want: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Delay(tt.attempt))
		})
	}
}

func TestWait(t *testing.T) {
	assert.NoError(t, wait(context.Background(), time.Millisecond))
	assert.NoError(t, wait(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, wait(ctx, time.Hour), context.Canceled)
}

func TestLockTable(t *testing.T) {
	table := newLockTable()

	unlock := table.lock("a")
	assert.Equal(t, 1, table.size())

	acquired := make(chan struct{})
	go func() {
		release := table.lock("a")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}

	other := table.lock("b")
	other()

	unlock()
	<-acquired
	assert.Eventually(t, func() bool { return table.size() == 0 }, time.Second, time.Millisecond)
}

func TestSortIDs(t *testing.T) {
	ids := []string{"10", "b", "2", "a", "1"}
	sortIDs(ids)
	assert.Equal(t, []string{"1", "2", "10", "a", "b"}, ids)
}
