package orchestrator_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/compresr/journey-gateway/internal/compiler"
	"github.com/compresr/journey-gateway/internal/contact"
	"github.com/compresr/journey-gateway/internal/journey"
	"github.com/compresr/journey-gateway/internal/monitoring"
	"github.com/compresr/journey-gateway/internal/orchestrator"
	"github.com/compresr/journey-gateway/internal/registry"
	"github.com/compresr/journey-gateway/internal/sdk"
	"github.com/compresr/journey-gateway/internal/sdk/sdktest"
	"github.com/compresr/journey-gateway/internal/widget"
)

const (
	configName = "web-main"
	configID   = "cfg-0001"
)

var visitor = contact.Contact{Email: "a@b.com", Phone: "+34666111222"}

// =============================================================================
// FAKES
// =============================================================================

type fakeRegistry struct {
	mu          sync.Mutex
	doc         []byte
	fetchErr    error
	resolveErr  error
	fetchGate   chan struct{}
	resolveGate chan struct{}
	fetches     int
}

func newRegistry(t *testing.T) *fakeRegistry {
	t.Helper()
	cfg := journey.NewConfig(configName)
	cfg.Domain = "https://apps.mypurecloud.ie"
	cfg.Environment = "prod-euw1"
	cfg.MessagingDeploymentID = "dep-123"
	cfg.OpenActionName = "open_chat"
	cfg.Pageview.Enabled = true
	doc, err := json.Marshal(cfg)
	require.NoError(t, err)
	return &fakeRegistry{doc: doc}
}

func wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *fakeRegistry) FetchByName(ctx context.Context, name string) ([]byte, error) {
	r.mu.Lock()
	r.fetches++
	gate, doc, err := r.fetchGate, r.doc, r.fetchErr
	r.mu.Unlock()
	if werr := wait(ctx, gate); werr != nil {
		return nil, werr
	}
	return doc, err
}

func (r *fakeRegistry) ResolveIdentifier(ctx context.Context, name string) (string, error) {
	r.mu.Lock()
	gate, err := r.resolveGate, r.resolveErr
	r.mu.Unlock()
	if werr := wait(ctx, gate); werr != nil {
		return "", werr
	}
	if err != nil {
		return "", err
	}
	return configID, nil
}

func (r *fakeRegistry) set(fn func(r *fakeRegistry)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r)
}

func (r *fakeRegistry) fetchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fetches
}

type readySource struct {
	mu  sync.Mutex
	fns []func()
}

func (s *readySource) OnReady(fn func()) {
	s.mu.Lock()
	s.fns = append(s.fns, fn)
	s.mu.Unlock()
}

func (s *readySource) fire() {
	s.mu.Lock()
	fns := append([]func(){}, s.fns...)
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

type notes struct {
	mu   sync.Mutex
	list []orchestrator.Notification
}

func (n *notes) Notify(_ context.Context, note orchestrator.Notification) {
	n.mu.Lock()
	n.list = append(n.list, note)
	n.mu.Unlock()
}

func (n *notes) bySeverity(s orchestrator.Severity) []orchestrator.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []orchestrator.Notification
	for _, note := range n.list {
		if note.Severity == s {
			out = append(out, note)
		}
	}
	return out
}

type executorFunc func(ctx context.Context, s *compiler.Script) error

func (f executorFunc) Execute(ctx context.Context, s *compiler.Script) error { return f(ctx, s) }

type harness struct {
	reg   *fakeRegistry
	rec   *sdktest.Recorder
	ready *readySource
	notes *notes
	exec  sdk.Executor
	o     *orchestrator.Orchestrator

	mu          sync.Mutex
	transitions []orchestrator.Transition
}

// build returns a harness whose orchestrator is not started yet.
func build(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		reg:   newRegistry(t),
		rec:   sdktest.New(),
		ready: &readySource{},
		notes: &notes{},
	}
	h.exec = &sdk.QueueExecutor{Queue: h.rec, Loader: h.rec, Widget: h.rec}
	return h
}

func newHarness(t *testing.T, opts ...orchestrator.Option) *harness {
	t.Helper()
	return build(t).start(opts...)
}

func (h *harness) start(opts ...orchestrator.Option) *harness {
	base := []orchestrator.Option{
		orchestrator.WithConfigName(configName),
		orchestrator.WithLogger(monitoring.Nop()),
		orchestrator.WithObserver(func(tr orchestrator.Transition) {
			h.mu.Lock()
			h.transitions = append(h.transitions, tr)
			h.mu.Unlock()
		}),
	}
	h.o = orchestrator.New(orchestrator.Deps{
		Registry: h.reg,
		Executor: h.exec,
		Widget:   h.rec,
		Ready:    h.ready,
		Notifier: h.notes,
	}, append(base, opts...)...)
	return h
}

func (h *harness) states() []orchestrator.State {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]orchestrator.State, len(h.transitions))
	for i, tr := range h.transitions {
		out[i] = tr.To
	}
	return out
}

func (h *harness) count(s orchestrator.State) int {
	n := 0
	for _, st := range h.states() {
		if st == s {
			n++
		}
	}
	return n
}

func waitRun(t *testing.T, run *orchestrator.Run) (orchestrator.State, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := run.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "run did not finish")
	return state, err
}

// =============================================================================
// HAPPY PATH
// =============================================================================

func TestLoad_ReachesReady(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)
	defer h.o.Close()

	run, err := h.o.Submit(context.Background(), visitor)
	require.NoError(t, err)
	state, err := waitRun(t, run)

	require.NoError(t, err)
	assert.Equal(t, orchestrator.Ready, state)
	assert.Equal(t, orchestrator.Ready, h.o.State())
	assert.Equal(t, []orchestrator.State{
		orchestrator.Idle,
		orchestrator.LoadingConfig,
		orchestrator.ResolvingIdentifier,
		orchestrator.Compiling,
		orchestrator.Executing,
		orchestrator.Ready,
	}, h.states())
	assert.Equal(t, configName, run.ConfigName)
	assert.NotEmpty(t, run.ID)

	// The bundle was loaded; commands wait for the SDK ready signal.
	assert.Equal(t, 1, h.rec.Count("load"))
	assert.Equal(t, 0, h.rec.Count("command"))
	h.rec.Fire(compiler.SignalReady, nil)
	assert.Equal(t, 1, h.rec.Count("command"))

	assert.Len(t, h.notes.bySeverity(orchestrator.SeveritySuccess), 1)
	assert.Empty(t, h.notes.bySeverity(orchestrator.SeverityError))
}

func TestHiddenFields_IdentifierBeforeReady(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)

	run, err := h.o.Submit(context.Background(), visitor)
	require.NoError(t, err)
	_, err = waitRun(t, run)
	require.NoError(t, err)
	assert.Equal(t, 0, h.rec.Count("hidden"))

	h.ready.fire()
	assert.Eventually(t, func() bool { return h.rec.Count("hidden") == 1 }, time.Second, 5*time.Millisecond)

	h.ready.fire()
	h.ready.fire()
	require.NoError(t, h.o.Close())

	assert.Equal(t, []widget.HiddenFields{{
		CustomerEmail: "a@b.com",
		CustomerPhone: "+34666111222",
		ConfigID:      configID,
	}}, h.rec.Hidden())
	assert.Equal(t, 1, h.count(orchestrator.Ready))
}

func TestHiddenFields_ReadyBeforeIdentifier(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)

	h.ready.fire()
	run, err := h.o.Submit(context.Background(), visitor)
	require.NoError(t, err)
	_, err = waitRun(t, run)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return h.rec.Count("hidden") == 1 }, time.Second, 5*time.Millisecond)
	h.ready.fire()
	require.NoError(t, h.o.Close())

	assert.Equal(t, 1, h.rec.Count("hidden"))
	assert.Equal(t, 1, h.count(orchestrator.Ready))
}

func TestHiddenFields_ConcurrentArrival(t *testing.T) {
	defer goleak.VerifyNone(t)

	for i := 0; i < 50; i++ {
		h := newHarness(t)
		gate := make(chan struct{})
		h.reg.set(func(r *fakeRegistry) { r.resolveGate = gate })

		run, err := h.o.Submit(context.Background(), visitor)
		require.NoError(t, err)
		state, err := waitRun(t, run)
		require.NoError(t, err)
		require.Equal(t, orchestrator.Ready, state)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() { defer wg.Done(); close(gate) }()
		go func() { defer wg.Done(); h.ready.fire() }()
		wg.Wait()

		require.Eventually(t, func() bool { return h.rec.Count("hidden") == 1 },
			time.Second, time.Millisecond, "iteration %d", i)
		h.ready.fire()
		require.NoError(t, h.o.Close())

		require.Equal(t, 1, h.rec.Count("hidden"), "iteration %d", i)
		require.Equal(t, 1, h.count(orchestrator.Ready), "iteration %d", i)
	}
}

func TestIdentifier_PendingLookupDoesNotBlockTracking(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)
	gate := make(chan struct{})
	h.reg.set(func(r *fakeRegistry) { r.resolveGate = gate })

	h.ready.fire()
	run, err := h.o.Submit(context.Background(), visitor)
	require.NoError(t, err)
	state, err := waitRun(t, run)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.Ready, state)

	h.rec.Fire(compiler.SignalReady, nil)
	assert.Equal(t, 1, h.rec.Count("command"))
	assert.Equal(t, 0, h.rec.Count("hidden"))

	// The identifier arriving after Ready completes the hand-off.
	close(gate)
	assert.Eventually(t, func() bool { return h.rec.Count("hidden") == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, h.o.Close())

	assert.Equal(t, configID, h.rec.Hidden()[0].ConfigID)
	assert.Equal(t, 1, h.count(orchestrator.Ready))
}

func TestIdentifier_LookupFailureDegradesRun(t *testing.T) {
	h := build(t)
	h.reg.set(func(r *fakeRegistry) { r.resolveErr = errors.New("identifier lookup down") })
	metrics := monitoring.NewMetricsCollector()
	h.start(orchestrator.WithMetrics(metrics))
	defer h.o.Close()

	h.ready.fire()
	run, err := h.o.Submit(context.Background(), visitor)
	require.NoError(t, err)
	state, err := waitRun(t, run)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.Ready, state)

	h.rec.Fire(compiler.SignalReady, nil)
	assert.Equal(t, 1, h.rec.Count("command"))

	require.Eventually(t, func() bool {
		return len(h.notes.bySeverity(orchestrator.SeverityWarning)) == 1
	}, time.Second, 5*time.Millisecond)
	warning := h.notes.bySeverity(orchestrator.SeverityWarning)[0]
	assert.Equal(t, "WidgetUnavailable", warning.Kind)
	assert.Contains(t, warning.Message, "identifier lookup down")

	assert.Empty(t, h.notes.bySeverity(orchestrator.SeverityError))
	assert.Equal(t, 0, h.rec.Count("hidden"))
	assert.Equal(t, orchestrator.Ready, h.o.State())
	assert.Equal(t, int64(1), metrics.Stats()["widget_unavailable"])
}

func TestHiddenFields_WidgetUnavailableIsNotFatal(t *testing.T) {
	h := build(t)
	h.rec.HiddenErr = widget.ErrUnavailable
	metrics := monitoring.NewMetricsCollector()
	h.start(orchestrator.WithMetrics(metrics))
	defer h.o.Close()

	h.ready.fire()
	run, err := h.o.Submit(context.Background(), visitor)
	require.NoError(t, err)
	state, err := waitRun(t, run)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.Ready, state)

	assert.Eventually(t, func() bool {
		return metrics.Stats()["widget_unavailable"] == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, h.notes.bySeverity(orchestrator.SeverityError))
	assert.Equal(t, int64(1), metrics.Stats()["ready"])
}

// =============================================================================
// FAILURES
// =============================================================================

func TestLoad_MissingConfigName(t *testing.T) {
	h := build(t).start(orchestrator.WithConfigName(""))
	defer h.o.Close()

	run, err := h.o.Load(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, orchestrator.ErrConfigurationMissing)
	require.NotNil(t, run)

	state, runErr := waitRun(t, run)
	assert.Equal(t, orchestrator.Failed, state)
	assert.Equal(t, orchestrator.ConfigurationMissing, orchestrator.KindOf(runErr))
	assert.Equal(t, orchestrator.Failed, h.o.State())
	assert.Equal(t, 0, h.reg.fetchCount())

	errs := h.notes.bySeverity(orchestrator.SeverityError)
	require.Len(t, errs, 1)
	assert.Equal(t, "ConfigurationMissing", errs[0].Kind)
}

func TestLoad_FailuresNotifyOnce(t *testing.T) {
	tests := []struct {
		name  string
		setup func(h *harness)
		kind  orchestrator.Kind
	}{
		{
			name:  "fetch error",
			setup: func(h *harness) { h.reg.set(func(r *fakeRegistry) { r.fetchErr = registry.ErrNotFound }) },
			kind:  orchestrator.FetchFailure,
		},
		{
			name:  "invalid JSON",
			setup: func(h *harness) { h.reg.set(func(r *fakeRegistry) { r.doc = []byte(`{not json`) }) },
			kind:  orchestrator.FetchFailure,
		},
		{
			name: "missing identity field",
			setup: func(h *harness) {
				h.reg.set(func(r *fakeRegistry) { r.doc = []byte(`{"configName":"web-main","gcDomain":"x"}`) })
			},
			kind: orchestrator.CompileFailure,
		},
		{
			name: "execute error",
			setup: func(h *harness) {
				h.exec = executorFunc(func(context.Context, *compiler.Script) error { return errors.New("page gone") })
			},
			kind: orchestrator.ExecutionFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := build(t)
			tt.setup(h)
			h.start()
			defer h.o.Close()

			run, err := h.o.Load(context.Background())
			require.NoError(t, err)
			state, runErr := waitRun(t, run)

			assert.Equal(t, orchestrator.Failed, state)
			assert.Equal(t, tt.kind, orchestrator.KindOf(runErr))
			assert.Equal(t, orchestrator.Failed, h.o.State())
			errs := h.notes.bySeverity(orchestrator.SeverityError)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.kind.String(), errs[0].Kind)
			assert.Equal(t, 0, h.count(orchestrator.Ready))
		})
	}
}

func TestLoad_NoAutomaticRetry(t *testing.T) {
	h := newHarness(t)
	defer h.o.Close()
	h.reg.set(func(r *fakeRegistry) { r.fetchErr = registry.ErrUnavailable })

	run, err := h.o.Load(context.Background())
	require.NoError(t, err)
	state, _ := waitRun(t, run)
	require.Equal(t, orchestrator.Failed, state)
	assert.Equal(t, 1, h.reg.fetchCount())

	// A new Load restarts from Idle.
	h.reg.set(func(r *fakeRegistry) { r.fetchErr = nil })
	run, err = h.o.Load(context.Background())
	require.NoError(t, err)
	state, err = waitRun(t, run)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.Ready, state)
	assert.Equal(t, 2, h.reg.fetchCount())
	assert.Equal(t, uint64(2), run.Generation)
	assert.Len(t, h.notes.bySeverity(orchestrator.SeverityError), 1)
}

func TestLoad_StageTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := build(t)
	h.reg.set(func(r *fakeRegistry) { r.fetchGate = make(chan struct{}) })
	h.start(orchestrator.WithStageTimeout(20 * time.Millisecond))
	defer h.o.Close()

	run, err := h.o.Load(context.Background())
	require.NoError(t, err)
	state, runErr := waitRun(t, run)

	assert.Equal(t, orchestrator.Failed, state)
	assert.ErrorIs(t, runErr, orchestrator.ErrFetchFailure)
	assert.ErrorIs(t, runErr, context.DeadlineExceeded)
}

func TestSubmit_ValidationBlocksRun(t *testing.T) {
	h := newHarness(t)
	defer h.o.Close()

	run, err := h.o.Submit(context.Background(), contact.Contact{Email: "a@b", Phone: "0034666111222"})
	assert.Nil(t, run)
	assert.ErrorIs(t, err, orchestrator.ErrValidationFailure)
	assert.ErrorIs(t, err, contact.ErrInvalidEmail)
	assert.ErrorIs(t, err, contact.ErrInvalidPhone)

	assert.Equal(t, orchestrator.Idle, h.o.State())
	assert.Empty(t, h.states())
	assert.Equal(t, 0, h.reg.fetchCount())

	warnings := h.notes.bySeverity(orchestrator.SeverityWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, "ValidationFailure", warnings[0].Kind)
}

// =============================================================================
// SUPERSEDED RUNS / LIFECYCLE
// =============================================================================

func TestLoad_SupersededRunIsIgnored(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)
	defer h.o.Close()
	gate := make(chan struct{})
	h.reg.set(func(r *fakeRegistry) { r.fetchGate = gate })

	first, err := h.o.Load(context.Background())
	require.NoError(t, err)
	second, err := h.o.Load(context.Background())
	require.NoError(t, err)

	state, err := waitRun(t, first)
	assert.Equal(t, orchestrator.Failed, state)
	assert.ErrorIs(t, err, orchestrator.ErrSuperseded)

	close(gate)
	state, err = waitRun(t, second)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.Ready, state)

	assert.Equal(t, 1, h.count(orchestrator.Ready))
	assert.Equal(t, 1, h.rec.Count("load"))
	assert.Empty(t, h.notes.bySeverity(orchestrator.SeverityError))
}

func TestClose_FinishesPendingRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	h := newHarness(t)
	h.reg.set(func(r *fakeRegistry) { r.fetchGate = make(chan struct{}) })

	run, err := h.o.Load(context.Background())
	require.NoError(t, err)
	require.NoError(t, h.o.Close())

	state, err := waitRun(t, run)
	assert.Equal(t, orchestrator.Failed, state)
	assert.ErrorIs(t, err, orchestrator.ErrClosed)

	_, err = h.o.Load(context.Background())
	assert.ErrorIs(t, err, orchestrator.ErrClosed)
	assert.NoError(t, h.o.Close())
}

// =============================================================================
// WIDGET
// =============================================================================

func TestLaunchChat_FailureNotifiesWithoutStateChange(t *testing.T) {
	h := newHarness(t)
	defer h.o.Close()
	h.rec.LaunchErr = errors.New("launch rejected")

	run, err := h.o.Load(context.Background())
	require.NoError(t, err)
	_, err = waitRun(t, run)
	require.NoError(t, err)

	err = h.o.LaunchChat(context.Background())
	require.Error(t, err)
	assert.Equal(t, orchestrator.Ready, h.o.State())
	errs := h.notes.bySeverity(orchestrator.SeverityError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "launch rejected")

	require.NoError(t, h.o.ShowChat(context.Background()))
	require.NoError(t, h.o.HideChat(context.Background()))
	assert.Equal(t, 1, h.rec.Count("show"))
	assert.Equal(t, 1, h.rec.Count("hide"))
}

func TestLaunchChat_NoWidget(t *testing.T) {
	n := &notes{}
	o := orchestrator.New(orchestrator.Deps{Registry: newRegistry(t), Notifier: n},
		orchestrator.WithLogger(monitoring.Nop()))
	defer o.Close()

	err := o.LaunchChat(context.Background())
	assert.ErrorIs(t, err, orchestrator.ErrWidgetUnavailable)
	assert.ErrorIs(t, err, widget.ErrUnavailable)
	assert.Len(t, n.bySeverity(orchestrator.SeverityError), 1)
}

func TestReadySource_ReadyFunc(t *testing.T) {
	var subscribed int
	o := orchestrator.New(orchestrator.Deps{
		Registry: newRegistry(t),
		Ready:    orchestrator.ReadyFunc(func(fn func()) { subscribed++ }),
	}, orchestrator.WithLogger(monitoring.Nop()))
	defer o.Close()

	assert.Equal(t, 1, subscribed)
}
