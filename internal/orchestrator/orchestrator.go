// Package orchestrator sequences one page's tracking bootstrap.
//
// DESIGN: A single event loop goroutine owns all run state. Every async
// completion (registry fetch, identifier lookup, script execution, hidden
// field injection, widget ready) is posted to the loop as an event tagged
// with the run generation; events from superseded generations are dropped.
//
//	Idle -> LoadingConfig -> ResolvingIdentifier -> Compiling -> Executing -> Ready
//	                  \_________________________________\___________\-> Failed
//
// ResolvingIdentifier only starts the identifier lookup; compilation follows
// at once. The identifier and the widget ready signal (process-wide, may
// arrive at any point or never) feed a per-run join that fires
// SetHiddenFields once both are known, before or after Ready. A failed lookup
// degrades the run (no chat hand-off) without failing it.
//
// FILES:
//   - orchestrator.go: Orchestrator, Run, event loop
//   - state.go:        State, Transition
//   - errors.go:       Kind, Error, sentinels
//   - notifier.go:     Notification, Notifier
//   - join.go:         identifier/ready join guard
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/compresr/journey-gateway/internal/compiler"
	"github.com/compresr/journey-gateway/internal/contact"
	"github.com/compresr/journey-gateway/internal/journey"
	"github.com/compresr/journey-gateway/internal/monitoring"
	"github.com/compresr/journey-gateway/internal/sdk"
	"github.com/compresr/journey-gateway/internal/widget"
)

var errNoConfigName = errors.New("no configuration name provided")

// Registry is the subset of registry.Registry used at runtime.
type Registry interface {
	FetchByName(ctx context.Context, name string) ([]byte, error)
	ResolveIdentifier(ctx context.Context, name string) (string, error)
}

// ReadySource delivers the chat widget ready signal. fn may be called any
// number of times, from any goroutine.
type ReadySource interface {
	OnReady(fn func())
}

// ReadyFunc adapts a subscribe function to ReadySource.
type ReadyFunc func(fn func())

// OnReady calls f.
func (f ReadyFunc) OnReady(fn func()) { f(fn) }

// Deps are the collaborators of an Orchestrator. Widget, Ready and Notifier
// are optional.
type Deps struct {
	Registry Registry
	Executor sdk.Executor
	Widget   widget.Widget
	Ready    ReadySource
	Notifier Notifier
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConfigName sets the configuration loaded by Load.
func WithConfigName(name string) Option {
	return func(o *Orchestrator) { o.configName = name }
}

// WithStageTimeout bounds each async stage. Zero waits indefinitely.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stageTimeout = d }
}

// WithCompileOptions passes options to compiler.Compile.
func WithCompileOptions(opts ...compiler.Option) Option {
	return func(o *Orchestrator) { o.compileOpts = append(o.compileOpts, opts...) }
}

// WithLogger sets the logger. Defaults to the global logger.
func WithLogger(l *monitoring.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMetrics records run outcomes.
func WithMetrics(m *monitoring.MetricsCollector) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracker records a telemetry event per finished run.
func WithTracker(t *monitoring.Tracker) Option {
	return func(o *Orchestrator) { o.tracker = t }
}

// WithAlerts flags failed, slow and degraded runs.
func WithAlerts(a *monitoring.AlertManager) Option {
	return func(o *Orchestrator) { o.alerts = a }
}

// WithObserver is called from the event loop on every state change.
// It must not block.
func WithObserver(fn func(Transition)) Option {
	return func(o *Orchestrator) { o.observer = fn }
}

// Run is one Load of the configuration.
type Run struct {
	ID         string
	Generation uint64
	ConfigName string

	started time.Time
	done    chan struct{}

	// Written by the loop before done is closed.
	state State
	err   error

	// Loop-owned.
	cfg      *journey.Config
	join     join
	commands int
	injected bool
}

// Done is closed when the run reaches a terminal state.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes or ctx is done.
func (r *Run) Wait(ctx context.Context) (State, error) {
	select {
	case <-r.done:
		return r.state, r.err
	case <-ctx.Done():
		return Idle, ctx.Err()
	}
}

// ===== EVENTS =====

type loadRequest struct {
	contact *contact.Contact
	reply   chan *Run
}

type widgetReady struct{}

type fetched struct {
	gen uint64
	doc []byte
	err error
}

type resolved struct {
	gen uint64
	id  string
	err error
}

type executed struct {
	gen uint64
	err error
}

type injected struct {
	gen uint64
	err error
}

// Orchestrator drives bootstrap runs for one page.
type Orchestrator struct {
	deps         Deps
	configName   string
	stageTimeout time.Duration
	compileOpts  []compiler.Option
	logger       *monitoring.Logger
	metrics      *monitoring.MetricsCollector
	tracker      *monitoring.Tracker
	alerts       *monitoring.AlertManager
	observer     func(Transition)

	ctx    context.Context
	cancel context.CancelFunc
	events chan any
	quit   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	view   atomic.Int32

	// Loop-owned.
	state       State
	gen         uint64
	current     *Run
	contact     contact.Contact
	widgetReady bool
}

// New starts the event loop and subscribes to deps.Ready.
func New(deps Deps, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan any),
		quit:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = monitoring.Default()
	}
	if o.deps.Notifier == nil {
		o.deps.Notifier = nopNotifier{}
	}

	o.wg.Add(1)
	go o.loop()

	if deps.Ready != nil {
		deps.Ready.OnReady(func() { o.post(widgetReady{}) })
	}
	return o
}

// State returns the state of the current run.
func (o *Orchestrator) State() State {
	return State(o.view.Load())
}

// Load starts a new run for the configured name with the last submitted
// contact. A missing name yields a run that is already Failed together with
// a ConfigurationMissing error.
func (o *Orchestrator) Load(ctx context.Context) (*Run, error) {
	return o.load(ctx, nil)
}

// Submit validates c and starts a run with it. An invalid contact is
// reported and blocks the run; state is unchanged.
func (o *Orchestrator) Submit(ctx context.Context, c contact.Contact) (*Run, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		e := &Error{Kind: ValidationFailure, Op: "submit contact", Err: err}
		o.logger.Warn().
			Str("email", monitoring.MaskEmail(c.Email)).
			Str("phone", monitoring.MaskPhone(c.Phone)).
			Err(err).
			Msg("contact rejected")
		o.deps.Notifier.Notify(ctx, NotificationFor(e))
		return nil, e
	}
	o.deps.Notifier.Notify(ctx, Notification{
		Severity: SeveritySuccess,
		Title:    "Information submitted",
		Message:  "Contact details saved",
	})
	return o.load(ctx, &c)
}

func (o *Orchestrator) load(ctx context.Context, c *contact.Contact) (*Run, error) {
	req := loadRequest{contact: c, reply: make(chan *Run, 1)}
	select {
	case o.events <- req:
	case <-o.quit:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var run *Run
	select {
	case run = <-req.reply:
	case <-o.quit:
		return nil, ErrClosed
	}
	select {
	case <-run.done:
		if KindOf(run.err) == ConfigurationMissing {
			return run, run.err
		}
	default:
	}
	return run, nil
}

// LaunchChat opens the chat widget. Failures are notified; run state is unchanged.
func (o *Orchestrator) LaunchChat(ctx context.Context) error {
	return o.widgetCall(ctx, "launch chat", func(w widget.Widget) error { return w.Launch(ctx) })
}

// ShowChat shows the chat button.
func (o *Orchestrator) ShowChat(ctx context.Context) error {
	return o.widgetCall(ctx, "show chat", func(w widget.Widget) error { return w.Show(ctx) })
}

// HideChat hides the chat button.
func (o *Orchestrator) HideChat(ctx context.Context) error {
	return o.widgetCall(ctx, "hide chat", func(w widget.Widget) error { return w.Hide(ctx) })
}

func (o *Orchestrator) widgetCall(ctx context.Context, op string, fn func(widget.Widget) error) error {
	err := widget.ErrUnavailable
	if o.deps.Widget != nil {
		err = fn(o.deps.Widget)
	}
	if err == nil {
		return nil
	}
	kind := ExecutionFailure
	if errors.Is(err, widget.ErrUnavailable) {
		kind = WidgetUnavailable
		if o.metrics != nil {
			o.metrics.RecordWidgetUnavailable()
		}
	}
	e := &Error{Kind: kind, Op: op, Err: err}
	o.logger.Warn().Str("op", op).Err(err).Msg("widget call failed")
	n := NotificationFor(e)
	n.Severity = SeverityError
	o.deps.Notifier.Notify(ctx, n)
	return e
}

// Close stops the event loop. Unfinished runs end with ErrClosed.
func (o *Orchestrator) Close() error {
	o.once.Do(func() {
		o.cancel()
		close(o.quit)
	})
	o.wg.Wait()
	return nil
}

// post delivers an event unless the loop has stopped.
func (o *Orchestrator) post(ev any) {
	select {
	case o.events <- ev:
	case <-o.quit:
	}
}

// spawn runs fn on a worker goroutine tracked by Close.
func (o *Orchestrator) spawn(fn func(ctx context.Context)) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := o.stageContext()
		defer cancel()
		fn(ctx)
	}()
}

func (o *Orchestrator) stageContext() (context.Context, context.CancelFunc) {
	if o.stageTimeout > 0 {
		return context.WithTimeout(o.ctx, o.stageTimeout)
	}
	return context.WithCancel(o.ctx)
}

// ===== EVENT LOOP =====

func (o *Orchestrator) loop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.quit:
			if r := o.current; r != nil && !r.state.Terminal() {
				o.finish(r, Failed, ErrClosed)
			}
			return
		case ev := <-o.events:
			o.handle(ev)
		}
	}
}

func (o *Orchestrator) handle(ev any) {
	switch ev := ev.(type) {
	case loadRequest:
		ev.reply <- o.startRun(ev.contact)
	case widgetReady:
		o.onWidgetReady()
	case fetched:
		if r := o.live(ev.gen); r != nil {
			o.onFetched(r, ev)
		}
	case resolved:
		o.onResolved(ev)
	case executed:
		if r := o.live(ev.gen); r != nil {
			o.onExecuted(r, ev)
		}
	case injected:
		o.onInjected(ev)
	}
}

// live returns the current run if gen is still current and unfinished.
func (o *Orchestrator) live(gen uint64) *Run {
	r := o.current
	if r == nil || r.Generation != gen || r.state.Terminal() {
		o.logger.Debug().Uint64("generation", gen).Msg("dropping stale completion")
		return nil
	}
	return r
}

func (o *Orchestrator) startRun(c *contact.Contact) *Run {
	if c != nil {
		o.contact = *c
	}
	if prev := o.current; prev != nil && !prev.state.Terminal() {
		o.finish(prev, Failed, ErrSuperseded)
	}

	o.gen++
	r := &Run{
		ID:         uuid.New().String(),
		Generation: o.gen,
		ConfigName: o.configName,
		started:    time.Now(),
		done:       make(chan struct{}),
		state:      Idle,
	}
	r.join.ready = o.widgetReady
	o.current = r
	if o.metrics != nil {
		o.metrics.RecordRunStarted()
	}

	o.transition(r, Idle)
	if r.ConfigName == "" {
		o.fail(r, &Error{Kind: ConfigurationMissing, Op: "load", Err: errNoConfigName})
		return r
	}

	o.transition(r, LoadingConfig)
	name, gen := r.ConfigName, r.Generation
	o.spawn(func(ctx context.Context) {
		doc, err := o.deps.Registry.FetchByName(ctx, name)
		o.post(fetched{gen: gen, doc: doc, err: err})
	})
	return r
}

func (o *Orchestrator) onFetched(r *Run, ev fetched) {
	if ev.err != nil {
		o.fail(r, &Error{Kind: FetchFailure, Op: "fetch configuration " + r.ConfigName, Err: ev.err})
		return
	}
	cfg, err := journey.Parse(ev.doc)
	if err != nil {
		kind := CompileFailure
		if errors.Is(err, journey.ErrInvalidConfig) {
			kind = FetchFailure
		}
		o.fail(r, &Error{Kind: kind, Op: "parse configuration " + r.ConfigName, Err: err})
		return
	}
	r.cfg = cfg

	o.transition(r, ResolvingIdentifier)
	name, gen := r.ConfigName, r.Generation
	o.spawn(func(ctx context.Context) {
		id, err := o.deps.Registry.ResolveIdentifier(ctx, name)
		o.post(resolved{gen: gen, id: id, err: err})
	})

	o.transition(r, Compiling)
	script, err := compiler.Compile(r.cfg, o.contact, o.compileOpts...)
	if err != nil {
		o.fail(r, &Error{Kind: CompileFailure, Op: "compile " + r.ConfigName, Err: err})
		return
	}
	if o.metrics != nil {
		o.metrics.RecordCompile()
	}
	r.commands = len(script.Commands)

	o.transition(r, Executing)
	o.spawn(func(ctx context.Context) {
		err := o.deps.Executor.Execute(ctx, script)
		o.post(executed{gen: gen, err: err})
	})
}

// onResolved feeds the hidden-field join. It is accepted after Ready; a
// lookup failure only costs the chat hand-off.
func (o *Orchestrator) onResolved(ev resolved) {
	r := o.current
	if r == nil || r.Generation != ev.gen || r.state == Failed {
		return
	}
	if ev.err != nil {
		e := &Error{Kind: WidgetUnavailable, Op: "resolve identifier " + r.ConfigName, Err: ev.err}
		if o.metrics != nil {
			o.metrics.RecordWidgetUnavailable()
		}
		if o.alerts != nil {
			o.alerts.FlagWidgetUnavailable(r.ID, "resolve identifier", ev.err)
		} else {
			o.logger.Warn().Str("run_id", r.ID).Err(ev.err).Msg("identifier lookup failed")
		}
		o.deps.Notifier.Notify(o.ctx, NotificationFor(e))
		return
	}
	if r.join.setIdentifier(ev.id) {
		o.inject(r)
	}
}

func (o *Orchestrator) onExecuted(r *Run, ev executed) {
	if ev.err != nil {
		o.fail(r, &Error{Kind: ExecutionFailure, Op: "execute " + r.ConfigName, Err: ev.err})
		return
	}
	o.transition(r, Ready)
	o.finish(r, Ready, nil)
}

func (o *Orchestrator) onWidgetReady() {
	if !o.widgetReady {
		o.logger.Debug().Msg("chat widget ready")
	}
	o.widgetReady = true
	r := o.current
	if r == nil || r.state == Failed {
		return
	}
	if r.join.setReady() {
		o.inject(r)
	}
}

// inject pushes the hidden pre-chat fields for r. Failures are non-fatal.
func (o *Orchestrator) inject(r *Run) {
	if o.deps.Widget == nil {
		o.widgetUnavailable(r, widget.ErrUnavailable)
		return
	}
	fields := widget.HiddenFields{
		CustomerEmail: o.contact.Email,
		CustomerPhone: o.contact.Phone,
		ConfigID:      r.join.identifier,
	}
	gen := r.Generation
	o.spawn(func(ctx context.Context) {
		err := o.deps.Widget.SetHiddenFields(ctx, fields)
		o.post(injected{gen: gen, err: err})
	})
}

func (o *Orchestrator) onInjected(ev injected) {
	r := o.current
	if r == nil || r.Generation != ev.gen {
		return
	}
	switch {
	case ev.err == nil:
		r.injected = true
		o.logger.Debug().Str("run_id", r.ID).Msg("hidden fields set")
	case errors.Is(ev.err, widget.ErrUnavailable):
		o.widgetUnavailable(r, ev.err)
	default:
		o.logger.Warn().Str("run_id", r.ID).Err(ev.err).Msg("set hidden fields failed")
	}
}

func (o *Orchestrator) widgetUnavailable(r *Run, err error) {
	if o.metrics != nil {
		o.metrics.RecordWidgetUnavailable()
	}
	if o.alerts != nil {
		o.alerts.FlagWidgetUnavailable(r.ID, "set hidden fields", err)
		return
	}
	o.logger.Warn().Str("run_id", r.ID).Err(err).Msg("chat widget unavailable")
}

// ===== STATE =====

func (o *Orchestrator) transition(r *Run, to State) {
	from := o.state
	o.state = to
	r.state = to
	o.view.Store(int32(to))
	o.logger.Debug().
		Str("run_id", r.ID).
		Str("from", from.String()).
		Str("to", to.String()).
		Msg("state")
	if o.observer != nil {
		o.observer(Transition{RunID: r.ID, Generation: r.Generation, From: from, To: to})
	}
}

// fail moves r to Failed and sends exactly one notification.
func (o *Orchestrator) fail(r *Run, e *Error) {
	o.transition(r, Failed)
	o.logger.Error().Str("run_id", r.ID).Str("kind", e.Kind.String()).Err(e.Err).Msg(e.Op)
	o.deps.Notifier.Notify(o.ctx, NotificationFor(e))
	if o.alerts != nil {
		o.alerts.FlagRunFailure(r.ID, r.ConfigName, e.Kind.String(), e.Err)
	}
	o.finish(r, Failed, e)
}

// finish records the outcome and releases waiters.
func (o *Orchestrator) finish(r *Run, state State, err error) {
	r.state = state
	r.err = err
	defer close(r.done)

	latency := time.Since(r.started)
	if o.metrics != nil {
		o.metrics.RecordRunFinished(state == Ready)
	}
	if o.alerts != nil {
		o.alerts.FlagSlowRun(r.ID, r.ConfigName, latency)
	}
	ev := &monitoring.RunEvent{
		RunID:        r.ID,
		Generation:   r.Generation,
		Timestamp:    time.Now(),
		ConfigName:   r.ConfigName,
		State:        state.String(),
		Commands:     r.commands,
		HiddenFields: r.injected,
		LatencyMs:    latency.Milliseconds(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	if k := KindOf(err); k != KindNone {
		ev.ErrorKind = k.String()
	}
	o.tracker.RecordRun(ev)
}
