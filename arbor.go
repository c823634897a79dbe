// Package arbor executes declarative workflow graphs: typed task nodes
// joined by sequential, conditional and parallel transitions, run against
// a shared mutable context.
//
// Build a graph with the dsl package or load one from a YAML document,
// compile it (static validation happens here, once), then run it:
//
//	app := arbor.New(arbor.WithFunction("greet", greet))
//	wf, err := app.LoadFile("workflow.yaml")
//	record, err := wf.Run(ctx, arbor.Context{"name": "Ada"})
package arbor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/arbor/internal/adapters/memory"
	"github.com/aretw0/arbor/internal/adapters/texttemplate"
	"github.com/aretw0/arbor/internal/adapters/yamldoc"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/catalog"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/observability"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/registry"
)

// Context is the shared mutable state a run executes against.
type Context = domain.Context

// App holds the wiring shared by all workflows: function registry,
// collaborators, observers and the execution engine.
type App struct {
	logger     *slog.Logger
	registry   *registry.Registry
	generator  ports.Generator
	renderer   ports.TemplateRenderer
	store      ports.RunStore
	dispatcher *observability.Dispatcher
	engine     *runtime.Engine
	validator  *validator.Validator
	metrics    *observability.Metrics

	observers     []domain.Observer
	validatorOpts []validator.Option
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the structured logger. Events are logged through it and
// the engine uses it for debug traces.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithObserver registers a lifecycle observer.
func WithObserver(obs domain.Observer) Option {
	return func(a *App) {
		a.observers = append(a.observers, obs)
	}
}

// WithGenerator sets the text-generation collaborator for generator nodes.
func WithGenerator(gen ports.Generator) Option {
	return func(a *App) {
		a.generator = gen
	}
}

// WithTemplateRenderer replaces the default text/template renderer.
func WithTemplateRenderer(r ports.TemplateRenderer) Option {
	return func(a *App) {
		a.renderer = r
	}
}

// WithRunStore replaces the default in-memory run store.
func WithRunStore(store ports.RunStore) Option {
	return func(a *App) {
		a.store = store
	}
}

// WithFunction registers one host function for function nodes.
func WithFunction(name string, fn registry.Function) Option {
	return func(a *App) {
		a.registry.Register(name, fn)
	}
}

// WithFunctions registers a batch of host functions.
func WithFunctions(fns map[string]registry.Function) Option {
	return func(a *App) {
		for name, fn := range fns {
			a.registry.Register(name, fn)
		}
	}
}

// WithLenientReachability downgrades unreachable-node validation findings
// from errors to warnings.
func WithLenientReachability() Option {
	return func(a *App) {
		a.validatorOpts = append(a.validatorOpts, validator.WithLenientReachability())
	}
}

// New creates an App. Zero-config default: no-op logging, in-memory run
// store, text/template rendering, and no generator (generator nodes fail
// until one is provided).
func New(opts ...Option) *App {
	a := &App{
		logger:   logging.NewNop(),
		registry: registry.New(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.renderer == nil {
		a.renderer = texttemplate.New()
	}
	if a.store == nil {
		a.store = memory.New()
	}

	a.dispatcher = observability.NewDispatcher(observability.NewSlogObserver(a.logger))
	for _, obs := range a.observers {
		a.dispatcher.Register(obs)
	}

	a.validatorOpts = append(a.validatorOpts, validator.WithLogger(a.logger))
	a.validator = validator.New(a.validatorOpts...)

	// The sub-workflow behavior recurses through the engine; bind it late
	// so catalog and engine can reference each other.
	var eng *runtime.Engine
	run := func(ctx context.Context, g *domain.Graph, rctx domain.Context) (domain.Context, error) {
		return eng.RunShared(ctx, g, rctx)
	}
	cat := catalog.Default(a.registry, a.generator, a.renderer, run)
	eng = runtime.NewEngine(cat,
		runtime.WithLogger(a.logger),
		runtime.WithDispatcher(a.dispatcher),
	)
	a.engine = eng

	return a
}

// Registry exposes the host function registry.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Store exposes the run store.
func (a *App) Store() ports.RunStore {
	return a.store
}

// Logger exposes the structured logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Metrics returns the Prometheus observer, or nil when none is attached.
func (a *App) Metrics() *observability.Metrics {
	return a.metrics
}

// Compile validates a graph and binds it to the app for execution.
func (a *App) Compile(g *domain.Graph) (*Workflow, error) {
	if err := a.validator.Validate(g); err != nil {
		return nil, err
	}
	return &Workflow{app: a, graph: g}, nil
}

// LoadFile loads a YAML workflow document and compiles it.
func (a *App) LoadFile(path string) (*Workflow, error) {
	doc, err := yamldoc.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return a.compileDocument(doc)
}

// Load parses YAML document bytes and compiles the graph.
func (a *App) Load(data []byte) (*Workflow, error) {
	doc, err := yamldoc.Parse(data)
	if err != nil {
		return nil, err
	}
	return a.compileDocument(doc)
}

// compileDocument binds a document to the app: every function the
// document declares must already be registered, and its observers section
// is resolved to built-in observers, before the graph is validated.
func (a *App) compileDocument(doc *yamldoc.Document) (*Workflow, error) {
	for _, name := range doc.Functions {
		if !a.registry.Has(name) {
			return nil, &domain.DefinitionError{
				Reason: fmt.Sprintf("document requires function %q, which is not registered", name),
			}
		}
	}
	for _, name := range doc.Observers {
		if err := a.attachObserver(name); err != nil {
			return nil, err
		}
	}

	g, err := doc.ToGraph()
	if err != nil {
		return nil, err
	}
	return a.Compile(g)
}

// attachObserver resolves a document observer name. "logging" is always
// present; "metrics" attaches the Prometheus observer once.
func (a *App) attachObserver(name string) error {
	switch name {
	case "logging":
		return nil
	case "metrics":
		if a.metrics == nil {
			a.metrics = observability.NewMetrics()
			a.dispatcher.Register(a.metrics)
		}
		return nil
	default:
		return &domain.DefinitionError{Reason: fmt.Sprintf("unknown observer %q", name)}
	}
}

// Workflow is a validated graph bound to an App, ready to run any number
// of times.
type Workflow struct {
	app   *App
	graph *domain.Graph
}

// Graph exposes the underlying definition.
func (w *Workflow) Graph() *domain.Graph {
	return w.graph
}

// Run executes the workflow against a seed context. The returned record
// is persisted in the app's run store whether the run succeeded or not;
// on failure it carries the error alongside the run's identity.
func (w *Workflow) Run(ctx context.Context, seed Context) (*domain.RunRecord, error) {
	id := uuid.NewString()
	record := &domain.RunRecord{
		ID:        id,
		Workflow:  w.graph.Name,
		Status:    domain.RunRunning,
		StartedAt: time.Now(),
	}

	final, err := w.app.engine.Run(runtime.WithRunID(ctx, id), w.graph, seed)
	record.FinishedAt = time.Now()
	if err != nil {
		record.Status = domain.RunFailed
		record.Error = err.Error()
	} else {
		record.Status = domain.RunCompleted
		record.Context = final
	}

	// Persist even when the run's context was cancelled.
	saveCtx := context.WithoutCancel(ctx)
	if saveErr := w.app.store.Save(saveCtx, record); saveErr != nil {
		w.app.logger.Warn("failed to persist run record", "run", id, "err", saveErr)
	}

	if err != nil {
		return record, err
	}
	return record, nil
}
