package workflow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/Ak-9647/queryflow/internal/coordinator"
	"github.com/Ak-9647/queryflow/internal/decompose"
	"github.com/Ak-9647/queryflow/internal/fallback"
	"github.com/Ak-9647/queryflow/internal/graph"
	"github.com/Ak-9647/queryflow/internal/memory"
	"github.com/Ak-9647/queryflow/internal/registry"
	"github.com/Ak-9647/queryflow/internal/relevance"
	"github.com/Ak-9647/queryflow/internal/synth"
	"github.com/Ak-9647/queryflow/pkg/models"
)

// RequiredConfig contains the minimal required configuration for a
// Workflow. All fields are required and have no defaults.
type RequiredConfig struct {
	// Registry is the tool catalog used for relevance scoring.
	Registry *registry.Registry
	// Invoker executes external tool calls.
	Invoker coordinator.Invoker
	// Memory owns session context and durable history.
	Memory *memory.Manager
}

// Option configures a Workflow. Use With* functions to create Options.
type Option func(*workflowOptions)

type workflowOptions struct {
	maxSubtasks    int
	maxConcurrency int
	logger         *DebugLogger
	emitter        *coordinator.Emitter
	decomposer     *decompose.Decomposer
}

// WithMaxSubtasks caps how many nodes one query fans out into.
func WithMaxSubtasks(n int) Option {
	return func(o *workflowOptions) { o.maxSubtasks = n }
}

// WithMaxConcurrency bounds parallel node execution.
func WithMaxConcurrency(n int) Option {
	return func(o *workflowOptions) { o.maxConcurrency = n }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *workflowOptions) { o.logger = l }
}

// WithEmitter attaches a coordinator event emitter for progress output.
func WithEmitter(e *coordinator.Emitter) Option {
	return func(o *workflowOptions) { o.emitter = e }
}

// WithDecomposer injects a decomposer, used by tests.
func WithDecomposer(d *decompose.Decomposer) Option {
	return func(o *workflowOptions) { o.decomposer = d }
}

// Workflow processes one analytics query end to end: context, decompose,
// score, execute, synthesize, remember.
type Workflow struct {
	registry    *registry.Registry
	decomposer  *decompose.Decomposer
	scorer      *relevance.Scorer
	coordinator *coordinator.Coordinator
	synthesizer *synth.Synthesizer
	memory      *memory.Manager
	logger      *DebugLogger
}

// New creates a workflow from required config plus options.
func New(req RequiredConfig, opts ...Option) *Workflow {
	o := &workflowOptions{}
	for _, opt := range opts {
		opt(o)
	}

	coordOpts := []coordinator.Option{}
	if o.maxConcurrency > 0 {
		coordOpts = append(coordOpts, coordinator.WithMaxConcurrency(o.maxConcurrency))
	}
	if o.emitter != nil {
		coordOpts = append(coordOpts, coordinator.WithEmitter(o.emitter))
	}

	d := o.decomposer
	if d == nil {
		d = decompose.New(o.maxSubtasks)
	}

	logger := o.logger
	if logger == nil {
		logger = NopLogger()
	}
	setPackageLogger(logger)

	return &Workflow{
		registry:    req.Registry,
		decomposer:  d,
		scorer:      relevance.NewScorer(req.Registry),
		coordinator: coordinator.New(req.Invoker, fallback.New(), coordOpts...),
		synthesizer: synth.New(),
		memory:      req.Memory,
		logger:      logger,
	}
}

// ProcessQuery runs one query for a session. Requests for the same session
// are serialized; per-node failures degrade the response instead of
// failing it, and only empty decomposition, required-task failure, or
// cancellation surface as errors.
func (w *Workflow) ProcessQuery(ctx context.Context, sessionID, query string) (*models.Response, error) {
	return w.process(ctx, sessionID, query, decompose.IntentFor(query))
}

// ProcessQueryWithIntent is ProcessQuery with the intent label supplied by
// the caller instead of inferred from the query text.
func (w *Workflow) ProcessQueryWithIntent(ctx context.Context, sessionID, query string, intent models.Intent) (*models.Response, error) {
	if !intent.Valid() {
		intent = decompose.IntentFor(query)
	}
	return w.process(ctx, sessionID, query, intent)
}

func (w *Workflow) process(ctx context.Context, sessionID, query string, intent models.Intent) (*models.Response, error) {
	release := w.memory.Acquire(sessionID)
	defer release()

	started := time.Now()
	debugSession(sessionID, "query %q", query)

	turns, prefs, err := w.memory.Context(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load context: %w", err)
	}

	topics := contextTopics(turns, prefs)

	nodes, err := w.decomposer.Decompose(query, intent, topics)
	if err != nil {
		return nil, err
	}
	debugSession(sessionID, "intent=%s tasks=%d", intent, len(nodes))

	w.scorer.ScoreAll(nodes, intent)

	g := graph.New()
	if err := g.Build(nodes); err != nil {
		return nil, fmt.Errorf("build task graph: %w", err)
	}

	if err := w.coordinator.Execute(ctx, g); err != nil {
		return nil, err
	}

	resp, err := w.synthesizer.Synthesize(g)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	turn := models.Turn{
		SessionID: sessionID,
		Query:     query,
		Intent:    intent,
		Summary:   resp.Summary,
		Degraded:  resp.Degraded,
		Timestamp: now,
	}
	if err := w.memory.RecordTurn(turn); err != nil {
		log.Printf("[workflow] session %s: record turn failed: %v", sessionID, err)
	}
	if err := w.memory.UpdatePreferences(sessionID, intent, chartTypeOf(query), []string{topicOf(query)}); err != nil {
		log.Printf("[workflow] session %s: update preferences failed: %v", sessionID, err)
	}

	debugSession(sessionID, "completed in %v (degraded=%v)", now.Sub(started), resp.Degraded)
	return resp, nil
}

// Close releases the workflow's debug logger.
func (w *Workflow) Close() error {
	return w.logger.Close()
}

// contextTopics builds the topic list fed back into decomposition: learned
// preference topics first, then the subjects of the most recent turns.
func contextTopics(turns []models.Turn, prefs models.Preferences) []string {
	var topics []string
	topics = append(topics, prefs.Topics...)
	for _, t := range turns {
		if topic := topicOf(t.Query); topic != "" {
			topics = append(topics, topic)
		}
	}
	return topics
}

// leadingVerbs are command prefixes stripped when turning a query into a
// carry-over topic.
var leadingVerbs = []string{
	"show me ", "show ", "what is ", "what are ", "give me ", "list ",
	"plot ", "chart ", "visualize ", "compare ", "find ", "get ",
}

// topicOf reduces a query to its subject for anaphora resolution.
func topicOf(query string) string {
	topic := strings.ToLower(strings.TrimSpace(strings.Trim(query, ".?!")))
	for _, verb := range leadingVerbs {
		if strings.HasPrefix(topic, verb) {
			topic = strings.TrimSpace(topic[len(verb):])
			break
		}
	}
	return topic
}

// chartTypeOf detects an explicit chart-type choice in the query, feeding
// the preference counters.
func chartTypeOf(query string) string {
	lower := strings.ToLower(query)
	for _, kind := range []string{"bar", "line", "pie", "scatter", "heatmap"} {
		if strings.Contains(lower, kind+" chart") || strings.Contains(lower, kind+" graph") || strings.Contains(lower, kind+" plot") {
			return kind
		}
	}
	return ""
}
