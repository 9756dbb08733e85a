package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Ak-9647/queryflow/internal/adapter"
	"github.com/Ak-9647/queryflow/internal/config"
	"github.com/Ak-9647/queryflow/internal/coordinator"
	"github.com/Ak-9647/queryflow/internal/memory"
	"github.com/Ak-9647/queryflow/internal/registry"
	"github.com/Ak-9647/queryflow/internal/workflow"
	"github.com/Ak-9647/queryflow/pkg/models"
)

var (
	querySession string
	queryIntent  string
	queryVerbose bool
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Answer one analytics question",
	Long: `Decompose a question into sub-tasks, execute them against the tool
catalog, and print the merged answer.

Use --session to keep conversational context across invocations:

  queryflow query --session work "show me sales by region"
  queryflow query --session work "break that down by month"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&querySession, "session", "", "session id for conversational context (default: a fresh session)")
	queryCmd.Flags().StringVar(&queryIntent, "intent", "", "override the inferred intent (descriptive, comparative, diagnostic, predictive, exploratory, operational, general)")
	queryCmd.Flags().BoolVarP(&queryVerbose, "verbose", "v", false, "print per-task progress")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	mem := memory.NewManager(store,
		memory.WithRetention(cfg.Memory.Retention),
		memory.WithIdleTTL(cfg.Memory.IdleTTL),
		memory.WithContextTurns(cfg.Memory.ContextTurns),
	)

	logger, err := workflow.NewDebugLogger(cfg.Logging.DebugLog)
	if err != nil {
		return fmt.Errorf("open debug log: %w", err)
	}

	emitter := coordinator.NewEmitter(100)
	progressDone := make(chan struct{})
	go printProgress(emitter, progressDone)

	w := workflow.New(workflow.RequiredConfig{
		Registry: reg,
		Invoker:  buildAdapter(cfg, reg),
		Memory:   mem,
	},
		workflow.WithMaxSubtasks(cfg.Decomposer.MaxSubtasks),
		workflow.WithMaxConcurrency(cfg.Coordinator.MaxConcurrency),
		workflow.WithLogger(logger),
		workflow.WithEmitter(emitter),
	)
	defer w.Close()

	session := querySession
	if session == "" {
		session = uuid.New().String()[:8]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Registry.Watch {
		go func() {
			if err := reg.Watch(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "warning: catalog watch: %v\n", err)
			}
		}()
	}

	text := strings.Join(args, " ")
	var resp *models.Response
	if queryIntent != "" {
		resp, err = w.ProcessQueryWithIntent(ctx, session, text, models.ParseIntent(queryIntent))
	} else {
		resp, err = w.ProcessQuery(ctx, session, text)
	}
	emitter.Close()
	<-progressDone
	if err != nil {
		return err
	}

	printResponse(resp)
	return nil
}

// openRegistry loads the configured catalog, falling back to the built-in
// defaults when none is configured.
func openRegistry(cfg *config.Config) (*registry.Registry, error) {
	if cfg.Registry.Catalog == "" {
		return registry.New(), nil
	}
	reg, err := registry.Load(cfg.Registry.Catalog)
	if err != nil {
		return nil, fmt.Errorf("load tool catalog: %w", err)
	}
	return reg, nil
}

func openStore(cfg *config.Config) (*memory.Store, error) {
	path := cfg.Memory.Path
	if path == "" {
		path = filepath.Join(config.DataDir(), "queryflow.db")
	}
	store, err := memory.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate memory store: %w", err)
	}
	return store, nil
}

// buildAdapter wires an HTTP provider for every catalog tool that declares
// an endpoint. Tools without endpoints have no provider, so their nodes
// resolve through local fallback.
func buildAdapter(cfg *config.Config, reg *registry.Registry) *adapter.Adapter {
	a := adapter.New(
		adapter.WithTimeout(cfg.Adapter.Timeout),
		adapter.WithMaxRetries(cfg.Adapter.MaxRetries),
		adapter.WithBackoffBase(cfg.Adapter.BackoffBase),
		adapter.WithBreaker(adapter.NewBreaker(cfg.Breaker.FailureThreshold, cfg.Breaker.Cooldown)),
	)
	for _, tool := range reg.List() {
		endpoint := tool.Params["endpoint"]
		if endpoint == "" {
			continue
		}
		p, err := adapter.NewHTTPProvider(tool.Name, endpoint)
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: tool %s: %v\n", tool.Name, err)
			continue
		}
		a.Register(tool.Name, p)
	}
	return a
}

func printProgress(emitter *coordinator.Emitter, done chan<- struct{}) {
	defer close(done)
	for e := range emitter.Events() {
		if !queryVerbose {
			continue
		}
		switch e.Type {
		case coordinator.EventNodeStarted:
			fmt.Printf("  %s %s\n", color.CyanString("run"), e.TaskID)
		case coordinator.EventNodeFinished:
			label := string(e.Status)
			switch e.Status {
			case models.NodeStatusSucceeded:
				label = color.GreenString(label)
			case models.NodeStatusFallenBack:
				label = color.YellowString(label)
			case models.NodeStatusFailed, models.NodeStatusSkipped:
				label = color.RedString(label)
			}
			if e.Tool != "" {
				fmt.Printf("  %s %s via %s\n", label, e.TaskID, e.Tool)
			} else {
				fmt.Printf("  %s %s\n", label, e.TaskID)
			}
		}
	}
}

func printResponse(resp *models.Response) {
	fmt.Println(resp.Summary)

	if resp.Degraded {
		fmt.Println()
		color.Yellow("Partial results:")
		for _, reason := range resp.DegradedReasons {
			color.Yellow("  - %s", reason)
		}
	}
}
