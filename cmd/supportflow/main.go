// Command supportflow runs customer support requests through the staged
// pipeline: deterministic abilities, human clarification, and model-backed
// enrichment, with runs resumable across invocations.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/term"

	"supportflow/pkg/ability"
	"supportflow/pkg/atlas"
	"supportflow/pkg/config"
	"supportflow/pkg/human"
	"supportflow/pkg/kb"
	"supportflow/pkg/llm"
	"supportflow/pkg/llm/factory"
	"supportflow/pkg/llm/llmerrors"
	"supportflow/pkg/llm/metrics"
	"supportflow/pkg/logx"
	metricsquery "supportflow/pkg/metrics"
	"supportflow/pkg/orchestrator"
	"supportflow/pkg/persistence"
	"supportflow/pkg/state"
	"supportflow/pkg/ticket"
)

func main() {
	var (
		configPath = flag.String("config", "", "pipeline config file (YAML); built-in defaults when empty")
		dbPath     = flag.String("db", "supportflow.db", "run and ticket database path")
		listenAddr = flag.String("listen", "", "serve /health and /metrics on this address")
		resumeID   = flag.String("resume", "", "resume a suspended run by ID")
		answer     = flag.String("answer", "", "answer for the resumed run's pending prompt")

		promURL = flag.String("prometheus", "", "Prometheus server URL for usage queries")
		usage   = flag.String("usage", "", "print aggregated model usage for an ability and exit")

		customer = flag.String("customer", "", "customer name")
		email    = flag.String("email", "", "customer email")
		query    = flag.String("query", "", "free-text support query")
		priority = flag.String("priority", "normal", "request priority")
		ticketID = flag.Int("ticket", 0, "existing ticket ID (0 allocates one)")
	)
	flag.Parse()

	logger := logx.NewLogger("supportflow")

	if *usage != "" {
		if err := printUsage(*promURL, *usage); err != nil {
			logger.Error("%v", err)
			os.Exit(1)
		}
		return
	}

	if err := run(logger, *configPath, *dbPath, *listenAddr, *resumeID, *answer,
		state.Intake{
			CustomerName: *customer,
			Email:        *email,
			Query:        *query,
			Priority:     *priority,
			TicketID:     *ticketID,
		}); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

func run(logger *logx.Logger, configPath, dbPath, listenAddr, resumeID, answer string, intake state.Intake) error {
	pipeline := config.Default()
	if configPath != "" {
		var err error
		pipeline, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := loadSecrets(filepath.Dir(configPath)); err != nil {
			return err
		}
	}

	store, err := persistence.Open(dbPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	recorder := metrics.Nop()
	if listenAddr != "" {
		recorder = metrics.NewPrometheusRecorder()
		go serveObservability(logger, listenAddr)
	}

	client, err := factory.NewClient(pipeline.Model, recorder, logger)
	if err != nil {
		if !llmerrors.IsUnavailable(err) {
			return fmt.Errorf("model client: %w", err)
		}
		logger.Warn("model provider unavailable, running degraded: %v", err)
		client = nil
	}

	orch, err := buildOrchestrator(pipeline, store, client, recorder)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if resumeID != "" {
		return resumeRun(ctx, orch, resumeID, answer)
	}

	if intake.Query == "" {
		return fmt.Errorf("a -query is required to start a run")
	}

	tickets := ticket.NewStore(store.DB())
	intake.TicketID, err = tickets.Ensure(ctx, intake.TicketID,
		intake.CustomerName, intake.Email, intake.Priority)
	if err != nil {
		logger.Warn("ticket system: %v", err)
	}

	run, outcome := orch.Start(ctx, intake)
	return report(run, outcome)
}

func buildOrchestrator(pipeline config.Pipeline, store *persistence.Store, client llm.Client, recorder metrics.Recorder) (*orchestrator.Orchestrator, error) {
	models, err := atlas.NewExecutor(client, pipeline.Model, pipeline.Escalation.Threshold, recorder)
	if err != nil {
		return nil, err
	}

	registry := ability.NewRegistry(pipeline)
	set := ability.NewLocalSet(
		kb.NewMemorySearcher(kb.DefaultArticles()),
		ticket.NewStore(store.DB()),
		pipeline.Escalation.Threshold,
	)
	set.RegisterAll(registry)

	opts := orchestrator.Options{
		Pipeline: pipeline,
		Registry: registry,
		Models:   models,
		Store:    store,
	}
	// Interactive sessions answer prompts inline; otherwise runs suspend
	// and are resumed with -resume.
	if term.IsTerminal(int(os.Stdin.Fd())) {
		opts.Asker = human.NewTerminal(os.Stdin, os.Stderr)
	}
	return orchestrator.New(opts)
}

func resumeRun(ctx context.Context, orch *orchestrator.Orchestrator, id, answer string) error {
	run, err := orch.Load(id)
	if err != nil {
		return err
	}
	if answer == "" {
		return fmt.Errorf("run %s is awaiting input for %s: %s (supply -answer)",
			id, run.Pending().Ability, run.Pending().Question)
	}
	return report(run, orch.Resume(ctx, run, answer))
}

// report prints the run outcome to stdout and maps it to the process exit.
func report(run *orchestrator.Run, outcome orchestrator.Outcome) error {
	switch outcome.State {
	case orchestrator.StateComplete:
		out, err := json.MarshalIndent(outcome.Payload, "", "  ")
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		fmt.Println(string(out))
		return nil

	case orchestrator.StateAwaitingHumanInput:
		fmt.Fprintf(os.Stderr, "run %s suspended awaiting %s:\n%s\n",
			run.Request().ID, outcome.Pending.Ability, outcome.Pending.Question)
		fmt.Fprintf(os.Stderr, "resume with: supportflow -resume %s -answer \"...\"\n",
			run.Request().ID)
		return nil

	case orchestrator.StateFailed:
		return fmt.Errorf("run %s failed: %w", run.Request().ID, outcome.Fault)

	default:
		return fmt.Errorf("run %s stopped in unexpected state %s", run.Request().ID, outcome.State)
	}
}

// loadSecrets decrypts the secrets file next to the config when one exists,
// prompting for the password on the terminal.
func loadSecrets(dir string) error {
	if !config.SecretsFileExists(dir) {
		return nil
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("encrypted secrets present in %s but no terminal to prompt on", dir)
	}

	fmt.Fprint(os.Stderr, "secrets password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}

	secrets, err := config.DecryptSecretsFile(dir, string(password))
	if err != nil {
		return fmt.Errorf("decrypt secrets: %w", err)
	}
	config.SetDecryptedSecrets(secrets)
	return nil
}

// printUsage queries Prometheus for one ability's aggregated model usage.
func printUsage(promURL, ability string) error {
	if promURL == "" {
		return fmt.Errorf("-usage requires -prometheus")
	}
	svc, err := metricsquery.NewQueryService(promURL)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	m, err := svc.GetAbilityMetrics(ctx, ability)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func serveObservability(logger *logx.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"status":"ok","time":%q}`, time.Now().UTC().Format(time.RFC3339))
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	logger.Info("observability listening on %s", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("observability server: %v", err)
	}
}
