package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"k8s.io/klog/v2"

	"metatask/internal/engine"
	"metatask/internal/storage"
	taskapi "metatask/pkg/metatask"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "losses":
		return runLosses(ctx, args[1:])
	case "families":
		return runFamilies(ctx, args[1:])
	case "summary":
		return runSummary(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// newFlagSet registers klog's flags alongside the subcommand's own so
// verbosity can be raised per invocation.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	klog.InitFlags(fs)
	return fs
}

func newClient(storeKind, dbPath string) (*taskapi.Client, error) {
	client, err := taskapi.New(taskapi.Options{
		StoreKind: storeKind,
		DBPath:    dbPath,
	})
	if err != nil {
		return nil, err
	}
	if err := client.RegisterDefaultFamilies(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func runInit(ctx context.Context, args []string) error {
	fs := newFlagSet("init")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "metatask.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := newFlagSet("reset")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "metatask.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	if err := client.Reset(ctx); err != nil {
		return err
	}

	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := newFlagSet("run")
	configPath := fs.String("config", "", "optional run config JSON path")
	familyName := fs.String("family", "quadratic-dim10", "task family name")
	population := fs.Int("pop", 32, "population size")
	seed := fs.Int64("seed", 1, "base rng seed; member i uses seed+i")
	workers := fs.Int("workers", engine.DefaultWorkers(), "worker count")
	train := fs.Bool("train", false, "run inner training instead of a single evaluation")
	steps := fs.Int("steps", 20, "inner training steps (train only)")
	learningRate := fs.Float64("lr", 0.05, "inner training learning rate (train only)")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "metatask.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = taskapi.RunRequest{
			Family:       *familyName,
			Population:   *population,
			Seed:         *seed,
			Workers:      *workers,
			Train:        *train,
			Steps:        *steps,
			LearningRate: *learningRate,
		}
	} else {
		overrideFromFlags(&req, setFlags, map[string]any{
			"family":  *familyName,
			"pop":     *population,
			"seed":    *seed,
			"workers": *workers,
			"train":   *train,
			"steps":   *steps,
			"lr":      *learningRate,
		})
	}
	if req.Population < 0 {
		return errors.New("population must be >= 0")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("run completed run_id=%s family=%s mode=%s pop=%s seed=%d\n",
		summary.RunID, summary.Family, summary.Mode, formatCount(summary.Population), req.Seed)
	for i, loss := range summary.MeanLossByStep {
		fmt.Printf("step=%d mean_loss=%.6f\n", i+1, loss)
	}
	fmt.Printf("mean_final_loss=%.6f best_final_loss=%.6f\n", summary.MeanFinalLoss, summary.BestFinalLoss)
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := newFlagSet("runs")
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "metatask.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	runs, err := client.Runs(ctx, taskapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s family=%s mode=%s seed=%d pop=%s steps=%d mean_final_loss=%.6f best_final_loss=%.6f\n",
			r.RunID,
			formatTimestamp(r.CreatedAtUTC),
			r.Family,
			r.Mode,
			r.Seed,
			formatCount(r.Population),
			r.Steps,
			r.MeanFinalLoss,
			r.BestFinalLoss,
		)
	}
	return nil
}

func runLosses(ctx context.Context, args []string) error {
	fs := newFlagSet("losses")
	runID := fs.String("run-id", "", "run id")
	jsonOut := fs.Bool("json", false, "emit loss history as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "metatask.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("losses requires --run-id")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	history, err := client.Losses(ctx, *runID)
	if err != nil {
		return err
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(history)
	}

	for i, loss := range history {
		fmt.Printf("step=%d mean_loss=%.6f\n", i+1, loss)
	}
	return nil
}

func runFamilies(_ context.Context, args []string) error {
	fs := newFlagSet("families")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(storage.DefaultStoreKind(), "")
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	for _, name := range client.Families() {
		fmt.Println(name)
	}
	return nil
}

func runSummary(ctx context.Context, args []string) error {
	fs := newFlagSet("summary")
	familyName := fs.String("family", "", "task family name")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "metatask.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *familyName == "" {
		return errors.New("summary requires --family")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}

	summary, err := client.Summary(ctx, *familyName)
	if err != nil {
		return err
	}

	fmt.Printf("family=%s runs=%s best_loss=%.6f\n", summary.Name, formatCount(summary.Runs), summary.BestLoss)
	fmt.Println(summary.Description)
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: metataskctl <init|reset|run|runs|losses|families|summary> [flags]", msg)
}
