// Package metatask is the public facade over the task-family core: family
// registration, population runs, and run artifact queries.
package metatask

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"metatask/internal/dataset"
	"metatask/internal/engine"
	"metatask/internal/family"
	"metatask/internal/model"
	"metatask/internal/population"
	"metatask/internal/storage"
	"metatask/internal/task"
)

const defaultDBPath = "metatask.db"

type Options struct {
	StoreKind string
	DBPath    string

	// Cache overrides the dataset cache; nil selects the process-wide
	// shared cache.
	Cache *dataset.Cache
}

type Client struct {
	store storage.Store
	cache *dataset.Cache

	mu       sync.RWMutex
	families map[string]task.Family
}

type RunRequest struct {
	Family       string
	Population   int
	Seed         int64
	Workers      int
	Train        bool
	Steps        int
	LearningRate float64
}

type RunSummary struct {
	RunID          string
	Family         string
	Mode           string
	Population     int
	MeanLossByStep []float64
	MeanFinalLoss  float64
	BestFinalLoss  float64
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID         string
	CreatedAtUTC  string
	Family        string
	Mode          string
	Seed          int64
	Population    int
	Steps         int
	MeanFinalLoss float64
	BestFinalLoss float64
}

type FamilySummaryItem struct {
	Name        string
	Description string
	BestLoss    float64
	Runs        int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	cache := opts.Cache
	if cache == nil {
		cache = dataset.SharedCache()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:    store,
		cache:    cache,
		families: make(map[string]task.Family),
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

func (c *Client) Reset(ctx context.Context) error {
	resetter, ok := c.store.(storage.Resetter)
	if !ok {
		return c.store.Init(ctx)
	}
	return resetter.Reset(ctx)
}

// RegisterFamily adds a family to the registry. Names must be unique.
func (c *Client) RegisterFamily(f task.Family) error {
	if f == nil {
		return errors.New("family is required")
	}
	name := f.Name()
	if name == "" {
		return errors.New("family name is required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.families[name]; exists {
		return fmt.Errorf("family already registered: %s", name)
	}
	c.families[name] = f
	return nil
}

// RegisterDefaultFamilies registers the built-in families: a ten-dimensional
// quadratic family, a shared-data linear regression family, and the noise
// mimic task lifted through the single-task adapter.
func (c *Client) RegisterDefaultFamilies() error {
	if err := c.RegisterFamily(family.FixedDimQuadraticFamily{Dim: 10}); err != nil {
		return err
	}

	regression, err := family.NewLinearRegressionFamily(c.cache, 5, 16, 1)
	if err != nil {
		return err
	}
	if err := c.RegisterFamily(regression); err != nil {
		return err
	}

	mimic, err := family.NewNoiseMimicTask(c.cache, 10, 2)
	if err != nil {
		return err
	}
	wrapped, err := task.FromTask(mimic)
	if err != nil {
		return err
	}
	return c.RegisterFamily(wrapped)
}

func (c *Client) Families() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.families))
	for name := range c.families {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Client) family(name string) (task.Family, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.families[name]
	return f, ok
}

// Run evaluates or trains a population over a registered family and
// persists the run record, loss history and family summary.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Family == "" {
		return RunSummary{}, errors.New("family name is required")
	}
	if req.Population <= 0 {
		req.Population = 32
	}
	if req.Workers <= 0 {
		req.Workers = engine.DefaultWorkers()
	}
	if req.Train {
		if req.Steps <= 0 {
			req.Steps = 20
		}
		if req.LearningRate <= 0 {
			req.LearningRate = 0.05
		}
	}

	fam, ok := c.family(req.Family)
	if !ok {
		return RunSummary{}, fmt.Errorf("family not registered: %s", req.Family)
	}

	runner, err := population.NewRunner(population.Config{
		Family: fam,
		Mapper: engine.ParallelMapper{Workers: req.Workers},
	})
	if err != nil {
		return RunSummary{}, err
	}

	seeds := make([]int64, req.Population)
	for i := range seeds {
		seeds[i] = req.Seed + int64(i)
	}

	mode := model.RunModeEvaluate
	if req.Train {
		mode = model.RunModeTrain
	}
	runID := uuid.NewString()
	klog.V(1).InfoS("starting population run",
		"run", runID, "family", req.Family, "mode", mode,
		"population", req.Population, "workers", req.Workers)

	var history []float64
	var meanFinal, bestFinal float64
	if req.Train {
		result, err := runner.Train(ctx, seeds, req.Steps, req.LearningRate)
		if err != nil {
			return RunSummary{}, err
		}
		history = result.MeanLossByStep
		meanFinal = result.FinalMeanLoss
		bestFinal = result.BestFinalLoss
	} else {
		result, err := runner.Evaluate(ctx, seeds)
		if err != nil {
			return RunSummary{}, err
		}
		history = []float64{result.MeanLoss}
		meanFinal = result.MeanLoss
		bestFinal = result.BestLoss
	}

	record := model.RunRecord{
		VersionedRecord: model.VersionedRecord{
			SchemaVersion: storage.CurrentSchemaVersion,
			CodecVersion:  storage.CurrentCodecVersion,
		},
		ID:            runID,
		Family:        req.Family,
		Mode:          mode,
		Seed:          req.Seed,
		Population:    req.Population,
		Steps:         req.Steps,
		LearningRate:  req.LearningRate,
		Workers:       req.Workers,
		MeanFinalLoss: meanFinal,
		BestFinalLoss: bestFinal,
		CreatedAtUTC:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if err := c.store.SaveRun(ctx, record); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveLossHistory(ctx, runID, history); err != nil {
		return RunSummary{}, err
	}
	if err := c.updateFamilySummary(ctx, req.Family, bestFinal); err != nil {
		return RunSummary{}, err
	}

	klog.V(1).InfoS("population run finished",
		"run", runID, "meanFinalLoss", meanFinal, "bestFinalLoss", bestFinal)

	return RunSummary{
		RunID:          runID,
		Family:         req.Family,
		Mode:           mode,
		Population:     req.Population,
		MeanLossByStep: append([]float64(nil), history...),
		MeanFinalLoss:  meanFinal,
		BestFinalLoss:  bestFinal,
	}, nil
}

func (c *Client) Runs(ctx context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	records, err := c.store.ListRuns(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) > req.Limit {
		records = records[:req.Limit]
	}

	out := make([]RunItem, 0, len(records))
	for _, r := range records {
		out = append(out, RunItem{
			RunID:         r.ID,
			CreatedAtUTC:  r.CreatedAtUTC,
			Family:        r.Family,
			Mode:          r.Mode,
			Seed:          r.Seed,
			Population:    r.Population,
			Steps:         r.Steps,
			MeanFinalLoss: r.MeanFinalLoss,
			BestFinalLoss: r.BestFinalLoss,
		})
	}
	return out, nil
}

func (c *Client) Losses(ctx context.Context, runID string) ([]float64, error) {
	if runID == "" {
		return nil, errors.New("run id is required")
	}
	history, ok, err := c.store.GetLossHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("loss history not found for run id: %s", runID)
	}
	return history, nil
}

func (c *Client) Summary(ctx context.Context, familyName string) (FamilySummaryItem, error) {
	if familyName == "" {
		return FamilySummaryItem{}, errors.New("family name is required")
	}
	summary, ok, err := c.store.GetFamilySummary(ctx, familyName)
	if err != nil {
		return FamilySummaryItem{}, err
	}
	if !ok {
		return FamilySummaryItem{}, fmt.Errorf("family summary not found: %s", familyName)
	}
	return FamilySummaryItem{
		Name:        summary.Name,
		Description: summary.Description,
		BestLoss:    summary.BestLoss,
		Runs:        summary.Runs,
	}, nil
}

func (c *Client) updateFamilySummary(ctx context.Context, familyName string, bestLoss float64) error {
	summary, ok, err := c.store.GetFamilySummary(ctx, familyName)
	if err != nil {
		return err
	}
	if !ok {
		summary = model.FamilySummary{
			VersionedRecord: model.VersionedRecord{
				SchemaVersion: storage.CurrentSchemaVersion,
				CodecVersion:  storage.CurrentCodecVersion,
			},
			Name:        familyName,
			Description: fmt.Sprintf("best observed loss for family %s", familyName),
			BestLoss:    bestLoss,
		}
	}
	if bestLoss < summary.BestLoss {
		summary.BestLoss = bestLoss
	}
	summary.Runs++
	return c.store.SaveFamilySummary(ctx, summary)
}
