// Package qusic is the client facade used by qusicctl and the HTTP server:
// it trains, stores, plays and inspects musicians.
package qusic

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"qusic/internal/ansatz"
	"qusic/internal/basis"
	"qusic/internal/circuit"
	"qusic/internal/harmony"
	"qusic/internal/model"
	"qusic/internal/musician"
	"qusic/internal/optim"
	"qusic/internal/performance"
	"qusic/internal/stats"
	"qusic/internal/storage"
	"qusic/internal/training"
)

const (
	defaultDataDir    = "qusic-data"
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	weightsFile       = "params.msgpack"

	DefaultAnsatz    = "random-layer"
	DefaultLayers    = 2
	DefaultWidth     = 7
	DefaultQSeed     = 42
	DefaultSeed      = 1
	DefaultOptimizer = "adam"
	DefaultStepSize  = 0.01
	DefaultEpochs    = 300
)

type Options struct {
	StoreKind  string
	DataDir    string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     *zerolog.Logger
}

type Client struct {
	store  storage.Store
	logger zerolog.Logger

	runsDir    string
	exportsDir string
}

type TrainRequest struct {
	ModelID   string
	Wires     []string
	Ansatz    string
	Layers    int
	Width     int
	Ranges    []int
	QSeed     int64
	Shots     int
	Chords    []string
	Optimizer string
	StepSize  float64
	Epochs    int
	Seed      int64
	OnEpoch   func(training.EpochReport)
}

type TrainSummary struct {
	ModelID      string
	Location     string
	RunID        string
	ArtifactsDir string
	Losses       []float64
	Melodies     []string
	FinalLoss    float64
	Summary      stats.LossSummary
}

type PlayRequest struct {
	Model string
	Score []string
	Mode  string
	Shots int
	Seed  int64
	Save  bool
}

type PlaySummary struct {
	Recording model.Recording
	Lines     [][2][]string
}

type SampleRequest struct {
	Model string
	Notes []string
	Shots int
	Seed  int64
}

type SampleResult struct {
	Input        []string   `json:"input"`
	Expectations []float64  `json:"expectations"`
	Samples      [][]int    `json:"samples"`
	Harmony      [][]string `json:"harmony"`
}

type InspectSummary struct {
	ID      string            `json:"id"`
	Config  model.ModelConfig `json:"config"`
	Shape   []int             `json:"shape"`
	Circuit circuit.Summary   `json:"circuit"`
	Drawing string            `json:"drawing"`
	QASM    string            `json:"qasm"`
}

type RunsRequest struct {
	Limit int
}

type LossesRequest struct {
	RunID  string
	Latest bool
	Window int
	Step   int
}

type LossesSummary struct {
	RunID   string
	Losses  []float64
	Plot    []stats.PlotPoint
	Summary stats.LossSummary
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
	Weights   string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	dataDir := opts.DataDir
	if dataDir == "" {
		dataDir = defaultDataDir
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = filepath.Join(dataDir, defaultRunsDir)
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = filepath.Join(dataDir, defaultExportsDir)
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	store, err := storage.NewStore(storeKind, dataDir, opts.DBPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		logger:     logger,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.store.Init(ctx)
}

// Train builds a musician, fits it to the chord schedule and stores the model,
// its training record and the run artifacts.
func (c *Client) Train(ctx context.Context, req TrainRequest) (TrainSummary, error) {
	req = withTrainDefaults(req)
	kind, err := ansatz.ParseKind(req.Ansatz)
	if err != nil {
		return TrainSummary{}, err
	}
	optKind, err := optim.ParseKind(req.Optimizer)
	if err != nil {
		return TrainSummary{}, err
	}
	opt, err := optim.New(optKind, req.StepSize)
	if err != nil {
		return TrainSummary{}, err
	}

	cfg := model.ModelConfig{
		Wires:  req.Wires,
		Ansatz: kind.String(),
		Layers: req.Layers,
		Ranges: req.Ranges,
		Seed:   req.QSeed,
		Shots:  req.Shots,
	}
	if kind == ansatz.RandomLayer {
		cfg.Width = req.Width
	}
	codec, err := basis.NewCodec(req.Wires)
	if err != nil {
		return TrainSummary{}, err
	}
	schedule, err := harmony.NewSchedule(codec, req.Chords)
	if err != nil {
		return TrainSummary{}, err
	}
	if kind == ansatz.FixedChord {
		cfg.Chords, err = harmony.Triplets(req.Chords, codec)
		if err != nil {
			return TrainSummary{}, err
		}
	}

	rng := rand.New(rand.NewSource(req.Seed))
	m, err := musician.New(cfg, rng)
	if err != nil {
		return TrainSummary{}, err
	}

	runID := uuid.NewString()
	logger := c.logger.With().Str("run_id", runID).Logger()
	result, err := training.Train(m, training.Config{
		Epochs:    req.Epochs,
		Schedule:  schedule,
		Rand:      rng,
		Optimizer: opt,
		OnEpoch:   req.OnEpoch,
		Logger:    &logger,
	})
	if err != nil {
		return TrainSummary{}, err
	}

	modelID := req.ModelID
	if modelID == "" {
		modelID = uuid.NewString()
	}
	location, err := c.Save(ctx, m, modelID)
	if err != nil {
		return TrainSummary{}, err
	}

	now := time.Now().UTC()
	finalLoss := 0.0
	if n := len(result.Losses); n > 0 {
		finalLoss = result.Losses[n-1]
	}
	if err := c.store.SaveTraining(ctx, model.TrainingRecord{
		RunID:        runID,
		ModelID:      modelID,
		Optimizer:    opt.Name(),
		StepSize:     req.StepSize,
		Epochs:       req.Epochs,
		Seed:         req.Seed,
		Losses:       result.Losses,
		Melodies:     result.Melodies,
		CreatedAtUTC: now.Format(time.RFC3339Nano),
	}); err != nil {
		return TrainSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:     runID,
			ModelID:   modelID,
			Location:  location,
			Ansatz:    kind.String(),
			Wires:     req.Wires,
			Layers:    req.Layers,
			Width:     cfg.Width,
			QSeed:     m.Config().Seed,
			Chords:    req.Chords,
			Optimizer: opt.Name(),
			StepSize:  req.StepSize,
			Epochs:    req.Epochs,
			Seed:      req.Seed,
		},
		Losses:   result.Losses,
		Melodies: result.Melodies,
	})
	if err != nil {
		return TrainSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:        runID,
		ModelID:      modelID,
		Ansatz:       kind.String(),
		Optimizer:    opt.Name(),
		Epochs:       req.Epochs,
		Seed:         req.Seed,
		FinalLoss:    finalLoss,
		CreatedAtUTC: now.Format(time.RFC3339Nano),
	}); err != nil {
		return TrainSummary{}, err
	}

	return TrainSummary{
		ModelID:      modelID,
		Location:     location,
		RunID:        runID,
		ArtifactsDir: filepath.Clean(runDir),
		Losses:       append([]float64(nil), result.Losses...),
		Melodies:     append([]string(nil), result.Melodies...),
		FinalLoss:    finalLoss,
		Summary:      stats.SummarizeLosses(result.Losses, stats.DefaultPlotWindow),
	}, nil
}

func withTrainDefaults(req TrainRequest) TrainRequest {
	if len(req.Wires) == 0 {
		req.Wires = harmony.DefaultWires()
	}
	if req.Ansatz == "" {
		req.Ansatz = DefaultAnsatz
	}
	if req.Layers <= 0 {
		req.Layers = DefaultLayers
	}
	if req.Width <= 0 {
		req.Width = DefaultWidth
	}
	if len(req.Chords) == 0 {
		req.Chords = harmony.DefaultChords()
	}
	if req.Optimizer == "" {
		req.Optimizer = DefaultOptimizer
	}
	if req.StepSize == 0 {
		req.StepSize = DefaultStepSize
	}
	return req
}

// Save stores m under id and returns the backend location.
func (c *Client) Save(ctx context.Context, m *musician.Musician, id string) (string, error) {
	if m == nil {
		return "", fmt.Errorf("%w: no model to save", model.ErrInvalidConfig)
	}
	return c.store.SaveModel(ctx, m.Record(id))
}

// Load rebuilds an independent musician from a stored location or id.
func (c *Client) Load(ctx context.Context, location string) (*musician.Musician, string, error) {
	rec, ok, err := c.store.LoadModel(ctx, location)
	if err != nil {
		return nil, "", err
	}
	if !ok {
		return nil, "", fmt.Errorf("%w: model %s", model.ErrNotFound, location)
	}
	m, err := musician.FromRecord(rec)
	if err != nil {
		return nil, "", err
	}
	return m, rec.ID, nil
}

func (c *Client) Models(ctx context.Context) ([]model.ModelSummary, error) {
	return c.store.ListModels(ctx)
}

func (c *Client) Inspect(ctx context.Context, location string) (InspectSummary, error) {
	m, id, err := c.Load(ctx, location)
	if err != nil {
		return InspectSummary{}, err
	}
	qasm, err := m.QASM(nil)
	if err != nil {
		return InspectSummary{}, err
	}
	return InspectSummary{
		ID:      id,
		Config:  m.Config(),
		Shape:   m.Shape(),
		Circuit: m.Summary(),
		Drawing: m.Draw(),
		QASM:    qasm,
	}, nil
}

// Expectation returns per-wire <Z> for the given melody notes.
func (c *Client) Expectation(ctx context.Context, location string, notes []string) ([]float64, error) {
	m, _, err := c.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	bits, err := encodeNotes(m, notes)
	if err != nil {
		return nil, err
	}
	return m.Expectation(bits)
}

// Sample draws req.Shots joint measurements, defaulting to the model's
// configured shot count.
func (c *Client) Sample(ctx context.Context, req SampleRequest) (SampleResult, error) {
	m, _, err := c.Load(ctx, req.Model)
	if err != nil {
		return SampleResult{}, err
	}
	bits, err := encodeNotes(m, req.Notes)
	if err != nil {
		return SampleResult{}, err
	}
	expectations, err := m.Expectation(bits)
	if err != nil {
		return SampleResult{}, err
	}

	shots := req.Shots
	if shots <= 0 {
		shots = m.Config().Shots
	}
	if shots > model.MaxShots {
		return SampleResult{}, fmt.Errorf("%w: %d shots exceeds %d", model.ErrInvalidConfig, shots, model.MaxShots)
	}
	samples, err := m.Sample(bits, shots, rand.New(rand.NewSource(req.Seed)))
	if err != nil {
		return SampleResult{}, err
	}
	result := SampleResult{
		Input:        append([]string{}, req.Notes...),
		Expectations: expectations,
		Samples:      samples,
		Harmony:      make([][]string, 0, len(samples)),
	}
	for _, sample := range samples {
		names, err := m.Decode(sample)
		if err != nil {
			return SampleResult{}, err
		}
		result.Harmony = append(result.Harmony, names)
	}
	return result, nil
}

// Play performs a score, Twinkle Twinkle by default, and optionally stores
// the recording.
func (c *Client) Play(ctx context.Context, req PlayRequest) (PlaySummary, error) {
	m, id, err := c.Load(ctx, req.Model)
	if err != nil {
		return PlaySummary{}, err
	}
	mode, err := performance.ParseMode(req.Mode)
	if err != nil {
		return PlaySummary{}, err
	}
	score := req.Score
	if len(score) == 0 {
		score = performance.TwinkleScore(false)
	}

	if req.Shots > model.MaxShots {
		return PlaySummary{}, fmt.Errorf("%w: %d shots exceeds %d", model.ErrInvalidConfig, req.Shots, model.MaxShots)
	}
	rec, err := performance.Perform(m, score, performance.Options{
		Mode:   mode,
		Shots:  req.Shots,
		Rand:   rand.New(rand.NewSource(req.Seed)),
		Logger: &c.logger,
	})
	if err != nil {
		return PlaySummary{}, err
	}
	rec.ModelID = id
	if req.Save {
		if err := c.store.SavePerformance(ctx, rec); err != nil {
			return PlaySummary{}, err
		}
	}
	lines, err := performance.Lines(rec)
	if err != nil {
		return PlaySummary{}, err
	}
	return PlaySummary{Recording: rec, Lines: lines}, nil
}

func (c *Client) Recording(ctx context.Context, id string) (model.Recording, error) {
	rec, ok, err := c.store.GetPerformance(ctx, id)
	if err != nil {
		return model.Recording{}, err
	}
	if !ok {
		return model.Recording{}, fmt.Errorf("%w: recording %s", model.ErrNotFound, id)
	}
	return rec, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]stats.RunIndexEntry, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}
	return entries, nil
}

// Losses returns a run's loss history with its smoothed plot series.
func (c *Client) Losses(ctx context.Context, req LossesRequest) (LossesSummary, error) {
	runID, err := c.resolveRun(req.RunID, req.Latest)
	if err != nil {
		return LossesSummary{}, err
	}
	rec, ok, err := c.store.GetTraining(ctx, runID)
	if err != nil {
		return LossesSummary{}, err
	}
	if !ok {
		return LossesSummary{}, fmt.Errorf("%w: training run %s", model.ErrNotFound, runID)
	}
	window := req.Window
	if window <= 0 {
		window = stats.DefaultPlotWindow
	}
	return LossesSummary{
		RunID:   runID,
		Losses:  rec.Losses,
		Plot:    stats.BuildLossPlot(rec.Losses, window, req.Step),
		Summary: stats.SummarizeLosses(rec.Losses, window),
	}, nil
}

// Export copies a run's artifacts and writes the trained weights next to
// them.
func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRun(req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	summary := ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}

	artifacts, ok, err := stats.ReadRunArtifacts(c.runsDir, runID)
	if err != nil {
		return ExportSummary{}, err
	}
	if ok && artifacts.Config.ModelID != "" {
		m, _, err := c.Load(ctx, artifacts.Config.ModelID)
		if err != nil {
			return ExportSummary{}, err
		}
		summary.Weights = filepath.Join(summary.Directory, weightsFile)
		if err := storage.SaveWeights(summary.Weights, m.Weights()); err != nil {
			return ExportSummary{}, err
		}
	}
	return summary, nil
}

// ImportWeights loads a weight snapshot onto a stored model and saves it
// under newID.
func (c *Client) ImportWeights(ctx context.Context, location, path, newID string) (string, error) {
	m, id, err := c.Load(ctx, location)
	if err != nil {
		return "", err
	}
	weights, err := storage.LoadWeights(path)
	if err != nil {
		return "", err
	}
	if err := m.SetWeights(weights); err != nil {
		return "", err
	}
	if newID == "" {
		newID = id
	}
	return c.Save(ctx, m, newID)
}

func (c *Client) resolveRun(runID string, latest bool) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return "", errors.New("run id or latest is required")
	}
	if !latest {
		return runID, nil
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("%w: no runs recorded", model.ErrNotFound)
	}
	return entries[0].RunID, nil
}

// encodeNotes resolves score notes such as "c4" to wires before encoding.
func encodeNotes(m *musician.Musician, notes []string) ([]int, error) {
	wires := make([]string, 0, len(notes))
	for _, note := range notes {
		wire, err := harmony.NoteWire(m.Codec(), strings.TrimSpace(note))
		if err != nil {
			return nil, err
		}
		if wire != "" {
			wires = append(wires, wire)
		}
	}
	return m.Encode(wires), nil
}
