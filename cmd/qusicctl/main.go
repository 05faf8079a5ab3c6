package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"qusic/internal/config"
	"qusic/internal/harmony"
	"qusic/internal/logging"
	"qusic/internal/performance"
	"qusic/internal/server"
	"qusic/internal/training"
	"qusic/pkg/qusic"
)

var stdout io.Writer = os.Stdout

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "train":
		return runTrain(ctx, args[1:])
	case "play":
		return runPlay(ctx, args[1:])
	case "sample":
		return runSample(ctx, args[1:])
	case "inspect":
		return runInspect(ctx, args[1:])
	case "models":
		return runModels(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "losses":
		return runLosses(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "serve":
		return runServe(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// storeFlags are shared by every subcommand; defaults come from the
// environment.
type storeFlags struct {
	store     *string
	dataDir   *string
	dbPath    *string
	logLevel  *string
	logPretty *bool
}

func addStoreFlags(fs *flag.FlagSet, cfg *config.Config) storeFlags {
	return storeFlags{
		store:     fs.String("store", cfg.Store, "store backend: file|memory|sqlite"),
		dataDir:   fs.String("data-dir", cfg.DataDir, "directory for models, runs and exports"),
		dbPath:    fs.String("db-path", cfg.DBPath, "sqlite database path (default <data-dir>/qusic.db)"),
		logLevel:  fs.String("log-level", cfg.LogLevel, "log level: debug|info|warn|error"),
		logPretty: fs.Bool("log-pretty", cfg.LogPretty, "human readable logs"),
	}
}

func (f storeFlags) logger() zerolog.Logger {
	return logging.New(logging.Config{Level: *f.logLevel, Pretty: *f.logPretty})
}

func (f storeFlags) open(ctx context.Context) (*qusic.Client, error) {
	logger := f.logger()
	client, err := qusic.New(qusic.Options{
		StoreKind: *f.store,
		DataDir:   *f.dataDir,
		DBPath:    *f.dbPath,
		Logger:    &logger,
	})
	if err != nil {
		return nil, err
	}
	if err := client.Init(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func runTrain(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	sf := addStoreFlags(fs, cfg)
	configPath := fs.String("config", "", "optional train request json")
	modelID := fs.String("id", "", "model id (default random uuid)")
	wires := fs.String("wires", strings.Join(harmony.DefaultWires(), ","), "comma separated wire names")
	ansatzName := fs.String("ansatz", qusic.DefaultAnsatz, "ansatz: fixed-chord|basic-layer|strong-layer|random-layer")
	layers := fs.Int("layers", qusic.DefaultLayers, "number of layers")
	width := fs.Int("width", qusic.DefaultWidth, "rotations per random layer")
	qseed := fs.Int64("qseed", qusic.DefaultQSeed, "random-layer structure seed")
	shots := fs.Int("shots", 1, "measurement shots")
	chords := fs.String("chords", strings.Join(harmony.DefaultChords(), ","), "comma separated chords, one per wire")
	optimizer := fs.String("opt", qusic.DefaultOptimizer, "optimizer: gd|momentum|nesterov|adagrad|rmsprop|adam")
	stepSize := fs.Float64("lr", qusic.DefaultStepSize, "optimizer step size")
	epochs := fs.Int("epochs", qusic.DefaultEpochs, "training epochs")
	seed := fs.Int64("seed", qusic.DefaultSeed, "training seed")
	report := fs.Int("report", 0, "print the loss every N epochs (0 disables)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := loadOrDefaultTrainRequest(*configPath)
	if err != nil {
		return err
	}
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	overrideFromFlags(&req, set, *configPath == "", trainFlags{
		id: *modelID, wires: *wires, ansatz: *ansatzName, layers: *layers, width: *width,
		qseed: *qseed, shots: *shots, chords: *chords, optimizer: *optimizer,
		stepSize: *stepSize, epochs: *epochs, seed: *seed,
	})
	if *report > 0 {
		every := *report
		req.OnEpoch = func(r training.EpochReport) {
			if (r.Epoch+1)%every == 0 {
				fmt.Fprintf(stdout, "epoch=%d melody=%s loss=%.6f\n", r.Epoch+1, r.Melody, r.Loss)
			}
		}
	}

	client, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	summary, err := client.Train(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "model_id=%s location=%s\n", summary.ModelID, summary.Location)
	fmt.Fprintf(stdout, "run_id=%s artifacts=%s\n", summary.RunID, summary.ArtifactsDir)
	fmt.Fprintf(stdout, "epochs=%d final_loss=%.6f head_mean=%.6f tail_mean=%.6f improving=%t\n",
		summary.Summary.Epochs, summary.FinalLoss, summary.Summary.HeadMean, summary.Summary.TailMean, summary.Summary.Improving)
	return nil
}

func runPlay(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	sf := addStoreFlags(fs, cfg)
	modelRef := fs.String("model", "", "model id or location")
	score := fs.String("score", "twinkle", "comma separated notes, or twinkle")
	mode := fs.String("mode", performance.ModeSampled.String(), "performance mode: sampled|scripted")
	shots := fs.Int("shots", 0, "samples per note in sampled mode (default model shots)")
	seed := fs.Int64("seed", qusic.DefaultSeed, "sampling seed")
	save := fs.Bool("save", false, "store the recording")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelRef == "" {
		return errors.New("play requires --model")
	}

	client, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	var notes []string
	if *score != "twinkle" {
		notes = splitList(*score)
	}
	played, err := client.Play(ctx, qusic.PlayRequest{Model: *modelRef, Score: notes, Mode: *mode, Shots: *shots, Seed: *seed, Save: *save})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "recording=%s mode=%s notes=%d saved=%t\n", played.Recording.ID, played.Recording.Mode, len(played.Lines), *save)
	for i, line := range played.Lines {
		fmt.Fprintf(stdout, "%3d %-4s | %s\n", i+1, played.Recording.Score[i], strings.Join(line[1], " "))
	}
	return nil
}

func runSample(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	sf := addStoreFlags(fs, cfg)
	modelRef := fs.String("model", "", "model id or location")
	notes := fs.String("notes", "C", "comma separated melody notes")
	shots := fs.Int("shots", 0, "number of samples (default model shots)")
	seed := fs.Int64("seed", qusic.DefaultSeed, "sampling seed")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelRef == "" {
		return errors.New("sample requires --model")
	}

	client, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	result, err := client.Sample(ctx, qusic.SampleRequest{Model: *modelRef, Notes: splitList(*notes), Shots: *shots, Seed: *seed})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "input=%s\n", strings.Join(result.Input, ","))
	fmt.Fprintf(stdout, "expectations=%s\n", formatFloats(result.Expectations))
	for i, sample := range result.Samples {
		fmt.Fprintf(stdout, "shot=%d bits=%v harmony=%s\n", i+1, sample, strings.Join(result.Harmony[i], ","))
	}
	return nil
}

func runInspect(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	sf := addStoreFlags(fs, cfg)
	modelRef := fs.String("model", "", "model id or location")
	showQASM := fs.Bool("qasm", false, "print the circuit as OpenQASM")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelRef == "" {
		return errors.New("inspect requires --model")
	}

	client, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	summary, err := client.Inspect(ctx, *modelRef)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "id=%s ansatz=%s wires=%s shape=%v\n", summary.ID, summary.Config.Ansatz, strings.Join(summary.Config.Wires, ","), summary.Shape)
	fmt.Fprintf(stdout, "ops=%d params=%d depth=%d\n", summary.Circuit.Ops, summary.Circuit.Params, summary.Circuit.Depth)
	if *showQASM {
		fmt.Fprint(stdout, summary.QASM)
		return nil
	}
	fmt.Fprint(stdout, summary.Drawing)
	return nil
}

func runModels(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("models", flag.ContinueOnError)
	sf := addStoreFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	models, err := client.Models(ctx)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		fmt.Fprintln(stdout, "no models")
		return nil
	}
	for _, m := range models {
		fmt.Fprintf(stdout, "id=%s ansatz=%s wires=%d params=%d created_at=%s\n", m.ID, m.Ansatz, m.Wires, m.Params, m.CreatedAtUTC)
	}
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	sf := addStoreFlags(fs, cfg)
	limit := fs.Int("limit", 20, "max runs to show")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	runs, err := client.Runs(ctx, qusic.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no runs")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "run_id=%s model_id=%s ansatz=%s optimizer=%s epochs=%d seed=%d final_loss=%.6f created_at=%s\n",
			r.RunID, r.ModelID, r.Ansatz, r.Optimizer, r.Epochs, r.Seed, r.FinalLoss, r.CreatedAtUTC)
	}
	return nil
}

func runLosses(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("losses", flag.ContinueOnError)
	sf := addStoreFlags(fs, cfg)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the latest run")
	window := fs.Int("window", 20, "moving average window")
	step := fs.Int("step", 10, "plot every N epochs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	losses, err := client.Losses(ctx, qusic.LossesRequest{RunID: *runID, Latest: *latest, Window: *window, Step: *step})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "run_id=%s epochs=%d first=%.6f last=%.6f min=%.6f improving=%t\n",
		losses.RunID, losses.Summary.Epochs, losses.Summary.First, losses.Summary.Last, losses.Summary.Min, losses.Summary.Improving)
	for _, p := range losses.Plot {
		fmt.Fprintf(stdout, "epoch=%d avg_loss=%.6f\n", p.Epoch, p.Value)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sf := addStoreFlags(fs, cfg)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the latest run")
	outDir := fs.String("out", "", "output directory (default <data-dir>/exports)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	exported, err := client.Export(ctx, qusic.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s dir=%s weights=%s\n", exported.RunID, exported.Directory, exported.Weights)
	return nil
}

func runServe(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	sf := addStoreFlags(fs, cfg)
	addr := fs.String("addr", cfg.HTTPAddr, "listen address")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := sf.open(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	srv := server.New(server.Config{Addr: *addr, Log: sf.logger(), Client: client})
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: qusicctl <train|play|sample|inspect|models|runs|losses|export|serve> [flags]", msg)
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%.4f", v)
	}
	return strings.Join(parts, ",")
}
