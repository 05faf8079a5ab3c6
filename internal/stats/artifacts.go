// Package stats writes and reads training run artifacts: loss histories,
// plot-ready curves and the run index.
package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	runIndexFile    = "run_index.json"
	configFile      = "config.json"
	lossHistoryFile = "loss_history.json"
	lossSeriesFile  = "loss.csv"
	lossPlotFile    = "loss_plot.json"
	summaryFile     = "summary.json"

	DefaultPlotWindow = 20
)

type RunConfig struct {
	RunID     string   `json:"run_id"`
	ModelID   string   `json:"model_id,omitempty"`
	Location  string   `json:"location,omitempty"`
	Ansatz    string   `json:"ansatz"`
	Wires     []string `json:"wires"`
	Layers    int      `json:"layers"`
	Width     int      `json:"width"`
	QSeed     int64    `json:"qseed"`
	Chords    []string `json:"chords"`
	Optimizer string   `json:"optimizer"`
	StepSize  float64  `json:"step_size"`
	Epochs    int      `json:"epochs"`
	Seed      int64    `json:"seed"`
}

type RunArtifacts struct {
	Config   RunConfig `json:"config"`
	Losses   []float64 `json:"losses"`
	Melodies []string  `json:"melodies"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	ModelID      string  `json:"model_id,omitempty"`
	Ansatz       string  `json:"ansatz"`
	Optimizer    string  `json:"optimizer"`
	Epochs       int     `json:"epochs"`
	Seed         int64   `json:"seed"`
	FinalLoss    float64 `json:"final_loss"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

type lossHistory struct {
	Losses    []float64 `json:"losses"`
	Melodies  []string  `json:"melodies"`
	FinalLoss float64   `json:"final_loss"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if strings.TrimSpace(artifacts.Config.RunID) == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	history := lossHistory{Losses: artifacts.Losses, Melodies: artifacts.Melodies}
	if n := len(artifacts.Losses); n > 0 {
		history.FinalLoss = artifacts.Losses[n-1]
	}
	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, lossHistoryFile), history); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, lossPlotFile), BuildLossPlot(artifacts.Losses, DefaultPlotWindow, 1)); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), SummarizeLosses(artifacts.Losses, DefaultPlotWindow)); err != nil {
		return "", err
	}
	if err := WriteLossSeries(runDir, artifacts.Losses, artifacts.Melodies); err != nil {
		return "", err
	}
	return runDir, nil
}

func ReadRunArtifacts(baseDir, runID string) (RunArtifacts, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	if err != nil || !ok {
		return RunArtifacts{}, ok, err
	}
	var history lossHistory
	if _, err := readJSON(filepath.Join(baseDir, runID, lossHistoryFile), &history); err != nil {
		return RunArtifacts{}, false, err
	}
	return RunArtifacts{Config: cfg, Losses: history.Losses, Melodies: history.Melodies}, true, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns runs newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	var entries []RunIndexEntry
	ok, err := readJSON(filepath.Join(baseDir, runIndexFile), &entries)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []RunIndexEntry{}, nil
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory's artifacts into outDir/runID.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}
	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, lossHistoryFile, lossSeriesFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range []string{lossPlotFile, summaryFile} {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, file)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}
	return dst, nil
}

func WriteLossSeries(runDir string, losses []float64, melodies []string) error {
	file, err := os.Create(filepath.Join(runDir, lossSeriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"epoch", "melody", "loss"}); err != nil {
		return err
	}
	for i, loss := range losses {
		melody := ""
		if i < len(melodies) {
			melody = melodies[i]
		}
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			melody,
			strconv.FormatFloat(loss, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadLossSeries(baseDir, runID string) ([]float64, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, lossSeriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 3 {
		return nil, false, fmt.Errorf("loss series header must have 3 columns")
	}

	series := make([]float64, 0, 256)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 3 {
			return nil, false, fmt.Errorf("loss series row must have 3 columns")
		}
		value, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
