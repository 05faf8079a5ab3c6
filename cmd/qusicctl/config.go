package main

import (
	"encoding/json"
	"fmt"
	"os"

	"qusic/pkg/qusic"
)

// trainFile is the on-disk form of a train request.
type trainFile struct {
	ModelID   string   `json:"model_id"`
	Wires     []string `json:"wires"`
	Ansatz    string   `json:"ansatz"`
	Layers    int      `json:"layers"`
	Width     int      `json:"width"`
	Ranges    []int    `json:"ranges"`
	QSeed     *int64   `json:"qseed"`
	Shots     int      `json:"shots"`
	Chords    []string `json:"chords"`
	Optimizer string   `json:"optimizer"`
	StepSize  float64  `json:"step_size"`
	Epochs    *int     `json:"epochs"`
	Seed      *int64   `json:"seed"`
}

func loadTrainRequestFromConfig(path string) (qusic.TrainRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return qusic.TrainRequest{}, err
	}
	var file trainFile
	if err := json.Unmarshal(data, &file); err != nil {
		return qusic.TrainRequest{}, err
	}

	req := qusic.TrainRequest{
		ModelID:   file.ModelID,
		Wires:     file.Wires,
		Ansatz:    file.Ansatz,
		Layers:    file.Layers,
		Width:     file.Width,
		Ranges:    file.Ranges,
		QSeed:     qusic.DefaultQSeed,
		Shots:     file.Shots,
		Chords:    file.Chords,
		Optimizer: file.Optimizer,
		StepSize:  file.StepSize,
		Epochs:    qusic.DefaultEpochs,
		Seed:      qusic.DefaultSeed,
	}
	if file.QSeed != nil {
		req.QSeed = *file.QSeed
	}
	if file.Epochs != nil {
		req.Epochs = *file.Epochs
	}
	if file.Seed != nil {
		req.Seed = *file.Seed
	}
	return req, nil
}

func loadOrDefaultTrainRequest(configPath string) (qusic.TrainRequest, error) {
	if configPath == "" {
		return qusic.TrainRequest{}, nil
	}
	req, err := loadTrainRequestFromConfig(configPath)
	if err != nil {
		return qusic.TrainRequest{}, fmt.Errorf("load config: %w", err)
	}
	return req, nil
}

type trainFlags struct {
	id        string
	wires     string
	ansatz    string
	layers    int
	width     int
	qseed     int64
	shots     int
	chords    string
	optimizer string
	stepSize  float64
	epochs    int
	seed      int64
}

// overrideFromFlags applies flag values onto req. Without a config file every
// flag applies; with one only flags set on the command line do.
func overrideFromFlags(req *qusic.TrainRequest, set map[string]bool, all bool, f trainFlags) {
	use := func(name string) bool { return all || set[name] }
	if use("id") {
		req.ModelID = f.id
	}
	if use("wires") {
		req.Wires = splitList(f.wires)
	}
	if use("ansatz") {
		req.Ansatz = f.ansatz
	}
	if use("layers") {
		req.Layers = f.layers
	}
	if use("width") {
		req.Width = f.width
	}
	if use("qseed") {
		req.QSeed = f.qseed
	}
	if use("shots") {
		req.Shots = f.shots
	}
	if use("chords") {
		req.Chords = splitList(f.chords)
	}
	if use("opt") {
		req.Optimizer = f.optimizer
	}
	if use("lr") {
		req.StepSize = f.stepSize
	}
	if use("epochs") {
		req.Epochs = f.epochs
	}
	if use("seed") {
		req.Seed = f.seed
	}
}
