package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sync"
)

// defaultFeatureNames — подмножество признаков CIC-IDS, если файл со списком не задан.
var defaultFeatureNames = []string{
	"Flow Duration",
	"Total Fwd Packets",
	"Total Backward Packets",
	"Total Length of Fwd Packets",
	"Total Length of Bwd Packets",
	"Fwd Packet Length Max",
	"Bwd Packet Length Max",
	"Flow Bytes/s",
	"Flow Packets/s",
	"Flow IAT Mean",
	"Fwd IAT Mean",
	"Bwd IAT Mean",
	"Packet Length Mean",
	"SYN Flag Count",
	"ACK Flag Count",
	"Average Packet Size",
}

// loadFeatureNames читает JSON-массив имен признаков.
func loadFeatureNames(path string) ([]string, error) {
	if path == "" {
		return defaultFeatureNames, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read features file: %w", err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parse features file %s: %w", path, err)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("features file %s is empty", path)
	}
	return names, nil
}

type generator struct {
	names []string

	mu  sync.Mutex // rand.Rand не потокобезопасен, а тики поллера идут из разных горутин
	rnd *rand.Rand
}

func newGenerator(names []string, seed int64) *generator {
	return &generator{names: names, rnd: rand.New(rand.NewSource(seed))}
}

// Payload — значение признака: random() * randint(1, 100).
func (g *generator) Payload() map[string]float64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[string]float64, len(g.names))
	for _, name := range g.names {
		out[name] = g.rnd.Float64() * float64(g.rnd.Intn(100)+1)
	}
	return out
}
