// Command import-problem expands a zip-packaged problem archive into a
// Problem JSON fragment and writes it into a running judge configuration
// file, replacing a problem with the same id or else appending. It is an
// operator tool, never invoked by the running service.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"arbiter/problemarchive"
)

func main() {
	archivePath := flag.String("archive", "", "path to the problem zip archive")
	configPath := flag.String("config", "./config.json", "path to the judge's JSON configuration file")
	dataDir := flag.String("data-dir", "./problems", "directory to expand test-case files into")
	flag.Parse()

	if *archivePath == "" {
		log.Fatal("import-problem: -archive is required")
	}

	data, err := os.ReadFile(*archivePath)
	if err != nil {
		log.Fatalf("reading archive: %v", err)
	}

	problem, err := problemarchive.Import(data, *dataDir)
	if err != nil {
		log.Fatalf("importing archive: %v", err)
	}

	cfg, err := readConfig(*configPath)
	if err != nil {
		log.Fatalf("reading config: %v", err)
	}

	replaced := false
	for i, p := range cfg.Problems {
		if id, ok := p["id"].(float64); ok && int(id) == problem.ID {
			cfg.Problems[i] = problemToMap(problem)
			replaced = true
			break
		}
	}
	if !replaced {
		cfg.Problems = append(cfg.Problems, problemToMap(problem))
	}

	if err := writeConfig(*configPath, cfg); err != nil {
		log.Fatalf("writing config: %v", err)
	}

	fmt.Printf("imported problem %d (%s), %d cases\n", problem.ID, problem.Name, len(problem.Cases))
}

// rawConfig keeps the server/languages fragments opaque (json.RawMessage) so
// this tool only ever has an opinion about the problems array.
type rawConfig struct {
	Server    json.RawMessage          `json:"server"`
	Problems  []map[string]interface{} `json:"problems"`
	Languages json.RawMessage          `json:"languages"`
}

func readConfig(path string) (rawConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return rawConfig{}, err
	}
	defer f.Close()
	var cfg rawConfig
	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return rawConfig{}, err
	}
	return cfg, nil
}

func writeConfig(path string, cfg rawConfig) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func problemToMap(p problemarchive.Problem) map[string]interface{} {
	raw, _ := json.Marshal(p)
	var m map[string]interface{}
	_ = json.Unmarshal(raw, &m)
	return m
}
