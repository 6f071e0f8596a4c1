// Package config persists the connection settings edited from the
// configuration page: Neo4j credentials and the chat-completion endpoint.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/wissalbenjira/SDG-KG/pkg/llm"
)

// DefaultPath is the config file used when none is given.
const DefaultPath = "config.json"

const mask = "********"

// Neo4j holds the graph database connection.
type Neo4j struct {
	URI      string `json:"URI"`
	Username string `json:"Username"`
	Password string `json:"Password"`
}

// OpenAI holds the chat-completion endpoint. Engine is the model or, for
// Azure, the deployment name.
type OpenAI struct {
	APIType    string `json:"api_type"`
	APIKey     string `json:"api_key"`
	APIVersion string `json:"api_version"`
	APIBase    string `json:"api_base"`
	Engine     string `json:"engine"`
}

// Config is the persisted record.
type Config struct {
	Neo4j  Neo4j  `json:"neo4j"`
	OpenAI OpenAI `json:"openai"`
}

// Default returns the record written on first run.
func Default() Config {
	return Config{
		Neo4j: Neo4j{URI: "bolt://localhost:7687", Username: "neo4j", Password: "password"},
	}
}

// LLM converts the OpenAI section to a client config.
func (c Config) LLM() llm.Config {
	return llm.Config{
		APIType:    c.OpenAI.APIType,
		APIKey:     c.OpenAI.APIKey,
		APIVersion: c.OpenAI.APIVersion,
		APIBase:    c.OpenAI.APIBase,
		Model:      c.OpenAI.Engine,
	}
}

// Masked returns a copy safe to show: secrets that are set become asterisks.
func (c Config) Masked() Config {
	if c.Neo4j.Password != "" {
		c.Neo4j.Password = mask
	}
	if c.OpenAI.APIKey != "" {
		c.OpenAI.APIKey = mask
	}
	return c
}

// Merge applies an edited record on top of c. Blank or masked secrets keep
// the stored value so a masked form can be sent back unchanged.
func (c Config) Merge(in Config) Config {
	out := in
	if in.Neo4j.Password == "" || in.Neo4j.Password == mask {
		out.Neo4j.Password = c.Neo4j.Password
	}
	if in.OpenAI.APIKey == "" || in.OpenAI.APIKey == mask {
		out.OpenAI.APIKey = c.OpenAI.APIKey
	}
	return out
}

// Load reads the record at path. A missing file is created with the
// defaults; keys absent from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := Save(path, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path with four-space indentation. The file is replaced
// atomically.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "    ")
	if err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

// Store serializes access to the file for concurrent handlers.
type Store struct {
	path string
	mu   sync.RWMutex
	cur  Config
}

// Open loads path into a Store.
func Open(path string) (*Store, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, cur: cfg}, nil
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Get returns the current record.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Update merges in over the current record, saves it and returns the result.
func (s *Store) Update(in Config) (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cur.Merge(in)
	if err := Save(s.path, next); err != nil {
		return s.cur, err
	}
	s.cur = next
	return next, nil
}
