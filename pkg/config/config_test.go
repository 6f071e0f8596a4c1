package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n    \"neo4j\": {\n        \"URI\": \"bolt://localhost:7687\"")
	assert.Contains(t, string(data), `"api_type": ""`)
}

func TestLoadFillsMissingKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"neo4j":{"Password":"s3cret"},"openai":{"engine":"gpt4"}}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt://localhost:7687", cfg.Neo4j.URI)
	assert.Equal(t, "neo4j", cfg.Neo4j.Username)
	assert.Equal(t, "s3cret", cfg.Neo4j.Password)
	assert.Equal(t, "gpt4", cfg.OpenAI.Engine)
	assert.Equal(t, "gpt4", cfg.LLM().Model)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"neo4j":`), 0o644))
	_, err := Load(path)
	assert.ErrorContains(t, err, "config: parse")
}

func TestMaskAndMerge(t *testing.T) {
	stored := Default()
	stored.OpenAI.APIKey = "sk-live"

	m := stored.Masked()
	assert.Equal(t, mask, m.Neo4j.Password)
	assert.Equal(t, mask, m.OpenAI.APIKey)
	assert.Equal(t, "sk-live", stored.OpenAI.APIKey)

	m.Neo4j.URI = "bolt://graph:7687"
	merged := stored.Merge(m)
	assert.Equal(t, "bolt://graph:7687", merged.Neo4j.URI)
	assert.Equal(t, "password", merged.Neo4j.Password)
	assert.Equal(t, "sk-live", merged.OpenAI.APIKey)

	m.OpenAI.APIKey = "sk-new"
	assert.Equal(t, "sk-new", stored.Merge(m).OpenAI.APIKey)
	assert.Empty(t, Default().Masked().OpenAI.APIKey)
}

func TestStoreUpdatePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	s, err := Open(path)
	require.NoError(t, err)

	in := s.Get()
	in.OpenAI = OpenAI{APIType: "azure", APIKey: "k", APIVersion: "2024-02-01", APIBase: "https://x.openai.azure.com", Engine: "gpt4"}
	_, err = s.Update(in)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "azure", again.OpenAI.APIType)
	assert.Equal(t, "k", again.OpenAI.APIKey)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".config-"), "temp file left behind: %s", e.Name())
	}
}
