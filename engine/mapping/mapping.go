// Package mapping suggests how the columns of an uploaded table map onto the
// attribute vocabulary of a graph concept, using a chat-completion model.
package mapping

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/wissalbenjira/SDG-KG/engine/domain"
	"github.com/wissalbenjira/SDG-KG/pkg/llm"
	"github.com/wissalbenjira/SDG-KG/pkg/tabular"
)

// SampleSize is the number of distinct values shown to the model per column.
const SampleSize = 10

const systemPrompt = "You are an expert data classifier."

const promptTemplate = `
You are an AI assistant that maps CSV columns to a predefined list of attributes.
The user has provided a DataFrame with the following columns and example unique values:

%s

The available attributes to map to are:
%s

Return a JSON object mapping each column name to either one of the attributes or "Drop".
`

// Completer is the part of the LLM client the mapper needs.
type Completer interface {
	Complete(ctx context.Context, msgs []llm.Message) (string, error)
}

// Samples returns up to SampleSize distinct non-empty values for each column.
func Samples(t *tabular.Table) map[string][]string {
	out := make(map[string][]string, len(t.Columns))
	for _, col := range t.Columns {
		vals := t.UniqueValues(col, SampleSize)
		if vals == nil {
			vals = []string{}
		}
		out[col] = vals
	}
	return out
}

// BuildPrompt renders the user prompt for samples and attributes.
func BuildPrompt(samples map[string][]string, attributes []string) (string, error) {
	vals, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		return "", fmt.Errorf("mapping: encode samples: %w", err)
	}
	attrs, err := json.Marshal(attributes)
	if err != nil {
		return "", fmt.Errorf("mapping: encode attributes: %w", err)
	}
	return fmt.Sprintf(promptTemplate, vals, attrs), nil
}

// DefaultMapping maps every column to Drop.
func DefaultMapping(columns []string) map[string]string {
	m := make(map[string]string, len(columns))
	for _, c := range columns {
		m[c] = domain.Drop
	}
	return m
}

// ParseMapping decodes a model response into a complete mapping over
// columns. Code fences are tolerated. Columns the model skipped and targets
// outside the vocabulary become Drop; keys that are not columns are ignored.
func ParseMapping(content string, columns, attributes []string) (map[string]string, error) {
	body := stripFences(content)
	if body == "" {
		return nil, fmt.Errorf("mapping: %w", domain.ErrEmptyResponse)
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("mapping: %w: %w", domain.ErrBadResponse, err)
	}

	vocab := make(map[string]bool, len(attributes))
	for _, a := range attributes {
		vocab[a] = true
	}
	out := DefaultMapping(columns)
	for _, col := range columns {
		if s, ok := raw[col].(string); ok && vocab[s] {
			out[col] = s
		}
	}
	return out, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// Mapper asks a model for a column mapping.
type Mapper struct {
	llm    Completer
	logger *slog.Logger
}

// NewMapper creates a Mapper. A nil logger uses slog.Default().
func NewMapper(c Completer, logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{llm: c, logger: logger}
}

// Suggest proposes a mapping for the columns of t onto attributes.
func (m *Mapper) Suggest(ctx context.Context, t *tabular.Table, attributes []string) (map[string]string, error) {
	prompt, err := BuildPrompt(Samples(t), attributes)
	if err != nil {
		return nil, err
	}
	content, err := m.llm.Complete(ctx, []llm.Message{llm.System(systemPrompt), llm.User(prompt)})
	if err != nil {
		return nil, fmt.Errorf("mapping: suggest: %w", err)
	}
	out, err := ParseMapping(content, t.Columns, attributes)
	if err != nil {
		return nil, err
	}
	kept := 0
	for _, v := range out {
		if v != domain.Drop {
			kept++
		}
	}
	m.logger.Info("mapping: suggested", "columns", len(t.Columns), "mapped", kept)
	return out, nil
}
