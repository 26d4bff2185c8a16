package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// DocEntry is one indexed documentation page.
type DocEntry struct {
	Title string `mapstructure:"title" json:"title"`
	URL   string `mapstructure:"url" json:"url"`
	Body  string `mapstructure:"body" json:"body"`
}

// DocHit is a search result.
type DocHit struct {
	Title   string
	URL     string
	Snippet string
	Score   int
}

// DocSearchProvider searches documentation.
type DocSearchProvider interface {
	Search(ctx context.Context, query string, limit int) ([]DocHit, error)
}

// MemoryDocs is an in-memory DocSearchProvider. A page scores one point per
// distinct query term found in its title or body.
type MemoryDocs struct {
	entries []DocEntry
}

// NewMemoryDocs indexes entries, falling back to a short built-in set.
func NewMemoryDocs(entries ...DocEntry) *MemoryDocs {
	if len(entries) == 0 {
		entries = defaultDocs
	}
	return &MemoryDocs{entries: entries}
}

var defaultDocs = []DocEntry{
	{
		Title: "Getting started",
		URL:   "/docs/getting-started",
		Body:  "Run toolbridge serve to start the gateway, then send chat completion requests to /v1/chat/completions.",
	},
	{
		Title: "Tools",
		URL:   "/docs/tools",
		Body:  "List registered tools with GET /v1/tools and call one with POST /v1/tools/call. Arguments are validated against each tool schema.",
	},
	{
		Title: "Status checks",
		URL:   "/docs/status",
		Body:  "The check_status tool reports whether the web and api services are operational.",
	},
}

func (m *MemoryDocs) Search(_ context.Context, query string, limit int) ([]DocHit, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var hits []DocHit
	for _, e := range m.entries {
		haystack := strings.ToLower(e.Title + " " + e.Body)
		score := 0
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			if !seen[t] && strings.Contains(haystack, t) {
				score++
			}
			seen[t] = true
		}
		if score > 0 {
			hits = append(hits, DocHit{Title: e.Title, URL: e.URL, Snippet: snippet(e.Body), Score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

const snippetLen = 120

func snippet(body string) string {
	r := []rune(body)
	if len(r) <= snippetLen {
		return body
	}
	return strings.TrimSpace(string(r[:snippetLen])) + "..."
}

// NewDocSearchTool returns the search_docs tool backed by provider.
func NewDocSearchTool(provider DocSearchProvider, timeout time.Duration) Definition {
	if timeout <= 0 {
		timeout = defaultToolTimeout
	}
	return Definition{
		Name:        "search_docs",
		Description: "Search the project documentation and return the best matching pages",
		Schema: Schema{Fields: []Field{
			{Name: "query", Type: TypeString, Description: "Search terms"},
			{Name: "limit", Type: TypeInteger, Description: "Maximum number of results", Default: 3, Minimum: Float(1), Maximum: Float(10)},
		}},
		Examples: []string{`{"query":"tool schema"}`, `{"query":"status checks","limit":1}`},
		Handler: func(ctx context.Context, args Args) (Result, error) {
			var p struct {
				Query string `mapstructure:"query"`
				Limit int    `mapstructure:"limit"`
			}
			if err := args.Decode(&p); err != nil {
				return Result{}, err
			}

			hits, err := bounded(ctx, timeout, func(ctx context.Context) ([]DocHit, error) {
				return provider.Search(ctx, p.Query, p.Limit)
			})
			if err != nil {
				return Result{}, fmt.Errorf("doc search: %w", err)
			}
			if len(hits) == 0 {
				return TextResult(fmt.Sprintf("No documentation matched %q.", p.Query)), nil
			}

			var sb strings.Builder
			for i, h := range hits {
				if i > 0 {
					sb.WriteByte('\n')
				}
				fmt.Fprintf(&sb, "%d. %s (%s)\n   %s", i+1, h.Title, h.URL, h.Snippet)
			}
			return TextResult(sb.String()), nil
		},
	}
}
