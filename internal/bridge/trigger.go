package bridge

import "strings"

// Trigger maps user input to a single tool call.
type Trigger struct {
	Name      string
	Match     func(content string) bool
	Tool      string
	Arguments func(content string) map[string]any
	// Preamble introduces the tool output in the reply.
	Preamble string
}

// Contains matches when content includes any of phrases, ignoring case.
func Contains(phrases ...string) func(string) bool {
	lowered := make([]string, len(phrases))
	for i, p := range phrases {
		lowered[i] = strings.ToLower(p)
	}
	return func(content string) bool {
		c := strings.ToLower(content)
		for _, p := range lowered {
			if strings.Contains(c, p) {
				return true
			}
		}
		return false
	}
}

// Fixed always yields a copy of args.
func Fixed(args map[string]any) func(string) map[string]any {
	return func(string) map[string]any {
		out := make(map[string]any, len(args))
		for k, v := range args {
			out[k] = v
		}
		return out
	}
}

// QueryFrom passes the trimmed message content as the given argument.
func QueryFrom(field string) func(string) map[string]any {
	return func(content string) map[string]any {
		return map[string]any{field: strings.TrimSpace(content)}
	}
}

// DefaultTriggers routes status questions to check_status and documentation
// questions to search_docs.
func DefaultTriggers() []Trigger {
	return []Trigger{
		{
			Name:      "status",
			Match:     Contains("status"),
			Tool:      "check_status",
			Arguments: Fixed(map[string]any{"service": "all"}),
			Preamble:  "Here is the current system status:",
		},
		{
			Name:      "docs",
			Match:     Contains("docs", "documentation"),
			Tool:      "search_docs",
			Arguments: QueryFrom("query"),
			Preamble:  "Here is what I found in the documentation:",
		},
	}
}

// match returns the first trigger in table order whose predicate accepts content.
func match(triggers []Trigger, content string) (Trigger, bool) {
	for _, t := range triggers {
		if t.Match != nil && t.Match(content) {
			return t, true
		}
	}
	return Trigger{}, false
}
