package functions

import (
	"context"

	"github.com/m2tx/live_bridge/internal/agent"
)

const docsSearchResults = 3

// CreateDocsSearchFunctionDeclaration searches the documents indexed by e.
func CreateDocsSearchFunctionDeclaration(e *agent.Embedder) *agent.FunctionDeclaration {
	return &agent.FunctionDeclaration{
		Name:        "search_docs",
		Description: "Searches the internal document library. Use it whenever the user asks about something internal documentation might cover.",
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to look for",
				},
			},
			"required": []string{"query"},
		},
		ResponseSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"results": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"filename": map[string]any{
								"type":        "string",
								"description": "Source document",
							},
							"content": map[string]any{
								"type":        "string",
								"description": "Matching excerpt",
							},
						},
					},
				},
			},
		},
		FunctionCall: func(ctx context.Context, args map[string]any) (map[string]any, error) {
			query, err := stringArg(args, "query")
			if err != nil {
				return nil, err
			}

			passages := e.Search(query, docsSearchResults)
			results := make([]map[string]any, 0, len(passages))
			for _, p := range passages {
				results = append(results, map[string]any{
					"filename": p.Source,
					"content":  p.Text,
				})
			}

			return map[string]any{"results": results}, nil
		},
	}
}
