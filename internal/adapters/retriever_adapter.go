package adapters

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"

	"github.com/ZanzyTHEbar/tripweaver-genkit/internal/knowledge"
	"github.com/ZanzyTHEbar/tripweaver-genkit/pkg/trip"
)

// RetrievalFlowName is the name of the flow registered by DefineRetrievalFlow.
const RetrievalFlowName = "tripKnowledgeFlow"

// RetrievalFlow is the genkit flow type wrapping knowledge retrieval.
type RetrievalFlow = core.Flow[*knowledge.Query, []trip.KnowledgeSnippet, struct{}]

// KnowledgeSource is the retrieval the flow delegates to.
type KnowledgeSource interface {
	Retrieve(ctx context.Context, q knowledge.Query) ([]trip.KnowledgeSnippet, error)
}

// DefineRetrievalFlow registers a flow around source so retrievals show up
// in genkit traces.
func DefineRetrievalFlow(g *genkit.Genkit, source KnowledgeSource) *RetrievalFlow {
	return genkit.DefineFlow(g, RetrievalFlowName,
		func(ctx context.Context, q *knowledge.Query) ([]trip.KnowledgeSnippet, error) {
			if q == nil {
				return nil, fmt.Errorf("nil knowledge query")
			}
			return source.Retrieve(ctx, *q)
		})
}

// GenkitRetrieverAdapter uses a retrieval flow to implement the planner's Retriever.
type GenkitRetrieverAdapter struct {
	flow *RetrievalFlow
}

// NewGenkitRetrieverAdapter creates a new adapter for the retrieval flow.
func NewGenkitRetrieverAdapter(flow *RetrievalFlow) *GenkitRetrieverAdapter {
	return &GenkitRetrieverAdapter{flow: flow}
}

// Retrieve runs the flow. A missing flow retrieves nothing.
func (a *GenkitRetrieverAdapter) Retrieve(ctx context.Context, q knowledge.Query) ([]trip.KnowledgeSnippet, error) {
	if a.flow == nil {
		return nil, nil
	}
	snippets, err := a.flow.Run(ctx, &q)
	if err != nil {
		return nil, fmt.Errorf("retrieval flow execution failed: %w", err)
	}
	return snippets, nil
}
