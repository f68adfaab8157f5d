package orchestrator

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/compose"

	nodex "github.com/tanpawarit/agent-orchestrator/agent/nodes"
)

func (o *Orchestrator) compileRouteGraph(
	ctx context.Context,
) (compose.Runnable[nodex.GraphInput, nodex.GraphOutput], error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode(nodex.NodeScanKeywords,
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ScanKeywords(in, o.agents)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeScanKeywords, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeDispatchAgent,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.DispatchAgent(ctx, in, o.executor, o.recorder, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeDispatchAgent, err)
	}

	if err := graph.AddLambdaNode(nodex.NodeFallbackClassify,
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FallbackClassify(ctx, in, o.classifier, o.recorder, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node %s: %w", nodex.NodeFallbackClassify, err)
	}

	branch := compose.NewGraphBranch(nodex.NextNode, map[string]bool{
		nodex.NodeDispatchAgent:    true,
		nodex.NodeFallbackClassify: true,
	})
	if err := graph.AddBranch(nodex.NodeScanKeywords, branch); err != nil {
		return nil, fmt.Errorf("add route branch: %w", err)
	}

	edges := [][2]string{
		{compose.START, nodex.NodeScanKeywords},
		{nodex.NodeDispatchAgent, compose.END},
		{nodex.NodeFallbackClassify, compose.END},
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName("router.route"))
	if err != nil {
		return nil, fmt.Errorf("compile route graph: %w", err)
	}
	return runner, nil
}
