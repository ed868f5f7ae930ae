// Package graph parses a workflow's raw node/edge list into the traversable
// structures the executor walks.
package graph

import (
	"fmt"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/pkg/apperr"
)

// Parsed is the result of parsing one workflow version.
type Parsed struct {
	Connections workflow.ConnectionMap
	Nodes       workflow.NodeMap
	Triggers    []workflow.Node
}

// TriggerNodes returns the trigger-typed nodes of the graph. A workflow with
// no trigger cannot be activated.
func TriggerNodes(nodes []workflow.Node) ([]workflow.Node, error) {
	var triggers []workflow.Node
	for _, node := range nodes {
		if workflow.IsTriggerType(node.Type) {
			triggers = append(triggers, node)
		}
	}

	if len(triggers) == 0 {
		return nil, apperr.Validation("workflow has no trigger node", "graph.TriggerNodes")
	}
	return triggers, nil
}

// Build folds the edge list into forward adjacency plus a node index. An edge
// referencing an unknown node id fails the parse.
func Build(nodes []workflow.Node, edges []workflow.Edge) (workflow.ConnectionMap, workflow.NodeMap, error) {
	nodeMap := make(workflow.NodeMap, len(nodes))
	for _, node := range nodes {
		nodeMap[node.ID] = node
	}

	connections := make(workflow.ConnectionMap)
	for _, edge := range edges {
		if _, ok := nodeMap[edge.Source]; !ok {
			return nil, nil, apperr.Validation(
				fmt.Sprintf("edge references unknown source node %q", edge.Source), "graph.Build")
		}
		if _, ok := nodeMap[edge.Target]; !ok {
			return nil, nil, apperr.Validation(
				fmt.Sprintf("edge references unknown target node %q", edge.Target), "graph.Build")
		}
		connections[edge.Source] = append(connections[edge.Source], edge.Target)
	}

	return connections, nodeMap, nil
}

// Parse runs TriggerNodes and Build on one workflow.
func Parse(nodes []workflow.Node, edges []workflow.Edge) (*Parsed, error) {
	triggers, err := TriggerNodes(nodes)
	if err != nil {
		return nil, apperr.Push(err, "graph.Parse")
	}

	connections, nodeMap, err := Build(nodes, edges)
	if err != nil {
		return nil, apperr.Push(err, "graph.Parse")
	}

	return &Parsed{Connections: connections, Nodes: nodeMap, Triggers: triggers}, nil
}

// Incoming derives reverse adjacency: node id to its direct upstream node
// ids. The executor uses it to hold a merge point back until every edge into
// it has produced output.
func Incoming(connections workflow.ConnectionMap) map[string][]string {
	incoming := make(map[string][]string)
	for source, targets := range connections {
		for _, target := range targets {
			incoming[target] = append(incoming[target], source)
		}
	}
	return incoming
}
