package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid-go/internal/domain/workflow"
	"github.com/flowgrid-go/pkg/apperr"
)

func node(id, typ string) workflow.Node {
	return workflow.Node{ID: id, Name: id, Type: typ}
}

func TestTriggerNodes(t *testing.T) {
	nodes := []workflow.Node{
		node("t1", workflow.NodeTypeWebhookTrigger),
		node("a1", workflow.NodeTypeAgent),
		node("t2", workflow.NodeTypeInteractTrigger),
	}

	triggers, err := TriggerNodes(nodes)
	require.NoError(t, err)
	require.Len(t, triggers, 2)
	assert.Equal(t, "t1", triggers[0].ID)
	assert.Equal(t, "t2", triggers[1].ID)
}

func TestTriggerNodesEmptyGraph(t *testing.T) {
	nodes := []workflow.Node{
		node("a1", workflow.NodeTypeAgent),
		node("r1", workflow.NodeTypeResponder),
	}

	_, err := TriggerNodes(nodes)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestBuildAdjacency(t *testing.T) {
	nodes := []workflow.Node{
		node("t1", workflow.NodeTypeWebhookTrigger),
		node("a1", workflow.NodeTypeAgent),
		node("a2", workflow.NodeTypeAgent),
		node("r1", workflow.NodeTypeResponder),
	}
	edges := []workflow.Edge{
		{Source: "t1", Target: "a1"},
		{Source: "t1", Target: "a2"},
		{Source: "a1", Target: "r1"},
		{Source: "a2", Target: "r1"},
	}

	connections, nodeMap, err := Build(nodes, edges)
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "a2"}, connections["t1"])
	assert.Equal(t, []string{"r1"}, connections["a1"])
	assert.Len(t, nodeMap, 4)

	// Every edge target resolves through the node map.
	for _, targets := range connections {
		for _, target := range targets {
			_, ok := nodeMap[target]
			assert.True(t, ok)
		}
	}
}

func TestBuildDanglingEdge(t *testing.T) {
	nodes := []workflow.Node{
		node("t1", workflow.NodeTypeWebhookTrigger),
	}
	edges := []workflow.Edge{
		{Source: "t1", Target: "ghost"},
	}

	_, _, err := Build(nodes, edges)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "ghost")
}

func TestParseAppendsTrace(t *testing.T) {
	_, err := Parse([]workflow.Node{node("a1", workflow.NodeTypeAgent)}, nil)
	require.Error(t, err)
	assert.Equal(t, []string{"graph.TriggerNodes", "graph.Parse"}, apperr.TraceOf(err))
}

func TestIncoming(t *testing.T) {
	connections := workflow.ConnectionMap{
		"t1": {"a1", "a2"},
		"a1": {"r1"},
		"a2": {"r1"},
	}

	incoming := Incoming(connections)
	assert.ElementsMatch(t, []string{"a1", "a2"}, incoming["r1"])
	assert.Equal(t, []string{"t1"}, incoming["a1"])
	assert.Empty(t, incoming["t1"])
}
