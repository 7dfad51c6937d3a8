package shuttle_test

import (
	"context"
	"fmt"
	"log"

	"github.com/wovenlab/shuttle"
	"github.com/wovenlab/shuttle/pkg/adapters/memory"
	"github.com/wovenlab/shuttle/pkg/agent/scripted"
	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/graph"
)

// ExampleNew_memory shows how to run a machine built in code, without a
// definition file. Useful for tests and embedded scenarios.
func ExampleNew_memory() {
	// 1. Define the machine with the graph builder.
	g, err := graph.NewBuilder().
		Node("triage", domain.NodeKindTask).
		Attr("prompt", "Route the ticket to the right queue.").
		Node("billing", domain.NodeKindEnd).
		Node("support", domain.NodeKindEnd).
		Builder().
		LabeledEdge("triage", "billing", "payment issues").
		LabeledEdge("triage", "support", "everything else").
		Build()
	if err != nil {
		log.Fatal(err)
	}

	// 2. Build the machine from an in-memory loader. The path is empty
	// because the loader replaces the file default.
	m, err := shuttle.New("", shuttle.WithLoader(memory.NewLoader(g)))
	if err != nil {
		log.Fatal(err)
	}

	// 3. Any ports.Agent can decide; here a scripted one picks billing.
	ag := scripted.New(scripted.Call("transition_to_billing", nil))

	ctx := context.Background()
	run, err := m.NewRun(ctx, ag)
	if err != nil {
		log.Fatal(err)
	}
	final, err := run.Execute(ctx)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(final.CurrentNode, final.StepCount)
	// Output: billing 1
}
