/*
Package shuttle is an execution runtime for agent-driven workflow
machines. A machine is a graph of nodes and guarded transitions; a
decision agent steers each run by choosing from a set of generated tools
(transitions, context reads and writes) plus whatever tools the host
registers. The machine can also inspect and rewrite itself mid-run
through a built-in meta-tool layer.

# Concept

Shuttle separates the machine definition (Graph) from the execution
state (Context and History) and from side effects (Tools). The engine
owns transitions, atomic step commits, retry and circuit-breaker
policies and the fail-closed step limit, while the host owns I/O and the
agent that makes decisions. Every run is fully isolated: dynamic tools
and graph mutations created during one execution never leak into
another.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/wovenlab/shuttle"
		"github.com/wovenlab/shuttle/pkg/agent/openai"
	)

	func main() {
		machine, err := shuttle.New("./order-flow.yaml")
		if err != nil {
			log.Fatal(err)
		}

		ctx := context.Background()
		run, err := machine.NewRun(ctx, openai.New(openai.Config{}))
		if err != nil {
			log.Fatal(err)
		}

		final, err := run.Execute(ctx)
		if err != nil {
			log.Fatal(err)
		}
		log.Printf("finished at %s after %d steps", final.CurrentNode, final.StepCount)
	}

Deterministic executions (tests, trail replay) use the scripted agent
from pkg/agent/scripted instead of a live model.
*/
package shuttle
