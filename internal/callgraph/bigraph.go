// Copyright 2026 The streconst Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package callgraph

// Graph and BiGraph are adapted from the dense-int directed-graph
// abstraction in the examples this module was built from: nodes are
// densely numbered from 0, Out gives successor indices, and
// MakeBiGraph derives the predecessor view by inverting Out. Validate
// uses this as an independent cross-check of the PC-keyed reverse
// adjacency CallGraph otherwise maintains.
type Graph interface {
	// NumNodes returns the number of nodes in the graph.
	NumNodes() int
	// Out returns the nodes to which node i points.
	Out(i int) []int
}

// BiGraph extends Graph with the inverse (predecessor) view.
type BiGraph interface {
	Graph
	// In returns the nodes which point to node i.
	In(i int) []int
}

// MakeBiGraph derives a BiGraph from g by inverting every Out edge.
func MakeBiGraph(g Graph) BiGraph {
	if bg, ok := g.(BiGraph); ok {
		return bg
	}
	preds := make([][]int, g.NumNodes())
	for i := range preds {
		for _, j := range g.Out(i) {
			preds[j] = append(preds[j], i)
		}
	}
	return &bigraph{g, preds}
}

type bigraph struct {
	Graph
	preds [][]int
}

func (b *bigraph) In(i int) []int {
	return b.preds[i]
}

// intGraph is a basic Graph where intGraph[i] lists node i's
// out-edges.
type intGraph [][]int

func (g intGraph) NumNodes() int   { return len(g) }
func (g intGraph) Out(i int) []int { return g[i] }
