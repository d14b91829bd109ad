package engine

import (
	"math"

	"gonum.org/v1/gonum/graph/topo"
)

// Params are derived per cycle from the current graph shape. Denser or more
// cyclic graphs are pruned harder; clean graphs are left alone.
type Params struct {
	Density          float64 `json:"density"`
	CycleRatio       float64 `json:"cycle_ratio"`
	Lambda           float64 `json:"lambda"`
	RootInDegreeCap  int     `json:"root_in_degree_cap"`
	AnchorStepBudget int     `json:"anchor_step_budget"`
	PruneCutoff      float64 `json:"prune_cutoff"`
}

const (
	lambdaBase        = 0.1
	lambdaDensity     = 0.6
	lambdaCycle       = 0.3
	rootCapMax        = 10
	rootCapMin        = 4
	rootCapSpan       = 6
	stepBudgetBase    = 40
	stepBudgetPerNode = 12
	stepBudgetMin     = 32
	stepBudgetMax     = 2000
	pruneCutoffBase   = 2.2
	pruneCutoffSpan   = 1.2
)

func tuneParams(w *workGraph) Params {
	n := len(w.order)
	m := len(w.structuralEdges())

	density := 0.0
	if n > 0 {
		density = float64(m) / (float64(n) * math.Log2(float64(n)+1))
	}
	cycleRatio := 0.0
	if n > 0 {
		cycleRatio = float64(countCyclicNodes(w)) / float64(n)
	}

	lambda := clampFloatCeiling(lambdaBase+lambdaDensity*density/(1+density)+lambdaCycle*cycleRatio, 0, 1)
	return Params{
		Density:          density,
		CycleRatio:       cycleRatio,
		Lambda:           lambda,
		RootInDegreeCap:  clampIntCeiling(int(math.Round(rootCapMax-rootCapSpan*lambda)), rootCapMin, rootCapMax),
		AnchorStepBudget: clampIntCeiling(int(math.Round(float64(stepBudgetBase+stepBudgetPerNode*n)*(1-0.5*lambda))), stepBudgetMin, stepBudgetMax),
		PruneCutoff:      pruneCutoffBase + pruneCutoffSpan*lambda,
	}
}

func countCyclicNodes(w *workGraph) int {
	sg := buildSCCGraph(w)
	count := 0
	for _, comp := range topo.TarjanSCC(sg.g) {
		if len(comp) > 1 {
			count += len(comp)
			continue
		}
		if len(comp) == 1 && sg.selfLoop[sg.ids[comp[0].ID()]] {
			count++
		}
	}
	return count
}

func clampIntCeiling(v int, min int, ceiling int) int {
	if v < min {
		v = min
	}
	if ceiling > 0 && v > ceiling {
		v = ceiling
	}
	return v
}

func clampFloatCeiling(v float64, min float64, ceiling float64) float64 {
	if v < min {
		v = min
	}
	if ceiling > 0 && v > ceiling {
		v = ceiling
	}
	return v
}
