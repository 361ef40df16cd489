package mir

import "corelang/internal/symbol"

// OptimizeOptions bundles the configurable knobs of S2's pass pipeline.
type OptimizeOptions struct {
	Inline InlineOptions
}

// DefaultOptimizeOptions mirrors DefaultInlineOptions.
var DefaultOptimizeOptions = OptimizeOptions{Inline: DefaultInlineOptions}

// Optimize runs S2's fixed pass order over every function in src: CCP,
// loop optimizations, DCE, then whole-program inlining, then a final
// CCP+DCE cleanup pass over the inlined bodies (inlining exposes new
// constant-folding and dead-code opportunities CCP/DCE alone could not
// see before the callee bodies were spliced in).
func Optimize(tbl *symbol.Table, src *Sources, opts OptimizeOptions) *Sources {
	fns := make([]Function, len(src.Functions))
	for i, fn := range src.Functions {
		fn = RunCCP(fn)
		fn = RunLoopOptimizations(fn)
		fn = RunDCE(fn)
		fns[i] = fn
	}

	fns = RunInline(tbl, fns, opts.Inline)

	for i, fn := range fns {
		fn = RunCCP(fn)
		fn = RunDCE(fn)
		fns[i] = fn
	}

	out := *src
	out.Functions = fns
	return &out
}
