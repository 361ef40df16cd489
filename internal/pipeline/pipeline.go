// Package pipeline implements compile_core (§6): the single entry
// point wiring monomorphization (S1), optimization (S2), layout (S3),
// reference-count insertion (S4), and pruning (S5) into one pass over
// a symbol table.
package pipeline

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"corelang/internal/corerr"
	"corelang/internal/ir/hir"
	"corelang/internal/ir/lir"
	"corelang/internal/ir/mir"
	"corelang/internal/symbol"
)

// Options configures one compile_core invocation.
type Options struct {
	Optimize mir.OptimizeOptions
	// SweepWorkUnit, if positive, runs one incremental symbol-table
	// sweep pass after pruning. Zero skips sweeping entirely (the
	// caller may prefer to batch sweeps across several compilations).
	SweepWorkUnit int
}

// DefaultOptions matches the optimizer's own defaults and performs no
// sweep.
var DefaultOptions = Options{
	Optimize: mir.DefaultOptimizeOptions,
}

// Result is everything compile_core hands back to its caller.
type Result struct {
	// ID identifies this compilation for telemetry correlation
	// (buildstore keys its rows on it).
	ID uuid.UUID
	// Sources is the final LIR: S3's layout, S4's inc_ref/dec_ref calls
	// and generated helpers, S5's pruning, all applied.
	Sources *lir.Sources
	// Summary is a short human-readable line describing the output's
	// shape, suitable for CLI/log output.
	Summary string
	// Elapsed is wall-clock time spent across all five stages.
	Elapsed time.Duration
	// PassDurations breaks Elapsed down by stage name ("monomorphize",
	// "optimize", "layout", "refcount", "prune"), for telemetry callers
	// (buildstore) that want a per-pass picture instead of just the total.
	PassDurations map[string]time.Duration
	// SpecializationCount is the number of monomorphized function
	// instances S1 produced (Sources.Functions before S2 can delete any
	// as dead code), a rough proxy for how much a program's generics
	// expanded against its entry points.
	SpecializationCount int
	// SymbolTableTotal/Used/Deallocated mirror symbol.Table.Stat() at
	// the moment this compilation finished, before any SweepWorkUnit run.
	SymbolTableTotal, SymbolTableUsed, SymbolTableDeallocated int
}

// Compile runs compile_core: HIR in, LIR out. entryPoints seeds both
// monomorphization's worklist and pruning's reachability closure,
// overriding whatever src.MainFunctionNames already holds.
//
// Any KindInternal corerr.Abort raised by a pass (a closed-IR
// invariant broken by this package's own code) is caught here and
// returned as an ordinary error — compile_core is the one boundary
// that turns a pass abort back into a normal return, per the
// concurrency model's no-mid-pipeline-recovery rule.
func Compile(tbl *symbol.Table, src *hir.Sources, entryPoints []symbol.Symbol, opts Options) (result *Result, err error) {
	defer corerr.Recover(&err)

	start := time.Now()
	id := uuid.New()
	durations := make(map[string]time.Duration, 5)

	seeded := *src
	seeded.MainFunctionNames = entryPoints

	passStart := time.Now()
	mono := mir.NewMonomorphizer(tbl, &seeded)
	mirPoly, merr := mono.Run()
	durations["monomorphize"] = time.Since(passStart)
	if merr != nil {
		return nil, corerr.Wrap("monomorphize", corerr.KindMalformed, merr)
	}
	specializationCount := len(mirPoly.Functions)

	passStart = time.Now()
	optimized := mir.Optimize(tbl, mirPoly, opts.Optimize)
	durations["optimize"] = time.Since(passStart)

	passStart = time.Now()
	layouter := lir.NewLayouter(tbl)
	laidOut, lerr := layouter.Run(optimized)
	durations["layout"] = time.Since(passStart)
	if lerr != nil {
		return nil, corerr.Wrap("layout", corerr.KindMalformed, lerr)
	}

	passStart = time.Now()
	withRefs := lir.NewRefCounter(tbl).Run(laidOut)
	durations["refcount"] = time.Since(passStart)

	passStart = time.Now()
	pruned := lir.NewPruner(tbl).Run(withRefs)
	durations["prune"] = time.Since(passStart)

	total, used, deallocated := tbl.Stat()

	if opts.SweepWorkUnit > 0 {
		tbl.Sweep(opts.SweepWorkUnit)
	}

	elapsed := time.Since(start)
	return &Result{
		ID:                      id,
		Sources:                 pruned,
		Summary:                 summarize(pruned, elapsed),
		Elapsed:                 elapsed,
		PassDurations:           durations,
		SpecializationCount:     specializationCount,
		SymbolTableTotal:        total,
		SymbolTableUsed:         used,
		SymbolTableDeallocated:  deallocated,
	}, nil
}

func summarize(src *lir.Sources, elapsed time.Duration) string {
	var stmts int
	for _, fn := range src.Functions {
		stmts += len(fn.Body)
	}
	return fmt.Sprintf(
		"%s functions (%s statements), %s object layouts, %s closure types, %s globals in %s",
		humanize.Comma(int64(len(src.Functions))),
		humanize.Comma(int64(stmts)),
		humanize.Comma(int64(len(src.ObjectLayouts))),
		humanize.Comma(int64(len(src.ClosureTypes))),
		humanize.Comma(int64(len(src.GlobalVariables))),
		elapsed.Round(time.Microsecond),
	)
}
