package coreserver

import (
	"encoding/json"
	"fmt"

	"corelang/internal/ir/hir"
	"corelang/internal/ir/lir"
	"corelang/internal/pipeline"
	"corelang/internal/symbol"
)

// DecodeHIRSources parses the wire JSON format §6 uses for compile
// requests into an *hir.Sources, interning every name into tbl.
func DecodeHIRSources(tbl *symbol.Table, data []byte) (*hir.Sources, error) {
	var w hirSourcesWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("coreserver: decode hir sources: %w", err)
	}
	return wireToHIRSources(tbl, w)
}

// EncodeHIRSources renders src as the wire JSON format §6 uses for
// compile requests, resolving every symbol through tbl.
func EncodeHIRSources(tbl *symbol.Table, src *hir.Sources) ([]byte, error) {
	return json.MarshalIndent(hirSourcesToWire(tbl, src), "", "  ")
}

// EncodeLIRSources renders src as the wire JSON format §6 uses for
// compile responses, resolving every symbol through tbl.
func EncodeLIRSources(tbl *symbol.Table, src *lir.Sources) ([]byte, error) {
	return json.MarshalIndent(lirSourcesToWire(tbl, src), "", "  ")
}

// CompileJSON is the non-networked form of what handleCompile does
// over a websocket: decode HIR sources from data, run compile_core
// with a fresh symbol table, and return the encoded LIR result. It is
// what cmd/corec's "compile" subcommand calls directly, with no server
// involved.
func CompileJSON(data []byte, entryPointNames []string, opts pipeline.Options) (result *pipeline.Result, lirJSON []byte, err error) {
	tbl := symbol.NewTable()
	src, err := DecodeHIRSources(tbl, data)
	if err != nil {
		return nil, nil, err
	}
	entryPoints := make([]symbol.Symbol, len(entryPointNames))
	for i, name := range entryPointNames {
		entryPoints[i] = tbl.AllocPermanent(name)
	}
	result, err = pipeline.Compile(tbl, src, entryPoints, opts)
	if err != nil {
		return nil, nil, err
	}
	lirJSON, err = EncodeLIRSources(tbl, result.Sources)
	if err != nil {
		return nil, nil, err
	}
	return result, lirJSON, nil
}
