package flow

import (
	"github.com/kestrelhq/nlsql/internal/chart"
	"github.com/kestrelhq/nlsql/internal/llm"
	"github.com/kestrelhq/nlsql/internal/promptassembler"
	"github.com/kestrelhq/nlsql/internal/requeststore"
	"github.com/kestrelhq/nlsql/internal/warehouse"
)

// Deps bundles every collaborator a flow needs (spec §4.6: "(WorkerRequest,
// LLMClient, Warehouse, RequestStore)" plus the PromptAssembler and Chart
// service named elsewhere in the data flow diagram, spec §2).
type Deps struct {
	Store      requeststore.Store
	Warehouse  warehouse.Client
	LLM        llm.Client
	Assembler  *promptassembler.Assembler
	Chart      chart.Service
	MaxSteps   int
}
