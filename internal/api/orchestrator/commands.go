package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/skinsage/skinsage/internal/types"
)

// Command names one agent capability. Capabilities are selected by enum and
// dispatched through a fixed table, each with one input/output contract.
type Command int

const (
	CommandRetrieveProducts Command = iota
	CommandCheckIngredient
	CommandLocateStore
)

func (c Command) String() string {
	switch c {
	case CommandRetrieveProducts:
		return "retrieveProducts"
	case CommandCheckIngredient:
		return "checkIngredient"
	case CommandLocateStore:
		return "locateStore"
	default:
		return "unknown"
	}
}

// CommandInput is the union of capability inputs; each command reads only the
// fields of its contract.
type CommandInput struct {
	// retrieveProducts
	Query   string
	Filters map[string]string
	Limit   int
	// checkIngredient
	Ingredients []string
	Allergen    string
	// locateStore
	Location string
}

// CommandOutput is the union of capability outputs.
type CommandOutput struct {
	Products []types.Product     // retrieveProducts
	Verdict  string              // checkIngredient
	Stores   []types.StoreResult // locateStore
}

type commandFunc func(ctx context.Context, in CommandInput) (CommandOutput, error)

func (e *Executor) buildCommandTable() map[Command]commandFunc {
	return map[Command]commandFunc{
		CommandRetrieveProducts: e.retrieveProducts,
		CommandCheckIngredient:  e.checkIngredient,
		CommandLocateStore:      e.locateStore,
	}
}

// Dispatch runs one capability through the command table.
func (e *Executor) Dispatch(ctx context.Context, cmd Command, in CommandInput) (CommandOutput, error) {
	fn, ok := e.commands[cmd]
	if !ok {
		return CommandOutput{}, fmt.Errorf("unknown command %d", cmd)
	}
	return fn(ctx, in)
}

func (e *Executor) retrieveProducts(ctx context.Context, in CommandInput) (CommandOutput, error) {
	limit := in.Limit
	if limit <= 0 {
		limit = e.retrievalLimit
	}
	return CommandOutput{Products: e.retriever.Search(ctx, in.Query, in.Filters, limit)}, nil
}

// checkIngredient reports whether an allergen appears anywhere in an
// ingredient list, case-insensitively.
func (e *Executor) checkIngredient(_ context.Context, in CommandInput) (CommandOutput, error) {
	if in.Allergen == "" {
		return CommandOutput{Verdict: "Safe."}, nil
	}
	haystack := strings.ToLower(strings.Join(in.Ingredients, ", "))
	if strings.Contains(haystack, strings.ToLower(in.Allergen)) {
		return CommandOutput{Verdict: fmt.Sprintf("WARNING: Contains %s!", in.Allergen)}, nil
	}
	return CommandOutput{Verdict: "Safe."}, nil
}

func (e *Executor) locateStore(ctx context.Context, in CommandInput) (CommandOutput, error) {
	return CommandOutput{Stores: e.locator.Locate(ctx, in.Query, in.Location)}, nil
}
