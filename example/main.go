package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/canvas"
	"github.com/meikuraledutech/workflow/catalog"
	"github.com/meikuraledutech/workflow/client"
	"github.com/meikuraledutech/workflow/graph"
	"github.com/meikuraledutech/workflow/internal/logging"
	"github.com/meikuraledutech/workflow/memory"
	"github.com/meikuraledutech/workflow/oracle"
	"github.com/meikuraledutech/workflow/postgres"
	"github.com/meikuraledutech/workflow/validation"
)

// The session runs against WORKFLOW_SERVER when set, otherwise fully in
// process. DATABASE_URL selects postgres for the in-process store.
func main() {
	ctx := context.Background()

	logger, err := logging.New(os.Getenv("WORKFLOW_LOG_LEVEL"), "text", os.Stderr)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	var (
		src   catalog.Source     = catalog.BuiltinSource
		judge workflow.Validator = oracle.New()
		store workflow.Store     = memory.New()
	)
	if url := os.Getenv("WORKFLOW_SERVER"); url != "" {
		c := client.New(url, client.WithLogger(logger))
		defer c.Close()
		src, judge, store = c, c, c
	} else if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
		if err := store.CreateSchema(ctx); err != nil {
			log.Fatalf("schema: %v", err)
		}
	}

	// ── Catalog ───────────────────────────────────────────────────────
	cat := catalog.New(src, catalog.WithLogger(logger))
	types, err := cat.Load(ctx)
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	fmt.Printf("catalog loaded: %d component types\n", len(types))

	// ── Session ───────────────────────────────────────────────────────
	g := graph.New(cat, graph.WithLogger(logger))
	verdicts := validation.New(judge, validation.WithLogger(logger))
	defer verdicts.Close()
	detach := verdicts.Attach(g)
	defer detach()

	ctl := canvas.NewController(cat, g,
		canvas.WithLogger(logger),
		canvas.WithVerdicts(verdicts),
		canvas.WithPersistence(store),
	)
	defer ctl.Close()

	verdicts.Subscribe(func(st validation.Status) {
		if st.Pending || st.Verdict == nil {
			return
		}
		fmt.Printf("  verdict seq=%d valid=%v errors=%v\n", st.Seq, st.Verdict.IsValid, st.Verdict.Errors)
	})

	// ── Drop components from the palette ──────────────────────────────
	drop := func(typeID string, x, y float64) string {
		must(ctl.Dispatch(canvas.Event{Kind: canvas.DragStart, TypeID: typeID}))
		before := len(g.Snapshot().Nodes)
		must(ctl.Dispatch(canvas.Event{
			Kind:   canvas.Drop,
			Pos:    workflow.Position{X: x, Y: y},
			Target: canvas.Target{Kind: canvas.Background},
		}))
		nodes := g.Snapshot().Nodes
		if len(nodes) != before+1 {
			log.Fatalf("drop %s: no node added", typeID)
		}
		fmt.Printf("dropped %s\n", typeID)
		return nodes[len(nodes)-1].ID
	}
	query := drop(catalog.TypeUserQuery, 0, 100)
	kb := drop(catalog.TypeKnowledgeBase, 250, 0)
	llm := drop(catalog.TypeLLMEngine, 500, 100)
	out := drop(catalog.TypeOutput, 750, 100)

	// ── Draw connections ──────────────────────────────────────────────
	wire := func(src, srcPort, dst, dstPort string) {
		must(ctl.Dispatch(canvas.Event{
			Kind:   canvas.PointerDown,
			Target: canvas.Target{Kind: canvas.OutputPort, NodeID: src, Port: srcPort},
		}))
		must(ctl.Dispatch(canvas.Event{Kind: canvas.PointerMove, Pos: workflow.Position{X: 400, Y: 100}}))
		must(ctl.Dispatch(canvas.Event{
			Kind:   canvas.PointerUp,
			Target: canvas.Target{Kind: canvas.InputPort, NodeID: dst, Port: dstPort},
		}))
		fmt.Printf("connected %s.%s -> %s.%s\n", src, srcPort, dst, dstPort)
	}
	wire(query, "query", kb, "query")
	wire(query, "query", llm, "query")
	wire(kb, "context", llm, "context")
	wire(llm, "response", out, "response")

	// A second producer for an occupied input is refused.
	must(ctl.Dispatch(canvas.Event{
		Kind:   canvas.PointerDown,
		Target: canvas.Target{Kind: canvas.OutputPort, NodeID: kb, Port: "retrieved_documents"},
	}))
	if _, err := ctl.Dispatch(canvas.Event{
		Kind:   canvas.PointerUp,
		Target: canvas.Target{Kind: canvas.InputPort, NodeID: llm, Port: "context"},
	}); err != nil {
		fmt.Printf("refused second producer: %s\n", workflow.Code(err))
	}

	// ── Configure the LLM node ────────────────────────────────────────
	must(ctl.Dispatch(canvas.Event{Kind: canvas.Click, Target: canvas.Target{Kind: canvas.NodeBody, NodeID: llm}}))
	form, err := ctl.Inspector()
	if err != nil {
		log.Fatalf("inspector: %v", err)
	}
	if err := form.SetText("temperature", "0.3"); err != nil {
		log.Fatalf("temperature: %v", err)
	}
	if err := form.Set("provider", "openai"); err != nil {
		log.Fatalf("provider: %v", err)
	}
	if err := form.SetText("max_tokens", "5000"); err != nil {
		fmt.Printf("rejected max_tokens=5000: %s\n", workflow.Code(err))
	}
	fields, err := form.Fields()
	if err != nil {
		log.Fatalf("fields: %v", err)
	}
	for _, f := range fields {
		fmt.Printf("  %-16s %-8s %v\n", f.Name, f.Kind, f.Value)
	}

	// ── Save once the verdict is current ──────────────────────────────
	verdicts.Wait()
	saved, err := ctl.Save(ctx, "Document assistant", "Answers questions from uploaded documents")
	if err != nil {
		log.Fatalf("save: %v", err)
	}
	fmt.Println("\nworkflow saved:")
	printJSON(saved)

	// ── Reopen ────────────────────────────────────────────────────────
	loaded, err := store.GetWorkflow(ctx, saved.ID)
	if err != nil {
		log.Fatalf("get workflow: %v", err)
	}
	reopened, err := graph.Hydrate(cat, loaded.Definition())
	if err != nil {
		log.Fatalf("hydrate: %v", err)
	}
	fmt.Printf("\nreopened: %d nodes, %d edges, same content: %v\n",
		len(reopened.Snapshot().Nodes), len(reopened.Snapshot().Edges),
		reopened.Snapshot().Hash() == g.Snapshot().Hash())
}

func must(_ canvas.State, err error) {
	if err != nil {
		log.Fatalf("gesture: %v", err)
	}
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}
