package scalux_test

import (
	"context"
	"fmt"
	"log"

	"github.com/scalux/scalux"
	"github.com/scalux/scalux/pkg/domain"
	"github.com/scalux/scalux/pkg/dsl"
)

// ExampleFromDefinition shows the two partial-path transitions on a
// two-player game.
func ExampleFromDefinition() {
	def := domain.Branch(
		domain.Key("userPlaying", domain.Leaves("piecePicking", "pieceDumping")),
		domain.Key("opponentPlaying", domain.Leaves("piecePicking", "pieceDumping")),
	)

	eng, err := scalux.FromDefinition(def)
	if err != nil {
		log.Fatal(err)
	}

	turn, err := eng.Macro("userPlaying")
	if err != nil {
		log.Fatal(err)
	}
	next, err := turn.Next("opponentPlaying", "userPlaying/piecePicking")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(next)

	step, err := eng.Sub("piecePicking")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(step.Match("userPlaying/pieceDumping"))

	// Output:
	// opponentPlaying/piecePicking
	// false
}

// ExampleEngine_Sessions keeps the current mode of a session, with undo.
func ExampleEngine_Sessions() {
	b := dsl.New()
	b.Node("editing").Leaf("text", "shape")
	b.Leaf("idle")

	eng, err := scalux.FromDefinition(b.Definition(), scalux.WithOptions(map[string][]string{
		"tool": {"editing"},
	}))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	sessions := eng.Sessions()
	if _, err := sessions.Start(ctx, "doc-1", "editing/text"); err != nil {
		log.Fatal(err)
	}
	change, err := sessions.ApplySub(ctx, "doc-1", "text", "shape")
	if err != nil {
		log.Fatal(err)
	}
	options, _ := eng.Classify(change.State.Mode)
	fmt.Println(change.State.Mode, options["tool"])

	change, err = sessions.Undo(ctx, "doc-1")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(change.State.Mode)

	// Output:
	// editing/shape shape
	// editing/text
}
