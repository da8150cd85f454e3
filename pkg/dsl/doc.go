/*
Package dsl provides a fluent builder for mode tree definitions.

It is an alternative to writing domain.Branch/domain.Key literals or loading
a YAML/CUE file, useful for tests and for trees assembled at startup.

Example usage:

	b := dsl.New()
	b.Node("userPlaying").Leaf("piecePicking", "pieceDumping")
	b.Node("opponentPlaying").Leaf("piecePicking", "pieceDumping")

	tree, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(tree.Modes())
*/
package dsl
