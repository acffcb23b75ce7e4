// Package builtin provides the process-wide node vocabulary: literals,
// arithmetic, text, dates, arrays, conditionals and outputs.
//
// Every builtin is a [Node] pairing an immutable definition with its handler.
// [Register] installs the whole vocabulary into an engine at startup:
//
//	e := engine.New()
//	if err := builtin.Register(e); err != nil {
//	    log.Fatal(err)
//	}
//
// Node type ids follow the "category-name" convention, e.g. "math-add" or
// "array-iterate".
package builtin
