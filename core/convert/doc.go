// Package convert decides whether one port type can feed another and builds
// the value converters used along graph edges.
//
// A Registry holds a flat table of primitive converters between exact shape
// pairs. Compatible walks two shapes with a fixed rule order (refinements,
// nullability, unions, array promotion, maps, generics and equality, then the
// primitive table) and Synthesize mirrors the same walk to assemble a
// recursive converter. A converter is Faulty when any primitive it relies on
// can fail for some inputs; a failed conversion reports ok == false rather
// than an error, leaving the policy to the graph.
//
// Both results are memoized by shape signature, so the registry may be shared
// by concurrent jobs once startup registration is done.
package convert
