// Package typemodel describes the types carried by node ports.
//
// A Shape is one of a closed set of variants: Scalar, Nullable, Array,
// MapLike, Named, Generic, Refined and Union. Shapes are plain values that are
// frequently rebuilt, so identity is never meaningful: two shapes are the same
// type exactly when their Signature strings are equal. Signatures are also the
// text form accepted by Parse, which lets graphs and HTTP clients spell types
// such as "array<nullable<date>>" or "map<string,number>".
//
// Runtime values use a small set of Go types: string, float64, int64, bool,
// time.Time, []any, map[string]any and nil. Accepts tests membership of such a
// value and Normalize coerces decoded JSON literals into that representation.
package typemodel
