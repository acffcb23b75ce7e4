// Package node holds node definitions and the registry that names them.
//
// A Definition is identified by "category-name" and declares typed input and
// output ports. Builtin definitions live in a process-wide Registry; each job
// works on a Scope of it, so definitions discovered at job start (one per
// external resource, or one per generic instantiation) never leak into the
// shared table.
package node
