// Package integration holds the external services nodeflow can expose as
// node types. Each subpackage implements [engine.Integration] for one service.
//
// An integration is registered once on the engine. A project that lists the
// integration id in its Integrations map gets one node type per resource the
// payload grants access to, scoped to the job that runs the project.
//
// Example:
//
//	e := engine.New()
//	_ = e.RegisterIntegration(forms.New())
//	_ = e.RegisterIntegration(documents.New())
//
// [engine.Integration]: github.com/leofalp/nodeflow/core/engine.Integration
package integration
