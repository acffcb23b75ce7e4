// Package forms exposes the forms of a form service as generator nodes.
//
// Every form listed in the project payload becomes the node type
// "forms-<form id>". The node iterates over the form's responses and outputs
// one field per question plus responseId and submittedAt.
//
// Payload:
//
//	{"baseURL": "https://forms.example.com/api", "token": "...", "forms": ["f1", "f2"]}
//
// With [WithBaseURL] the service is fixed and baseURL may be omitted.
package forms
