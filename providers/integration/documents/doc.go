// Package documents exposes document templates of a document service as
// terminator nodes.
//
// Every document listed in the project payload becomes the node type
// "documents-<document id>" with one nullable string input per placeholder.
// The node fetches the template's HTML content, fills its {{placeholder}}
// markers, converts it to Markdown and publishes it as an artifact.
//
// Payload:
//
//	{"baseURL": "https://docs.example.com/api", "token": "...", "documents": ["invoice"]}
//
// With [WithBaseURL] the service is fixed and baseURL may be omitted.
package documents
