package documents

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/node"
	"github.com/leofalp/nodeflow/core/typemodel"
	"github.com/leofalp/nodeflow/internal/utils"
	"github.com/leofalp/nodeflow/providers/builtin"
)

// ID is the integration id and the category of the node types it defines.
const ID = "documents"

// Format is the format of every artifact the integration publishes.
const Format = "text/markdown"

const metadataDocument = "document"

// ErrInvalidPayload is returned when the project payload cannot be used.
var ErrInvalidPayload = errors.New("documents: invalid payload")

// ErrBaseURLNotAllowed is returned when a payload names a service other than the configured one.
var ErrBaseURLNotAllowed = errors.New("documents: baseURL differs from the configured service")

var placeholderName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

// Payload is the per-project configuration of the integration.
type Payload struct {
	BaseURL   string   `json:"baseURL"`
	Token     string   `json:"token"`
	Documents []string `json:"documents"`
}

// Document is the metadata the service returns for GET /documents/{id}.
type Document struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Placeholders []string `json:"placeholders"`
}

// Integration implements [engine.Integration] for a document service.
type Integration struct {
	client  *http.Client
	baseURL string
}

// Option configures an [Integration].
type Option func(*Integration)

// WithHTTPClient sets the client used for every request.
func WithHTTPClient(client *http.Client) Option {
	return func(integration *Integration) {
		integration.client = client
	}
}

// WithBaseURL pins the service URL; a payload naming another one is rejected.
func WithBaseURL(baseURL string) Option {
	return func(integration *Integration) {
		integration.baseURL = baseURL
	}
}

// New returns a documents integration.
func New(opts ...Option) *Integration {
	integration := &Integration{client: http.DefaultClient}
	for _, opt := range opts {
		opt(integration)
	}
	return integration
}

var _ engine.Integration = (*Integration)(nil)

func (integration *Integration) ID() string { return ID }

// Resources fetches the metadata of every document listed in payload.
func (integration *Integration) Resources(ctx context.Context, payload json.RawMessage) ([]node.Resource, error) {
	decoded, err := integration.decode(payload)
	if err != nil {
		return nil, err
	}

	resources := make([]node.Resource, 0, len(decoded.Documents))
	for _, documentID := range decoded.Documents {
		endpoint := decoded.BaseURL + "/documents/" + url.PathEscape(documentID)
		_, document, err := utils.DoGetSync[Document](ctx, integration.client, endpoint, decoded.Token)
		if err != nil {
			return nil, fmt.Errorf("fetching document %q: %w", documentID, err)
		}
		if document.ID == "" {
			document.ID = documentID
		}
		resources = append(resources, node.Resource{
			ID:       documentID,
			Name:     document.Name,
			Metadata: map[string]any{metadataDocument: *document},
		})
	}
	return resources, nil
}

// Define builds the terminator definition of one document.
func (integration *Integration) Define(resource node.Resource) (*node.Definition, error) {
	document, ok := resource.Metadata[metadataDocument].(Document)
	if !ok {
		return nil, fmt.Errorf("documents: resource %q carries no document metadata", resource.ID)
	}

	inputs := make(map[string]typemodel.Shape, len(document.Placeholders))
	for _, placeholder := range document.Placeholders {
		if !placeholderName.MatchString(placeholder) {
			return nil, fmt.Errorf("documents: invalid placeholder %q in document %q", placeholder, resource.ID)
		}
		inputs[placeholder] = typemodel.NewNullable(typemodel.String)
	}

	return &node.Definition{
		Category:    ID,
		Name:        resource.ID,
		Description: fmt.Sprintf("Fills the %q template and publishes it as Markdown.", documentName(document, resource.ID)),
		Inputs:      inputs,
		Outputs: map[string]typemodel.Shape{
			"name":    typemodel.String,
			"content": typemodel.String,
			"format":  typemodel.String,
		},
		Purpose: node.PurposeTerminator,
	}, nil
}

// Handlers returns one rendering handler per definition.
func (integration *Integration) Handlers(_ context.Context, payload json.RawMessage, definitions []*node.Definition) (map[string]engine.Handler, error) {
	decoded, err := integration.decode(payload)
	if err != nil {
		return nil, err
	}

	handlers := make(map[string]engine.Handler, len(definitions))
	for _, definition := range definitions {
		handlers[definition.ID()] = &renderHandler{
			client:       integration.client,
			baseURL:      decoded.BaseURL,
			token:        decoded.Token,
			documentID:   definition.Resource,
			placeholders: definition.InputNames(),
		}
	}
	return handlers, nil
}

func (integration *Integration) decode(payload json.RawMessage) (*Payload, error) {
	var decoded Payload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &decoded); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	decoded.BaseURL = strings.TrimRight(decoded.BaseURL, "/")
	if configured := strings.TrimRight(integration.baseURL, "/"); configured != "" {
		if decoded.BaseURL != "" && decoded.BaseURL != configured {
			return nil, fmt.Errorf("%w: %s", ErrBaseURLNotAllowed, decoded.BaseURL)
		}
		decoded.BaseURL = configured
	}
	if decoded.BaseURL == "" {
		return nil, fmt.Errorf("%w: baseURL is required", ErrInvalidPayload)
	}
	return &decoded, nil
}

type renderHandler struct {
	client       *http.Client
	baseURL      string
	token        string
	documentID   string
	placeholders []string
}

func (h *renderHandler) Handle(ctx context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	documentURL := h.baseURL + "/documents/" + url.PathEscape(h.documentID)

	_, document, err := utils.DoGetSync[Document](ctx, h.client, documentURL, h.token)
	if err != nil {
		return nil, fmt.Errorf("fetching document %q: %w", h.documentID, err)
	}
	template, err := utils.DoGetText(ctx, h.client, documentURL+"/content", h.token)
	if err != nil {
		return nil, fmt.Errorf("fetching content of document %q: %w", h.documentID, err)
	}

	values := make(map[string]string, len(h.placeholders))
	for _, placeholder := range h.placeholders {
		value, _ := invocation.Input(placeholder).(string)
		if invocation.Input(placeholder) == nil && invocation.Notify != nil {
			invocation.Notify(engine.LevelWarn, fmt.Sprintf("placeholder %q of document %q is empty", placeholder, h.documentID))
		}
		values[placeholder] = value
	}

	// Placeholders are filled in the HTML, before conversion.
	markdown, err := builtin.HTMLToMarkdown(ctx, Fill(template, values))
	if err != nil {
		return nil, err
	}

	return engine.Single(engine.Record{
		"name":    documentName(*document, h.documentID),
		"content": markdown,
		"format":  Format,
	}), nil
}

// Fill replaces every {{name}} marker of an HTML template with the
// HTML-escaped value of name. Whitespace inside the braces is ignored and
// markers without a value are left untouched.
func Fill(template string, values map[string]string) string {
	for name, value := range values {
		marker := regexp.MustCompile(`\{\{\s*` + regexp.QuoteMeta(name) + `\s*\}\}`)
		escaped := html.EscapeString(value)
		template = marker.ReplaceAllLiteralString(template, escaped)
	}
	return template
}

func documentName(document Document, fallback string) string {
	if document.Name != "" {
		return document.Name
	}
	return fallback
}
