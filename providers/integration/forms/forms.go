package forms

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/leofalp/nodeflow/core/engine"
	"github.com/leofalp/nodeflow/core/node"
	"github.com/leofalp/nodeflow/core/typemodel"
	"github.com/leofalp/nodeflow/internal/utils"
)

// ID is the integration id and the category of the node types it defines.
const ID = "forms"

const (
	// maxPages bounds response pagination for one invocation.
	maxPages = 100

	metadataForm = "form"
)

var (
	// ErrInvalidPayload is returned when the project payload cannot be used.
	ErrInvalidPayload = errors.New("forms: invalid payload")
	// ErrReservedQuestion is returned for a question whose id collides with a fixed output.
	ErrReservedQuestion = errors.New("forms: reserved question id")
	// ErrBaseURLNotAllowed is returned when a payload names a service other than the configured one.
	ErrBaseURLNotAllowed = errors.New("forms: baseURL differs from the configured service")
)

// Payload is the per-project configuration of the integration.
type Payload struct {
	BaseURL string   `json:"baseURL"`
	Token   string   `json:"token"`
	Forms   []string `json:"forms"`
}

// Question is one field of a form.
type Question struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Type is one of text, choice, number, integer, boolean, date or multipleChoice.
	Type string `json:"type"`
}

// Form is the metadata the service returns for GET /forms/{id}.
type Form struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Response is one submission of a form.
type Response struct {
	ID          string         `json:"id"`
	SubmittedAt string         `json:"submittedAt"`
	Answers     map[string]any `json:"answers"`
}

type responsePage struct {
	Responses     []Response `json:"responses"`
	NextPageToken string     `json:"nextPageToken"`
}

// Integration implements [engine.Integration] for a form service.
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

// WithBaseURL pins the service URL. Payloads may omit baseURL or repeat this
// one; any other value is rejected.
func WithBaseURL(baseURL string) Option {
	return func(integration *Integration) {
		integration.baseURL = baseURL
	}
}

// New returns a forms integration.
func New(opts ...Option) *Integration {
	integration := &Integration{client: http.DefaultClient}
	for _, opt := range opts {
		opt(integration)
	}
	return integration
}

var _ engine.Integration = (*Integration)(nil)

func (integration *Integration) ID() string { return ID }

// Resources fetches the metadata of every form listed in payload.
func (integration *Integration) Resources(ctx context.Context, payload json.RawMessage) ([]node.Resource, error) {
	decoded, err := integration.decode(payload)
	if err != nil {
		return nil, err
	}

	resources := make([]node.Resource, 0, len(decoded.Forms))
	for _, formID := range decoded.Forms {
		endpoint := decoded.BaseURL + "/forms/" + url.PathEscape(formID)
		_, form, err := utils.DoGetSync[Form](ctx, integration.client, endpoint, decoded.Token)
		if err != nil {
			return nil, fmt.Errorf("fetching form %q: %w", formID, err)
		}
		if form.ID == "" {
			form.ID = formID
		}
		resources = append(resources, node.Resource{
			ID:       formID,
			Name:     form.Title,
			Metadata: map[string]any{metadataForm: *form},
		})
	}
	return resources, nil
}

// Define builds the generator definition of one form.
func (integration *Integration) Define(resource node.Resource) (*node.Definition, error) {
	form, ok := resource.Metadata[metadataForm].(Form)
	if !ok {
		return nil, fmt.Errorf("forms: resource %q carries no form metadata", resource.ID)
	}

	outputs := map[string]typemodel.Shape{
		"responseId":  typemodel.String,
		"submittedAt": typemodel.NewNullable(typemodel.Date),
	}
	for _, question := range form.Questions {
		if _, taken := outputs[question.ID]; taken || question.ID == "" {
			return nil, fmt.Errorf("%w: %q in form %q", ErrReservedQuestion, question.ID, resource.ID)
		}
		outputs[question.ID] = questionShape(question.Type)
	}

	description := "Iterates over the responses of a form."
	if form.Title != "" {
		description = fmt.Sprintf("Iterates over the responses of %q.", form.Title)
	}
	return &node.Definition{
		Category:    ID,
		Name:        resource.ID,
		Description: description,
		Outputs:     outputs,
		Iterable:    true,
		Purpose:     node.PurposeGenerator,
	}, nil
}

// Handlers returns one response-listing handler per definition.
func (integration *Integration) Handlers(_ context.Context, payload json.RawMessage, definitions []*node.Definition) (map[string]engine.Handler, error) {
	decoded, err := integration.decode(payload)
	if err != nil {
		return nil, err
	}

	handlers := make(map[string]engine.Handler, len(definitions))
	for _, definition := range definitions {
		h := &responsesHandler{
			client:  integration.client,
			baseURL: decoded.BaseURL,
			token:   decoded.Token,
			formID:  definition.Resource,
			outputs: definition.Outputs,
		}
		handlers[definition.ID()] = h
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

type responsesHandler struct {
	client  *http.Client
	baseURL string
	token   string
	formID  string
	outputs map[string]typemodel.Shape
}

func (h *responsesHandler) Handle(ctx context.Context, invocation *engine.Invocation) (*engine.Output, error) {
	responses, err := h.fetch(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]engine.Record, 0, len(responses))
	for _, response := range responses {
		records = append(records, h.record(response))
	}
	if len(records) == 0 && invocation.Notify != nil {
		invocation.Notify(engine.LevelInfo, fmt.Sprintf("form %q has no responses", h.formID))
	}
	return engine.Sequence(records...), nil
}

func (h *responsesHandler) fetch(ctx context.Context) ([]Response, error) {
	endpoint := h.baseURL + "/forms/" + url.PathEscape(h.formID) + "/responses"

	var responses []Response
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		target := endpoint
		if pageToken != "" {
			target += "?pageToken=" + url.QueryEscape(pageToken)
		}
		_, decoded, err := utils.DoGetSync[responsePage](ctx, h.client, target, h.token)
		if err != nil {
			return nil, fmt.Errorf("listing responses of form %q: %w", h.formID, err)
		}
		responses = append(responses, decoded.Responses...)
		if decoded.NextPageToken == "" {
			return responses, nil
		}
		pageToken = decoded.NextPageToken
	}
	return nil, fmt.Errorf("listing responses of form %q: more than %d pages", h.formID, maxPages)
}

// record maps a response onto the definition's outputs. Unanswered
// questions and answers that do not fit the question type read as null.
func (h *responsesHandler) record(response Response) engine.Record {
	record := make(engine.Record, len(h.outputs))
	for field, shape := range h.outputs {
		var raw any
		switch field {
		case "responseId":
			record[field] = response.ID
			continue
		case "submittedAt":
			if response.SubmittedAt != "" {
				raw = response.SubmittedAt
			}
		default:
			raw = response.Answers[field]
		}
		value := typemodel.Normalize(shape, raw)
		if !typemodel.Accepts(shape, value) {
			value = nil
		}
		record[field] = value
	}
	return record
}

// questionShape maps a question type to its output shape. Every answer is
// nullable since respondents may skip questions.
func questionShape(questionType string) typemodel.Shape {
	var inner typemodel.Shape
	switch strings.ToLower(questionType) {
	case "number":
		inner = typemodel.Number
	case "integer":
		inner = typemodel.Integer
	case "boolean":
		inner = typemodel.Boolean
	case "date":
		inner = typemodel.Date
	case "multiplechoice":
		inner = typemodel.NewArray(typemodel.String)
	default:
		inner = typemodel.String
	}
	return typemodel.NewNullable(inner)
}
