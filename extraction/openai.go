package extraction

import (
	"context"
	"encoding/json"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/siherrmann/grapher/helper"
	"github.com/siherrmann/grapher/model"
)

// OpenAIProvider is the reference Extractor + Generator, backed by a
// chat-completion model constrained to JSON output for the structured calls.
type OpenAIProvider struct {
	client oai.Client
	model  string
}

// NewOpenAIProvider builds a provider against the given model name (e.g.
// "gpt-4o-mini"), using apiKey for auth. baseURL, when non-empty, points the
// client at an OpenAI-compatible endpoint instead of api.openai.com.
func NewOpenAIProvider(apiKey, baseURL, modelName string) *OpenAIProvider {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIProvider{client: oai.NewClient(opts...), model: modelName}
}

const nodeExtractionSystemPrompt = `You extract entities from text as a JSON graph node list.
Respond with a JSON object: {"nodes": [{"name": "...", "type": "...", "perspective": "..."}]}.
Prefer the attribute and relationship vocabulary given in the schema context when naming node types.
Omit nodes you are not confident about. Never invent a node solely to fill the list.`

// GetNodes asks the model to name every entity present in text, steered by
// schemaContext (the serialized attribute/relationship vocabulary).
func (p *OpenAIProvider) GetNodes(ctx context.Context, text, schemaContext string) ([]model.ExtractedNode, error) {
	user := fmt.Sprintf("Schema context:\n%s\n\nText:\n%s", schemaContext, text)
	raw, err := p.chatJSON(ctx, nodeExtractionSystemPrompt, user)
	if err != nil {
		return nil, helper.NewKindError("extract nodes", helper.ExtractFailed, err)
	}

	var parsed struct {
		Nodes []model.ExtractedNode `json:"nodes"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, helper.NewKindError("parse extracted nodes", helper.ExtractFailed, err)
	}
	return parsed.Nodes, nil
}

const relationshipExtractionSystemPrompt = `You extract relationships between already-identified graph nodes as JSON.
Respond with a JSON object: {"relationships": [{"source": "...", "target": "...", "relation": "..."}]}.
Only use source/target names from the provided node list. Never invent a node name here.
Prefer relation labels present in the schema context.`

// GetRelationships asks the model to connect nodes (already extracted in a
// prior call) given the schema vocabulary and known-graph context.
func (p *OpenAIProvider) GetRelationships(ctx context.Context, nodes []model.ExtractedNode, schemaContext, graphContext string) ([]model.ExtractedRelationship, error) {
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	nameList, err := json.Marshal(names)
	if err != nil {
		return nil, helper.NewKindError("marshal node names", helper.ExtractFailed, err)
	}

	user := fmt.Sprintf(
		"Schema context:\n%s\n\nKnown graph context:\n%s\n\nNodes available for linking:\n%s",
		schemaContext, graphContext, string(nameList),
	)
	raw, err := p.chatJSON(ctx, relationshipExtractionSystemPrompt, user)
	if err != nil {
		return nil, helper.NewKindError("extract relationships", helper.ExtractFailed, err)
	}

	var parsed struct {
		Relationships []model.ExtractedRelationship `json:"relationships"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, helper.NewKindError("parse extracted relationships", helper.ExtractFailed, err)
	}
	return parsed.Relationships, nil
}

// Generate produces a free-text completion grounded in context.
func (p *OpenAIProvider) Generate(ctx context.Context, prompt, context string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage("Answer using only the provided context. Say so if the context is insufficient."),
			oai.UserMessage(fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s", context, prompt)),
		},
	})
	if err != nil {
		return "", helper.NewKindError("generate", helper.ExtractFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", helper.NewKindError("generate", helper.ExtractFailed, fmt.Errorf("no choices returned"))
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateStructured produces a completion constrained to the given JSON
// schema description, returning the parsed result as a generic map/slice.
func (p *OpenAIProvider) GenerateStructured(ctx context.Context, schema, prompt, context string) (any, error) {
	raw, err := p.chatJSON(ctx, fmt.Sprintf("Respond with JSON matching this schema: %s", schema),
		fmt.Sprintf("Context:\n%s\n\nQuestion:\n%s", context, prompt))
	if err != nil {
		return nil, helper.NewKindError("generate structured", helper.ExtractFailed, err)
	}

	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, helper.NewKindError("parse structured generation", helper.ExtractFailed, err)
	}
	return out, nil
}

// chatJSON runs a chat completion constrained to JSON-object output and
// returns the raw assistant message content for the caller to unmarshal.
func (p *OpenAIProvider) chatJSON(ctx context.Context, system, user string) ([]byte, error) {
	jsonFormat := shared.NewResponseFormatJSONObjectParam()
	resp, err := p.client.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &jsonFormat,
		},
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	return []byte(resp.Choices[0].Message.Content), nil
}
