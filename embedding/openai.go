package embedding

import (
	"context"
	"fmt"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/siherrmann/grapher/helper"
)

// DefaultOpenAIModel is the default embeddings model, chosen for its
// 1536-dimension output, the width new user graphs are sized for unless
// configured otherwise.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAIEmbedder is an Embedder backed by the OpenAI embeddings API, for
// deployments that would rather call out than load a local ONNX model.
type OpenAIEmbedder struct {
	client    oai.Client
	model     string
	dimension int
}

// NewOpenAIEmbedder builds an OpenAIEmbedder for modelName (DefaultOpenAIModel
// if empty) producing dimension-sized vectors. baseURL, when non-empty,
// points the client at an OpenAI-compatible endpoint.
func NewOpenAIEmbedder(apiKey, baseURL, modelName string, dimension int) *OpenAIEmbedder {
	if modelName == "" {
		modelName = DefaultOpenAIModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEmbedder{client: oai.NewClient(opts...), model: modelName, dimension: dimension}
}

// Dimension returns the configured embedding width.
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// Embed sends texts to the embeddings endpoint in a single batch request,
// matching the order the API returns by its reported index rather than by
// response order, and converting its float64 vectors to float32.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.Embeddings.New(ctx, oai.EmbeddingNewParams{
		Model: oai.EmbeddingModel(e.model),
		Input: oai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
	})
	if err != nil {
		return nil, helper.NewKindError("embed batch", helper.EmbedFailed, err)
	}
	if len(resp.Data) != len(texts) {
		return nil, helper.NewKindError("embed batch", helper.EmbedFailed,
			fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data)))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if int(d.Index) >= len(texts) {
			return nil, helper.NewKindError("embed batch", helper.EmbedFailed,
				fmt.Errorf("unexpected embedding index %d", d.Index))
		}
		out[d.Index] = float64ToFloat32(d.Embedding)
	}
	return out, nil
}

func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
