// Package embedding provides the batch text-to-vector Embedder capability
// with two implementations: a local sentence transformer (HugotEmbedder)
// and the OpenAI embeddings API (OpenAIEmbedder).
package embedding

import (
	"context"
	"fmt"

	"github.com/knights-analytics/hugot"
	"github.com/siherrmann/grapher/helper"
)

// Embedder produces fixed-dimension vectors for a batch of texts, in
// input order. The output length always equals the input length; an
// empty input produces an empty output. Failures are total: either every
// vector is returned or the call fails with EmbedFailed.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// maxBatch bounds how many texts are sent to the underlying model in one
// RunPipeline call; larger caller-supplied batches are split internally.
const maxBatch = 32

// HugotEmbedder is the reference Embedder: a local ONNX sentence
// transformer run through hugot's Go backend. No network calls happen
// after the model is downloaded once to disk.
type HugotEmbedder struct {
	pipeline  *hugot.FeatureExtractionPipeline
	session   hugot.Session
	dimension int
}

// NewHugotEmbedder downloads (if needed) and loads modelName, returning an
// Embedder that produces dimension-sized vectors.
func NewHugotEmbedder(modelName string, dimension int) (*HugotEmbedder, error) {
	modelPath, err := helper.PrepareModel(modelName, "onnx/model.onnx")
	if err != nil {
		return nil, helper.NewKindError("prepare embedding model", helper.EmbedFailed, err)
	}

	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, helper.NewKindError("create hugot session", helper.EmbedFailed, fmt.Errorf("%w", err))
	}

	config := hugot.FeatureExtractionConfig{
		ModelPath: modelPath,
		Name:      "embedder-pipeline",
	}
	p, err := hugot.NewPipeline(session, config)
	if err != nil {
		_ = session.Destroy()
		return nil, helper.NewKindError("create embedding pipeline", helper.EmbedFailed, err)
	}

	return &HugotEmbedder{pipeline: p, session: session, dimension: dimension}, nil
}

// Dimension returns the configured embedding width.
func (e *HugotEmbedder) Dimension() int { return e.dimension }

// Embed runs texts through the sentence-transformer pipeline in chunks of
// maxBatch, returning vectors in input order.
func (e *HugotEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatch {
		end := start + maxBatch
		if end > len(texts) {
			end = len(texts)
		}

		select {
		case <-ctx.Done():
			return nil, helper.NewKindError("embed batch", helper.Timeout, ctx.Err())
		default:
		}

		result, err := e.pipeline.RunPipeline(texts[start:end])
		if err != nil {
			return nil, helper.NewKindError("run embedding pipeline", helper.EmbedFailed, err)
		}
		if len(result.Embeddings) != end-start {
			return nil, helper.NewKindError(
				"run embedding pipeline", helper.EmbedFailed,
				fmt.Errorf("expected %d embeddings, got %d", end-start, len(result.Embeddings)),
			)
		}
		out = append(out, result.Embeddings...)
	}

	return out, nil
}

// Close releases the underlying hugot session.
func (e *HugotEmbedder) Close() error {
	return e.session.Destroy()
}
