package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mikey/llm-answer-bot/internal/core"
	"github.com/sashabaranov/go-openai"
)

type samplingKey struct{}

type extraSampling struct {
	TopK              int
	RepetitionPenalty float32
}

func withExtraSampling(ctx context.Context, p core.GenerationParams) context.Context {
	return context.WithValue(ctx, samplingKey{}, extraSampling{TopK: p.TopK, RepetitionPenalty: p.RepetitionPenalty})
}

// extraParamsDoer adds top_k and repetition_penalty to chat completion bodies.
// go-openai has no fields for them; vLLM and TGI read them from the request.
type extraParamsDoer struct {
	next openai.HTTPDoer
}

func (d *extraParamsDoer) Do(r *http.Request) (*http.Response, error) {
	extra, ok := r.Context().Value(samplingKey{}).(extraSampling)
	if !ok || r.Method != http.MethodPost || r.Body == nil || (extra.TopK <= 0 && extra.RepetitionPenalty <= 0) {
		return d.next.Do(r)
	}

	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode request body: %w", err)
	}
	if extra.TopK > 0 {
		payload["top_k"] = extra.TopK
	}
	if extra.RepetitionPenalty > 0 {
		payload["repetition_penalty"] = extra.RepetitionPenalty
	}
	if body, err = json.Marshal(payload); err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	out := r.Clone(r.Context())
	out.Body = io.NopCloser(bytes.NewReader(body))
	out.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
	out.ContentLength = int64(len(body))
	return d.next.Do(out)
}
