package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"fleetguard/internal/checklist"
	"fleetguard/internal/inspection"
	"fleetguard/internal/photo"
)

const DefaultModel = "gemini-2.5-flash"

// GeminiVision sends one downscaled photo per request and asks for a structured JSON answer.
type GeminiVision struct {
	client       *genai.Client
	model        string
	maxDimension int
	log          zerolog.Logger
}

func NewGeminiVision(ctx context.Context, apiKey, model string, maxDimension int, log zerolog.Logger) (*GeminiVision, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiVision{
		client:       client,
		model:        model,
		maxDimension: maxDimension,
		log:          log.With().Str("component", "gemini").Logger(),
	}, nil
}

func (g *GeminiVision) Describe(ctx context.Context, p inspection.Photo, item checklist.Item) (inspection.Analysis, error) {
	data, mime, err := photo.Downscale(p.Data, g.maxDimension)
	if err != nil {
		return inspection.Analysis{}, fmt.Errorf("prepare photo: %w", err)
	}

	temperature := float32(0.2)
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
		Temperature:      &temperature,
		ResponseMIMEType: "application/json",
		ResponseSchema:   responseSchema(),
	}
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mime, Data: data}},
		{Text: BuildPrompt(item)},
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	started := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return inspection.Analysis{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return inspection.Analysis{}, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}

	text := resp.Text()
	g.log.Debug().
		Str("item", item.ID).
		Int("image_bytes", len(data)).
		Int("response_length", len(text)).
		Dur("elapsed", time.Since(started)).
		Msg("gemini response received")

	return ParseResponse(text)
}
