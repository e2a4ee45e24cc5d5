package llm

import (
	"context"
	"strings"

	"google.golang.org/genai"

	"orpheus/internal/adapters/config"
	"orpheus/pkg/errors"
	"orpheus/pkg/logger"
)

const summarizerInstruction = `You distill voice call transcripts into durable notes about the caller.
Write 2-4 sentences capturing what the caller wanted, facts they shared about
themselves, and any follow-ups they expect. Third person, plain prose, no
preamble. If the transcript contains nothing worth remembering, reply with
exactly: NOTHING`

// Summarizer produces post-call summaries with Gemini
type Summarizer struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// NewSummarizer creates a Gemini-backed summarizer
func NewSummarizer(ctx context.Context, cfg config.SummarizerConfig) (*Summarizer, error) {
	if cfg.GeminiKey == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini client")
	}

	return &Summarizer{
		client: client,
		model:  cfg.Model,
		log:    logger.Get().With("component", "summarizer"),
	}, nil
}

// Summarize condenses a call transcript into a caller note. Returns an
// empty string when the model judged the call not worth remembering.
func (s *Summarizer) Summarize(ctx context.Context, transcriptText string) (string, error) {
	if strings.TrimSpace(transcriptText) == "" {
		return "", nil
	}

	temp := float32(0.2)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(summarizerInstruction, genai.RoleUser),
		Temperature:       &temp,
		MaxOutputTokens:   int32(512),
	}

	contents := []*genai.Content{
		genai.NewContentFromText(transcriptText, genai.RoleUser),
	}

	res, err := s.client.Models.GenerateContent(ctx, s.model, contents, cfg)
	if err != nil {
		return "", errors.Wrap(err, "summary generation failed")
	}

	text := strings.TrimSpace(res.Text())
	if text == "" || text == "NOTHING" {
		return "", nil
	}

	return text, nil
}
