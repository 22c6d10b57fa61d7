package classifier

import (
	"context"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/glyphbot/glyph/internal/setup/config"
	"github.com/google/generative-ai-go/genai"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/json"
	"go.uber.org/zap"
)

const (
	// ApplicationJSON is the MIME type for JSON content.
	ApplicationJSON = "application/json"

	// GeminiSystemPrompt instructs the model how to rate a chat message.
	GeminiSystemPrompt = `You are a content moderation classifier for chat messages.

Input format:
{
  "text": "message content",
  "attributes": ["ATTRIBUTE_NAME"]
}

Output format:
{
  "ATTRIBUTE_NAME": 0.0-1.0
}

Rate the probability that a reader would perceive the message as each attribute.

Attributes:
TOXICITY: rude, disrespectful or unreasonable content likely to make people leave a discussion
SEVERE_TOXICITY: very hateful, aggressive or disrespectful content
INSULT: insulting, inflammatory or negative content towards a person or group
THREAT: intention to inflict pain, injury or violence against a person or group
IDENTITY_ATTACK: negative or hateful content targeting someone because of their identity
PROFANITY: swear words, curse words or other obscene language

Key rules:
1. Return a score for every requested attribute and nothing else
2. Judge the message on its own, quoted or reported speech scores lower
3. Friendly banter between users scores low`

	// GeminiAnalysisPrompt wraps the minified request.
	GeminiAnalysisPrompt = `Score this message.

MESSAGE TO ANALYZE:
%s`
)

// GeminiScorer asks a generative model for attribute scores.
type GeminiScorer struct {
	model      *genai.GenerativeModel
	minify     *minify.M
	attributes []string
	logger     *zap.Logger
}

var _ Scorer = (*GeminiScorer)(nil)

// NewGeminiScorer creates a scorer whose response schema lists the attributes.
func NewGeminiScorer(client *genai.Client, cfg *config.Gemini, attributes []string, logger *zap.Logger) *GeminiScorer {
	properties := make(map[string]*genai.Schema, len(attributes))
	for _, attr := range attributes {
		properties[attr] = &genai.Schema{
			Type:        genai.TypeNumber,
			Description: "Probability between 0.0 and 1.0 that the message is " + strings.ToLower(attr),
		}
	}

	model := client.GenerativeModel(cfg.Model)
	model.SystemInstruction = genai.NewUserContent(genai.Text(GeminiSystemPrompt))
	model.ResponseMIMEType = ApplicationJSON
	model.ResponseSchema = &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
		Required:   attributes,
	}
	model.SetTemperature(cfg.Temperature)
	model.SetMaxOutputTokens(256)

	m := minify.New()
	m.AddFunc(ApplicationJSON, json.Minify)

	return &GeminiScorer{
		model:      model,
		minify:     m,
		attributes: attributes,
		logger:     logger.Named("gemini"),
	}
}

// Score implements Scorer.
func (s *GeminiScorer) Score(ctx context.Context, text string) (Scores, error) {
	prompt, err := s.buildPrompt(text)
	if err != nil {
		return nil, err
	}

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrModelResponse)
	}

	responseText, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected part type", ErrModelResponse)
	}

	return parseScores(string(responseText), s.attributes)
}

func (s *GeminiScorer) buildPrompt(text string) (string, error) {
	request := struct {
		Text       string   `json:"text"`
		Attributes []string `json:"attributes"`
	}{
		Text:       text,
		Attributes: s.attributes,
	}

	requestJSON, err := sonic.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Minify the JSON to reduce token usage
	minified, err := s.minify.Bytes(ApplicationJSON, requestJSON)
	if err != nil {
		return "", fmt.Errorf("failed to minify JSON: %w", err)
	}

	return fmt.Sprintf(GeminiAnalysisPrompt, minified), nil
}

// parseScores reads the model's JSON answer, keeping only requested
// attributes and clamping every score into [0,1].
func parseScores(text string, attributes []string) (Scores, error) {
	var raw map[string]float64
	if err := sonic.UnmarshalString(text, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelResponse, err)
	}

	scores := make(Scores, len(attributes))
	for _, attr := range attributes {
		v, ok := raw[attr]
		if !ok {
			continue
		}

		scores[attr] = min(max(v, 0), 1)
	}

	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: no requested attribute scored", ErrModelResponse)
	}

	return scores, nil
}
