package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/glyphbot/glyph/internal/setup/config"
	"go.uber.org/zap"
	commentanalyzer "google.golang.org/api/commentanalyzer/v1alpha1"
	"google.golang.org/api/option"
)

// PerspectiveScorer scores text with the comment analyzer API.
type PerspectiveScorer struct {
	service    *commentanalyzer.Service
	attributes []string
	languages  []string
	timeout    time.Duration
	logger     *zap.Logger
}

var _ Scorer = (*PerspectiveScorer)(nil)

// NewPerspectiveScorer creates a scorer requesting the given attributes.
func NewPerspectiveScorer(
	ctx context.Context, cfg *config.Perspective, attributes []string, logger *zap.Logger,
) (*PerspectiveScorer, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := commentanalyzer.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create comment analyzer service: %w", err)
	}

	return &PerspectiveScorer{
		service:    service,
		attributes: attributes,
		languages:  cfg.Languages,
		timeout:    time.Duration(cfg.RequestTimeout) * time.Millisecond,
		logger:     logger.Named("perspective"),
	}, nil
}

// Score implements Scorer.
func (s *PerspectiveScorer) Score(ctx context.Context, text string) (Scores, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	requested := make(map[string]commentanalyzer.AttributeParameters, len(s.attributes))
	for _, attr := range s.attributes {
		requested[attr] = commentanalyzer.AttributeParameters{}
	}

	resp, err := s.service.Comments.Analyze(&commentanalyzer.AnalyzeCommentRequest{
		Comment:             &commentanalyzer.TextEntry{Text: text},
		RequestedAttributes: requested,
		Languages:           s.languages,
		DoNotStore:          true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("comment analysis failed: %w", err)
	}

	scores := make(Scores, len(resp.AttributeScores))
	for name, attr := range resp.AttributeScores {
		if attr.SummaryScore == nil {
			continue
		}

		scores[name] = attr.SummaryScore.Value
	}

	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: no attribute scores", ErrModelResponse)
	}

	return scores, nil
}
