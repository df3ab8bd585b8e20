// Package vision analyzes page images with the Google Cloud Vision API.
package vision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	visionapi "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/avast/retry-go/v4"
	"github.com/docsight/docsight/internal/config"
	"github.com/docsight/docsight/internal/images"
	"google.golang.org/api/option"
)

// ErrAnalysis indicates the Vision API rejected or failed to process an
// image. Wraps the underlying API error.
var ErrAnalysis = errors.New("vision: analysis failed")

const retryAttempts = 3

// Analyzer extracts text, labels, objects, and safe-search classifications
// from an image.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte) (*images.Analysis, error)
	Close() error
}

type googleAnalyzer struct {
	client     *visionapi.ImageAnnotatorClient
	timeout    time.Duration
	maxResults int32
	logger     *slog.Logger
}

// New creates an Analyzer backed by the Cloud Vision image annotator.
// Credentials come from the configured service account file, or application
// default credentials when none is set.
func New(ctx context.Context, cfg *config.VisionConfig, logger *slog.Logger) (Analyzer, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := visionapi.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create vision client: %w", err)
	}

	return &googleAnalyzer{
		client:     client,
		timeout:    cfg.TimeoutDuration(),
		maxResults: int32(cfg.MaxResults),
		logger:     logger.With("system", "vision"),
	}, nil
}

func (a *googleAnalyzer) Close() error {
	return a.client.Close()
}

func (a *googleAnalyzer) Analyze(ctx context.Context, data []byte) (*images.Analysis, error) {
	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image: &visionpb.Image{Content: data},
			Features: []*visionpb.Feature{
				{Type: visionpb.Feature_TEXT_DETECTION},
				{Type: visionpb.Feature_LABEL_DETECTION, MaxResults: a.maxResults},
				{Type: visionpb.Feature_OBJECT_LOCALIZATION, MaxResults: a.maxResults},
				{Type: visionpb.Feature_SAFE_SEARCH_DETECTION},
			},
		}},
	}

	var resp *visionpb.BatchAnnotateImagesResponse
	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, a.timeout)
			defer cancel()

			var callErr error
			resp, callErr = a.client.BatchAnnotateImages(callCtx, req)
			return callErr
		},
		retry.Attempts(retryAttempts),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			a.logger.Warn("annotation retry", "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysis, err)
	}

	if len(resp.Responses) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrAnalysis)
	}
	annotated := resp.Responses[0]
	if annotated.Error != nil {
		return nil, fmt.Errorf("%w: %s", ErrAnalysis, annotated.Error.Message)
	}

	return mapAnnotations(annotated), nil
}

// mapAnnotations converts the API response into the stored analysis shape.
func mapAnnotations(r *visionpb.AnnotateImageResponse) *images.Analysis {
	analysis := &images.Analysis{
		Labels:  make([]images.Label, 0, len(r.LabelAnnotations)),
		Objects: make([]images.Object, 0, len(r.LocalizedObjectAnnotations)),
	}

	if r.FullTextAnnotation != nil {
		analysis.Text = r.FullTextAnnotation.Text
	}

	for _, label := range r.LabelAnnotations {
		analysis.Labels = append(analysis.Labels, images.Label{
			Description: label.Description,
			Score:       float64(label.Score),
		})
	}

	for _, obj := range r.LocalizedObjectAnnotations {
		analysis.Objects = append(analysis.Objects, images.Object{
			Name:        obj.Name,
			Score:       float64(obj.Score),
			BoundingBox: boundingBox(obj.BoundingPoly),
		})
	}

	if s := r.SafeSearchAnnotation; s != nil {
		analysis.SafeSearch = images.SafeSearch{
			Adult:    s.Adult.String(),
			Violence: s.Violence.String(),
			Racy:     s.Racy.String(),
		}
	}

	return analysis
}

// boundingBox reduces a normalized polygon to its axis-aligned extent.
func boundingBox(poly *visionpb.BoundingPoly) images.BoundingBox {
	if poly == nil || len(poly.NormalizedVertices) == 0 {
		return images.BoundingBox{}
	}

	box := images.BoundingBox{Left: math.Inf(1), Top: math.Inf(1), Right: math.Inf(-1), Bottom: math.Inf(-1)}
	for _, v := range poly.NormalizedVertices {
		box.Left = math.Min(box.Left, float64(v.X))
		box.Top = math.Min(box.Top, float64(v.Y))
		box.Right = math.Max(box.Right, float64(v.X))
		box.Bottom = math.Max(box.Bottom, float64(v.Y))
	}
	return box
}
