package vision

import (
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

func TestMapAnnotations(t *testing.T) {
	resp := &visionpb.AnnotateImageResponse{
		FullTextAnnotation: &visionpb.TextAnnotation{Text: "Quarterly Report"},
		LabelAnnotations: []*visionpb.EntityAnnotation{
			{Description: "Document", Score: 0.98},
			{Description: "Paper", Score: 0.87},
		},
		LocalizedObjectAnnotations: []*visionpb.LocalizedObjectAnnotation{
			{
				Name:  "Table",
				Score: 0.91,
				BoundingPoly: &visionpb.BoundingPoly{
					NormalizedVertices: []*visionpb.NormalizedVertex{
						{X: 0.1, Y: 0.2},
						{X: 0.8, Y: 0.2},
						{X: 0.8, Y: 0.6},
						{X: 0.1, Y: 0.6},
					},
				},
			},
		},
		SafeSearchAnnotation: &visionpb.SafeSearchAnnotation{
			Adult:    visionpb.Likelihood_VERY_UNLIKELY,
			Violence: visionpb.Likelihood_UNLIKELY,
			Racy:     visionpb.Likelihood_VERY_UNLIKELY,
		},
	}

	analysis := mapAnnotations(resp)

	if analysis.Text != "Quarterly Report" {
		t.Errorf("expected extracted text, got %q", analysis.Text)
	}
	if len(analysis.Labels) != 2 {
		t.Fatalf("expected 2 labels, got %d", len(analysis.Labels))
	}
	if analysis.Labels[0].Description != "Document" || analysis.Labels[0].Score < 0.97 {
		t.Errorf("unexpected first label: %+v", analysis.Labels[0])
	}
	if len(analysis.Objects) != 1 {
		t.Fatalf("expected 1 object, got %d", len(analysis.Objects))
	}

	box := analysis.Objects[0].BoundingBox
	if box.Left > 0.11 || box.Top > 0.21 || box.Right < 0.79 || box.Bottom < 0.59 {
		t.Errorf("unexpected box extent: %+v", box)
	}

	if analysis.SafeSearch.Adult != "VERY_UNLIKELY" {
		t.Errorf("unexpected adult likelihood: %s", analysis.SafeSearch.Adult)
	}
}

func TestMapAnnotationsEmpty(t *testing.T) {
	analysis := mapAnnotations(&visionpb.AnnotateImageResponse{})

	if analysis.Text != "" {
		t.Errorf("expected empty text, got %q", analysis.Text)
	}
	if len(analysis.Labels) != 0 || len(analysis.Objects) != 0 {
		t.Errorf("expected no detections, got %d labels / %d objects",
			len(analysis.Labels), len(analysis.Objects))
	}
}

func TestBoundingBoxNil(t *testing.T) {
	box := boundingBox(nil)
	if box.Left != 0 || box.Top != 0 || box.Right != 0 || box.Bottom != 0 {
		t.Errorf("expected zero box for nil polygon, got %+v", box)
	}
}
