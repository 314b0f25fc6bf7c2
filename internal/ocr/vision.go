package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/mind-engage/reshuffle/internal/logger"
	"github.com/mind-engage/reshuffle/internal/storage"
)

// VisionOCR uses Google Cloud Vision text detection. Vision has no
// character allowlist, so results are filtered afterwards.
type VisionOCR struct {
	log    *logger.Logger
	client *vision.ImageAnnotatorClient
	hints  []string
}

func NewVision(ctx context.Context, lang string, log *logger.Logger) (*VisionOCR, error) {
	c, err := vision.NewImageAnnotatorClient(ctx, storage.ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	v := &VisionOCR{log: logger.OrNop(log).With("service", "ocr.Vision"), client: c}
	if lang != "" && lang != "eng" {
		v.hints = []string{lang}
	}
	return v, nil
}

func (v *VisionOCR) Close() error { return v.client.Close() }

func (v *VisionOCR) ReadText(ctx context.Context, img image.Image, allow string) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	req := &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: buf.Bytes()},
		Features: []*visionpb.Feature{{Type: visionpb.Feature_TEXT_DETECTION}},
	}
	if len(v.hints) > 0 {
		req.ImageContext = &visionpb.ImageContext{LanguageHints: v.hints}
	}
	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{req},
	})
	if err != nil {
		return "", fmt.Errorf("vision BatchAnnotateImages: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return "", nil
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return "", fmt.Errorf("vision annotate error: %s", r0.Error.Message)
	}
	if r0.FullTextAnnotation == nil {
		return "", nil
	}
	text := strings.Join(strings.Fields(r0.FullTextAnnotation.Text), " ")
	v.log.Debug("vision text", "raw", text)
	return strings.TrimSpace(Keep(text, allow)), nil
}
