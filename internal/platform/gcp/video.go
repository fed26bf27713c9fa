package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	videointelligence "cloud.google.com/go/videointelligence/apiv1"
	vipb "cloud.google.com/go/videointelligence/apiv1/videointelligencepb"

	"github.com/yungbote/scoolish-backend/internal/platform/ctxutil"
	"github.com/yungbote/scoolish-backend/internal/platform/envutil"
	"github.com/yungbote/scoolish-backend/internal/platform/logger"
)

// Video transcribes the speech track of an uploaded video.
type Video interface {
	TranscribeGCS(ctx context.Context, gcsURI string) (string, error)
	Close() error
}

type videoService struct {
	log          *logger.Logger
	client       *videointelligence.Client
	languageCode string
	maxRetries   int
}

func NewVideo(log *logger.Logger) (Video, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := videointelligence.NewClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("videointelligence client: %w", err)
	}
	return &videoService{
		log:          log.With("service", "gcp.Video"),
		client:       c,
		languageCode: envutil.String("SPEECH_LANGUAGE_CODE", "en-US"),
		maxRetries:   4,
	}, nil
}

func (s *videoService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *videoService) TranscribeGCS(ctx context.Context, gcsURI string) (string, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()

	if !strings.HasPrefix(gcsURI, "gs://") {
		return "", fmt.Errorf("gcsURI must be gs://... got %q", gcsURI)
	}

	req := &vipb.AnnotateVideoRequest{
		InputUri: gcsURI,
		Features: []vipb.Feature{vipb.Feature_SPEECH_TRANSCRIPTION},
		VideoContext: &vipb.VideoContext{
			SpeechTranscriptionConfig: &vipb.SpeechTranscriptionConfig{
				LanguageCode:               s.languageCode,
				EnableAutomaticPunctuation: true,
			},
		},
	}

	resp, err := retryTransient(ctx, s.maxRetries, func() (*vipb.AnnotateVideoResponse, error) {
		op, err := s.client.AnnotateVideo(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	if err != nil {
		return "", fmt.Errorf("videointelligence AnnotateVideo: %w", err)
	}
	if resp == nil || len(resp.AnnotationResults) == 0 || resp.AnnotationResults[0] == nil {
		s.log.Warn("no annotation results", "uri", gcsURI)
		return "", nil
	}
	return videoTranscript(resp.AnnotationResults[0].SpeechTranscriptions), nil
}

func videoTranscript(st []*vipb.SpeechTranscription) string {
	lines := make([]string, 0, len(st))
	for _, t := range st {
		if t == nil || len(t.Alternatives) == 0 || t.Alternatives[0] == nil {
			continue
		}
		if txt := strings.TrimSpace(t.Alternatives[0].Transcript); txt != "" {
			lines = append(lines, txt)
		}
	}
	return strings.Join(lines, "\n")
}
