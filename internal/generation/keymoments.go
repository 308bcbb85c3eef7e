package generation

import (
	"context"

	"podcastflow/internal/project"
)

// KeyMoments maps provider chapters onto key moments in chapter order. It
// never calls the model.
type KeyMoments struct{}

// Job implements Generator.
func (KeyMoments) Job() project.Job { return project.JobKeyMoments }

// Generate implements Generator. A transcript without chapters yields an
// empty list.
func (KeyMoments) Generate(ctx context.Context, transcript *project.Transcript) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	moments := make([]project.KeyMoment, 0, len(transcript.Chapters))
	for _, ch := range transcript.Chapters {
		start := ch.StartSeconds()
		moments = append(moments, project.KeyMoment{
			Time:        FormatClock(start),
			Timestamp:   start,
			Text:        ch.Headline,
			Description: ch.Summary,
		})
	}
	return moments, nil
}
