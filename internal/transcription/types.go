package transcription

import (
	"cmp"
	"slices"
	"strings"

	"podcastflow/internal/project"
)

const (
	statusCompleted = "completed"
	statusError     = "error"
)

type submitRequest struct {
	AudioURL      string `json:"audio_url"`
	SpeakerLabels bool   `json:"speaker_labels"`
	AutoChapters  bool   `json:"auto_chapters"`
}

type uploadResponse struct {
	UploadURL string `json:"upload_url"`
}

// Provider times are integer milliseconds.
type transcriptResponse struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	Error      string          `json:"error"`
	Text       string          `json:"text"`
	Utterances []utteranceJSON `json:"utterances"`
	Chapters   []chapterJSON   `json:"chapters"`
}

type wordJSON struct {
	Text  string `json:"text"`
	Start int64  `json:"start"`
	End   int64  `json:"end"`
}

type utteranceJSON struct {
	Speaker    string  `json:"speaker"`
	Start      int64   `json:"start"`
	End        int64   `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type chapterJSON struct {
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Gist     string `json:"gist"`
}

type sentenceJSON struct {
	Text  string     `json:"text"`
	Start int64      `json:"start"`
	End   int64      `json:"end"`
	Words []wordJSON `json:"words"`
}

type sentencesResponse struct {
	Sentences []sentenceJSON `json:"sentences"`
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000
}

func buildTranscript(resp transcriptResponse, sentences []sentenceJSON) *project.Transcript {
	transcript := &project.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Segments: make([]project.Segment, 0, len(sentences)),
	}
	for _, sentence := range sentences {
		text := strings.TrimSpace(sentence.Text)
		if text == "" {
			continue
		}
		segment := project.Segment{
			ID:    len(transcript.Segments),
			Start: msToSeconds(sentence.Start),
			End:   msToSeconds(sentence.End),
			Text:  text,
		}
		for _, word := range sentence.Words {
			segment.Words = append(segment.Words, project.Word{
				Word:  word.Text,
				Start: msToSeconds(word.Start),
				End:   msToSeconds(word.End),
			})
		}
		transcript.Segments = append(transcript.Segments, segment)
	}
	if len(transcript.Segments) == 0 && transcript.Text != "" {
		transcript.Segments = append(transcript.Segments, project.Segment{Text: transcript.Text})
	}
	for _, u := range resp.Utterances {
		transcript.Speakers = append(transcript.Speakers, project.Utterance{
			Speaker:    u.Speaker,
			Start:      msToSeconds(u.Start),
			End:        msToSeconds(u.End),
			Text:       strings.TrimSpace(u.Text),
			Confidence: u.Confidence,
		})
	}
	for _, ch := range resp.Chapters {
		transcript.Chapters = append(transcript.Chapters, project.Chapter{
			StartMS:  ch.Start,
			EndMS:    ch.End,
			Headline: strings.TrimSpace(ch.Headline),
			Summary:  strings.TrimSpace(ch.Summary),
			Gist:     strings.TrimSpace(ch.Gist),
		})
	}
	slices.SortStableFunc(transcript.Chapters, func(a, b project.Chapter) int {
		return cmp.Compare(a.StartMS, b.StartMS)
	})
	return transcript
}
