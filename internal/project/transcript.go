package project

import "strings"

// Transcript is produced once per project by the transcription phase.
type Transcript struct {
	Text     string      `json:"text"`
	Segments []Segment   `json:"segments"`
	Speakers []Utterance `json:"speakers,omitempty"`
	Chapters []Chapter   `json:"chapters,omitempty"`
}

// Segment is a time-coded chunk of speech. Times are in seconds.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
	Words []Word  `json:"words,omitempty"`
}

// Word is word-level timing within a segment, in seconds.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Utterance is a speaker-attributed stretch of speech, in seconds.
type Utterance struct {
	Speaker    string  `json:"speaker"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Chapter is a provider-detected topical segment. Times are in milliseconds.
type Chapter struct {
	StartMS  int64  `json:"start"`
	EndMS    int64  `json:"end"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Gist     string `json:"gist,omitempty"`
}

// StartSeconds returns the chapter start in seconds.
func (c Chapter) StartSeconds() float64 {
	return float64(c.StartMS) / 1000
}

// DurationSeconds returns the end of the last segment, or zero.
func (t *Transcript) DurationSeconds() float64 {
	if t == nil || len(t.Segments) == 0 {
		return 0
	}
	return t.Segments[len(t.Segments)-1].End
}

// WordCount counts whitespace-separated words in the full text.
func (t *Transcript) WordCount() int {
	if t == nil {
		return 0
	}
	return len(strings.Fields(t.Text))
}
