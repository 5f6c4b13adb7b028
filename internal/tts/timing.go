package tts

import (
	"math"
	"sort"
	"strings"
)

// wordsPerMinute is the assumed speaking rate at speed 1.0.
const wordsPerMinute = 150

// WordTiming is the estimated span of one spoken word.
type WordTiming struct {
	Word    string `json:"word"`
	StartMS uint64 `json:"start_ms"`
	EndMS   uint64 `json:"end_ms"`
}

// EstimateWordTimings guesses when each whitespace-separated word of text is
// spoken. Longer words take longer, between half and twice the average.
// Timings are contiguous and start at zero.
func EstimateWordTimings(text string, speed float64) []WordTiming {
	if speed <= 0 || math.IsNaN(speed) {
		speed = 1
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	wordsPerSecond := wordsPerMinute * speed / 60
	msPerWord := uint64(1000 / wordsPerSecond)

	timings := make([]WordTiming, 0, len(words))
	var current uint64
	for _, w := range words {
		factor := math.Min(math.Max(float64(len(w))/5, 0.5), 2.0)
		d := uint64(float64(msPerWord) * factor)
		timings = append(timings, WordTiming{
			Word:    w,
			StartMS: current,
			EndMS:   current + d,
		})
		current += d
	}
	return timings
}

// TotalMS is the end of the last timing.
func TotalMS(timings []WordTiming) uint64 {
	if len(timings) == 0 {
		return 0
	}
	return timings[len(timings)-1].EndMS
}

// ScaleTimings stretches timings so the last word ends at durationMS. The
// input is not modified.
func ScaleTimings(timings []WordTiming, durationMS uint64) []WordTiming {
	total := TotalMS(timings)
	if total == 0 || durationMS == 0 {
		return timings
	}

	ratio := float64(durationMS) / float64(total)
	out := make([]WordTiming, len(timings))
	for i, t := range timings {
		out[i] = WordTiming{
			Word:    t.Word,
			StartMS: uint64(math.Round(float64(t.StartMS) * ratio)),
			EndMS:   uint64(math.Round(float64(t.EndMS) * ratio)),
		}
	}
	out[len(out)-1].EndMS = durationMS
	return out
}

// WordAt returns the index of the word being spoken at positionMS, or -1
// when timings is empty. Positions past the end map to the last word.
func WordAt(timings []WordTiming, positionMS uint64) int {
	if len(timings) == 0 {
		return -1
	}
	i := sort.Search(len(timings), func(i int) bool {
		return timings[i].EndMS > positionMS
	})
	if i == len(timings) {
		return len(timings) - 1
	}
	return i
}
