package audit

import (
	"fmt"
	"math"
)

// inverseErfcOneFifth is erfc^-1(0.2), which places p10 at a score of 0.9.
const inverseErfcOneFifth = 0.9061938024368232

// logNormalScore maps a raw metric value onto [0,1] along c. Lower values
// score higher. Scores are clamped into the band their value falls in so a
// value at or below p10 never scores under 0.9 and one above the median never
// reaches 0.5.
func logNormalScore(c curve, value float64) float64 {
	if value <= 0 {
		return 1
	}
	xLogRatio := math.Log(math.Max(math.SmallestNonzeroFloat64, value/c.median))
	p10LogRatio := -math.Log(math.Max(math.SmallestNonzeroFloat64, c.p10/c.median))
	standardized := xLogRatio * inverseErfcOneFifth / p10LogRatio
	score := math.Erfc(standardized) / 2

	switch {
	case value <= c.p10:
		score = math.Max(0.9, math.Min(1, score))
	case value <= c.median:
		score = math.Max(0.5, math.Min(0.8999999999999999, score))
	default:
		score = math.Max(0, math.Min(0.49999999999999994, score))
	}
	return round2(score)
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// pageTimings are the raw values collected from the Performance API, in
// milliseconds except CLS which is unitless. Nil fields were not observed.
type pageTimings struct {
	TTFB *float64 `json:"ttfb"`
	FCP  *float64 `json:"fcp"`
	LCP  *float64 `json:"lcp"`
	CLS  *float64 `json:"cls"`
	TBT  *float64 `json:"tbt"`
}

// scoreTimings turns raw timings into metrics keyed by catalog ID.
func scoreTimings(t pageTimings) map[string]Metric {
	out := make(map[string]Metric, 5)
	numeric := func(id string, v *float64, display func(float64) string) {
		d := lookup(id)
		m := Metric{ID: id, Title: d.Title, HelpText: d.HelpText, Description: d.Title, ScoringMode: ModeNumeric}
		if v == nil {
			m.ScoringMode = ModeNotApplicable
		} else {
			m.Score = Score(logNormalScore(*d.curve, *v))
			m.NumericValue = Score(*v)
			m.DisplayValue = display(*v)
		}
		out[id] = m
	}
	numeric("first-contentful-paint", t.FCP, seconds)
	numeric("largest-contentful-paint", t.LCP, seconds)
	numeric("total-blocking-time", t.TBT, millis)
	numeric("cumulative-layout-shift", t.CLS, unitless)

	d := lookup("server-response-time")
	srt := Metric{ID: d.ID, Title: d.Title, Description: d.Title, HelpText: d.HelpText, ScoringMode: ModeBinary}
	if t.TTFB == nil {
		srt.ScoringMode = ModeNotApplicable
	} else {
		srt.Score = Score(binary(*t.TTFB < serverResponseBudgetMs))
		srt.NumericValue = Score(*t.TTFB)
		srt.DisplayValue = "Root document took " + millis(*t.TTFB)
	}
	out[d.ID] = srt
	return out
}

// overallScore is the weighted mean of weighted metric scores, scaled to
// [0,100]. Unscored metrics drop out of the weighting.
func overallScore(metrics map[string]Metric) float64 {
	var sum, weights float64
	for _, d := range catalog {
		if d.Weight == 0 {
			continue
		}
		m, ok := metrics[d.ID]
		if !ok || m.Score == nil {
			continue
		}
		sum += *m.Score * d.Weight
		weights += d.Weight
	}
	if weights == 0 {
		return 0
	}
	return math.Round(sum / weights * 100)
}

func binary(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

func seconds(ms float64) string { return fmt.Sprintf("%.1f s", ms/1000) }
func millis(ms float64) string { return fmt.Sprintf("%.0f ms", ms) }
func unitless(v float64) string { return fmt.Sprintf("%.3f", v) }
