package chat

import "github.com/montanaflynn/stats"

// ComputeMetrics derives the satisfaction rollup from a store snapshot.
// Pure function; averages cover only messages that carry the score, the
// sentiment counts cover every message.
func ComputeMetrics(msgs []Message) MetricsSnapshot {
	var csat, nps, ces []float64
	counts := map[string]int64{
		"positive": 0,
		"neutral":  0,
		"negative": 0,
	}

	for _, m := range msgs {
		if m.CSAT != nil {
			csat = append(csat, float64(*m.CSAT))
		}
		if m.NPS != nil {
			nps = append(nps, float64(*m.NPS))
		}
		if m.CES != nil {
			ces = append(ces, float64(*m.CES))
		}
		counts[m.AI.Sentiment]++
	}

	return MetricsSnapshot{
		CSATAvg:         roundedMean(csat),
		NPSScore:        npsScore(nps),
		CESAvg:          roundedMean(ces),
		SentimentCounts: counts,
	}
}

func roundedMean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	mean, err := stats.Mean(vals)
	if err != nil {
		return 0
	}
	out, err := stats.Round(mean, 2)
	if err != nil {
		return 0
	}
	return out
}

// npsScore is ((promoters - detractors) / respondents) * 100, where
// promoters score >= 9 and detractors <= 6.
func npsScore(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var promoters, detractors int
	for _, v := range vals {
		switch {
		case v >= 9:
			promoters++
		case v <= 6:
			detractors++
		}
	}
	score := float64(promoters-detractors) / float64(len(vals)) * 100
	out, err := stats.Round(score, 2)
	if err != nil {
		return 0
	}
	return out
}
