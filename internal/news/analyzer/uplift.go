package analyzer

// Emotion weights for the uplift score.
var emotionWeights = struct {
	hope, awe, gratitude, compassion, relief, joy float64
}{2.0, 1.8, 1.5, 1.5, 1.0, 0.7}

// UpliftScore derives a single [0,1] hopefulness value from the emotion
// vector and the sentiment: 70% weighted emotion mean, 30% positive
// sentiment confidence.
func UpliftScore(e Emotions, sentiment string, confidence float64) float64 {
	w := emotionWeights
	total := w.hope + w.awe + w.gratitude + w.compassion + w.relief + w.joy
	weighted := (w.hope*e.Hope + w.awe*e.Awe + w.gratitude*e.Gratitude +
		w.compassion*e.Compassion + w.relief*e.Relief + w.joy*e.Joy) / total

	positive := 0.0
	if sentiment == "positive" {
		positive = clamp01(confidence)
	}
	return clamp01(0.7*weighted + 0.3*positive)
}
