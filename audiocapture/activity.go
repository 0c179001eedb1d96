package audiocapture

import "math"

// Voice activity thresholds for 16-bit chunks.
const (
	VoicePeakThreshold int16   = 80
	VoiceRMSThreshold  float64 = 0.0008

	SilencePeakThreshold int16   = 120
	SilenceRMSThreshold  float64 = 0.0015
)

// HasVoiceActivity reports whether a chunk is loud enough to count as speech.
func HasVoiceActivity(samples []int16) bool {
	if len(samples) == 0 {
		return false
	}
	if PeakAbs(samples) >= VoicePeakThreshold {
		return true
	}
	return MeanSquare(samples) >= VoiceRMSThreshold*VoiceRMSThreshold
}

// IsSilent reports whether a chunk is quiet enough to be suppressed.
// Empty chunks are silent.
func IsSilent(samples []int16) bool {
	if len(samples) == 0 {
		return true
	}
	if PeakAbs(samples) > SilencePeakThreshold {
		return false
	}
	return MeanSquare(samples) <= SilenceRMSThreshold*SilenceRMSThreshold
}

// MeanSquare returns the mean of squared samples normalized to [-1, 1].
func MeanSquare(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s) / math.MaxInt16
		sum += v * v
	}
	return sum / float64(len(samples))
}

// PeakAbs returns the largest absolute sample, saturating at MaxInt16.
func PeakAbs(samples []int16) int16 {
	var peak int16
	for _, s := range samples {
		a := s
		if s == math.MinInt16 {
			a = math.MaxInt16
		} else if s < 0 {
			a = -s
		}
		peak = max(peak, a)
	}
	return peak
}

// RMS returns the root mean square of float samples.
func RMS(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return float32(math.Sqrt(sum / float64(len(samples))))
}
