package voice

import "math"

// energyEpsilon guards the noise score against near-silent windows.
const energyEpsilon = 0.001

// peakThresholdRatio is the fraction of the mean absolute amplitude a local
// maximum must exceed to count as a pitch peak.
const peakThresholdRatio = 0.3

// neutralFrequencyScore is used when no pitch could be estimated.
const neutralFrequencyScore = 0.5

// RMS returns the root-mean-square energy of samples, or 0 for an empty slice.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// NoiseScore measures waveform roughness: the summed deviation of each
// interior sample from its 5-point moving average, relative to the summed
// absolute amplitude. Smooth synthetic tones score near 0, voiced speech and
// breath noise score high. Windows shorter than 5 samples or with total
// energy below 0.001 score 0.
func NoiseScore(samples []float32) float64 {
	n := len(samples)
	if n < minWindowSize {
		return 0
	}
	var totalVariation, totalEnergy float64
	for i := 2; i < n-2; i++ {
		s := float64(samples[i])
		avg := (float64(samples[i-2]) + float64(samples[i-1]) + s +
			float64(samples[i+1]) + float64(samples[i+2])) / 5
		totalVariation += math.Abs(s - avg)
		totalEnergy += math.Abs(s)
	}
	if totalEnergy < energyEpsilon {
		return 0
	}
	return totalVariation / totalEnergy
}

// EstimatePitch estimates the dominant frequency of samples from the spacing
// of its local maxima. Only peak-to-peak distances whose implied frequency
// lies within [minHz, maxHz] are averaged. It returns 0 ("no opinion") when
// fewer than two peaks are found or no distance is plausible.
func EstimatePitch(samples []float32, sampleRate int, minHz, maxHz float64) float64 {
	n := len(samples)
	if n < 3 || sampleRate <= 0 {
		return 0
	}
	sr := float64(sampleRate)

	var sumAbs float64
	for _, s := range samples {
		sumAbs += math.Abs(float64(s))
	}
	threshold := peakThresholdRatio * sumAbs / float64(n)

	peaks, prev := 0, -1
	var periodSum float64
	valid := 0
	for i := 1; i < n-1; i++ {
		s := samples[i]
		if s <= samples[i-1] || s <= samples[i+1] || float64(s) <= threshold {
			continue
		}
		peaks++
		if prev >= 0 {
			d := float64(i - prev)
			if f := sr / d; f >= minHz && f <= maxHz {
				periodSum += d
				valid++
			}
		}
		prev = i
	}
	if peaks < 2 || valid == 0 {
		return 0
	}
	return sr / (periodSum / float64(valid))
}

// noiseComponent normalises a noise score against the noise threshold.
func noiseComponent(noiseScore, noiseThreshold float64) float64 {
	return clamp01(noiseScore / noiseThreshold)
}

// frequencyComponent scores a pitch estimate: 1 inside [minHz, maxHz],
// falling off linearly outside, and neutral when pitch is unknown.
func frequencyComponent(pitch, minHz, maxHz float64) float64 {
	switch {
	case pitch <= 0:
		return neutralFrequencyScore
	case pitch < minHz:
		return clamp01(pitch / minHz)
	case pitch > maxHz:
		return clamp01(1 - (pitch-maxHz)/maxHz)
	default:
		return 1
	}
}

// energyComponent normalises an RMS value against the volume threshold.
func energyComponent(rms, volumeThreshold float64) float64 {
	return clamp01(rms / volumeThreshold)
}

func clamp01(v float64) float64 {
	switch {
	case v != v, v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
