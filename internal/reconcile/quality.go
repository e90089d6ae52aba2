package reconcile

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tiagomennab/ensaio-fotos-sub001/internal/domain"
)

var architectureNames = []string{"flux", "sdxl", "stable diffusion", "stable-diffusion", "lora", "dreambooth"}

// QualityScore estimates the quality of a finished training run from its
// outcome, duration and logs. The result is clamped to [20, 100].
func QualityScore(succeeded bool, duration time.Duration, logs []string) int {
	score := 80
	if succeeded {
		score += 15
	}

	switch minutes := duration.Minutes(); {
	case duration <= 0:
	case minutes < 15:
		score += 10
	case minutes < 30:
		score += 5
	case minutes > 60:
		score -= 5
	}

	var sawError, sawArch bool
	for _, line := range logs {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") {
			sawError = true
		}
		for _, name := range architectureNames {
			if strings.Contains(lower, name) {
				sawArch = true
				break
			}
		}
	}
	if sawError {
		score -= 5
	}
	if sawArch {
		score += 5
	}
	return clamp(score, 20, 100)
}

var (
	percentPattern = regexp.MustCompile(`(\d{1,3})(?:\.\d+)?\s*%`)
	stepPattern    = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)
)

// trainingProgress maps a provider status and logs onto a percentage that
// never goes below the stored value.
func trainingProgress(status domain.ProviderStatus, logs []string, current int) int {
	var p int
	switch status {
	case domain.ProviderStarting:
		p = 5
	case domain.ProviderProcessing:
		p = clamp(parseProgress(logs, current), 10, 95)
	case domain.ProviderSucceeded:
		p = 100
	default:
		p = current
	}
	if p < current {
		return current
	}
	return p
}

// parseProgress reads the newest "NN%" or "a/b" marker in the logs.
func parseProgress(logs []string, fallback int) int {
	for i := len(logs) - 1; i >= 0; i-- {
		line := logs[i]
		if m := percentPattern.FindAllStringSubmatch(line, -1); len(m) > 0 {
			if v, err := strconv.Atoi(m[len(m)-1][1]); err == nil && v <= 100 {
				return v
			}
		}
		if m := stepPattern.FindAllStringSubmatch(line, -1); len(m) > 0 {
			last := m[len(m)-1]
			done, err1 := strconv.Atoi(last[1])
			total, err2 := strconv.Atoi(last[2])
			if err1 == nil && err2 == nil && total > 0 && done <= total {
				return done * 100 / total
			}
		}
	}
	return fallback
}

func msDuration(ms *int64) time.Duration {
	if ms == nil {
		return 0
	}
	return time.Duration(*ms) * time.Millisecond
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
