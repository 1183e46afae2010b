package vocabulary

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/errors"
)

// ComputeWeights turns document frequencies into IDF weights:
// log10(n/df[t]) when df[t] > 0, otherwise 0. The result has len(df) entries.
func ComputeWeights(n int, df []int) []float64 {
	weights := make([]float64, len(df))
	for t, f := range df {
		if f <= 0 || n <= 0 {
			continue
		}
		weights[t] = math.Log10(float64(n) / float64(f))
	}
	return weights
}

// LoadWeights reads a positional weight table: exactly size lines, one
// non-negative float per line, line index = term ID.
func LoadWeights(r io.Reader, size int) ([]float64, error) {
	weights := make([]float64, 0, size)
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		w, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q is not a number", apperrors.ErrMalformedWeights, line, text)
		}
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: line %d: weight %v out of range", apperrors.ErrMalformedWeights, line, w)
		}
		weights = append(weights, w)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading weight table: %w", err)
	}
	if len(weights) != size {
		return nil, fmt.Errorf("%w: expected %d lines, got %d", apperrors.ErrMalformedWeights, size, len(weights))
	}
	return weights, nil
}

// WriteWeights writes weights in the format LoadWeights reads.
func WriteWeights(w io.Writer, weights []float64) error {
	bw := bufio.NewWriter(w)
	for _, weight := range weights {
		var text string
		if weight == 0 {
			text = "0"
		} else {
			text = strconv.FormatFloat(weight, 'g', -1, 64)
		}
		if _, err := bw.WriteString(text + "\n"); err != nil {
			return fmt.Errorf("writing weight table: %w", err)
		}
	}
	return bw.Flush()
}
