package ocr

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// The score blends six signals, each normalized to [0,1]. The weights sum to
// 1.0, so the result is always within [0,1]. The formula is a deliberately
// tuned heuristic for Colombian utility bills; changing any constant shifts
// the local/remote routing balance.
const (
	weightLength     = 0.15
	weightKeywords   = 0.25
	weightDigits     = 0.15
	weightEngine     = 0.20
	weightNoise      = 0.15
	weightValidWords = 0.10
)

// billKeywords are the billing terms whose presence signals a clean read.
var billKeywords = []string{
	"contrato", "total", "pagar", "direccion", "referencia", "periodo", "factura",
}

var (
	digitRunRe  = regexp.MustCompile(`\d+`)
	garbageRe   = regexp.MustCompile(`[¿¡°•★◆■□▪▫]`)
	validWordRe = regexp.MustCompile(`[a-zA-ZáéíóúñÁÉÍÓÚÑ]{3,}`)
)

// Score computes the heuristic OCR quality score for text with optional
// per-word confidences (0-100). It is a pure function: same inputs, same
// score. Text shorter than 50 characters scores 0 outright.
func Score(text string, wordConfidences []int) float64 {
	if utf8.RuneCountInString(strings.TrimSpace(text)) < 50 {
		return 0
	}

	factorLength := min1(float64(utf8.RuneCountInString(text)) / 500)

	lower := strings.ToLower(text)
	found := 0
	for _, kw := range billKeywords {
		if strings.Contains(lower, kw) {
			found++
		}
	}
	factorKeywords := float64(found) / float64(len(billKeywords))

	factorDigits := min1(float64(len(digitRunRe.FindAllString(text, -1))) / 10)

	factorEngine := 0.5
	sum, n := 0, 0
	for _, c := range wordConfidences {
		if c > 0 {
			sum += c
			n++
		}
	}
	if n > 0 {
		factorEngine = float64(sum) / float64(n) / 100
	}

	garbage := len(garbageRe.FindAllString(text, -1))
	factorNoise := 1 - float64(garbage)/50
	if factorNoise < 0 {
		factorNoise = 0
	}

	factorValidWords := min1(float64(len(validWordRe.FindAllString(text, -1))) / 20)

	return factorLength*weightLength +
		factorKeywords*weightKeywords +
		factorDigits*weightDigits +
		factorEngine*weightEngine +
		factorNoise*weightNoise +
		factorValidWords*weightValidWords
}

func min1(v float64) float64 {
	if v > 1 {
		return 1
	}
	return v
}
