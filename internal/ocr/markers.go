package ocr

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/arbovm/levenshtein"
	"github.com/codycollier/wer"
)

// minSimilarity is the normalized edit similarity a label needs to match an alias
const minSimilarity = 0.75

var numberPattern = regexp.MustCompile(`^[<>]?[-+]?\d+(?:[.,]\d+)?$`)

// Marker is a lab value the reader looks for
type Marker struct {
	Name    string
	Aliases []string
	Unit    string
}

// Reading is one marker value found in recognized text
type Reading struct {
	Marker     string  `json:"marker"`
	Value      float64 `json:"value"`
	Unit       string  `json:"unit,omitempty"`
	Line       string  `json:"line"`
	Confidence float64 `json:"confidence"`
}

// DefaultMarkers returns the markers read from lab reports
func DefaultMarkers() []Marker {
	return []Marker{
		{Name: "hemoglobin", Aliases: []string{"hemoglobin", "haemoglobin", "hgb"}, Unit: "g/dL"},
		{Name: "glucose", Aliases: []string{"glucose", "blood glucose", "blood sugar"}, Unit: "mg/dL"},
		{Name: "total_cholesterol", Aliases: []string{"total cholesterol", "cholesterol"}, Unit: "mg/dL"},
		{Name: "white_blood_cells", Aliases: []string{"wbc", "white blood cells", "leukocytes"}, Unit: "10^3/uL"},
		{Name: "platelets", Aliases: []string{"platelets", "platelet count"}, Unit: "10^3/uL"},
		{Name: "creatinine", Aliases: []string{"creatinine"}, Unit: "mg/dL"},
	}
}

// ExtractReadings scans text line by line for "<label> <number> [unit]" and
// matches labels against marker aliases. The first reading per marker wins.
func ExtractReadings(text string, markers []Marker) []Reading {
	var readings []Reading
	found := make(map[string]bool)

	for _, line := range strings.Split(text, "\n") {
		label, value, unit, ok := splitLine(line)
		if !ok {
			continue
		}

		marker, confidence, ok := bestMatch(label, markers)
		if !ok || found[marker.Name] {
			continue
		}
		found[marker.Name] = true

		if unit == "" {
			unit = marker.Unit
		}
		readings = append(readings, Reading{
			Marker:     marker.Name,
			Value:      value,
			Unit:       unit,
			Line:       strings.TrimSpace(line),
			Confidence: confidence,
		})
	}
	return readings
}

// splitLine finds the first number on a line and returns the label tokens in front of it
func splitLine(line string) (label []string, value float64, unit string, ok bool) {
	line = strings.NewReplacer(":", " ", "=", " ", "\t", " ").Replace(strings.ToLower(line))
	tokens := strings.Fields(line)

	for i, tok := range tokens {
		if !numberPattern.MatchString(tok) {
			if t := normalizeToken(tok); t != "" {
				label = append(label, t)
			}
			continue
		}
		if len(label) == 0 {
			return nil, 0, "", false
		}
		num := strings.TrimLeft(tok, "<>")
		num = strings.ReplaceAll(num, ",", ".")
		v, err := strconv.ParseFloat(num, 64)
		if err != nil {
			return nil, 0, "", false
		}
		if i+1 < len(tokens) && looksLikeUnit(tokens[i+1]) {
			unit = tokens[i+1]
		}
		return label, v, unit, true
	}
	return nil, 0, "", false
}

// bestMatch compares label against every alias, both whole and by its leading tokens
func bestMatch(label []string, markers []Marker) (Marker, float64, bool) {
	var best Marker
	var bestSim, bestConf float64

	for _, m := range markers {
		for _, alias := range m.Aliases {
			aliasTokens := strings.Fields(alias)
			sim := similarity(strings.Join(label, " "), alias)
			if len(label) > len(aliasTokens) {
				if s := similarity(strings.Join(label[:len(aliasTokens)], " "), alias); s > sim {
					sim = s
				}
			}
			if sim <= bestSim {
				continue
			}
			// word error rate against the full label penalizes extra words
			rate, _ := wer.WER(aliasTokens, label)
			bestSim = sim
			bestConf = sim * (1 - 0.5*clamp01(rate))
			best = m
		}
	}

	if bestSim < minSimilarity {
		return Marker{}, 0, false
	}
	return best, bestConf, true
}

// similarity is 1 minus the edit distance normalized by the longer string
func similarity(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	return 1 - float64(levenshtein.Distance(a, b))/float64(longest)
}

func normalizeToken(tok string) string {
	return strings.TrimFunc(tok, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func looksLikeUnit(tok string) bool {
	if numberPattern.MatchString(tok) {
		return false
	}
	for _, r := range tok {
		if unicode.IsLetter(r) || r == '/' || r == '%' {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
