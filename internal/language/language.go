package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// aliases covers bibliographic ISO 639-2 codes and English names, which are
// common in manifests but not accepted by ParseBase.
var aliases = map[string]string{
	"fre": "fr",
	"ger": "de",
	"dut": "nl",
	"chi": "zh",
	"cze": "cs",
	"gre": "el",
	"per": "fa",
	"rum": "ro",
	"slo": "sk",

	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

// Normalize returns the shortest code for a recognized language, preferring
// ISO 639-1. Unrecognized values such as downloader patterns ("en.*", "all")
// pass through lowercased.
func Normalize(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if mapped, ok := aliases[code]; ok {
		return mapped
	}
	if base, err := xlanguage.ParseBase(code); err == nil {
		return base.String()
	}
	return code
}

// ToISO3 returns the ISO 639-3 code used in container metadata, or "und".
func ToISO3(code string) string {
	base, ok := parse(code)
	if !ok {
		return "und"
	}
	return base.ISO3()
}

// DisplayName returns the English name of a language. It returns "Unknown"
// for empty input and the uppercased code when the language is not recognized.
func DisplayName(code string) string {
	if strings.TrimSpace(code) == "" {
		return "Unknown"
	}
	if base, ok := parse(code); ok {
		if name := display.English.Languages().Name(base); name != "" {
			return name
		}
	}
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeList normalizes every code and drops blanks and duplicates,
// keeping first-seen order.
func NormalizeList(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	out := make([]string, 0, len(codes))
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		normalized := Normalize(code)
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		out = append(out, normalized)
	}
	return out
}

func parse(code string) (xlanguage.Base, bool) {
	normalized := Normalize(code)
	if normalized == "" {
		return xlanguage.Base{}, false
	}
	base, err := xlanguage.ParseBase(normalized)
	if err != nil {
		return xlanguage.Base{}, false
	}
	return base, true
}
