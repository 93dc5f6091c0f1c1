package translate

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnsupportedLanguage    = errors.New("unsupported language")
	ErrTranslationUnavailable = errors.New("translation unavailable")
)

// targetCodes maps the viewer-facing language codes to translator target codes.
var targetCodes = map[string]string{
	"es":  "es",
	"en":  "en",
	"pt":  "pt-BR",
	"yue": "yue-CN",
	"id":  "id",
}

// TargetCode resolves a viewer language to the translator's target code.
func TargetCode(language string) (string, error) {
	code, ok := targetCodes[language]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	return code, nil
}

func IsSupported(language string) bool {
	_, ok := targetCodes[language]
	return ok
}

// Languages lists the supported viewer language codes in sorted order.
func Languages() []string {
	out := make([]string, 0, len(targetCodes))
	for lang := range targetCodes {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}
