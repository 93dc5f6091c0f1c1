package synth

import (
	"fmt"
	"sort"

	"github.com/ent0n29/babel/internal/translate"
)

var ErrUnsupportedLanguage = fmt.Errorf("%w for synthesis", translate.ErrUnsupportedLanguage)

type Voice struct {
	Name   string
	Locale string
}

var voices = map[string]Voice{
	"pt":  {Name: "pt-BR-AntonioNeural", Locale: "pt-BR"},
	"es":  {Name: "es-ES-AlvaroNeural", Locale: "es-ES"},
	"yue": {Name: "yue-CN-YunSongNeural", Locale: "yue-CN"},
	"id":  {Name: "id-ID-ArdiNeural", Locale: "id-ID"},
}

// VoiceFor returns the neural voice used for a short language code.
func VoiceFor(language string) (Voice, error) {
	v, ok := voices[language]
	if !ok {
		return Voice{}, fmt.Errorf("%w: %q", ErrUnsupportedLanguage, language)
	}
	return v, nil
}

func Languages() []string {
	out := make([]string, 0, len(voices))
	for lang := range voices {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}
