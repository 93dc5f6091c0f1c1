package synth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAzureSynthesizerRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "secret" {
			t.Errorf("missing subscription key")
		}
		if got := r.Header.Get("X-Microsoft-OutputFormat"); got != azureOutputFormat {
			t.Errorf("output format = %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `<voice name="es-ES-AlvaroNeural">`) {
			t.Errorf("ssml = %s", body)
		}
		if !strings.Contains(string(body), "tom &amp; jerry") {
			t.Errorf("text not escaped: %s", body)
		}
		_, _ = w.Write([]byte("RIFFaudio"))
	}))
	defer srv.Close()

	a := NewAzureSynthesizer(AzureConfig{Key: "secret", Endpoint: srv.URL})
	voice, _ := VoiceFor("es")
	var out bytes.Buffer
	if err := a.Synthesize(context.Background(), "tom & jerry", voice, &out); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if out.String() != "RIFFaudio" {
		t.Fatalf("audio = %q", out.String())
	}
}

func TestAzureSynthesizerErrorDetail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := NewAzureSynthesizer(AzureConfig{Key: "k", Endpoint: srv.URL})
	voice, _ := VoiceFor("pt")
	err := a.Synthesize(context.Background(), "ola", voice, io.Discard)
	var se *SynthesisError
	if !errors.As(err, &se) {
		t.Fatalf("Synthesize() error = %v, want SynthesisError", err)
	}
	if !strings.Contains(se.Detail, "429") || !strings.Contains(se.Detail, "quota exceeded") {
		t.Fatalf("Detail = %q", se.Detail)
	}
}

func TestAzureDefaultEndpoint(t *testing.T) {
	a := NewAzureSynthesizer(AzureConfig{Region: "westeurope"})
	if want := "https://westeurope.tts.speech.microsoft.com/cognitiveservices/v1"; a.cfg.Endpoint != want {
		t.Fatalf("endpoint = %q, want %q", a.cfg.Endpoint, want)
	}
}
