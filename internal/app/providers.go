package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/babel/internal/capture"
	"github.com/ent0n29/babel/internal/config"
	"github.com/ent0n29/babel/internal/speech"
	"github.com/ent0n29/babel/internal/synth"
	"github.com/ent0n29/babel/internal/translate"
)

// Providers records which collaborator backends were selected.
type Providers struct {
	Translator string
	Synth      string
	Recognizer string
	Capture    string
}

type providerSetup struct {
	translator translate.Translator
	synth      synth.Synthesizer
	recognizer speech.Recognizer
	source     capture.Source
	names      Providers
	cleanup    func()
}

// NewAzureTranslator returns the configured Azure translator, or nil when no key is set.
func NewAzureTranslator(cfg config.Config) translate.Translator {
	if cfg.AzureTranslatorKey == "" {
		return nil
	}
	return translate.NewAzureTranslator(translate.AzureConfig{
		Key:      cfg.AzureTranslatorKey,
		Endpoint: cfg.AzureTranslatorBaseURL,
		Region:   cfg.AzureTranslatorRegion,
		Timeout:  10 * time.Second,
	})
}

func resolveProviders(cfg config.Config) (providerSetup, error) {
	var p providerSetup
	logger := log.With("component", "app")

	switch cfg.TranslatorProvider {
	case "azure":
		p.translator, p.names.Translator = NewAzureTranslator(cfg), "azure"
	case "mock":
		p.translator, p.names.Translator = translate.NewMockTranslator(), "mock"
	case "auto", "":
		if t := NewAzureTranslator(cfg); t != nil {
			p.translator, p.names.Translator = t, "azure"
		} else {
			p.translator, p.names.Translator = translate.NewMockTranslator(), "mock"
		}
	default:
		return providerSetup{}, fmt.Errorf("invalid TRANSLATOR_PROVIDER: %q (expected auto|azure|mock)", cfg.TranslatorProvider)
	}

	azureSynth := func() synth.Synthesizer {
		return synth.NewAzureSynthesizer(synth.AzureConfig{Key: cfg.AzureSpeechKey, Region: cfg.AzureSpeechRegion})
	}
	switch cfg.SynthProvider {
	case "azure":
		p.synth, p.names.Synth = azureSynth(), "azure"
	case "mock":
		p.synth, p.names.Synth = synth.NewMockSynthesizer(), "mock"
	case "auto", "":
		if cfg.AzureSpeechKey != "" && cfg.AzureSpeechRegion != "" {
			p.synth, p.names.Synth = azureSynth(), "azure"
		} else {
			p.synth, p.names.Synth = synth.NewMockSynthesizer(), "mock"
		}
	default:
		return providerSetup{}, fmt.Errorf("invalid SYNTH_PROVIDER: %q (expected auto|azure|mock)", cfg.SynthProvider)
	}

	switch cfg.RecognizerProvider {
	case "vosk":
		rec, err := speech.NewVoskRecognizer(cfg.VoskModelPath, cfg.CaptureSampleRate)
		if err != nil {
			return providerSetup{}, fmt.Errorf("vosk recognizer init failed: %w", err)
		}
		p.recognizer, p.names.Recognizer, p.cleanup = rec, "vosk", rec.Close
	case "mock":
		p.recognizer, p.names.Recognizer = speech.NewMockRecognizer(), "mock"
	case "auto", "":
		rec, err := speech.NewVoskRecognizer(cfg.VoskModelPath, cfg.CaptureSampleRate)
		if err == nil {
			p.recognizer, p.names.Recognizer, p.cleanup = rec, "vosk", rec.Close
			break
		}
		logger.Info("vosk recognizer unavailable, using mock", "err", err)
		p.recognizer, p.names.Recognizer = speech.NewMockRecognizer(), "mock"
	default:
		return providerSetup{}, fmt.Errorf("invalid RECOGNIZER_PROVIDER: %q (expected auto|vosk|mock)", cfg.RecognizerProvider)
	}

	switch cfg.CaptureProvider {
	case "portaudio":
		p.source, p.names.Capture = capture.NewPortAudioSource(cfg.CaptureDevice), "portaudio"
	case "synthetic":
		p.source, p.names.Capture = capture.NewSyntheticSource(), "synthetic"
	case "auto", "":
		if probeSource(capture.NewPortAudioSource(cfg.CaptureDevice), cfg) {
			p.source, p.names.Capture = capture.NewPortAudioSource(cfg.CaptureDevice), "portaudio"
		} else {
			logger.Info("audio input unavailable, using synthetic source")
			p.source, p.names.Capture = capture.NewSyntheticSource(), "synthetic"
		}
	default:
		return providerSetup{}, fmt.Errorf("invalid CAPTURE_PROVIDER: %q (expected auto|portaudio|synthetic)", cfg.CaptureProvider)
	}

	return p, nil
}

// probeSource opens and immediately closes src to check a device is present.
func probeSource(src capture.Source, cfg config.Config) bool {
	stream, err := src.Open(cfg.CaptureSampleRate, cfg.CaptureFrames)
	if err != nil {
		return false
	}
	_ = stream.Close()
	return true
}
