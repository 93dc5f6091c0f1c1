package live

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ent0n29/babel/internal/capture"
	"github.com/ent0n29/babel/internal/mailbox"
	"github.com/ent0n29/babel/internal/observability"
	"github.com/ent0n29/babel/internal/redact"
	"github.com/ent0n29/babel/internal/session"
	"github.com/ent0n29/babel/internal/speech"
	"github.com/ent0n29/babel/internal/transcript"
)

const DefaultAudioQueueSize = 64

type Config struct {
	SampleRate     int
	Frames         int
	AudioQueueSize int
}

// StopReport summarizes what a Stop call discarded and notified.
type StopReport struct {
	WasStreaming       bool `json:"was_streaming"`
	DrainedAudio       int  `json:"drained_audio"`
	DrainedTranscripts int  `json:"drained_transcripts"`
	Notified           int  `json:"notified"`
}

// Driver owns the single capture and recognition run. Recognition results are
// published into the transcription feed only while the streaming flag is set.
type Driver struct {
	recognizer speech.Recognizer
	source     capture.Source
	feed       *transcript.Feed
	registry   *session.Registry
	metrics    *observability.Metrics
	cfg        Config
	logger     *log.Logger

	streaming atomic.Bool

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	audio  *mailbox.Box[[]byte]
	done   chan struct{}
}

func NewDriver(recognizer speech.Recognizer, source capture.Source, feed *transcript.Feed, registry *session.Registry, metrics *observability.Metrics, cfg Config) *Driver {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = capture.DefaultSampleRate
	}
	if cfg.Frames <= 0 {
		cfg.Frames = capture.DefaultFrames
	}
	if cfg.AudioQueueSize <= 0 {
		cfg.AudioQueueSize = DefaultAudioQueueSize
	}
	return &Driver{
		recognizer: recognizer,
		source:     source,
		feed:       feed,
		registry:   registry,
		metrics:    metrics,
		cfg:        cfg,
		logger:     log.With("component", "live"),
	}
}

// Running reports the streaming flag.
func (d *Driver) Running() bool {
	return d.streaming.Load()
}

// Start launches a run unless one is already streaming. It reports whether a new run
// was launched.
func (d *Driver) Start() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.streaming.Load() {
		return false
	}
	d.gen++
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.audio = mailbox.New[[]byte](d.cfg.AudioQueueSize)
	d.done = make(chan struct{})
	d.streaming.Store(true)
	d.metrics.SetStreaming(true)

	go d.run(ctx, d.gen, d.audio, d.done)
	d.logger.Info("streaming started", "run", d.gen)
	return true
}

// Stop clears the streaming flag, cancels the run, discards queued audio and
// transcriptions, and pushes an empty final message to every session. It never blocks
// on a mailbox and is safe to call at any time.
func (d *Driver) Stop() StopReport {
	d.mu.Lock()
	was := d.streaming.Swap(false)
	cancel := d.cancel
	d.cancel = nil
	audio := d.audio
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	report := StopReport{WasStreaming: was}
	if audio != nil {
		report.DrainedAudio = audio.Drain()
	}
	report.DrainedTranscripts = d.feed.Drain()
	report.Notified = d.registry.NotifyAll(session.Message{Kind: session.KindFinal, Text: ""})
	d.metrics.SetStreaming(false)

	d.logger.Info("streaming stopped",
		"was_streaming", report.WasStreaming,
		"drained_audio", report.DrainedAudio,
		"drained_transcripts", report.DrainedTranscripts,
		"notified", report.Notified,
	)
	return report
}

// Shutdown stops streaming and waits for the last run to release its devices.
func (d *Driver) Shutdown(ctx context.Context) error {
	d.Stop()
	d.mu.Lock()
	done := d.done
	d.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Driver) publish(text string, final bool) {
	if !d.streaming.Load() || text == "" {
		return
	}
	if final {
		d.logger.Info("speech recognized", "text", redact.Value(text))
	} else {
		d.logger.Debug("speech recognizing", "text", redact.Value(text))
	}
	d.feed.Publish(transcript.Fragment{Text: text, IsFinal: final})
}

func (d *Driver) run(ctx context.Context, gen uint64, audio *mailbox.Box[[]byte], done chan struct{}) {
	defer close(done)
	defer d.finish(gen)
	defer audio.Drain()

	stream, err := d.recognizer.Start(ctx, speech.Handlers{
		Recognizing: func(text string) { d.publish(text, false) },
		Recognized:  func(text string) { d.publish(text, true) },
		Canceled: func(err error) {
			d.logger.Warn("speech recognition canceled", "err", err)
		},
	})
	if err != nil {
		d.logger.Error("failed to start speech recognition", "err", err)
		return
	}
	defer func() {
		if err := stream.Stop(); err != nil {
			d.logger.Error("failed to stop speech recognition", "err", err)
			return
		}
		d.logger.Info("speech recognition stopped")
	}()

	input, err := d.source.Open(d.cfg.SampleRate, d.cfg.Frames)
	if err != nil {
		d.logger.Error("failed to open audio input", "err", err)
		return
	}
	defer func() {
		if err := input.Close(); err != nil {
			d.logger.Warn("failed to close audio input", "err", err)
		}
	}()

	feedCtx, stopFeeder := context.WithCancel(ctx)
	var feeder sync.WaitGroup
	feeder.Add(1)
	go func() {
		defer feeder.Done()
		d.feedRecognizer(feedCtx, audio, stream)
	}()
	defer func() {
		stopFeeder()
		feeder.Wait()
	}()

	d.logger.Info("audio input started", "sample_rate", d.cfg.SampleRate, "frames", d.cfg.Frames)
	for d.streaming.Load() {
		block, err := input.Read(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, capture.ErrClosed) {
				d.logger.Error("failed to read audio input", "err", err)
			}
			return
		}
		if audio.Push(block) {
			d.logger.Debug("audio queue full, dropped oldest block")
		}
	}
}

func (d *Driver) feedRecognizer(ctx context.Context, audio *mailbox.Box[[]byte], stream speech.Stream) {
	for {
		block, err := audio.Receive(ctx, time.Second)
		if errors.Is(err, mailbox.ErrTimeout) {
			continue
		}
		if err != nil {
			return
		}
		if err := stream.Feed(block); err != nil {
			d.logger.Error("failed to feed recognizer", "err", err)
			return
		}
	}
}

// finish clears the streaming flag when a run ends on its own, unless a newer run has
// already replaced it.
func (d *Driver) finish(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.gen != gen {
		return
	}
	if d.streaming.Swap(false) {
		d.logger.Warn("streaming run ended unexpectedly", "run", gen)
		d.metrics.SetStreaming(false)
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
