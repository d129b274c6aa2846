// Package playback plays a sequence of text chunks as synthesized
// audio, strictly in order, prefetching the next chunk's audio while
// the current one is playing so network latency hides behind playback
// time.
package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/a4sr3s/voxpipe/pkg/Logger"
	"github.com/a4sr3s/voxpipe/pkg/io/tts"
)

// ErrRateLimited aborts a chunk sequence for the rest of the calendar
// day.
var ErrRateLimited = errors.New("tts rate limited for today")

// Synthesizer produces audio bytes for one chunk of text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice string) ([]byte, error)
}

// Playable is an allocated audio resource, ready to play once. It must
// be released on every exit path.
type Playable interface {
	// Play blocks until the audio finishes or the sink is stopped.
	Play(ctx context.Context) error
	Release()
}

// Sink is the audio output: it allocates playable resources and can
// halt whatever is currently sounding.
type Sink interface {
	Prepare(audio []byte) (Playable, error)
	Stop()
}

// Limiter persists the daily rate-limit stamp. *prefs.RateLimitGuard
// satisfies it.
type Limiter interface {
	MarkLimited() error
	Limited() (bool, error)
}

// Config tunes a playback controller.
type Config struct {
	Voice         string
	MinAudioBytes int // responses smaller than this are treated as empty
}

// DefaultConfig uses a 100-byte floor: anything smaller is not audio.
func DefaultConfig() Config {
	return Config{MinAudioBytes: 100}
}

// Controller runs at most one chunk sequence at a time.
type Controller struct {
	cfg     Config
	synth   Synthesizer
	sink    Sink
	limiter Limiter
	logger  *Logger.Logger

	mu        sync.Mutex
	cancelled bool
	handles   map[Playable]struct{}
}

func New(cfg Config, synth Synthesizer, sink Sink, limiter Limiter, logger *Logger.Logger) *Controller {
	if cfg.MinAudioBytes <= 0 {
		cfg.MinAudioBytes = DefaultConfig().MinAudioBytes
	}
	return &Controller{
		cfg:     cfg,
		synth:   synth,
		sink:    sink,
		limiter: limiter,
		logger:  logger,
		handles: make(map[Playable]struct{}),
	}
}

type fetchResult struct {
	audio []byte
	err   error
}

// PlayChunks synthesizes and plays chunks strictly in order. Per-chunk
// failures (synthesis error, too-small body, playback fault) are logged
// and skipped; a rate-limit signal aborts the remaining sequence and
// stamps the limiter. Already-played chunks stay played, there is no
// rollback.
func (c *Controller) PlayChunks(ctx context.Context, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}

	if limited, err := c.limiter.Limited(); err != nil {
		c.logger.Warnf("rate limit check failed: %v", err)
	} else if limited {
		return ErrRateLimited
	}

	c.mu.Lock()
	c.cancelled = false
	c.mu.Unlock()
	defer c.releaseAll()

	var prefetch <-chan fetchResult
	for i, chunk := range chunks {
		if c.isCancelled() || ctx.Err() != nil {
			return nil
		}

		var audio []byte
		var err error
		if prefetch != nil {
			res := <-prefetch
			audio, err = res.audio, res.err
			prefetch = nil
		} else {
			audio, err = c.synth.Synthesize(ctx, chunk, c.cfg.Voice)
		}

		if err != nil {
			if tts.IsRateLimit(err) {
				c.logger.Warnf("tts rate limited, aborting sequence: %v", err)
				if merr := c.limiter.MarkLimited(); merr != nil {
					c.logger.Errorf("failed to persist rate limit stamp: %v", merr)
				}
				return ErrRateLimited
			}
			c.logger.Warnf("chunk %d synthesis failed, skipping: %v", i, err)
			continue
		}

		// overlap the next chunk's network latency with this one's
		// playback
		if i+1 < len(chunks) && !c.isCancelled() {
			prefetch = c.prefetchChunk(ctx, chunks[i+1])
		}

		if len(audio) < c.cfg.MinAudioBytes {
			c.logger.Warnf("chunk %d: audio response too small (%d bytes), skipping", i, len(audio))
			continue
		}

		if c.isCancelled() {
			return nil
		}
		playable, perr := c.sink.Prepare(audio)
		if perr != nil {
			c.logger.Warnf("chunk %d: prepare failed, skipping: %v", i, perr)
			continue
		}
		c.track(playable)
		if perr := playable.Play(ctx); perr != nil {
			c.logger.Warnf("chunk %d playback failed: %v", i, perr)
		}
		c.untrack(playable)
	}
	return nil
}

// PlaySingleChunk is PlayChunks specialized to one chunk: no prefetch
// is ever issued.
func (c *Controller) PlaySingleChunk(ctx context.Context, chunk string) error {
	return c.PlayChunks(ctx, []string{chunk})
}

// Stop cancels the active sequence: no further chunk plays, no further
// prefetch is issued, in-progress audio is halted and every allocated
// handle released. An in-flight prefetch may still complete but its
// result is never played.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.cancelled = true
	c.mu.Unlock()
	c.sink.Stop()
	c.releaseAll()
}

func (c *Controller) prefetchChunk(ctx context.Context, text string) <-chan fetchResult {
	ch := make(chan fetchResult, 1)
	go func() {
		audio, err := c.synth.Synthesize(ctx, text, c.cfg.Voice)
		ch <- fetchResult{audio: audio, err: err}
	}()
	return ch
}

func (c *Controller) isCancelled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled
}

func (c *Controller) track(p Playable) {
	c.mu.Lock()
	c.handles[p] = struct{}{}
	c.mu.Unlock()
}

// untrack releases p unless Stop already drained it.
func (c *Controller) untrack(p Playable) {
	c.mu.Lock()
	_, ok := c.handles[p]
	delete(c.handles, p)
	c.mu.Unlock()
	if ok {
		p.Release()
	}
}

func (c *Controller) releaseAll() {
	c.mu.Lock()
	drained := make([]Playable, 0, len(c.handles))
	for p := range c.handles {
		drained = append(drained, p)
	}
	c.handles = make(map[Playable]struct{})
	c.mu.Unlock()
	for _, p := range drained {
		p.Release()
	}
}
