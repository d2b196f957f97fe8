package voicebot

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4/pkg/media/oggreader"
)

const frameInterval = 20 * time.Millisecond

var opusTagsMagic = []byte("OpusTags")

// pageReader is the part of oggreader.OggReader the stream needs.
type pageReader interface {
	ParseNextPage() ([]byte, *oggreader.OggPageHeader, error)
}

// opusStream feeds Ogg/Opus pages from ffmpeg to the voice connection. Each
// page carries one 20ms packet.
type opusStream struct {
	pages  pageReader
	cancel func()
	wait   func() error

	paused atomic.Bool
	done   atomic.Bool
	once   sync.Once

	onComplete func(error)
}

// ProvideOpusFrame implements voice.OpusFrameProvider.
func (s *opusStream) ProvideOpusFrame() ([]byte, error) {
	if s.done.Load() {
		return nil, io.EOF
	}
	if s.paused.Load() {
		time.Sleep(frameInterval)
		return nil, nil
	}

	for {
		page, _, err := s.pages.ParseNextPage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.finish(nil)
			} else {
				s.finish(err)
			}
			return nil, io.EOF
		}
		if bytes.HasPrefix(page, opusTagsMagic) {
			continue
		}
		return page, nil
	}
}

// Close implements voice.OpusFrameProvider.
func (s *opusStream) Close() {
	s.finish(nil)
}

func (s *opusStream) active() bool {
	return !s.done.Load()
}

// finish ends the stream once and reports completion off the audio goroutine.
func (s *opusStream) finish(err error) {
	s.once.Do(func() {
		s.done.Store(true)
		if s.cancel != nil {
			s.cancel()
		}
		go func() {
			if s.wait != nil {
				_ = s.wait()
			}
			if s.onComplete != nil {
				s.onComplete(err)
			}
		}()
	})
}
