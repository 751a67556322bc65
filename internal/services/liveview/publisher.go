package liveview

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

const keepaliveInterval = 2 * time.Second

// Publisher fans the camera's monitoring frames out to HTTP viewers as an
// MJPEG stream. JPEG encoding only happens while at least one viewer is
// connected, so the live view costs nothing during normal operation.
type Publisher struct {
	log     zerolog.Logger
	quality int

	jpegMutex  sync.RWMutex
	latestJPEG []byte

	subMutex sync.Mutex
	subs     map[int]chan struct{}
	nextSub  int
}

func NewPublisher(log zerolog.Logger, quality int) *Publisher {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	return &Publisher{
		log:     log,
		quality: quality,
		subs:    make(map[int]chan struct{}),
	}
}

// Viewers reports the number of connected stream clients.
func (p *Publisher) Viewers() int {
	p.subMutex.Lock()
	defer p.subMutex.Unlock()
	return len(p.subs)
}

// Publish encodes the frame and notifies viewers. With no viewers
// connected it returns immediately without encoding.
func (p *Publisher) Publish(frame gocv.Mat) {
	if p.Viewers() == 0 {
		return
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{gocv.IMWriteJpegQuality, p.quality})
	if err != nil {
		p.log.Debug().Err(err).Msg("Failed to encode live frame")
		return
	}
	b := buf.GetBytes()
	jpegCopy := make([]byte, len(b))
	copy(jpegCopy, b)
	buf.Close()

	p.jpegMutex.Lock()
	p.latestJPEG = jpegCopy
	p.jpegMutex.Unlock()

	p.notify()
}

func (p *Publisher) notify() {
	p.subMutex.Lock()
	defer p.subMutex.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (p *Publisher) subscribe() (int, chan struct{}) {
	p.subMutex.Lock()
	defer p.subMutex.Unlock()
	id := p.nextSub
	p.nextSub++
	ch := make(chan struct{}, 5)
	p.subs[id] = ch
	return id, ch
}

func (p *Publisher) unsubscribe(id int) {
	p.subMutex.Lock()
	defer p.subMutex.Unlock()
	delete(p.subs, id)
}

func (p *Publisher) latest() []byte {
	p.jpegMutex.RLock()
	defer p.jpegMutex.RUnlock()
	return p.latestJPEG
}

// StreamHTTP serves a multipart/x-mixed-replace MJPEG stream until the
// client disconnects. A keepalive re-sends the last frame during quiet
// periods so proxies do not drop the connection.
func (p *Publisher) StreamHTTP(w http.ResponseWriter, r *http.Request) {
	boundary := "frame"
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	id, notify := p.subscribe()
	defer p.unsubscribe(id)
	p.log.Info().Int("viewer", id).Msg("Live view client connected")
	defer p.log.Info().Int("viewer", id).Msg("Live view client disconnected")

	writePart := func(jpeg []byte) bool {
		if _, err := io.WriteString(w, "--"+boundary+"\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "Content-Type: image/jpeg\r\n"); err != nil {
			return false
		}
		if _, err := io.WriteString(w, fmt.Sprintf("Content-Length: %d\r\n\r\n", len(jpeg))); err != nil {
			return false
		}
		if _, err := w.Write(jpeg); err != nil {
			return false
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	if first := p.latest(); len(first) > 0 {
		if !writePart(first) {
			return
		}
	}

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-notify:
			if buf := p.latest(); len(buf) > 0 {
				if !writePart(buf) {
					return
				}
			}
		case <-keepalive.C:
			if buf := p.latest(); len(buf) > 0 {
				if !writePart(buf) {
					return
				}
			}
		}
	}
}
