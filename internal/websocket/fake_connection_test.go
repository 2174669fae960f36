package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errFakeClosed = errors.New("connection closed")

// fakeConnection records written frames. ReadMessage blocks until Close.
type fakeConnection struct {
	mu      sync.Mutex
	written [][]byte
	pings   int
	closed  chan struct{}
	once    sync.Once
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{closed: make(chan struct{})}
}

func (f *fakeConnection) WriteMessage(messageType int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	select {
	case <-f.closed:
		return errFakeClosed
	default:
	}
	switch messageType {
	case websocket.TextMessage:
		f.written = append(f.written, append([]byte(nil), data...))
	case websocket.PingMessage:
		f.pings++
	}
	return nil
}

func (f *fakeConnection) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errFakeClosed
}

func (f *fakeConnection) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConnection) SetReadDeadline(time.Time) error { return nil }
func (f *fakeConnection) SetWriteDeadline(time.Time) error { return nil }
func (f *fakeConnection) SetReadLimit(int64) {}
func (f *fakeConnection) SetPongHandler(func(string) error) {}
func (f *fakeConnection) RemoteAddr() string { return "127.0.0.1:50000" }

func (f *fakeConnection) messages() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

func (f *fakeConnection) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func (f *fakeConnection) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}
