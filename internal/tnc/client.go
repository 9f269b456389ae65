package tnc

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"aprsbot/internal/aprs"
	"aprsbot/pkg/logx"
)

const (
	dialTimeout   = 5 * time.Second
	outboundDepth = 64
)

// Client is a reconnectable TCP KISS link to a TNC. Frames travel in TNC2
// textual form inside KISS data frames.
//
// Connect/Close/Connected may be called from the bot loop at any time; the
// reader and writer goroutines belong to one connection and exit when it
// breaks. Reconnect policy is the caller's business.
type Client struct {
	log     logx.Logger
	onFrame func(*aprs.Frame)

	mu        sync.Mutex
	addr      string
	conn      net.Conn
	outbound  chan []byte
	done      chan struct{}
	closeOnce *sync.Once
}

func NewClient(log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{log: log}
}

// SetAddress updates the TNC endpoint used by the next Connect.
func (c *Client) SetAddress(host string, port int) {
	c.mu.Lock()
	c.addr = net.JoinHostPort(host, fmt.Sprintf("%d", port))
	c.mu.Unlock()
}

// SetFrameHandler installs the callback invoked for every decoded inbound
// frame. It runs on the connection's reader goroutine.
func (c *Client) SetFrameHandler(fn func(*aprs.Frame)) {
	c.onFrame = fn
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Connect dials the TNC and starts the reader/writer goroutines. It is an
// error to call Connect while already connected.
func (c *Client) Connect() error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return errors.New("already connected")
	}
	addr := c.addr
	c.mu.Unlock()

	if addr == "" {
		return errors.New("tnc address not set")
	}

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return err
	}

	out := make(chan []byte, outboundDepth)
	done := make(chan struct{})
	once := &sync.Once{}

	c.mu.Lock()
	c.conn = conn
	c.outbound = out
	c.done = done
	c.closeOnce = once
	c.mu.Unlock()

	go c.readLoop(conn, once)
	go c.writeLoop(conn, out, done, once)

	c.log.Info("tnc connected", logx.String("addr", addr))
	return nil
}

// Close tears down the current connection, if any.
func (c *Client) Close() {
	c.mu.Lock()
	conn := c.conn
	once := c.closeOnce
	c.mu.Unlock()
	if conn != nil && once != nil {
		c.dropConn(conn, once, nil)
	}
}

// EnqueueFrame queues a frame for transmission. Frames are dropped (with a
// log entry) when disconnected or when the queue is full; the radio channel
// is lossy anyway and the bot never blocks on it.
func (c *Client) EnqueueFrame(f *aprs.Frame) {
	c.mu.Lock()
	out := c.outbound
	connected := c.conn != nil
	c.mu.Unlock()

	if !connected || out == nil {
		c.log.Warn("dropping frame, tnc not connected", logx.String("frame", f.String()))
		return
	}
	select {
	case out <- kissEncode([]byte(f.String())):
	default:
		c.log.Warn("dropping frame, outbound queue full", logx.String("frame", f.String()))
	}
}

func (c *Client) readLoop(conn net.Conn, once *sync.Once) {
	dec := newKISSDecoder(conn)
	for {
		payload, err := dec.Next()
		if err != nil {
			c.dropConn(conn, once, err)
			return
		}
		f, err := aprs.ParseFrame(string(payload))
		if err != nil {
			c.log.Debug("ignoring unparsable frame", logx.Err(err))
			continue
		}
		c.log.Trace("frame received", logx.String("frame", f.String()))
		if c.onFrame != nil {
			c.onFrame(f)
		}
	}
}

func (c *Client) writeLoop(conn net.Conn, out <-chan []byte, done <-chan struct{}, once *sync.Once) {
	for {
		select {
		case <-done:
			return
		case b := <-out:
			if _, err := conn.Write(b); err != nil {
				c.dropConn(conn, once, err)
				return
			}
		}
	}
}

// dropConn closes the connection exactly once and clears it if it is still
// the current one.
func (c *Client) dropConn(conn net.Conn, once *sync.Once, cause error) {
	once.Do(func() {
		_ = conn.Close()

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.outbound = nil
			if c.done != nil {
				close(c.done)
				c.done = nil
			}
		}
		c.mu.Unlock()

		if cause != nil {
			c.log.Warn("tnc disconnected", logx.Err(cause))
		} else {
			c.log.Info("tnc link closed")
		}
	})
}
