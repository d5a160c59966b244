// Package client implements the MustangChat terminal client: a UDP
// connection to the relay and the slash-command session state.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NicolasHaas/mustangchat/pkg/logging"
	"github.com/NicolasHaas/mustangchat/pkg/protocol"
)

// DefaultKeepAliveInterval is how long the client may stay silent before it
// sends a KeepAlive. It is half the server's default session timeout.
const DefaultKeepAliveInterval = 60 * time.Second

// recvBufferSize covers the largest reply the server sends.
const recvBufferSize = 2048

// Client is a connected chat client. Send is safe for concurrent use.
type Client struct {
	conn     *net.UDPConn
	codec    protocol.Codec
	now      func() time.Time
	lastSent atomic.Int64 // unix nanos of the last successful send
	log      *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial connects to the relay at addr. A nil codec selects the binary wire.
func Dial(addr string, codec protocol.Codec) (*Client, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: resolve server addr: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("client: dial: %w", err)
	}
	if codec == nil {
		codec = protocol.BinaryCodec{}
	}
	return &Client{
		conn:   conn,
		codec:  codec,
		now:    time.Now,
		log:    logging.For("client"),
		closed: make(chan struct{}),
	}, nil
}

// LocalAddr returns the client's bound address, which is its identity on
// the server.
func (c *Client) LocalAddr() netip.AddrPort {
	return c.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Send encodes and sends one message.
func (c *Client) Send(msg protocol.Message) error {
	data, err := c.codec.Encode(msg)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	if _, err := c.conn.Write(data); err != nil {
		return fmt.Errorf("client: send %s: %w", msg.Type, err)
	}
	c.lastSent.Store(c.now().UnixNano())
	return nil
}

// Register logs in as username. The server answers with a welcome line.
func (c *Client) Register(username string) error {
	return c.Send(protocol.Register(username))
}

// Receive passes every inbound datagram to handle as display text until ctx
// is cancelled or the client is closed.
func (c *Client) Receive(ctx context.Context, handle func(text string)) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, recvBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// ICMP port unreachable surfaces here while the server is down.
			c.log.Debug("receive error", "err", err)
			select {
			case <-c.closed:
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		handle(string(buf[:n]))
	}
}

// KeepAlive sends a KeepAlive whenever nothing has been sent for interval,
// until ctx is cancelled or the client is closed.
func (c *Client) KeepAlive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultKeepAliveInterval
	}
	c.lastSent.CompareAndSwap(0, c.now().UnixNano())

	// A KeepAlive goes out at most a quarter interval after it becomes due.
	ticker := time.NewTicker(max(interval/4, time.Millisecond))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		case <-ticker.C:
			if !c.keepAliveDue(interval) {
				continue
			}
			if err := c.Send(protocol.KeepAlive()); err != nil {
				c.log.Warn("keepalive failed", "err", err)
			}
		}
	}
}

func (c *Client) keepAliveDue(interval time.Duration) bool {
	last := time.Unix(0, c.lastSent.Load())
	return c.now().Sub(last) >= interval
}

// Close closes the connection. Safe to call more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}
