package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/NicolasHaas/mustangchat/pkg/logging"
	"github.com/NicolasHaas/mustangchat/pkg/model"
	"github.com/NicolasHaas/mustangchat/pkg/protocol"
)

// readBufferSize is one byte larger than the biggest datagram any codec
// accepts, so an oversized datagram arrives truncated to a length the codec
// rejects instead of silently fitting.
const readBufferSize = protocol.MaxJSONDatagramSize + 1

// readErrorBackoff is the pause after a read error that is not shutdown.
const readErrorBackoff = 100 * time.Millisecond

type packetReader interface {
	ReadFromUDPAddrPort(b []byte) (int, netip.AddrPort, error)
}

// UDPTransport owns the server's single UDP socket.
type UDPTransport struct {
	conn    *net.UDPConn
	reader  packetReader // conn, except in tests
	metrics *Metrics
	log     *slog.Logger
}

// ListenUDP binds addr. readBuffer sets the kernel receive buffer when
// positive.
func ListenUDP(addr string, readBuffer int, metrics *Metrics) (*UDPTransport, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("server: resolve listen addr: %w", err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, fmt.Errorf("server: listen: %w", err)
	}

	t := &UDPTransport{conn: conn, reader: conn, metrics: metrics, log: logging.For("udp")}
	if metrics == nil {
		t.metrics = NewMetrics()
	}
	if readBuffer > 0 {
		if err := conn.SetReadBuffer(readBuffer); err != nil {
			t.log.Warn("failed to set UDP read buffer", "err", err)
		}
	}
	return t, nil
}

// LocalAddr returns the bound address.
func (t *UDPTransport) LocalAddr() netip.AddrPort {
	return t.conn.LocalAddr().(*net.UDPAddr).AddrPort()
}

// Send writes one datagram to ep. UDP gives no delivery confirmation; the
// error only covers local failures.
func (t *UDPTransport) Send(ep model.Endpoint, payload []byte) error {
	n, err := t.conn.WriteToUDPAddrPort(payload, ep)
	if err != nil {
		t.metrics.SendErrors.Add(1)
		return &SendError{Endpoint: ep, Err: err}
	}
	t.metrics.DatagramsOut.Add(1)
	t.metrics.BytesOut.Add(int64(n))
	return nil
}

// Serve reads datagrams until ctx is cancelled or the socket is closed,
// passing a private copy of each to submit.
func (t *UDPTransport) Serve(ctx context.Context, submit func(ctx context.Context, ep model.Endpoint, data []byte) error) error {
	buf := make([]byte, readBufferSize)

	for {
		n, remote, err := t.reader.ReadFromUDPAddrPort(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			t.log.Error("read error", "err", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		t.metrics.DatagramsIn.Add(1)
		t.metrics.BytesIn.Add(int64(n))

		// IPv4 clients on a dual-stack socket arrive as ::ffff:a.b.c.d.
		ep := netip.AddrPortFrom(remote.Addr().Unmap(), remote.Port())
		if err := submit(ctx, ep, bytes.Clone(buf[:n])); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			t.log.Warn("dropped datagram", "remote", ep, "err", err)
		}
	}
}

// Interrupt unblocks a pending read so that Serve can observe a cancelled
// context while the socket stays usable for sends.
func (t *UDPTransport) Interrupt() {
	_ = t.conn.SetReadDeadline(time.Now())
}

// Close closes the socket, unblocking Serve.
func (t *UDPTransport) Close() error {
	return t.conn.Close()
}
