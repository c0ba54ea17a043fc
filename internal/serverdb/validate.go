package serverdb

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net"
	"time"
)

var ErrProbeTimeout = errors.New("game server did not answer the ping probe")

const probeTokenSize = 8

// ProbeEndpoint verifies a game server's UDP port is reachable from the
// outside by sending a raw ping carrying a random token and waiting for the
// token to be echoed back. It returns the measured round trip time. The
// deadline comes from ctx, which callers bound with the configured
// validation timeout.
func ProbeEndpoint(ctx context.Context, ip net.IP, port uint16) (time.Duration, error) {
	token := make([]byte, probeTokenSize)
	if _, err := rand.Read(token); err != nil {
		return 0, err
	}

	addr := &net.UDPAddr{IP: ip, Port: int(port)}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return 0, fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(3 * time.Second)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return 0, err
	}

	// Cancellation has to interrupt the blocking read, not just bound it.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.SetDeadline(time.Now())
		case <-watchDone:
		}
	}()

	start := time.Now()
	if _, err := conn.Write(token); err != nil {
		return 0, err
	}

	reply := make([]byte, probeTokenSize)
	for {
		n, err := conn.Read(reply)
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
				return 0, ErrProbeTimeout
			}
			return 0, err
		}
		if n == probeTokenSize && bytes.Equal(reply[:n], token) {
			return time.Since(start), nil
		}
		// Unrelated datagram on the socket, keep waiting for our token.
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
