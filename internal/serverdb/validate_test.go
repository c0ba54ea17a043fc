package serverdb

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func listenUDP(t *testing.T) (*net.UDPConn, uint16) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("binding udp listener: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, uint16(conn.LocalAddr().(*net.UDPAddr).Port)
}

func TestProbeEndpointEcho(t *testing.T) {
	conn, port := listenUDP(t)

	go func() {
		buf := make([]byte, 64)
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			return
		}
		conn.WriteToUDP(buf[:n], remote)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rtt, err := ProbeEndpoint(ctx, net.IPv4(127, 0, 0, 1), port)
	if err != nil {
		t.Fatalf("probing an echoing endpoint: %v", err)
	}
	if rtt <= 0 {
		t.Errorf("expected a positive round trip time, got %v", rtt)
	}
}

func TestProbeEndpointCancellation(t *testing.T) {
	// The listener holds the port but never answers; cancellation has to cut
	// the probe short well before any deadline.
	_, port := listenUDP(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := ProbeEndpoint(ctx, net.IPv4(127, 0, 0, 1), port)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("cancellation did not interrupt the probe, took %v", elapsed)
	}
}

func TestProbeEndpointTimeout(t *testing.T) {
	// The listener holds the port but never answers.
	_, port := listenUDP(t)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := ProbeEndpoint(ctx, net.IPv4(127, 0, 0, 1), port)
	if !errors.Is(err, ErrProbeTimeout) {
		t.Fatalf("expected ErrProbeTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("probe did not respect the deadline, took %v", elapsed)
	}
}
