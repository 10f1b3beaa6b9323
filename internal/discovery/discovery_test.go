package discovery

import (
	"errors"
	"net"
	"testing"
	"time"
)

func TestHostsInSubnetEnumeratesRange(t *testing.T) {
	hosts := hostsInSubnet("10.0.5.0/24")
	if len(hosts) != 254 {
		t.Fatalf("expected 254 hosts, got %d", len(hosts))
	}
	if hosts[0] != "10.0.5.1" || hosts[len(hosts)-1] != "10.0.5.254" {
		t.Fatalf("unexpected range bounds: %s .. %s", hosts[0], hosts[len(hosts)-1])
	}
}

func TestHostsInSubnetRejectsBadCIDR(t *testing.T) {
	if hosts := hostsInSubnet("not-a-cidr"); hosts != nil {
		t.Fatalf("expected nil for invalid CIDR, got %v", hosts)
	}
}

func TestProbeOneFindsListeningPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	if !probeOne("127.0.0.1", port, 500*time.Millisecond) {
		t.Fatalf("expected probe to find listening port %d", port)
	}
}

func TestProbeOneMissesClosedPort(t *testing.T) {
	// Port 1 is reserved and almost never has a listener during tests.
	if probeOne("127.0.0.1", 1, 200*time.Millisecond) {
		t.Fatalf("expected probe to fail against a closed port")
	}
}

func TestScannerEnforcesCooldown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port := 0
	for _, c := range portStr {
		port = port*10 + int(c-'0')
	}

	s := NewScanner(port)
	if _, err := s.Scan(); err != nil {
		t.Fatalf("first scan should succeed: %v", err)
	}

	_, err = s.Scan()
	var cooldownErr *CooldownError
	if !errors.As(err, &cooldownErr) {
		t.Fatalf("expected CooldownError on immediate re-scan, got %v", err)
	}
}
