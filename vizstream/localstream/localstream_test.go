package localstream

import (
	"bufio"
	"net"
	"testing"
	"time"
)

type scalar struct {
	Value float64 `json:"value"`
}

func (scalar) Columnar() bool { return false }

func TestServeAndLog(t *testing.T) {
	s := New()
	if err := s.Serve(0, 0); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	defer s.Disconnect()

	addr := s.ln.Addr().String()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	time.Sleep(20 * time.Millisecond) // let acceptLoop register the conn

	s.SetTimeSequence(7)
	if err := s.Log("/joint/0", scalar{Value: 1.5}); err != nil {
		t.Fatalf("Log: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(time.Second))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if len(line) == 0 {
		t.Fatalf("empty line from viewer connection")
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	s := New()
	if err := s.Serve(0, 0); err != nil {
		t.Fatalf("Serve: %v", err)
	}
	s.Disconnect()
	s.Disconnect() // must not panic
}
