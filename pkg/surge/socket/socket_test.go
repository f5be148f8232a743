package socket

import (
	"net"
	"testing"
	"time"
)

func TestListenAndAccept(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", 128)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			return
		}
		defer c.Close()
		c.Write([]byte("hi"))
	}()

	conn, err := ln.Accept(2 * time.Second)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer conn.Close()

	buf := make([]byte, 2)
	n, err := conn.Recv(buf)
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if string(buf[:n]) != "hi" {
		t.Fatalf("got %q; want hi", buf[:n])
	}
}

func TestAcceptTimesOutWithNoConnection(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", 128)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	_, err = ln.Accept(50 * time.Millisecond)
	if err != ErrTimeout {
		t.Fatalf("err = %v; want ErrTimeout", err)
	}
}

func TestSendAllWritesEverything(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", 128)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	done := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept(2 * time.Second)
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 5)
		n, _ := conn.Recv(buf)
		done <- buf[:n]
	}()

	c, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	cliConn, err := NewConn(c)
	if err != nil {
		t.Fatalf("NewConn: %v", err)
	}

	if err := cliConn.SendAll([]byte("hello")); err != nil {
		t.Fatalf("SendAll: %v", err)
	}

	select {
	case got := <-done:
		if string(got) != "hello" {
			t.Fatalf("server got %q; want hello", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server read")
	}
}

func TestRecvTimeoutReturnsErrTimeout(t *testing.T) {
	ln, err := Listen("127.0.0.1:0", 128)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		c, err := net.Dial("tcp", ln.Addr().String())
		if err != nil {
			return
		}
		defer c.Close()
		time.Sleep(200 * time.Millisecond)
	}()

	conn, err := ln.Accept(2 * time.Second)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	defer conn.Close()

	if err := conn.SetRecvTimeout(20 * time.Millisecond); err != nil {
		t.Fatalf("SetRecvTimeout: %v", err)
	}
	buf := make([]byte, 16)
	_, err = conn.Recv(buf)
	if err != ErrTimeout {
		t.Fatalf("err = %v; want ErrTimeout", err)
	}
}
