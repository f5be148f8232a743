package surge

import "testing"

func TestDefaultConfigAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.Port = 9090
	if got := cfg.Addr(); got != "127.0.0.1:9090" {
		t.Fatalf("Addr() = %q; want 127.0.0.1:9090", got)
	}
}

func TestDefaultConfigHasSaneDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MaxHeaderSize <= 0 {
		t.Fatal("MaxHeaderSize should be positive")
	}
	if cfg.MaxContentLength <= 0 {
		t.Fatal("MaxContentLength should be positive")
	}
	if cfg.MaxRequests <= 0 {
		t.Fatal("MaxRequests should be positive")
	}
	if cfg.StreamBufferSize <= 0 {
		t.Fatal("StreamBufferSize should be positive")
	}
}
