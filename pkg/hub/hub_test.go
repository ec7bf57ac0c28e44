package hub

import "testing"

func TestPublishJSON(t *testing.T) {
	h := New("test", nil)

	if err := h.PublishJSON(map[string]string{"event": "message"}); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}
	if err := h.PublishJSON(make(chan int)); err == nil {
		t.Error("PublishJSON() error = nil for unencodable value")
	}
}

func TestClientCount(t *testing.T) {
	h := New("test", nil)
	if got := h.ClientCount(); got != 0 {
		t.Errorf("ClientCount() = %d, want 0", got)
	}
}
