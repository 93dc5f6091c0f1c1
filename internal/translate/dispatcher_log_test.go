package translate

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestDispatchLogsMaskPersonalData(t *testing.T) {
	prev := log.Default()
	t.Cleanup(func() { log.SetDefault(prev) })
	var buf bytes.Buffer
	log.SetDefault(log.NewWithOptions(&buf, log.Options{Level: log.DebugLevel}))

	tr := &scriptedTranslator{failures: 3}
	d, _ := newTestDispatcher(t, tr)
	phrase := "mail ana@example.com"
	if _, err := d.Dispatch(context.Background(), phrase, "es"); err == nil {
		t.Fatalf("Dispatch() error = nil, want failure")
	}
	for i := 0; i < 2; i++ {
		if _, err := d.Dispatch(context.Background(), phrase, "pt"); err != nil {
			t.Fatalf("Dispatch() error = %v", err)
		}
	}

	out := buf.String()
	for _, msg := range []string{"translation attempt failed", "translation failed", "translated", "cache hit"} {
		if !strings.Contains(out, msg) {
			t.Fatalf("log output missing %q:\n%s", msg, out)
		}
	}
	if strings.Contains(out, "ana@example.com") {
		t.Fatalf("log output leaks the address:\n%s", out)
	}
	if !strings.Contains(out, "[email]") {
		t.Fatalf("log output missing masked key:\n%s", out)
	}
}
