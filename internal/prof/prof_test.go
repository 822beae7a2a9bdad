package prof

import (
	"context"
	"testing"

	"github.com/keithlinneman/linnemanlabs-sitecopy/internal/log"
)

func TestStart_Disabled(t *testing.T) {
	stop, err := Start(context.Background(), Options{Enabled: false, ServerAddress: "ignored"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
	stop()
}

func TestStart_Enabled_EmptyServerAddress(t *testing.T) {
	ctx := log.WithContext(context.Background(), log.Nop())
	stop, err := Start(ctx, Options{Enabled: true, AppName: "sitecopy"})
	if err == nil {
		t.Fatal("expected error for empty server address")
	}
	if stop == nil {
		t.Fatal("stop must be non-nil even on error")
	}
	stop()
}

func TestDefaultTags(t *testing.T) {
	tags := DefaultTags("1.4.0", "", "en")
	if len(tags) != 2 || tags["version"] != "1.4.0" || tags["default_locale"] != "en" {
		t.Fatalf("tags = %v", tags)
	}
	if _, ok := tags["content_version"]; ok {
		t.Fatal("empty values should be omitted")
	}
}
