package platform

import (
	"testing"
	"time"
)

func TestOptionsDefaults(t *testing.T) {
	var o Options
	if o.appName() != DefaultAppName {
		t.Errorf("expected default app name, got %q", o.appName())
	}
	if o.expireMillis() != -1 {
		t.Errorf("expected server default expiry, got %d", o.expireMillis())
	}
	o = Options{AppName: " Studio ", Expire: 2 * time.Second}
	if o.appName() != "Studio" {
		t.Errorf("unexpected app name %q", o.appName())
	}
	if o.expireMillis() != 2000 {
		t.Errorf("unexpected expiry %d", o.expireMillis())
	}
}
