package chronoquest_test

import (
	"testing"

	"github.com/chronoquest/chronoquest"
)

func TestNetwork_FiresOnlyOnOnlineTransition(t *testing.T) {
	n := chronoquest.NewNetwork(false)
	fired := 0
	unsubscribe := n.Subscribe(func() { fired++ })

	n.SetOnline(false)
	if fired != 0 {
		t.Errorf("fired = %d after offline->offline, want 0", fired)
	}
	n.SetOnline(true)
	if fired != 1 {
		t.Errorf("fired = %d after offline->online, want 1", fired)
	}
	n.SetOnline(true)
	if fired != 1 {
		t.Errorf("fired = %d after online->online, want 1", fired)
	}
	if !n.Online() {
		t.Error("Online() = false, want true")
	}

	unsubscribe()
	n.SetOnline(false)
	n.SetOnline(true)
	if fired != 1 {
		t.Errorf("fired = %d after unsubscribe, want 1", fired)
	}
}

func TestNetwork_SubscriberMaySubscribe(t *testing.T) {
	n := chronoquest.NewNetwork(false)
	inner := 0
	n.Subscribe(func() {
		n.Subscribe(func() { inner++ })
	})
	n.SetOnline(true)
	n.SetOnline(false)
	n.SetOnline(true)
	if inner != 1 {
		t.Errorf("inner = %d, want 1", inner)
	}
}
