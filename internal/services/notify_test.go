package services

import (
	"testing"

	"github.com/go-authgate/meshgate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeviceNotifier_DeliversToOwnerOnly(t *testing.T) {
	n := NewDeviceNotifier()
	alice, cancelAlice := n.Subscribe("alice")
	defer cancelAlice()
	bob, cancelBob := n.Subscribe("bob")
	defer cancelBob()

	n.Publish(DeviceChange{DeviceID: "d1", OwnerID: "alice", Status: models.DeviceStatusActive})

	select {
	case got := <-alice:
		assert.Equal(t, "d1", got.DeviceID)
	default:
		t.Fatal("alice should have a change queued")
	}
	select {
	case <-bob:
		t.Fatal("bob should not see alice's device")
	default:
	}
}

func TestDeviceNotifier_PublishNeverBlocks(t *testing.T) {
	n := NewDeviceNotifier()
	ch, cancel := n.Subscribe("alice")
	defer cancel()

	for range 10 {
		n.Publish(DeviceChange{OwnerID: "alice"})
	}
	assert.Len(t, ch, 1)
}

func TestDeviceNotifier_Cancel(t *testing.T) {
	n := NewDeviceNotifier()
	_, cancel1 := n.Subscribe("alice")
	_, cancel2 := n.Subscribe("alice")
	require.Equal(t, 2, n.Subscribers("alice"))

	cancel1()
	cancel1()
	assert.Equal(t, 1, n.Subscribers("alice"))
	cancel2()
	assert.Zero(t, n.Subscribers("alice"))
}

func TestDeviceNotifier_NilIsNoop(t *testing.T) {
	var n *DeviceNotifier
	assert.NotPanics(t, func() { n.Publish(DeviceChange{OwnerID: "alice"}) })
}
