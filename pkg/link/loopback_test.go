package link

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wlanrsn-go/pkg/eapol"
)

type recordingHandler struct {
	frames [][]byte
}

func (h *recordingHandler) HandleFrame(frame []byte) error {
	h.frames = append(h.frames, frame)
	return nil
}

func testFrame(t *testing.T) []byte {
	t.Helper()
	payload, err := (&eapol.KeyFrame{Version: 2, DescriptorType: eapol.DescriptorTypeIEEE80211}).MarshalBinary()
	require.NoError(t, err)
	frame, err := eapol.EncodeEthernet(apAddr, staAddr, payload)
	require.NoError(t, err)
	return frame
}

func TestLoopbackRoutesByDestination(t *testing.T) {
	lb := NewLoopback()
	sta := &recordingHandler{}
	ap := &recordingHandler{}
	lb.Port(staAddr).Attach(sta)
	lb.Port(apAddr).Attach(ap)

	require.NoError(t, lb.Port(apAddr).Send(testFrame(t)))
	require.NoError(t, lb.Port(apAddr).Send([]byte{0x00}))
	assert.Equal(t, 2, lb.Pending())

	delivered, errs := lb.Flush()
	assert.Empty(t, errs)
	assert.Equal(t, 1, delivered, "undecodable frames are dropped")
	assert.Len(t, sta.frames, 1)
	assert.Empty(t, ap.frames)
	assert.Zero(t, lb.Pending())
}

func TestLoopbackFilterMaySend(t *testing.T) {
	lb := NewLoopback()
	sta := &recordingHandler{}
	port := lb.Port(staAddr)
	port.Attach(sta)

	duplicated := false
	lb.SetFilter(func(frame []byte) []byte {
		assert.Zero(t, lb.Pending())
		if !duplicated {
			duplicated = true
			require.NoError(t, port.Send(frame))
		}
		return frame
	})

	require.NoError(t, lb.Port(apAddr).Send(testFrame(t)))
	delivered, errs := lb.Flush()
	assert.Empty(t, errs)
	assert.Equal(t, 2, delivered)
	assert.Len(t, sta.frames, 2)
}
