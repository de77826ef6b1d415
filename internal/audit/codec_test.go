package audit

import (
	"testing"

	"gatekeeper/internal/types"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTrip(t *testing.T) {
	ev := types.DeviceEvent{
		Action:   types.ActionAdd,
		MAC:      "aa:bb:cc:dd:ee:ff",
		IP:       "10.0.0.7",
		Hostname: "printer",
	}
	encoded, err := EncodePayload(ev)
	require.NoError(t, err)
	assert.NotContains(t, encoded, "+") // url-safe alphabet
	assert.NotContains(t, encoded, "/")

	raw, err := DecodePayload(encoded)
	require.NoError(t, err)
	var out types.DeviceEvent
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, ev, out)
}

func TestDecodePayloadRejectsGarbage(t *testing.T) {
	_, err := DecodePayload("!!not base64!!")
	assert.Error(t, err)

	// Valid base64 but not zstd.
	_, err = DecodePayload("aGVsbG8")
	assert.Error(t, err)
}
