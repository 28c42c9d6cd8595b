package protocol

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/tileworld/internal/vec"
	"github.com/annel0/tileworld/internal/world/block"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, PlaceBlockTag, BlockPos{X: 5, Y: -7}))

	raw := buf.Bytes()
	assert.Equal(t, make([]byte, 8), raw[:8], "старшие 8 байт длины нулевые")
	assert.Equal(t, uint64(len(raw)-HeaderSize), binary.BigEndian.Uint64(raw[8:HeaderSize]))

	m, err := ReadMessage(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, PlaceBlockTag, m.Request)

	var pos BlockPos
	require.NoError(t, m.Decode(&pos))
	assert.Equal(t, BlockPos{X: 5, Y: -7}, pos)
}

func TestSeveralFramesInStream(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, JoinRequestTag, JoinRequest{Name: "alice"}))
	require.NoError(t, WriteMessage(&buf, LeaveRequestTag, nil))

	first, err := ReadMessage(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, JoinRequestTag, first.Request)

	second, err := ReadMessage(&buf, 0)
	require.NoError(t, err)
	assert.Equal(t, LeaveRequestTag, second.Request)
	assert.JSONEq(t, `{}`, string(second.Data))
}

func TestNonASCIIEscaped(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, JoinRequestTag, JoinRequest{Name: "Вася 🙂"}))

	body := buf.Bytes()[HeaderSize:]
	for _, b := range body {
		require.Less(t, b, byte(0x80), "в кадре только ASCII")
	}
	assert.Contains(t, string(body), `\u0412\u0430\u0441\u044f`)
	assert.Contains(t, string(body), `\ud83d\ude42`, "руна вне BMP кодируется суррогатной парой")

	m, err := ReadMessage(&buf, 0)
	require.NoError(t, err)
	var req JoinRequest
	require.NoError(t, m.Decode(&req))
	assert.Equal(t, "Вася 🙂", req.Name)
}

func TestOversizeFrameRejected(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, bytes.Repeat([]byte("a"), 100)))

	_, err := ReadFrame(&buf, 64)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestBadHeaderRejected(t *testing.T) {
	header := make([]byte, HeaderSize)
	header[0] = 1
	_, err := ReadFrame(bytes.NewReader(header), 0)
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestTruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, []byte(`{"request":"ping","data":{}}`)))
	truncated := buf.Bytes()[:buf.Len()-3]

	_, err := ReadFrame(bytes.NewReader(truncated), 0)
	assert.Error(t, err)
}

func TestMalformedMessages(t *testing.T) {
	_, err := Unmarshal([]byte(`not json`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Unmarshal([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, ErrMalformed, "без request")

	m := &Message{Request: PingTag}
	assert.ErrorIs(t, m.Decode(&Ping{}), ErrMalformed, "без данных")
}

func TestBlockUpdatePayload(t *testing.T) {
	s := block.MustState(block.Stone, vec.Vec2{X: 1, Y: 2})
	upd := BlockUpdate{X: 1, Y: 2, Block: s.Record()}

	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, BlockUpdateTag, upd))
	m, err := ReadMessage(&buf, 0)
	require.NoError(t, err)

	var got BlockUpdate
	require.NoError(t, m.Decode(&got))
	assert.Equal(t, block.Stone, got.Block.Type)
	require.NotNil(t, got.Block.Drop)
	assert.Equal(t, "cobblestone", got.Block.Drop.DropType)
}
