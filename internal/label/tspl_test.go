package label

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTSPLEncoderEncode(t *testing.T) {
	enc := NewTSPLEncoder()

	out := string(enc.Encode(LogicalLabel{
		DisplayID:  "A-1001",
		ClientName: "Acme Corp",
		ItemType:   "garment",
	}))

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.GreaterOrEqual(t, len(lines), 8)

	assert.Equal(t, "SIZE 57 mm, 32 mm", lines[0])
	assert.Equal(t, "GAP 2 mm, 0 mm", lines[1])
	assert.Equal(t, "DIRECTION 0", lines[2])
	assert.Equal(t, "CLS", lines[3])
	assert.Equal(t, "PRINT 1", lines[len(lines)-1])

	assert.Contains(t, out, `"A-1001"`)
	assert.Contains(t, out, `"Acme Corp"`)
	assert.Contains(t, out, `"garment"`)
	assert.Contains(t, out, `BARCODE`)
}

func TestTSPLEncoderEscapesContent(t *testing.T) {
	enc := NewTSPLEncoder()

	out := string(enc.Encode(LogicalLabel{
		DisplayID:  `A"1`,
		ClientName: "Line\nBreak",
		ItemType:   `back\slash`,
	}))

	assert.Contains(t, out, `A\"1`)
	assert.Contains(t, out, `Line\nBreak`)
	assert.Contains(t, out, `back\\slash`)
}

func TestTSPLEncoderDeterministic(t *testing.T) {
	enc := NewTSPLEncoder()
	l := LogicalLabel{DisplayID: "X-1", ClientName: "C", ItemType: "i"}

	assert.Equal(t, enc.Encode(l), enc.Encode(l))
}
