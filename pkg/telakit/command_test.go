package telakit

import (
	"errors"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDecode проверяет разбор корректных строк всех четырёх команд
func TestDecode(t *testing.T) {
	tests := []struct {
		line string
		want Command
	}{
		{"PO 3,4", Point{X: 3, Y: 4}},
		{"PO 0,0", Point{X: 0, Y: 0}},
		{"PO 12, 7", Point{X: 12, Y: 7}},
		{"PO 1,2\r", Point{X: 1, Y: 2}},
		{"PC 1,2,10,20,30", PointColored{X: 1, Y: 2, Color: RGB{R: 10, G: 20, B: 30}}},
		{"PC 100,100,0,0,0", PointColored{X: 100, Y: 100}},
		{"CL 10", Clear{GridSize: 10}},
		{"CL 1", Clear{GridSize: 1}},
		{"CO 0,255,0", SetColor{Color: RGB{G: 255}}},
		{"CO 300,-1,7", SetColor{Color: RGB{R: 300, G: -1, B: 7}}},
		// Байт разделителя не проверяется
		{"PO_5,6", Point{X: 5, Y: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := Decode([]byte(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
			assert.Equal(t, tt.want.Opcode(), cmd.Opcode())
		})
	}
}

// TestDecodeShortLine проверяет, что пустые и короткие строки пропускаются
func TestDecodeShortLine(t *testing.T) {
	for _, line := range []string{"", "P", "PO"} {
		cmd, err := Decode([]byte(line))
		assert.Nil(t, cmd)
		assert.ErrorIs(t, err, ErrShortLine, "line %q", line)
		assert.NotErrorIs(t, err, ErrDecode)
	}
}

// TestDecodeErrors проверяет строки, которые должны отбрасываться
func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		opcode Opcode
	}{
		{"unknown opcode", "XX 1,2", "XX"},
		{"lowercase opcode", "po 1,2", "po"},
		{"missing param", "PO 5", OpPoint},
		{"extra param", "PO 1,2,3", OpPoint},
		{"non-integer", "PO a,b", OpPoint},
		{"float", "PO 1.5,2", OpPoint},
		{"empty params", "PO ", OpPoint},
		{"negative cell", "PO -1,2", OpPoint},
		{"negative colored cell", "PC 1,-2,0,0,0", OpPointColored},
		{"short color", "PC 1,2,3,4", OpPointColored},
		{"zero grid", "CL 0", OpClear},
		{"negative grid", "CL -4", OpClear},
		{"no grid", "CL x", OpClear},
		{"short rgb", "CO 1,2", OpSetColor},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Decode([]byte(tt.line))
			require.Error(t, err)
			assert.Nil(t, cmd)
			assert.ErrorIs(t, err, ErrDecode)

			var decErr *DecodeError
			require.True(t, errors.As(err, &decErr))
			assert.Equal(t, tt.opcode, decErr.Opcode)
			assert.NotEmpty(t, decErr.Reason)
		})
	}
}

// TestEncodeDecode проверяет, что Decode(Encode(cmd)) возвращает исходную команду
func TestEncodeDecode(t *testing.T) {
	cmds := []Command{
		Point{X: 3, Y: 4},
		PointColored{X: 9, Y: 1, Color: RGB{R: 1, G: 2, B: 3}},
		Clear{GridSize: 16},
		SetColor{Color: RGB{R: 255, G: 128}},
	}

	for _, cmd := range cmds {
		encoded := cmd.Encode()
		require.Equal(t, byte('\n'), encoded[len(encoded)-1])

		decoded, err := Decode(encoded[:len(encoded)-1])
		require.NoError(t, err)
		assert.Equal(t, cmd, decoded)
	}

	assert.Equal(t, "PO 3,4\n", string(Point{X: 3, Y: 4}.Encode()))
	assert.Equal(t, "CL 10\n", string(Clear{GridSize: 10}.Encode()))
}

func TestRGBA(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 255, A: 0xff}, Red.RGBA())
	// Каналы вне диапазона усекаются до младших 8 бит
	assert.Equal(t, color.RGBA{R: 44, G: 255, B: 0, A: 0xff}, RGB{R: 300, G: -1, B: 256}.RGBA())
	assert.Equal(t, "(1,2,3)", RGB{1, 2, 3}.String())
}
