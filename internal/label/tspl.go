package label

import (
	"fmt"
	"strings"
)

// LogicalLabel is the business-level description of a label. Everything
// downstream of the encoder treats the encoded payload as opaque bytes.
type LogicalLabel struct {
	DisplayID  string
	ClientName string
	ItemType   string
}

// Encoder renders a logical label into the raw payload sent to the printer.
type Encoder interface {
	Encode(l LogicalLabel) []byte
}

// TSPLEncoder emits TSPL2 command text for thermal label printers.
type TSPLEncoder struct {
	WidthMM  float64
	HeightMM float64
	GapMM    float64
	DPI      int
}

func NewTSPLEncoder() *TSPLEncoder {
	return &TSPLEncoder{
		WidthMM:  57,
		HeightMM: 32,
		GapMM:    2,
		DPI:      203,
	}
}

func (e *TSPLEncoder) Encode(l LogicalLabel) []byte {
	dpi := e.DPI
	if dpi == 0 {
		dpi = 203
	}
	heightDots := mmToDots(e.HeightMM, dpi)

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("SIZE %.0f mm, %.0f mm\n", e.WidthMM, e.HeightMM))
	sb.WriteString(fmt.Sprintf("GAP %.0f mm, 0 mm\n", e.GapMM))
	sb.WriteString("DIRECTION 0\n")
	sb.WriteString("CLS\n")

	sb.WriteString(fmt.Sprintf("TEXT 16,16,\"3\",0,2,2,\"%s\"\n", escapeTSPLString(l.DisplayID)))
	sb.WriteString(fmt.Sprintf("TEXT 16,%d,\"2\",0,1,1,\"%s\"\n", heightDots/3, escapeTSPLString(l.ClientName)))
	sb.WriteString(fmt.Sprintf("TEXT 16,%d,\"2\",0,1,1,\"%s\"\n", heightDots/3+32, escapeTSPLString(l.ItemType)))
	sb.WriteString(fmt.Sprintf("BARCODE 16,%d,\"128\",60,0,0,2,2,\"%s\"\n", heightDots/2+16, escapeTSPLString(l.DisplayID)))

	sb.WriteString("PRINT 1\n")
	return []byte(sb.String())
}

func mmToDots(mm float64, dpi int) int {
	return int(mm * float64(dpi) / 25.4)
}

func escapeTSPLString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return s
}
