package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPrinter() *Printer {
	return &Printer{
		ID:         "dock-1",
		Name:       "Dock Door 1",
		PublicHost: "dock-1.local",
		PublicPort: 9100,
		Protocol:   ProtocolRaw,
		Enabled:    true,
	}
}

func TestPrinterValidate(t *testing.T) {
	require.NoError(t, validPrinter().Validate())

	cases := []struct {
		name   string
		mutate func(*Printer)
		field  string
	}{
		{"empty id", func(p *Printer) { p.ID = "" }, "id"},
		{"id with spaces", func(p *Printer) { p.ID = "dock 1" }, "id"},
		{"id too long", func(p *Printer) { p.ID = strings.Repeat("a", 65) }, "id"},
		{"empty name", func(p *Printer) { p.Name = "" }, "name"},
		{"name too long", func(p *Printer) { p.Name = strings.Repeat("n", 101) }, "name"},
		{"empty host", func(p *Printer) { p.PublicHost = "" }, "publicHost"},
		{"host with whitespace", func(p *Printer) { p.PublicHost = "dock 1.local" }, "publicHost"},
		{"host too long", func(p *Printer) { p.PublicHost = strings.Repeat("h", 256) }, "publicHost"},
		{"port zero", func(p *Printer) { p.PublicPort = 0 }, "publicPort"},
		{"port too high", func(p *Printer) { p.PublicPort = 70000 }, "publicPort"},
		{"unknown protocol", func(p *Printer) { p.Protocol = "ipp" }, "protocol"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validPrinter()
			tc.mutate(p)

			err := p.Validate()
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestPrinterNormalize(t *testing.T) {
	p := validPrinter()
	p.Protocol = ""
	p.Normalize()
	assert.Equal(t, ProtocolRaw, p.Protocol)
	assert.Equal(t, []string{DefaultSource}, p.AllowedSources)

	// An explicit allow-list is left alone.
	p = validPrinter()
	p.AllowedSources = []string{"warehouse"}
	p.Normalize()
	assert.Equal(t, []string{"warehouse"}, p.AllowedSources)
}

func TestPrinterSourceAllowed(t *testing.T) {
	p := validPrinter()

	// Empty allow-list permits any source.
	assert.True(t, p.SourceAllowed("web"))
	assert.True(t, p.SourceAllowed("anything"))

	p.AllowedSources = []string{"web", "warehouse"}
	assert.True(t, p.SourceAllowed("web"))
	assert.True(t, p.SourceAllowed("warehouse"))
	assert.False(t, p.SourceAllowed("mobile"))
}
