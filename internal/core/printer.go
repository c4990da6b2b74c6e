package core

import (
	"regexp"
	"strings"
	"time"
)

// ProtocolRaw is direct socket-level delivery of the payload to the printer
// port, the only protocol this core dispatches.
const ProtocolRaw = "raw"

// DefaultSource is assumed for submissions and printer allow-lists that do
// not name one.
const DefaultSource = "web"

const (
	maxPrinterNameLen = 100
	maxPrinterHostLen = 255
)

var printerIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

type Printer struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	PublicHost     string    `json:"public_host"`
	PublicPort     int       `json:"public_port"`
	Protocol       string    `json:"protocol"`
	Enabled        bool      `json:"enabled"`
	AllowedSources []string  `json:"allowed_sources"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Normalize fills defaults before validation: the protocol, and the allowed
// submission sources, which materialize as ["web"] when empty. The API never
// persists an empty allow-list; SourceAllowed still treats one as open for
// rows written outside it.
func (p *Printer) Normalize() {
	if p.Protocol == "" {
		p.Protocol = ProtocolRaw
	}
	if len(p.AllowedSources) == 0 {
		p.AllowedSources = []string{DefaultSource}
	}
}

func (p *Printer) Validate() error {
	if !printerIDPattern.MatchString(p.ID) {
		return &ValidationError{Field: "id", Reason: "must be 1-64 letters, digits, hyphen or underscore"}
	}
	if p.Name == "" || len(p.Name) > maxPrinterNameLen {
		return &ValidationError{Field: "name", Reason: "required, at most 100 characters"}
	}
	if p.PublicHost == "" || len(p.PublicHost) > maxPrinterHostLen || strings.ContainsAny(p.PublicHost, " \t\r\n") {
		return &ValidationError{Field: "publicHost", Reason: "required, no whitespace, at most 255 characters"}
	}
	if p.PublicPort < 1 || p.PublicPort > 65535 {
		return &ValidationError{Field: "publicPort", Reason: "must be between 1 and 65535"}
	}
	if p.Protocol != ProtocolRaw {
		return &ValidationError{Field: "protocol", Reason: "unsupported protocol"}
	}
	return nil
}

// SourceAllowed reports whether a submission source may target this printer.
// An empty allow-list permits any source.
func (p *Printer) SourceAllowed(source string) bool {
	if len(p.AllowedSources) == 0 {
		return true
	}
	for _, s := range p.AllowedSources {
		if s == source {
			return true
		}
	}
	return false
}
