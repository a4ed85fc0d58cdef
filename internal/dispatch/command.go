// Package dispatch maps instruction keywords to handlers and applies the
// audit contract around every state-changing command.
package dispatch

import "errors"

// Kind identifies a dispatch keyword.
type Kind int

// Known keywords, in help order. KindUnknown is not part of the table.
const (
	KindNone Kind = iota
	KindHelp
	KindPlace
	KindMove
	KindUnknown
)

// Result lines with fixed text.
const (
	NoResults       = "No results found!"
	CommandNotFound = "Command not found!"
)

// ErrCommandNotFound is returned by Lookup for unknown keywords.
var ErrCommandNotFound = errors.New("command not found")

var keywords = [KindUnknown]string{
	KindNone:  "",
	KindHelp:  "h",
	KindPlace: "c",
	KindMove:  "m",
}

var kindNames = [...]string{
	KindNone:    "none",
	KindHelp:    "help",
	KindPlace:   "place",
	KindMove:    "move",
	KindUnknown: "unknown",
}

// Keyword returns the instruction keyword for k, or "" for KindUnknown.
func (k Kind) Keyword() string {
	if k < 0 || k >= KindUnknown {
		return ""
	}
	return keywords[k]
}

// String returns a readable name used in spans, logs and metric labels.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// Audited reports whether commands of this kind are written to the audit log.
func (k Kind) Audited() bool {
	return k == KindPlace || k == KindMove
}

// Lookup resolves a keyword to its Kind.
func Lookup(keyword string) (Kind, error) {
	for k, kw := range keywords {
		if kw == keyword {
			return Kind(k), nil
		}
	}
	return KindUnknown, ErrCommandNotFound
}
