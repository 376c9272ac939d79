// Package connectivity models the network class the engine runs under and
// decides whether a command's connectivity requirement is currently met.
package connectivity

import (
	"fmt"
	"strings"
)

// Class is the current network connectivity class.
type Class string

const (
	Offline Class = "offline"
	WiFi    Class = "wifi"
	// Online is any non-WiFi connection, typically cellular.
	Online Class = "online"
)

// ParseClass parses a class name, case-insensitively.
func ParseClass(s string) (Class, error) {
	switch Class(strings.ToLower(strings.TrimSpace(s))) {
	case Offline:
		return Offline, nil
	case WiFi:
		return WiFi, nil
	case Online:
		return Online, nil
	default:
		return "", fmt.Errorf("unknown connectivity class %q", s)
	}
}

// Requirement is what a command needs from the network to run.
type Requirement string

const (
	Any                Requirement = "any"
	OfflineOnly        Requirement = "offline"
	Sync               Requirement = "sync"
	DownloadAttachment Requirement = "download-attachment"
)

// Policy holds the user-configurable cellular flags.
type Policy struct {
	SyncOverCellular                bool
	DownloadAttachmentsOverCellular bool
}

// Satisfied reports whether req is met under class c with policy p.
func Satisfied(req Requirement, c Class, p Policy) bool {
	switch req {
	case Any, "":
		return true
	case OfflineOnly:
		return c == Offline
	case Sync:
		return c == WiFi || (c == Online && p.SyncOverCellular)
	case DownloadAttachment:
		return c == WiFi || (c == Online && p.DownloadAttachmentsOverCellular)
	default:
		return false
	}
}

// Checker answers whether a requirement is satisfied right now.
type Checker interface {
	Satisfied(req Requirement) bool
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(req Requirement) bool

// Satisfied implements Checker.
func (f CheckerFunc) Satisfied(req Requirement) bool {
	return f(req)
}
