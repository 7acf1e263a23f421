// Package uxerror translates raw errors into traveller-friendly messages with
// recovery hints for the TUI.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"suitcase-link/internal/adapter/tui/theme"
	"suitcase-link/internal/domain"
)

// FriendlyError is a user-facing error with suggestions for recovery.
type FriendlyError struct {
	Title   string   // short heading, e.g. "Not Scanning"
	Message string   // one-liner explanation
	Hints   []string // actionable recovery suggestions
	Raw     string   // original error text (for debug)
}

// Render formats the FriendlyError for the monitor's notice area.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	for _, h := range fe.Hints {
		sb.WriteString(fmt.Sprintf("\n    %s %s", theme.G.Sep, h))
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

var patterns = []errorPattern{
	// Domain sentinel errors first so errors.Is works through wrapping.
	{
		match: isErr(domain.ErrNotScanning),
		produce: constantError("Not Scanning",
			"Devices can only be picked from an active scan.",
			[]string{"Press s to scan for nearby suitcases"}),
	},
	{
		match: isErr(domain.ErrDeviceNotFound),
		produce: constantError("Device Gone",
			"That suitcase is no longer in the discovery list.",
			[]string{"Move closer to the suitcase", "Scan again"}),
	},
	{
		match: isErr(domain.ErrUnknownTransport),
		produce: constantError("Transport Unavailable",
			"This build has no such transport.",
			[]string{"Use b for bluetooth or n for network"}),
	},
	{
		match: isErr(domain.ErrInvalidState),
		produce: constantError("Not Now",
			"That action does not apply to the current connection state.",
			nil),
	},
	{
		match: isErr(domain.ErrDecodePayload),
		produce: constantError("Unreadable Weight",
			"The scale sent a value that is not a number.",
			[]string{"Check the suitcase firmware"}),
	},
	{
		match: isErr(domain.ErrEndpointResponse),
		produce: constantError("Bad Scale Response",
			"The scale answered without a usable weight.",
			[]string{"Verify network.endpoint points at /weight"}),
	},
	{
		match:   isErr(domain.ErrSessionClosed),
		produce: constantError("Session Closed", "The monitor is shutting down.", nil),
	},

	// Transport failures arrive as text, so match on content.
	{
		match: containsAny("bluetooth", "adapter"),
		produce: constantError("Bluetooth Unavailable",
			"The Bluetooth adapter could not be used.",
			[]string{"Turn Bluetooth on", "Grant this program Bluetooth permission"}),
	},
	{
		match: containsAny("circuit open"),
		produce: constantError("Scale Unreachable",
			"Too many polls failed in a row; pausing before retrying.",
			[]string{"Check the suitcase is powered and on the same network"}),
	},
	{
		match: containsAny("connection refused", "dial tcp", "no such host", "mdns"),
		produce: constantError("Connection Failed",
			"Could not reach the suitcase scale.",
			[]string{"Check the suitcase is on the same network", "Verify network.endpoint in config"}),
	},
	{
		match: containsAny("deadline exceeded", "timeout", "timed out"),
		produce: constantError("Timed Out",
			"The suitcase did not answer in time.",
			[]string{"Move closer to the suitcase", "Try again"}),
	},
}

// Humanize converts a raw error into a FriendlyError with recovery hints.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}
	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}
	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Run with logger.level=debug for more details"},
		Raw:     err.Error(),
	}
}

// HumanizeMessage is Humanize for errors that arrive as plain text, such as
// transport error events.
func HumanizeMessage(msg string) FriendlyError {
	return Humanize(errors.New(msg))
}

func isErr(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny returns a match func that checks if the error string contains
// any of the given substrings (case-insensitive).
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

// constantError returns a produce func that always returns the same FriendlyError.
func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{
			Title:   title,
			Message: message,
			Hints:   hints,
			Raw:     err.Error(),
		}
	}
}
