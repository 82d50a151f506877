package dispatch

import (
	"context"
	"errors"
	"io"
	"net"
	"regexp"
	"strings"
	"syscall"

	"github.com/hupe1980/meshbot/model"
)

// Class is the retry category of a failed invocation.
type Class int

const (
	// ClassFatal failures are not retried.
	ClassFatal Class = iota
	// ClassRateLimited failures signal provider-side throttling.
	ClassRateLimited
	// ClassTransient failures signal temporary unavailability.
	ClassTransient
)

// String returns the lower-case class name.
func (c Class) String() string {
	switch c {
	case ClassRateLimited:
		return "rate_limited"
	case ClassTransient:
		return "transient"
	default:
		return "fatal"
	}
}

// Retryable reports whether failures of this class are retried.
func (c Class) Retryable() bool { return c == ClassRateLimited || c == ClassTransient }

// PatternTableVersion identifies the revision of DefaultPatterns. Bump it
// whenever an entry is added, removed or reordered.
const PatternTableVersion = 1

// Pattern maps a lower-case message fragment (or expression) to a Class.
type Pattern struct {
	Class    Class
	Contains string
	Match    *regexp.Regexp
}

func (p Pattern) matches(msg string) bool {
	if p.Match != nil {
		return p.Match.MatchString(msg)
	}
	return p.Contains != "" && strings.Contains(msg, p.Contains)
}

// DefaultPatterns is the fallback text table used for failures that carry no
// structured kind. Rate-limit entries are checked first.
var DefaultPatterns = []Pattern{
	{Class: ClassRateLimited, Contains: "rate limit"},
	{Class: ClassRateLimited, Contains: "rate_limit_exceeded"},
	{Class: ClassRateLimited, Contains: "too many requests"},
	{Class: ClassRateLimited, Match: regexp.MustCompile(`try again in \d+(\.\d+)?\s*(ms|s|m)\b`)},

	{Class: ClassTransient, Contains: "service unavailable"},
	{Class: ClassTransient, Contains: "503"},
	{Class: ClassTransient, Contains: "bad gateway"},
	{Class: ClassTransient, Contains: "502"},
	{Class: ClassTransient, Contains: "gateway timeout"},
	{Class: ClassTransient, Contains: "504"},
	{Class: ClassTransient, Contains: "temporarily unavailable"},
	{Class: ClassTransient, Contains: "connection reset"},
	{Class: ClassTransient, Contains: "connection aborted"},
	{Class: ClassTransient, Contains: "internal server error"},
	{Class: ClassTransient, Contains: "overloaded"},
	{Class: ClassTransient, Contains: "timed out"},
	{Class: ClassTransient, Contains: "timeout"},
}

// Classify maps a failure to a Class using DefaultPatterns as the text table.
func Classify(err error) Class {
	return ClassifyWith(err, DefaultPatterns)
}

// ClassifyWith maps a failure to a Class. Order of precedence:
//
//  1. per-attempt deadline (context.DeadlineExceeded) -> transient
//  2. structured *model.Error kind
//  3. network-level timeouts and resets -> transient
//  4. the text pattern table
//  5. fatal
func ClassifyWith(err error, patterns []Pattern) Class {
	if err == nil {
		return ClassFatal
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransient
	}

	var me *model.Error
	if errors.As(err, &me) {
		switch me.Kind {
		case model.KindRateLimited:
			return ClassRateLimited
		case model.KindTransient:
			return ClassTransient
		case model.KindFatal:
			return ClassFatal
		}
	}

	if isNetworkTransient(err) {
		return ClassTransient
	}

	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if p.matches(msg) {
			return p.Class
		}
	}

	return ClassFatal
}

func isNetworkTransient(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED)
}
