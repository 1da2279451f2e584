// Package budget implements the token budget manager: per-mode output caps
// and per-section input targets, with deterministic truncation so every
// other component can ask before adding text to a prompt.
package budget

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Mode is the operating mode for a session, controlling output caps.
type Mode string

const (
	ModeDirect  Mode = "direct"
	ModeConcise Mode = "concise"
	ModeDeep    Mode = "deep"
)

// ModeCaps describes the output and reasoning sub-cap for a mode.
type ModeCaps struct {
	OutputCap    int
	ReasoningCap int
}

// modeCaps is the authoritative table from the component design.
var modeCaps = map[Mode]ModeCaps{
	ModeDirect:  {OutputCap: 1000, ReasoningCap: 200},
	ModeConcise: {OutputCap: 6000, ReasoningCap: 5000},
	ModeDeep:    {OutputCap: 15000, ReasoningCap: 12000},
}

// CapsFor returns the output/reasoning caps for a mode, defaulting to
// concise for an unrecognized mode.
func CapsFor(m Mode) ModeCaps {
	if c, ok := modeCaps[m]; ok {
		return c
	}
	return modeCaps[ModeConcise]
}

// Section names the named input budget sections.
type Section string

const (
	SectionEphemeral Section = "ephemeral"
	SectionRetrieved Section = "retrieved"
	SectionKnowledge Section = "knowledge"
	SectionQuery     Section = "query"
	SectionBuffer    Section = "buffer"
)

// sectionTargets are targets, not hard caps, except for the section total
// ceiling enforced alongside the hard input ceiling.
var sectionTargets = map[Section]int{
	SectionEphemeral: 5000,
	SectionRetrieved: 40000,
	SectionKnowledge: 2000,
	SectionQuery:     2000,
	SectionBuffer:    10000,
}

const (
	// HardInputCeiling is never crossed regardless of per-section targets.
	HardInputCeiling = 128000

	// HardTotalCeiling bounds input + output combined.
	HardTotalCeiling = 160768

	// charsPerToken is the character-based heuristic token estimator ratio;
	// within the ±15% accuracy requirement for representative English and
	// code text. A BPE table would be more accurate but isn't required.
	charsPerToken = 4.0
)

// ErrBudgetExceeded is returned by AddTo when a section would cross its
// target plus the reserved buffer. Partial additions are never made.
var ErrBudgetExceeded = errors.New("budget: section exceeded")

// BudgetExceededError carries the section and amounts for callers that want
// to react (trim and retry) instead of just failing.
type BudgetExceededError struct {
	Section   Section
	Requested int
	Remaining int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget: section %q exceeded (requested %d, remaining %d)", e.Section, e.Requested, e.Remaining)
}

func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// Manager tracks per-section usage for a single turn. It is not shared
// across turns: each orchestrator turn constructs a fresh Manager.
type Manager struct {
	mode   Mode
	used   map[Section]int
	buffer int // reserved tokens, never allocated into
}

// New creates a budget manager for the given mode. The reserved buffer
// section is carved out up front and never available via AddTo.
func New(mode Mode) *Manager {
	return &Manager{
		mode:   mode,
		used:   make(map[Section]int),
		buffer: sectionTargets[SectionBuffer],
	}
}

// Mode returns the manager's operating mode.
func (m *Manager) Mode() Mode { return m.mode }

// Count approximates the number of tokens in text using the character-based
// heuristic. Accuracy target is within ±15% of true tokenization.
func Count(text string) int {
	chars := utf8.RuneCountInString(text)
	if chars == 0 {
		return 0
	}
	tokens := int(float64(chars) / charsPerToken)
	if tokens == 0 {
		return 1
	}
	return tokens
}

// AddTo records usage of text against a section. Fails with
// BudgetExceededError if the section target (plus the still-reserved
// buffer headroom) would be crossed; no partial addition occurs.
func (m *Manager) AddTo(section Section, text string) error {
	tokens := Count(text)
	target := sectionTargets[section]
	current := m.used[section]

	if current+tokens > target {
		return &BudgetExceededError{
			Section:   section,
			Requested: tokens,
			Remaining: target - current,
		}
	}

	var total int
	for _, v := range m.used {
		total += v
	}
	if total+tokens > HardInputCeiling {
		return &BudgetExceededError{Section: section, Requested: tokens, Remaining: HardInputCeiling - total}
	}

	m.used[section] = current + tokens
	return nil
}

// Remaining returns the section's target minus what has been used.
func (m *Manager) Remaining(section Section) int {
	r := sectionTargets[section] - m.used[section]
	if r < 0 {
		return 0
	}
	return r
}

// Used returns tokens already recorded against a section.
func (m *Manager) Used(section Section) int { return m.used[section] }

// Target returns the configured target for a section.
func Target(section Section) int { return sectionTargets[section] }

// TotalUsed sums usage across all sections.
func (m *Manager) TotalUsed() int {
	var total int
	for _, v := range m.used {
		total += v
	}
	return total
}

// Reset clears per-call counters; the mode and its caps are unchanged.
func (m *Manager) Reset() {
	m.used = make(map[Section]int)
}

// TrimToFit deterministically truncates text to at most maxTokens,
// preferring to cut at a line boundary so words are never split mid-token.
// Calling TrimToFit twice with the same maxTokens is idempotent.
func TrimToFit(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	if Count(text) <= maxTokens {
		return text
	}

	maxChars := int(float64(maxTokens) * charsPerToken)
	if maxChars <= 0 {
		return ""
	}
	if maxChars >= len(text) {
		return text
	}

	cut := truncateToRuneBoundary(text, maxChars)

	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		candidate := cut[:idx]
		// Only prefer the line boundary if it doesn't throw away too much
		// (more than 20% of the already-computed cut).
		if len(candidate) >= len(cut)*8/10 {
			cut = candidate
		}
	}

	for Count(cut) > maxTokens && len(cut) > 0 {
		cut = cut[:len(cut)-1]
		cut = strings.TrimRightFunc(cut, func(r rune) bool { return false }) // keep rune-safe trim below
		cut = trimIncompleteRune(cut)
	}

	return cut
}

func truncateToRuneBoundary(s string, n int) string {
	if n >= len(s) {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func trimIncompleteRune(s string) string {
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
