package verify

import (
	"context"
	"strings"

	"github.com/victornm/etrivia/internal/config"
)

type ScanResult string

const (
	ScanOK            ScanResult = "ok"
	ScanBannedContent ScanResult = "banned_content"
	ScanContainsURL   ScanResult = "contains_url"
)

// Scanner is a ContentScanner backed by the live banned-word list. The word
// list is re-read from settings on every scan so moderators can extend it
// without a restart.
type Scanner struct {
	settings *config.Settings
}

func NewScanner(settings *config.Settings) *Scanner {
	return &Scanner{settings: settings}
}

func (s *Scanner) Scan(_ context.Context, text string) (ScanResult, error) {
	lower := strings.ToLower(text)

	for _, marker := range []string{"http://", "https://", "www."} {
		if strings.Contains(lower, marker) {
			return ScanContainsURL, nil
		}
	}

	for _, word := range s.settings.BannedWords() {
		word = strings.ToLower(strings.TrimSpace(word))
		if word == "" {
			continue
		}
		if containsWord(lower, word) {
			return ScanBannedContent, nil
		}
	}

	return ScanOK, nil
}

// containsWord matches on word boundaries so a banned word does not reject
// longer innocent words containing it.
func containsWord(text, word string) bool {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return !isWordRune(r)
	}) {
		if field == word {
			return true
		}
	}
	return false
}

func isWordRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '\'':
		return true
	}
	return false
}
