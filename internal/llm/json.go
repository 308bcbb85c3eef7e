package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const snippetRunes = 160

// DecodeJSON decodes a model's JSON reply into target. Markdown code fences
// and prose around the outermost object or array are tolerated.
func DecodeJSON(content string, target any) error {
	candidates := jsonCandidates(content)
	if len(candidates) == 0 {
		return errors.New("empty payload")
	}
	var firstErr error
	for _, candidate := range candidates {
		err := json.Unmarshal([]byte(candidate), target)
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return fmt.Errorf("%w (payload snippet: %s)", firstErr, summarizePayloadSnippet(content))
}

// jsonCandidates lists the distinct strings worth decoding, most literal
// first.
func jsonCandidates(content string) []string {
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		for _, seen := range out {
			if seen == s {
				return
			}
		}
		out = append(out, s)
	}
	add(content)
	unfenced := unfence(content)
	add(unfenced)
	add(outermost(unfenced, '{', '}'))
	add(outermost(unfenced, '[', ']'))
	return out
}

func unfence(content string) string {
	body, fenced := strings.CutPrefix(strings.TrimSpace(content), "```")
	if !fenced {
		return content
	}
	body = strings.TrimLeft(body, " \t\r\n")
	if tag, rest, ok := strings.Cut(body, "\n"); ok && strings.EqualFold(strings.TrimSpace(tag), "json") {
		body = rest
	} else if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = body[4:]
	}
	if end := strings.LastIndex(body, "```"); end >= 0 {
		body = body[:end]
	}
	return body
}

func outermost(s string, open, closing byte) string {
	start := strings.IndexByte(s, open)
	end := strings.LastIndexByte(s, closing)
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// summarizePayloadSnippet collapses whitespace and truncates content for
// error messages.
func summarizePayloadSnippet(content string) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	if collapsed == "" {
		return "<empty>"
	}
	if runes := []rune(collapsed); len(runes) > snippetRunes {
		return string(runes[:snippetRunes]) + "..."
	}
	return collapsed
}
