package rag

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/domain/ragModel"
)

// parse stage names, also used as metric labels
const (
	StageDirect        = "direct"
	StageExtracted     = "extracted"
	StageRepaired      = "repaired"
	StageResponseField = "response_field"
	StageRawText       = "raw_text"
)

var (
	errNoJSONObject  = errors.New("no JSON object in completion")
	errEmptyResponse = errors.New("completion has no response field")

	jsonObjectRe    = regexp.MustCompile(`\{[\s\S]*\}`)
	responseFieldRe = regexp.MustCompile(`"response"\s*:\s*"((?:[^"\\]|\\.)*)"\s*[,}]`)

	trailingCommaRe   = regexp.MustCompile(`,(\s*[}\]])`)
	braceQuoteRe      = regexp.MustCompile(`(\})\s*(")`)
	bracketQuoteRe    = regexp.MustCompile(`(\])\s*(")`)
	quoteQuoteRe      = regexp.MustCompile(`(")\s+(")`)
	controlCharsRe    = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	leadingResponseRe = regexp.MustCompile(`^\s*\{?\s*"response"\s*:\s*"?`)
	trailingSourcesRe = regexp.MustCompile(`(?s)"?\s*,?\s*"sources"\s*:.*$`)
)

type parseStrategy struct {
	name  string
	parse func(raw string) (ragModel.StructuredAnswer, error)
}

var parseStrategies = []parseStrategy{
	{StageDirect, parseDirect},
	{StageExtracted, parseExtracted},
	{StageRepaired, parseRepaired},
	{StageResponseField, parseResponseField},
}

// parseAnswer never fails. It returns the first strategy that yields an answer, falling back to
// the cleaned raw completion.
func parseAnswer(raw string) (ragModel.StructuredAnswer, string) {
	for _, s := range parseStrategies {
		answer, err := s.parse(raw)
		if err == nil {
			return answer, s.name
		}
	}
	return rawTextAnswer(raw), StageRawText
}

func parseDirect(raw string) (ragModel.StructuredAnswer, error) {
	return decodeAnswer(raw)
}

func parseExtracted(raw string) (ragModel.StructuredAnswer, error) {
	obj := jsonObjectRe.FindString(raw)
	if obj == "" {
		return ragModel.StructuredAnswer{}, errNoJSONObject
	}
	return decodeAnswer(obj)
}

func parseRepaired(raw string) (ragModel.StructuredAnswer, error) {
	obj := jsonObjectRe.FindString(raw)
	if obj == "" {
		return ragModel.StructuredAnswer{}, errNoJSONObject
	}
	return decodeAnswer(repairJSON(obj))
}

func parseResponseField(raw string) (ragModel.StructuredAnswer, error) {
	m := responseFieldRe.FindStringSubmatch(raw)
	if m == nil {
		return ragModel.StructuredAnswer{}, errEmptyResponse
	}
	text := strings.ReplaceAll(m[1], `\"`, `"`)
	text = strings.ReplaceAll(text, `\n`, "\n")
	if strings.TrimSpace(text) == "" {
		return ragModel.StructuredAnswer{}, errEmptyResponse
	}
	return ragModel.StructuredAnswer{Response: text, Sources: []ragModel.Source{}}, nil
}

func rawTextAnswer(raw string) ragModel.StructuredAnswer {
	clean := leadingResponseRe.ReplaceAllString(raw, "")
	clean = trailingSourcesRe.ReplaceAllString(clean, "")
	clean = strings.TrimSpace(strings.Trim(strings.TrimSpace(clean), `"`))
	if clean == "" {
		clean = config.UnparsableAnswer
	}
	return ragModel.StructuredAnswer{
		Response: truncateRunes(clean, config.RawAnswerMaxChars),
		Sources:  []ragModel.Source{},
	}
}

// repairJSON fixes the usual model mistakes: raw newlines inside strings, trailing commas,
// missing commas between members and stray control characters.
func repairJSON(s string) string {
	s = escapeNewlinesInStrings(s)
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = braceQuoteRe.ReplaceAllString(s, "$1,$2")
	s = bracketQuoteRe.ReplaceAllString(s, "$1,$2")
	s = quoteQuoteRe.ReplaceAllString(s, "$1,$2")
	return controlCharsRe.ReplaceAllString(s, "")
}

func escapeNewlinesInStrings(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	inString, escaped := false, false
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inString:
			escaped = true
		case r == '"':
			inString = !inString
		case inString && r == '\n':
			sb.WriteString(`\n`)
			continue
		case inString && r == '\r':
			sb.WriteString(`\r`)
			continue
		case inString && r == '\t':
			sb.WriteString(`\t`)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

type wireAnswer struct {
	Response string            `json:"response"`
	Sources  []json.RawMessage `json:"sources"`
}

type wireSource struct {
	Name      *string         `json:"name"`
	Protocol  *string         `json:"protocol"`
	Page      json.RawMessage `json:"page"`
	Section   *string         `json:"section"`
	ExactText string          `json:"exactText"`
	BBoxes    json.RawMessage `json:"bboxes"`
	Relevance string          `json:"relevance"`
}

func decodeAnswer(s string) (ragModel.StructuredAnswer, error) {
	var w wireAnswer
	if err := json.Unmarshal([]byte(s), &w); err != nil {
		return ragModel.StructuredAnswer{}, err
	}
	if strings.TrimSpace(w.Response) == "" {
		return ragModel.StructuredAnswer{}, errEmptyResponse
	}
	answer := ragModel.StructuredAnswer{Response: w.Response, Sources: make([]ragModel.Source, 0, len(w.Sources))}
	for _, raw := range w.Sources {
		var ws wireSource
		if err := json.Unmarshal(raw, &ws); err != nil {
			continue
		}
		answer.Sources = append(answer.Sources, normalizeSource(ws))
	}
	return answer, nil
}

func normalizeSource(ws wireSource) ragModel.Source {
	src := ragModel.Source{
		Name:      ragModel.UnknownTitle,
		Page:      parsePage(ws.Page),
		ExactText: ws.ExactText,
		BBoxes:    parseBBoxes(ws.BBoxes),
		Relevance: ragModel.RelevanceHigh,
	}
	switch {
	case ws.Name != nil && *ws.Name != "":
		src.Name = *ws.Name
	case ws.Protocol != nil && *ws.Protocol != "":
		src.Name = *ws.Protocol
	}
	if ws.Section != nil && *ws.Section != "null" {
		src.Section = *ws.Section
	}
	switch rel := ragModel.Relevance(strings.ToLower(strings.TrimSpace(ws.Relevance))); rel {
	case ragModel.RelevanceHigh, ragModel.RelevanceMedium, ragModel.RelevanceLow:
		src.Relevance = rel
	}
	return src
}

func parsePage(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return int(n)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if p, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return p
		}
	}
	return 0
}

// parseBBoxes accepts a list of boxes or a single flat box, which is wrapped.
func parseBBoxes(raw json.RawMessage) []ragModel.BBox {
	boxes := []ragModel.BBox{}
	if len(raw) == 0 {
		return boxes
	}
	if box, ok := ragModel.ParseBBox(raw); ok {
		return append(boxes, box)
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err != nil {
		return boxes
	}
	for _, item := range list {
		if box, ok := ragModel.ParseBBox(item); ok {
			boxes = append(boxes, box)
		}
	}
	return boxes
}
