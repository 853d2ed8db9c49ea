package ccd

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ProgressNoteRecord is one narrative progress note.
type ProgressNoteRecord struct {
	Title         string
	Provider      string
	NoteDatetime  string
	EncounterDate string
	Text          string
	SourceID      string
}

// tzOffsets maps US-centric timezone abbreviations seen in note captions to
// HL7 offsets.
var tzOffsets = map[string]string{
	"UTC":  "+0000",
	"UT":   "+0000",
	"GMT":  "+0000",
	"EST":  "-0500",
	"EDT":  "-0400",
	"CST":  "-0600",
	"CDT":  "-0500",
	"MST":  "-0700",
	"MDT":  "-0600",
	"PST":  "-0800",
	"PDT":  "-0700",
	"AKST": "-0900",
	"AKDT": "-0800",
	"HST":  "-1000",
}

var (
	captionDatePattern = regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`)
	captionTimePattern = regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})\s*([AP]M)`)
	captionTZPattern   = regexp.MustCompile(`\b([A-Z]{2,4})$`)
)

// ParseProgressNotes extracts narrative notes from sections titled as
// progress notes. Each list item carries a caption with the provider and
// timestamp, and a content block with the note body.
func ParseProgressNotes(doc *Document) []ProgressNoteRecord {
	var notes []ProgressNoteRecord
	for _, section := range doc.Root.Descendants("section") {
		titleEl := section.Find("title")
		if titleEl == nil || !strings.Contains(strings.ToLower(titleEl.FlatText()), "progress note") {
			continue
		}

		list := section.FindPath("text", "list")
		if list == nil {
			continue
		}
		for _, item := range list.FindAll("item") {
			caption := ""
			if captionEl := item.Find("caption"); captionEl != nil {
				caption = captionEl.CollapsedText()
			}

			provider, noteDatetime, encounterHint := parseNoteCaption(caption)

			content := noteContent(item)
			if content == nil {
				continue
			}

			text := textWithBreaks(content)
			if text == "" {
				continue
			}

			notes = append(notes, ProgressNoteRecord{
				Title:         caption,
				Provider:      provider,
				NoteDatetime:  noteDatetime,
				EncounterDate: encounterHint,
				Text:          text,
				SourceID:      content.Attr("ID"),
			})
		}
	}
	return notes
}

// noteContent prefers a content element with an ID anchor so the note can be
// traced back to the narrative.
func noteContent(item *Element) *Element {
	var fallback *Element
	for _, content := range item.FindAll("content") {
		if content.Attr("ID") != "" {
			return content
		}
		if fallback == nil {
			fallback = content
		}
	}
	return fallback
}

// parseNoteCaption splits "Provider Name - 1/2/2024 3:04 PM EST" captions
// into the provider, an ISO note datetime, and a compact encounter-date hint.
func parseNoteCaption(caption string) (provider, noteDatetime, encounterHint string) {
	if caption == "" {
		return "", "", ""
	}

	providerPart := caption
	metaPart := ""
	if idx := strings.LastIndex(caption, " - "); idx >= 0 {
		providerPart = caption[:idx]
		metaPart = caption[idx+3:]
	}
	provider = strings.TrimSpace(providerPart)
	meta := strings.TrimSpace(metaPart)
	if meta == "" {
		return provider, "", ""
	}

	tzCode := ""
	if m := captionTZPattern.FindStringSubmatchIndex(meta); m != nil {
		candidate := strings.ToUpper(meta[m[2]:m[3]])
		if _, ok := tzOffsets[candidate]; ok {
			tzCode = candidate
			meta = strings.TrimSpace(meta[:m[0]])
		}
	}

	dateMatch := captionDatePattern.FindStringSubmatch(meta)
	if dateMatch == nil {
		return provider, "", ""
	}
	month, _ := strconv.Atoi(dateMatch[1])
	day, _ := strconv.Atoi(dateMatch[2])
	year, _ := strconv.Atoi(dateMatch[3])
	compactDate := fmt.Sprintf("%04d%02d%02d", year, month, day)
	isoDate := fmt.Sprintf("%04d-%02d-%02d", year, month, day)

	timeMatch := captionTimePattern.FindStringSubmatch(meta)
	if timeMatch == nil {
		return provider, isoDate, compactDate
	}
	hour, _ := strconv.Atoi(timeMatch[1])
	minute, _ := strconv.Atoi(timeMatch[2])
	amPM := strings.ToUpper(timeMatch[3])
	if amPM == "PM" && hour != 12 {
		hour += 12
	}
	if amPM == "AM" && hour == 12 {
		hour = 0
	}

	offset := tzOffsets[tzCode]
	encounterHint = fmt.Sprintf("%s%02d%02d00", compactDate, hour, minute)
	if offset != "" {
		encounterHint += offset
	}

	noteDatetime = fmt.Sprintf("%sT%02d:%02d:00", isoDate, hour, minute)
	if offset != "" {
		noteDatetime += offset[:3] + ":" + offset[3:]
	}
	return provider, noteDatetime, encounterHint
}

// textWithBreaks renders a narrative content block as plain text, turning
// <br/> elements into newlines and trimming blank edge lines while keeping
// interior spacing.
func textWithBreaks(node *Element) string {
	var b strings.Builder
	var walk func(el *Element)
	walk = func(el *Element) {
		for _, c := range el.Children {
			switch {
			case c.isText():
				b.WriteString(c.text)
			case c.Name == "br":
				b.WriteString("\n")
			default:
				walk(c)
			}
		}
	}
	walk(node)

	raw := b.String()
	if raw == "" {
		return ""
	}

	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return strings.TrimSpace(strings.Join(lines[start:end], "\n"))
}
