package ccd

import "strings"

// HL7 timestamps travel through the pipeline as strings: either a full
// YYYYMMDDHHMMSS value with an optional +-ZZZZ offset, or a bare day that is
// padded to midnight. Keeping the source precision means day-level matching
// stays a string prefix comparison.

// NormalizeTime pads a day-precision HL7 value to midnight and keeps full
// values (including any timezone offset) untouched. Returns "" for values too
// short to carry a date.
func NormalizeTime(val string) string {
	val = strings.TrimSpace(val)
	if len(val) >= 14 {
		return val
	}
	if len(val) >= 8 {
		return val[:8] + "000000"
	}
	return ""
}

// DayPrefix reduces an HL7 timestamp to its YYYYMMDD day, dropping any
// punctuation. Returns "" when fewer than eight digits remain.
func DayPrefix(val string) string {
	var digits []byte
	for i := 0; i < len(val); i++ {
		if val[i] >= '0' && val[i] <= '9' {
			digits = append(digits, val[i])
		}
	}
	if len(digits) >= 8 {
		return string(digits[:8])
	}
	return ""
}

// timeRange extracts normalized (start, end) from an effectiveTime element.
// A single value attribute covers both ends; when only low is present the
// start doubles as the end.
func timeRange(node *Element) (start, end string) {
	if node == nil {
		return "", ""
	}
	if v := NormalizeTime(node.Attr("value")); v != "" {
		return v, v
	}
	if low := node.Find("low"); low != nil {
		start = NormalizeTime(low.Attr("value"))
	}
	if high := node.Find("high"); high != nil {
		end = NormalizeTime(high.Attr("value"))
	}
	if end == "" && start != "" {
		end = start
	}
	return start, end
}

// rawTimeRange is timeRange without midnight padding, for parsers that store
// the source value verbatim.
func rawTimeRange(node *Element) (start, end string) {
	if node == nil {
		return "", ""
	}
	if v := cleanText(node.Attr("value")); v != "" {
		return v, v
	}
	if low := node.Find("low"); low != nil {
		start = cleanText(low.Attr("value"))
	}
	if high := node.Find("high"); high != nil {
		end = cleanText(high.Attr("value"))
	}
	return start, end
}

// pointInTime returns a single timestamp from an effectiveTime element,
// preferring value, then low, then high.
func pointInTime(node *Element) string {
	if node == nil {
		return ""
	}
	if v := node.Attr("value"); v != "" {
		return v
	}
	if low := node.Find("low"); low != nil && low.Attr("value") != "" {
		return low.Attr("value")
	}
	if high := node.Find("high"); high != nil && high.Attr("value") != "" {
		return high.Attr("value")
	}
	return ""
}
