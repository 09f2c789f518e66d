package export

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/rosterkit/roster-api/internal/store"
)

// FieldDefinition describes one selectable workbook column: a stable
// identifier, the header label and the rule extracting the cell value
// from a roster row. The set of fields is closed; selections are
// always a subset of this table.
type FieldDefinition struct {
	ID      string
	Label   string
	Extract func(store.Row) string
}

var fieldDefinitions = []FieldDefinition{
	{"shirt_number", "Number", parseNumber},
	{"family_name", "Family Name", familyName},
	{"first_name", "First Name", firstName},
	{"full_name", "Full Name", func(row store.Row) string { return strings.TrimSpace(row["name"]) }},
	{"club_name", "Club", func(row store.Row) string { return strings.TrimSpace(row["club_name"]) }},
	{"position", "Position", parsePosition},
	{"age", "Age", func(row store.Row) string { return strings.TrimSpace(row["age"]) }},
	{"birthday", "Birthday", parseBirthday},
	{"nationality", "Nationality", parseNationality},
	{"height_cm", "Height (cm)", parseHeight},
	{"foot", "Foot", parseFoot},
	{"joined_on", "Joined", parseJoinedOn},
	{"signed_from", "Signed From", parseSignedFrom},
	{"contract_expires", "Contract Expires", parseContractExpires},
	{"market_value", "Market Value", parseMarketValue},
	{"agent", "Agent", parseAgent},
	{"portrait", "Portrait Path", parsePortrait},
	{"player_id", "Player ID", parsePlayerID},
	{"profile_url", "Profile URL", func(row store.Row) string { return strings.TrimSpace(row["profile_url"]) }},
}

// DefaultFieldOrder is the column selection used when a run does not
// ask for specific fields.
var DefaultFieldOrder = []string{
	"shirt_number",
	"full_name",
	"position",
	"age",
	"birthday",
	"nationality",
	"height_cm",
	"foot",
	"market_value",
	"joined_on",
	"contract_expires",
}

// AvailableFields returns the field table in declaration order.
func AvailableFields() []FieldDefinition {
	return append([]FieldDefinition(nil), fieldDefinitions...)
}

var fieldIndex = func() map[string]FieldDefinition {
	index := make(map[string]FieldDefinition, len(fieldDefinitions))
	for _, def := range fieldDefinitions {
		index[def.ID] = def
	}
	return index
}()

// KnownField reports whether id names a defined field.
func KnownField(id string) bool {
	_, ok := fieldIndex[id]
	return ok
}

// NormalizeSelection filters ids to known fields, preserving order,
// and falls back to the default order when nothing survives.
func NormalizeSelection(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if KnownField(id) {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultFieldOrder...)
	}
	return out
}

// Resolve maps ids to definitions, dropping unknown entries. An empty
// or fully unknown selection resolves to the default order.
func Resolve(ids []string) []FieldDefinition {
	ordered := ids
	if len(ordered) == 0 {
		ordered = DefaultFieldOrder
	}
	resolved := make([]FieldDefinition, 0, len(ordered))
	for _, id := range ordered {
		if def, ok := fieldIndex[id]; ok {
			resolved = append(resolved, def)
		}
	}
	if len(resolved) == 0 {
		for _, id := range DefaultFieldOrder {
			resolved = append(resolved, fieldIndex[id])
		}
	}
	return resolved
}

// firstNonEmpty returns the first key's trimmed value that is not
// empty.
func firstNonEmpty(row store.Row, keys ...string) string {
	for _, key := range keys {
		if text := strings.TrimSpace(row[key]); text != "" {
			return text
		}
	}
	return ""
}

// splitName splits a display name into family and first name. A comma
// means "Family, First"; otherwise the last token is the family name.
func splitName(fullName string) (string, string) {
	name := strings.TrimSpace(fullName)
	if name == "" {
		return "", ""
	}
	if idx := strings.Index(name, ","); idx >= 0 {
		return strings.TrimSpace(name[:idx]), strings.TrimSpace(name[idx+1:])
	}
	parts := strings.Fields(name)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[len(parts)-1], strings.Join(parts[:len(parts)-1], " ")
}

func familyName(row store.Row) string {
	family, _ := splitName(row["name"])
	return family
}

func firstName(row store.Row) string {
	_, first := splitName(row["name"])
	return first
}

func parseHeight(row store.Row) string {
	return firstNonEmpty(row, "height", "profile_height")
}

func parseFoot(row store.Row) string {
	return firstNonEmpty(row, "foot", "profile_foot")
}

func parseMarketValue(row store.Row) string {
	return firstNonEmpty(row, "marketValue", "profile_marketValue")
}

func parseSignedFrom(row store.Row) string {
	return firstNonEmpty(row, "signedFrom")
}

func parsePlayerID(row store.Row) string {
	raw := row["id"]
	if raw == "" {
		raw = row["player_id"]
	}
	return strings.TrimSpace(raw)
}

// parseProfileClub decodes the JSON blob stored in the profile_club
// column, or nil when it is absent or malformed.
func parseProfileClub(row store.Row) map[string]interface{} {
	raw := strings.TrimSpace(row["profile_club"])
	if raw == "" {
		return nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}
	return data
}

func parseJoinedOn(row store.Row) string {
	if direct := firstNonEmpty(row, "joinedOn"); direct != "" {
		return direct
	}
	if data := parseProfileClub(row); data != nil {
		if joined, ok := data["joined"].(string); ok && strings.TrimSpace(joined) != "" {
			return strings.TrimSpace(joined)
		}
	}
	return ""
}

func parseContractExpires(row store.Row) string {
	if direct := firstNonEmpty(row, "contract"); direct != "" {
		return direct
	}
	if data := parseProfileClub(row); data != nil {
		if expires, ok := data["contractExpires"].(string); ok && strings.TrimSpace(expires) != "" {
			return strings.TrimSpace(expires)
		}
	}
	return ""
}

func parseAgent(row store.Row) string {
	raw := strings.TrimSpace(row["profile_agent"])
	if raw == "" {
		return ""
	}
	var data interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return raw
	}
	if obj, ok := data.(map[string]interface{}); ok {
		if name, ok := obj["name"].(string); ok && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}
	return raw
}

func parsePosition(row store.Row) string {
	if base := strings.TrimSpace(row["position"]); base != "" {
		return base
	}
	raw := strings.TrimSpace(row["profile_position"])
	if raw == "" {
		return ""
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return raw
	}
	if main := valueString(data["main"]); main != "" {
		return main
	}
	if other, ok := data["other"].([]interface{}); ok && len(other) > 0 {
		parts := make([]string, len(other))
		for i, item := range other {
			parts[i] = valueString(item)
		}
		return strings.Join(parts, ", ")
	}
	return raw
}

// parseNumber reads the shirt number, preferring the enriched column,
// with a leading "#" stripped.
func parseNumber(row store.Row) string {
	raw := row["profile_shirtNumber"]
	if raw == "" {
		raw = row["shirtNumber"]
	}
	number := strings.TrimSpace(raw)
	number = strings.TrimPrefix(number, "#")
	return number
}

// parseBirthday renders dates as DD.MM.YYYY, accepting ISO input.
// Unparsable values pass through untouched.
func parseBirthday(row store.Row) string {
	for _, key := range []string{"profile_dateOfBirth", "dateOfBirth"} {
		text := strings.TrimSpace(row[key])
		if text == "" {
			continue
		}
		for _, layout := range []string{"2006-01-02", "02.01.2006"} {
			if t, err := time.Parse(layout, text); err == nil {
				return t.Format("02.01.2006")
			}
		}
		return text
	}
	return ""
}

func parseNationality(row store.Row) string {
	raw := row["profile_citizenship"]
	if raw == "" {
		raw = row["nationality"]
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		var items []interface{}
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			parts := make([]string, len(items))
			for i, item := range items {
				parts[i] = valueString(item)
			}
			return strings.Join(parts, ", ")
		}
	}
	var parts []string
	for _, part := range strings.Split(strings.ReplaceAll(raw, ";", ","), ",") {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

func parsePortrait(row store.Row) string {
	return firstNonEmpty(row, "profile_imageUrl", "imageUrl", "portrait", "image")
}

// valueString renders a decoded JSON scalar without the exponent
// notation float64 formatting would produce.
func valueString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}
