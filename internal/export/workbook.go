package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"github.com/rosterkit/roster-api/internal/store"
)

// TeamListSheet is the index sheet naming every team in the workbook.
const TeamListSheet = "Team List"

var invalidSheetChars = regexp.MustCompile(`[\\/*?:\[\]]`)

// Team is one sheet's worth of roster rows.
type Team struct {
	Name string
	Rows []store.Row
}

// LoadClubNames reads the id to name table. A missing or unreadable
// file yields an empty lookup.
func LoadClubNames(path string) map[string]string {
	names := make(map[string]string)
	rows, _, err := store.ReadRows(path)
	if err != nil {
		return names
	}
	for _, row := range rows {
		id := strings.TrimSpace(row["club_id"])
		name := strings.TrimSpace(row["club_name"])
		if id != "" && name != "" {
			names[id] = name
		}
	}
	return names
}

// CollectTeams reads the given roster files and groups their rows
// under an inferred club name. Unreadable and empty files are skipped.
func CollectTeams(paths []string, lookup map[string]string, logger zerolog.Logger) []Team {
	teams := make([]Team, 0, len(paths))
	for _, path := range paths {
		rows, _, err := store.ReadRows(path)
		if err != nil {
			logger.Warn().Err(err).Str("file", path).Msg("Skipping unreadable roster file")
			continue
		}
		if len(rows) == 0 {
			continue
		}
		teams = append(teams, Team{Name: InferClubName(path, rows, lookup), Rows: rows})
	}
	return teams
}

// InferClubName resolves the display name for a roster file. Priority:
// an explicit club_name column, the id lookup table, a name embedded
// in the profile_club JSON, and finally the filename.
func InferClubName(path string, rows []store.Row, lookup map[string]string) string {
	for _, row := range rows {
		if name := strings.TrimSpace(row["club_name"]); name != "" {
			return name
		}
	}
	if id := extractClubID(rows); id != "" {
		if name, ok := lookup[id]; ok {
			return name
		}
	}
	for _, row := range rows {
		raw := strings.TrimSpace(row["profile_club"])
		if raw == "" {
			continue
		}
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			continue
		}
		if name, ok := data["name"].(string); ok && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return titleCase(strings.ReplaceAll(stem, "_", " "))
}

// extractClubID finds the club identifier from the club_id column or,
// failing that, from the profile_club JSON blob.
func extractClubID(rows []store.Row) string {
	for _, row := range rows {
		if id := strings.TrimSpace(row["club_id"]); id != "" {
			return id
		}
	}
	for _, row := range rows {
		raw := strings.TrimSpace(row["profile_club"])
		if raw == "" {
			continue
		}
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			continue
		}
		if id, ok := data["id"].(string); ok && strings.TrimSpace(id) != "" {
			return strings.TrimSpace(id)
		}
	}
	return ""
}

// sanitiseSheetName makes a name acceptable to Excel: invalid
// characters become spaces, quotes are dropped, length caps at 31 and
// collisions get an _N suffix.
func sanitiseSheetName(name string, used map[string]bool) string {
	cleaned := invalidSheetChars.ReplaceAllString(name, " ")
	cleaned = strings.ReplaceAll(cleaned, "'", "")
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		cleaned = "Team"
	}
	cleaned = truncateRunes(cleaned, 31)

	base := cleaned
	for counter := 1; used[cleaned]; counter++ {
		suffix := fmt.Sprintf("_%d", counter)
		if len([]rune(base))+len(suffix) > 31 {
			cleaned = truncateRunes(base, 31-len(suffix)) + suffix
		} else {
			cleaned = base + suffix
		}
	}
	used[cleaned] = true
	return cleaned
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// BuildWorkbook writes the compiled workbook: the team index sheet
// followed by one sheet per team with the selected columns, rows in
// shirt-number order. The output directory is created as needed.
func BuildWorkbook(path string, teams []Team, fieldIDs []string) error {
	resolved := Resolve(fieldIDs)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TeamListSheet); err != nil {
		return errors.Wrap(err, "rename index sheet")
	}
	if err := f.SetSheetRow(TeamListSheet, "A1", &[]interface{}{"", "Team"}); err != nil {
		return errors.Wrap(err, "write index header")
	}

	used := map[string]bool{TeamListSheet: true}
	for i, team := range teams {
		indexCell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(TeamListSheet, indexCell, team.Name); err != nil {
			return errors.Wrap(err, "write index row")
		}

		sheetName := sanitiseSheetName(team.Name, used)
		if _, err := f.NewSheet(sheetName); err != nil {
			return errors.Wrapf(err, "create sheet %q", sheetName)
		}

		header := make([]interface{}, 0, len(resolved)+1)
		header = append(header, "")
		for _, def := range resolved {
			header = append(header, def.Label)
		}
		if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
			return errors.Wrap(err, "write sheet header")
		}

		for rowIdx, row := range SortRows(team.Rows) {
			record := make([]interface{}, 0, len(resolved)+1)
			record = append(record, "")
			for _, def := range resolved {
				record = append(record, def.Extract(row))
			}
			cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheetName, cell, &record); err != nil {
				return errors.Wrap(err, "write roster row")
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create exports directory")
	}
	if err := f.SaveAs(path); err != nil {
		return errors.Wrapf(err, "save workbook %s", path)
	}
	return nil
}
