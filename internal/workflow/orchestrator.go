package workflow

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rosterkit/roster-api/internal/export"
	"github.com/rosterkit/roster-api/internal/fetch"
	"github.com/rosterkit/roster-api/internal/models"
	"github.com/rosterkit/roster-api/internal/store"
	"github.com/rs/zerolog"
)

const (
	clubIDsFileName  = "club_ids.csv"
	clubsDirName     = "clubs"
	exportsDirName   = "exports"
	workbookFileName = "team_list.xlsx"
)

// Config holds the run-independent settings of an Orchestrator.
type Config struct {
	// DataDir is the root under which every run artifact is written.
	DataDir string

	// Cooldown is the minimum pause after a suspected rate limit.
	Cooldown time.Duration

	// MinRosterSize is the result-count threshold below which a season
	// filtered roster falls back to the unfiltered one.
	MinRosterSize int
}

// Orchestrator executes the five-stage club roster workflow: profile
// fetch, id table persist, roster export, profile enrichment and
// workbook compilation.
type Orchestrator struct {
	cfg     Config
	fetcher *fetch.Client
	logger  zerolog.Logger

	// injected for tests
	sleep func(time.Duration)
}

func NewOrchestrator(cfg Config, fetcher *fetch.Client, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		fetcher: fetcher,
		logger:  logger.With().Str("component", "workflow").Logger(),
		sleep:   time.Sleep,
	}
}

func (o *Orchestrator) clubIDsPath() string {
	return filepath.Join(o.cfg.DataDir, clubIDsFileName)
}

func (o *Orchestrator) clubsDir() string {
	return filepath.Join(o.cfg.DataDir, clubsDirName)
}

func (o *Orchestrator) workbookPath() string {
	return filepath.Join(o.cfg.DataDir, exportsDirName, workbookFileName)
}

// relPath renders path relative to the data root, with forward
// slashes, so results round-trip through the download endpoint.
func (o *Orchestrator) relPath(path string) string {
	rel, err := filepath.Rel(o.cfg.DataDir, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Run executes the workflow for opts, reporting progress on rec. It
// returns a fatal *Error when the run cannot produce a workbook;
// per-item failures are logged on rec and skipped.
func (o *Orchestrator) Run(ctx context.Context, opts Options, rec Recorder) (*models.WorkflowResult, error) {
	selected := export.NormalizeSelection(opts.Fields)
	ids := cleanIDs(opts.IDs)

	rec.Logf("Starting workflow for %d club IDs", len(ids))
	if len(ids) == 0 {
		return nil, Errorf("No valid club IDs provided.")
	}

	callOpts := callOptionsFor(opts)

	// Step 1: fetch club profiles to gather display names.
	rec.Log("Step 1: fetching club profiles")
	teams := make([]models.TeamDetail, 0, len(ids))
	for i, clubID := range ids {
		profile, err := o.fetcher.ClubProfile(ctx, clubID, callOpts...)
		if err != nil {
			rec.Logf("  Failed to fetch profile for club %s: %v", clubID, err)
			o.logger.Warn().Err(err).Str("club_id", clubID).Msg("Club profile fetch failed")
			continue
		}
		name := extractClubName(profile, clubID)
		teams = append(teams, models.TeamDetail{ClubID: clubID, ClubName: name})
		rec.Logf("  Retrieved profile: %s - %s", clubID, name)
		o.pace(opts, i < len(ids)-1)
	}

	// Step 2: persist the id to name table. Failure here is fatal.
	rec.Log("Step 2: writing club_ids.csv")
	if err := os.MkdirAll(o.cfg.DataDir, 0o755); err != nil {
		return nil, Errorf("Unable to create output directory: %v", err)
	}
	idRows := make([]store.Row, len(teams))
	for i, team := range teams {
		idRows[i] = store.Row{"club_id": team.ClubID, "club_name": team.ClubName}
	}
	clubIDsPath := o.clubIDsPath()
	if err := store.Persist(clubIDsPath, idRows, []string{"club_id", "club_name"}); err != nil {
		return nil, Errorf("Failed to write %s: %v", clubIDsFileName, err)
	}
	rec.Logf("  Saved %s", o.relPath(clubIDsPath))

	// Step 3: fetch rosters and export one CSV per club.
	rec.Log("Step 3: fetching players and exporting CSVs")
	if err := os.MkdirAll(o.clubsDir(), 0o755); err != nil {
		return nil, Errorf("Unable to create output directory: %v", err)
	}
	var generated []string
	for i, team := range teams {
		target := filepath.Join(o.clubsDir(), team.ClubID+".csv")
		if !opts.Force {
			if _, err := os.Stat(target); err == nil {
				generated = append(generated, target)
				rec.Logf("  Reusing existing roster CSV: %s", filepath.Base(target))
				continue
			}
		}
		payload, err := o.fetchRoster(ctx, team.ClubID, opts, callOpts)
		if err != nil {
			rec.Logf("  Failed to fetch players for club %s: %v", team.ClubID, err)
			o.logger.Warn().Err(err).Str("club_id", team.ClubID).Msg("Roster fetch failed")
			continue
		}
		if err := writeRosterCSV(target, team, payload); err != nil {
			rec.Logf("  Failed to export roster for club %s: %v", team.ClubID, err)
			continue
		}
		generated = append(generated, target)
		rec.Logf("  Exported roster CSV: %s", filepath.Base(target))
		o.pace(opts, i < len(teams)-1)
	}
	if len(generated) == 0 {
		return nil, Errorf("No roster data available for the provided club IDs.")
	}

	// Step 4: merge player profile details into every roster.
	rec.Log("Step 4: augmenting player profiles")
	augmented := make([]string, 0, len(generated))
	for _, path := range generated {
		rec.Logf("  Augmenting %s", filepath.Base(path))
		if err := o.enrichRosterFile(ctx, path, opts, rec); err != nil {
			rec.Logf("  Failed to augment %s: %v", filepath.Base(path), err)
			o.logger.Warn().Err(err).Str("file", filepath.Base(path)).Msg("Roster enrichment failed")
		}
		augmented = append(augmented, path)
	}

	// Step 5: compile the workbook from whatever survived.
	rec.Log("Step 5: building Excel workbook")
	workbook := o.workbookPath()
	lookup := export.LoadClubNames(clubIDsPath)
	collected := export.CollectTeams(augmented, lookup, o.logger)
	if len(collected) == 0 {
		return nil, Errorf("No club data available to build workbook.")
	}
	if err := export.BuildWorkbook(workbook, collected, selected); err != nil {
		return nil, Errorf("Failed to build workbook: %v", err)
	}
	rec.Logf("Workflow complete. Workbook saved to %s", o.relPath(workbook))

	return &models.WorkflowResult{
		Teams:          teams,
		ClubIDsCSV:     o.relPath(clubIDsPath),
		GeneratedCSVs:  o.relAll(generated),
		AugmentedCSVs:  o.relAll(augmented),
		Workbook:       o.relPath(workbook),
		SelectedFields: selected,
	}, nil
}

// fetchRoster retrieves the player list for one club. With a season
// filter set, a roster below the configured size threshold falls back
// to the unfiltered roster.
func (o *Orchestrator) fetchRoster(ctx context.Context, clubID string, opts Options, callOpts []fetch.CallOption) (*fetch.Object, error) {
	if opts.SeasonFilter == "" {
		return o.fetcher.ClubPlayers(ctx, clubID, "", callOpts...)
	}
	path := "/clubs/" + url.PathEscape(clubID) + "/players"
	candidates := []fetch.Candidate{
		{Path: path, Query: url.Values{"season_id": {opts.SeasonFilter}}},
		{Path: path},
	}
	return o.fetcher.Probe(ctx, candidates, o.cfg.MinRosterSize, countPlayers, callOpts...)
}

func countPlayers(payload *fetch.Object) int {
	value, ok := payload.Get("players")
	if !ok {
		return 0
	}
	players, ok := value.([]interface{})
	if !ok {
		return 0
	}
	return len(players)
}

// pace sleeps the configured delay between paced source API calls.
func (o *Orchestrator) pace(opts Options, more bool) {
	if opts.RateLimit && opts.Delay > 0 && more {
		o.sleep(opts.Delay)
	}
}

func (o *Orchestrator) relAll(paths []string) []string {
	out := make([]string, len(paths))
	for i, path := range paths {
		out[i] = o.relPath(path)
	}
	return out
}

// callOptionsFor translates per-run knobs into fetch options. Delay
// seeds the retry backoff even when inter-request pacing is off.
func callOptionsFor(opts Options) []fetch.CallOption {
	retries := opts.Retries
	if retries < 1 {
		retries = 1
	}
	base := time.Duration(0)
	if opts.RateLimit {
		base = opts.Delay
	}
	return []fetch.CallOption{fetch.WithRetries(retries), fetch.WithBaseDelay(base)}
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// extractClubName picks a display name from a profile document,
// falling back to the club id.
func extractClubName(profile *fetch.Object, clubID string) string {
	for _, key := range []string{"name", "officialName"} {
		if value := strings.TrimSpace(profile.GetString(key)); value != "" {
			return value
		}
	}
	return clubID
}

// extractPlayers pulls the players array out of a roster payload.
func extractPlayers(payload *fetch.Object) ([]interface{}, error) {
	value, ok := payload.Get("players")
	if !ok {
		return nil, errors.New("missing players array in response")
	}
	players, ok := value.([]interface{})
	if !ok {
		return nil, errors.New("missing players array in response")
	}
	return players, nil
}

// normaliseFieldnames unions player keys in first-seen order. Scalar
// entries contribute a synthetic value column; an empty roster still
// yields a single player column.
func normaliseFieldnames(players []interface{}) []string {
	var fields []string
	seen := make(map[string]bool)
	for _, player := range players {
		if obj, ok := player.(*fetch.Object); ok {
			for _, key := range obj.Keys() {
				if !seen[key] {
					seen[key] = true
					fields = append(fields, key)
				}
			}
		} else if !seen["value"] {
			seen["value"] = true
			fields = append(fields, "value")
		}
	}
	if len(fields) == 0 {
		fields = append(fields, "player")
	}
	return fields
}

// writeRosterCSV serialises a roster payload to target with club_id
// and club_name pinned to the first two columns.
func writeRosterCSV(target string, team models.TeamDetail, payload *fetch.Object) error {
	players, err := extractPlayers(payload)
	if err != nil {
		return err
	}

	fields := normaliseFieldnames(players)
	if !containsField(fields, "club_id") {
		fields = append([]string{"club_id"}, fields...)
	}
	if !containsField(fields, "club_name") {
		insert := 0
		if fields[0] == "club_id" {
			insert = 1
		}
		withName := make([]string, 0, len(fields)+1)
		withName = append(withName, fields[:insert]...)
		withName = append(withName, "club_name")
		withName = append(withName, fields[insert:]...)
		fields = withName
	}

	rows := make([]store.Row, 0, len(players))
	for _, player := range players {
		row := store.Row{}
		if obj, ok := player.(*fetch.Object); ok {
			for _, key := range obj.Keys() {
				if key == "club_id" || key == "club_name" {
					continue
				}
				value, _ := obj.Get(key)
				row[key] = store.SerializeValue(value)
			}
		} else {
			row[firstDataField(fields)] = store.SerializeValue(player)
		}
		row["club_id"] = team.ClubID
		row["club_name"] = team.ClubName
		rows = append(rows, row)
	}
	return store.Persist(target, rows, fields)
}

// firstDataField returns the first column that is not one of the two
// pinned club columns.
func firstDataField(fields []string) string {
	for _, field := range fields {
		if field != "club_id" && field != "club_name" {
			return field
		}
	}
	return fields[len(fields)-1]
}

func containsField(fields []string, name string) bool {
	for _, field := range fields {
		if field == name {
			return true
		}
	}
	return false
}
