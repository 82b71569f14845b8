package challenge

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// csvHeader is the column contract for bulk snapshot import/export. Required
// numeric columns parse blank as 0; the optional teamPoints and
// boostActiveCount columns parse blank as absent.
var csvHeader = []string{
	"name", "steps", "activityKm", "missions", "quizzes", "photos", "teamPoints", "boostActiveCount",
}

// ExportTeamsCSV writes a team snapshot set in the boundary CSV format.
// Absent optional values export as empty cells so a round trip preserves
// the estimated-vs-authoritative distinction.
func ExportTeamsCSV(teams []TeamSnapshot) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, team := range teams {
		teamPoints := ""
		if team.TeamPoints != nil {
			teamPoints = strconv.FormatFloat(*team.TeamPoints, 'f', -1, 64)
		}
		boost := ""
		if team.BoostActiveCount != nil {
			boost = strconv.Itoa(*team.BoostActiveCount)
		}
		record := []string{
			team.Name,
			strconv.FormatInt(team.Steps, 10),
			strconv.FormatFloat(team.ActivityKm, 'f', -1, 64),
			strconv.FormatInt(team.Missions, 10),
			strconv.FormatInt(team.Quizzes, 10),
			strconv.FormatInt(team.Photos, 10),
			teamPoints,
			boost,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV row for %q: %w", team.Name, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseTeamsCSV reads team snapshots from the boundary CSV format. Rows are
// matched by header name so column order does not matter; unknown columns
// are ignored.
func ParseTeamsCSV(r io.Reader) ([]TeamSnapshot, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}
	if _, ok := index["name"]; !ok {
		return nil, fmt.Errorf("CSV is missing required column %q", "name")
	}

	cell := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var teams []TeamSnapshot
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}

		team := TeamSnapshot{Name: cell(record, "name")}
		if team.Name == "" {
			continue
		}

		if team.Steps, err = parseRequiredInt(cell(record, "steps")); err != nil {
			return nil, fmt.Errorf("line %d steps: %w", line, err)
		}
		if team.ActivityKm, err = parseRequiredFloat(cell(record, "activityKm")); err != nil {
			return nil, fmt.Errorf("line %d activityKm: %w", line, err)
		}
		if team.Missions, err = parseRequiredInt(cell(record, "missions")); err != nil {
			return nil, fmt.Errorf("line %d missions: %w", line, err)
		}
		if team.Quizzes, err = parseRequiredInt(cell(record, "quizzes")); err != nil {
			return nil, fmt.Errorf("line %d quizzes: %w", line, err)
		}
		if team.Photos, err = parseRequiredInt(cell(record, "photos")); err != nil {
			return nil, fmt.Errorf("line %d photos: %w", line, err)
		}

		if raw := cell(record, "teamPoints"); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d teamPoints: %w", line, err)
			}
			team.TeamPoints = &v
		}
		if raw := cell(record, "boostActiveCount"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d boostActiveCount: %w", line, err)
			}
			team.BoostActiveCount = &v
		}

		teams = append(teams, team)
	}

	return teams, nil
}

func parseRequiredInt(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

func parseRequiredFloat(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseFloat(raw, 64)
}
