package runstore

import (
	"database/sql"
	"errors"
	"time"

	"tubescribe/internal/pipeline"
	"tubescribe/internal/services"
)

func scanRecord(scanner interface{ Scan(dest ...any) error }, resultJSON *sql.NullString) (*Record, error) {
	var (
		id           string
		url          string
		videoID      sql.NullString
		title        sql.NullString
		model        string
		window       float64
		language     sql.NullString
		state        string
		errorKind    sql.NullString
		errorMessage sql.NullString
		segments     int
		startedRaw   string
		finishedRaw  sql.NullString
		elapsedMS    int64
	)
	dest := []any{
		&id,
		&url,
		&videoID,
		&title,
		&model,
		&window,
		&language,
		&state,
		&errorKind,
		&errorMessage,
		&segments,
		&startedRaw,
		&finishedRaw,
		&elapsedMS,
	}
	if resultJSON != nil {
		dest = append(dest, resultJSON)
	}
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	record := &Record{
		ID:            id,
		URL:           url,
		VideoID:       videoID.String,
		Title:         title.String,
		Model:         model,
		WindowSeconds: window,
		Language:      language.String,
		State:         pipeline.State(state),
		ErrorKind:     services.Kind(errorKind.String),
		ErrorMessage:  errorMessage.String,
		SegmentCount:  segments,
		ElapsedMS:     elapsedMS,
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		record.StartedAt = started
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			record.FinishedAt = &finished
		}
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// timeLayout has a fixed-width fraction so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func nullableTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return formatTime(*value)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
