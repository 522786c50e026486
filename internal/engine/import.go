package engine

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// ImportResult summarizes a bulk swimmer import.
type ImportResult struct {
	Added   []string
	Skipped []ImportError
}

// ImportError describes a CSV row that was not imported.
type ImportError struct {
	Line int
	ID   string
	Err  error
}

func (e ImportError) Error() string {
	return fmt.Sprintf("line %d (%s): %v", e.Line, e.ID, e.Err)
}

// ImportSwimmers registers the swimmers of a CSV with the columns id and name.
// A header row starting with "id" is skipped. Invalid or duplicate rows are
// reported and skipped. Viewers receive a single snapshot at the end, also
// when reading stops at a malformed line.
func (e *Engine) ImportSwimmers(ctx context.Context, actor Actor, r io.Reader) (*ImportResult, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	result := &ImportResult{}
	defer func() {
		log.Info("swimmers imported", "added", len(result.Added), "skipped", len(result.Skipped), "by", actor.Username)
		if len(result.Added) > 0 {
			e.publish(ctx)
		}
	}()

	line := 0
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return result, &Error{Code: CodeMalformedRequest, Err: fmt.Errorf("failed to read csv: %w", err)}
		}
		if line == 1 && len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[0]), "id") {
			continue
		}
		if len(record) < 2 {
			result.Skipped = append(result.Skipped, ImportError{Line: line, Err: ErrMalformed})
			continue
		}

		id := strings.TrimSpace(record[0])
		if err := e.ValidateID(id); err != nil {
			result.Skipped = append(result.Skipped, ImportError{Line: line, ID: id, Err: err})
			continue
		}
		name, err := validateName(record[1])
		if err != nil {
			result.Skipped = append(result.Skipped, ImportError{Line: line, ID: id, Err: err})
			continue
		}
		if _, err := e.db.CreateSwimmer(ctx, id, name); err != nil {
			result.Skipped = append(result.Skipped, ImportError{Line: line, ID: id, Err: storeError(err, id)})
			continue
		}
		result.Added = append(result.Added, id)
	}
	return result, nil
}
