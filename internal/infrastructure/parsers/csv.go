package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ersonp/raices-core/internal/domain/entities"
)

// CSVParser parses people from CSV format.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed people.
// Expected columns: id, first_name, last_name, gender, is_living,
// birth_year, death_year, relationships. Relationships are
// TYPE:personId[/STATUS] entries separated by ';'.
func (p *CSVParser) Parse(r io.Reader) ([]RawPerson, error) {
	reader := csv.NewReader(r)

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[strings.TrimSpace(col)] = i
	}

	requiredCols := []string{"first_name", "last_name", "gender"}
	for _, col := range requiredCols {
		if _, ok := colIndex[col]; !ok {
			return nil, fmt.Errorf("missing required column: %s", col)
		}
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to RawPeople.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]RawPerson, error) {
	var people []RawPerson
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		person, err := p.parseRecord(record, colIndex, lineNum)
		if err != nil {
			return nil, err
		}
		people = append(people, person)
	}

	return people, nil
}

// parseRecord converts a CSV record to a RawPerson.
func (p *CSVParser) parseRecord(record []string, colIndex map[string]int, lineNum int) (RawPerson, error) {
	person := RawPerson{
		ID:         getColumn(record, colIndex, "id"),
		FirstName:  getColumn(record, colIndex, "first_name"),
		LastName:   getColumn(record, colIndex, "last_name"),
		MaidenName: getColumn(record, colIndex, "maiden_name"),
		Gender:     strings.ToUpper(getColumn(record, colIndex, "gender")),
		Bio:        getColumn(record, colIndex, "bio"),
		LineNum:    lineNum,
	}

	if s := getColumn(record, colIndex, "is_living"); s != "" {
		living, err := strconv.ParseBool(s)
		if err != nil {
			return RawPerson{}, fmt.Errorf("line %d: invalid is_living value %q: %w", lineNum, s, err)
		}
		person.IsLiving = &living
	}

	var err error
	if person.Birth, err = yearEvent(record, colIndex, "birth_year", entities.EventBirth, lineNum); err != nil {
		return RawPerson{}, err
	}
	if person.Death, err = yearEvent(record, colIndex, "death_year", entities.EventDeath, lineNum); err != nil {
		return RawPerson{}, err
	}

	rels, err := parseRelationships(getColumn(record, colIndex, "relationships"), lineNum)
	if err != nil {
		return RawPerson{}, err
	}
	person.Relationships = rels

	return person, nil
}

func yearEvent(record []string, colIndex map[string]int, col string, t entities.EventType, lineNum int) (*entities.Event, error) {
	s := getColumn(record, colIndex, col)
	if s == "" {
		return nil, nil
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("line %d: invalid %s value %q: %w", lineNum, col, s, err)
	}
	return &entities.Event{
		Type: t,
		Date: &entities.DateInfo{Year: year, Display: s},
	}, nil
}

// parseRelationships decodes "CHILD:p2;SPOUSE:p3/FORMER".
func parseRelationships(s string, lineNum int) ([]RawRelationship, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var rels []RawRelationship
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		relType, rest, ok := strings.Cut(entry, ":")
		if !ok || rest == "" {
			return nil, fmt.Errorf("line %d: invalid relationship %q (want TYPE:personId)", lineNum, entry)
		}
		personID, status, _ := strings.Cut(rest, "/")
		rels = append(rels, RawRelationship{
			PersonID: personID,
			Type:     strings.ToUpper(relType),
			Status:   strings.ToUpper(status),
		})
	}
	return rels, nil
}

// getColumn safely retrieves a column value from a record.
func getColumn(record []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(record) {
		return strings.TrimSpace(record[idx])
	}
	return ""
}
