// Package dataset reads and writes the employee roster CSV.
//
// Required columns are ID, Name, Role, Position, Experience and Skills.
// Availability defaults to Free and Current_Tasks to empty when the columns
// are absent. Columns the service does not know are carried through
// unchanged on write.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/okian/matchmaker/internal/domain/model"
)

// Column names.
const (
	ColID           = "ID"
	ColName         = "Name"
	ColRole         = "Role"
	ColPosition     = "Position"
	ColExperience   = "Experience"
	ColSkills       = "Skills"
	ColAvailability = "Availability"
	ColCurrentTasks = "Current_Tasks"
)

var requiredColumns = []string{ColID, ColName, ColRole, ColPosition, ColExperience, ColSkills}

var knownColumns = map[string]bool{
	ColID: true, ColName: true, ColRole: true, ColPosition: true, ColExperience: true,
	ColSkills: true, ColAvailability: true, ColCurrentTasks: true,
}

// Table remembers the header layout and unknown column values of a loaded
// file so it can be written back faithfully.
type Table struct {
	mu     sync.Mutex
	header []string
	extras map[string]map[string]string // employee id -> column -> value
}

// Read parses a roster from r.
func Read(r io.Reader) (*Table, []model.Employee, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: empty file", ErrMissingColumn)
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	for _, req := range requiredColumns {
		if _, ok := col[req]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, req)
		}
	}

	t := &Table{header: header, extras: make(map[string]map[string]string)}
	for _, c := range []string{ColAvailability, ColCurrentTasks} {
		if _, ok := col[c]; !ok {
			t.header = append(t.header, c)
		}
	}

	var employees []model.Employee
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, nil, fmt.Errorf("line %d: %w", line, err)
		}
		field := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		id := field(ColID)
		if id == "" {
			return nil, nil, fmt.Errorf("%w: line %d has no %s", ErrInvalidRow, line, ColID)
		}
		avail, err := model.ParseAvailability(field(ColAvailability))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: line %d: %w", ErrInvalidRow, line, err)
		}
		employees = append(employees, model.Employee{
			ID:           id,
			Name:         field(ColName),
			Role:         field(ColRole),
			Position:     field(ColPosition),
			Experience:   field(ColExperience),
			Skills:       model.ParseList(field(ColSkills)),
			Availability: avail,
			CurrentTasks: model.SplitList(field(ColCurrentTasks)),
		})

		for name, i := range col {
			if knownColumns[name] || i >= len(rec) {
				continue
			}
			if t.extras[id] == nil {
				t.extras[id] = make(map[string]string)
			}
			t.extras[id][name] = rec[i]
		}
	}
	return t, employees, nil
}

// Write serializes employees using the table's header.
func (t *Table) Write(w io.Writer, employees []model.Employee) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return err
	}
	row := make([]string, len(t.header))
	for i := range employees {
		e := &employees[i]
		if err := checkListItems(e); err != nil {
			return err
		}
		for j, h := range t.header {
			row[j] = t.value(e, h)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// checkListItems refuses list values that would not survive a reload.
func checkListItems(e *model.Employee) error {
	for _, list := range [][]string{e.Skills, e.CurrentTasks} {
		for _, item := range list {
			if strings.Contains(item, ",") {
				return fmt.Errorf("%w: employee %s: %q contains a comma", model.ErrInvalidInput, e.ID, item)
			}
		}
	}
	return nil
}

func (t *Table) value(e *model.Employee, column string) string {
	switch column {
	case ColID:
		return e.ID
	case ColName:
		return e.Name
	case ColRole:
		return e.Role
	case ColPosition:
		return e.Position
	case ColExperience:
		return e.Experience
	case ColSkills:
		return model.JoinList(e.Skills)
	case ColAvailability:
		return string(e.Availability)
	case ColCurrentTasks:
		return model.JoinList(e.CurrentTasks)
	default:
		return t.extras[e.ID][column]
	}
}

// File binds a Table to a path on disk.
type File struct {
	path  string
	table *Table
}

// Load opens path and parses the roster.
func Load(path string) (*File, []model.Employee, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	t, employees, err := Read(f)
	if err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &File{path: path, table: t}, employees, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Save rewrites the whole file through a temp file and rename.
func (f *File) Save(employees []model.Employee) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if fi, err := os.Stat(f.path); err == nil {
		_ = tmp.Chmod(fi.Mode().Perm())
	}

	if err := f.table.Write(tmp, employees); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}
