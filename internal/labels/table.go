package labels

import (
	"fmt"
	"image"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Point is a dot center in image pixels.
type Point struct {
	X int `yaml:"x"`
	Y int `yaml:"y"`
}

func (p Point) Image() image.Point {
	return image.Point{X: p.X, Y: p.Y}
}

// Table maps an image file name to the dot centers found for every class.
type Table struct {
	files map[string]map[Class][]Point
}

func NewTable() *Table {
	return &Table{files: make(map[string]map[Class][]Point)}
}

// Add records a dot. The file row is created with empty lists for all classes.
func (t *Table) Add(file string, c Class, p Point) {
	t.Ensure(file)
	t.files[file][c] = append(t.files[file][c], p)
}

// Ensure creates an empty row for file, so files without dots still appear.
func (t *Table) Ensure(file string) {
	if _, ok := t.files[file]; ok {
		return
	}
	row := make(map[Class][]Point, len(All))
	for _, c := range All {
		row[c] = []Point{}
	}
	t.files[file] = row
}

// Files returns the file names in sorted order.
func (t *Table) Files() []string {
	names := make([]string, 0, len(t.files))
	for name := range t.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Points returns the dots of one class in one file, in insertion order.
func (t *Table) Points(file string, c Class) []Point {
	return t.files[file][c]
}

// Counts sums dots per class over all files.
func (t *Table) Counts() map[Class]int {
	counts := make(map[Class]int, len(All))
	for _, row := range t.files {
		for c, pts := range row {
			counts[c] += len(pts)
		}
	}
	return counts
}

type tableFile struct {
	Classes []Class    `yaml:"classes"`
	Files   []tableRow `yaml:"files"`
}

type tableRow struct {
	Name   string            `yaml:"name"`
	Points map[Class][]Point `yaml:"points"`
}

// WriteTable writes a table to a YAML file
func WriteTable(t *Table, path string) error {
	doc := tableFile{Classes: All}
	for _, name := range t.Files() {
		doc.Files = append(doc.Files, tableRow{Name: name, Points: t.files[name]})
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadTable reads a table from a YAML file
func ReadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc tableFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	t := NewTable()
	for _, row := range doc.Files {
		t.Ensure(row.Name)
		for c, pts := range row.Points {
			if _, err := Parse(string(c)); err != nil {
				return nil, fmt.Errorf("%s: %w", row.Name, err)
			}
			for _, p := range pts {
				t.Add(row.Name, c, p)
			}
		}
	}
	return t, nil
}
