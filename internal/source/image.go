package source

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".tif": true, ".tiff": true, ".bmp": true,
}

// ListImages returns image file names of dir. Names starting with a digit come first,
// ordered by the number before the first dot; the rest follow in name order.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExts[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}

	sort.Slice(names, func(i, j int) bool {
		ki, oki := numericKey(names[i])
		kj, okj := numericKey(names[j])
		switch {
		case oki && okj && ki != kj:
			return ki < kj
		case oki != okj:
			return oki
		}
		return names[i] < names[j]
	})
	return names, nil
}

func numericKey(name string) (int, bool) {
	if name == "" || name[0] < '0' || name[0] > '9' {
		return 0, false
	}
	head, _, _ := strings.Cut(name, ".")
	n, err := strconv.Atoi(head)
	if err != nil {
		return 0, false
	}
	return n, true
}
