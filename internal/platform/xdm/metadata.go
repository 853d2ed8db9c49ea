package xdm

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ccdstore/ccdstore/internal/platform/ccd"
)

// DocumentEntry is the registry metadata for one document in an XDM package,
// taken from an ebXML RIM ExtrinsicObject. Every field is optional: registry
// producers vary widely in which slots they emit, so absent slots simply leave
// the zero value.
type DocumentEntry struct {
	URI                string
	CreationTime       string
	RepositoryUniqueID string
	Hash               string
	Size               *int64
	AuthorInstitution  string
}

// ParseMetadata reads a METADATA.XML registry document and returns one entry
// per ExtrinsicObject. Malformed XML is an error; missing or empty slots are
// not.
func ParseMetadata(data []byte) ([]DocumentEntry, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("xdm: metadata is empty")
	}

	root := &ccd.Element{}
	dec := xml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(root); err != nil {
		return nil, fmt.Errorf("xdm: parse metadata: %w", err)
	}

	var out []DocumentEntry
	objects := root.Descendants("ExtrinsicObject")
	if root.Name == "ExtrinsicObject" {
		objects = append([]*ccd.Element{root}, objects...)
	}
	for _, obj := range objects {
		slots := collectSlots(obj)
		entry := DocumentEntry{
			URI:                slots["URI"],
			CreationTime:       slots["creationTime"],
			RepositoryUniqueID: slots["repositoryUniqueId"],
			Hash:               slots["hash"],
			AuthorInstitution:  institutionName(slots["authorInstitution"]),
		}
		if raw := slots["size"]; raw != "" {
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				entry.Size = &n
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

// collectSlots gathers every Slot in the subtree into name -> first value.
// Slots nested under Classification elements (authorInstitution lives there)
// are picked up by the same walk.
func collectSlots(obj *ccd.Element) map[string]string {
	slots := make(map[string]string)
	for _, slot := range obj.Descendants("Slot") {
		name := slot.Attr("name")
		if name == "" {
			continue
		}
		if _, ok := slots[name]; ok {
			continue
		}
		if v := slot.FindPath("ValueList", "Value"); v != nil {
			slots[name] = v.CollapsedText()
		}
	}
	return slots
}

// institutionName reduces an XON-encoded authorInstitution value such as
// "General Hospital^^^^^&1.2.3&ISO" to the organization name component.
func institutionName(raw string) string {
	name, _, _ := strings.Cut(raw, "^")
	return strings.TrimSpace(name)
}

// LoadMetadata walks dir for METADATA.XML files and indexes their entries by
// the base name of each entry's URI, which is how documents inside a package
// are matched to registry rows. Packages without metadata yield an empty map.
func LoadMetadata(dir string) (map[string]DocumentEntry, error) {
	index := make(map[string]DocumentEntry)
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(d.Name(), "METADATA.XML") {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		entries, err := ParseMetadata(data)
		if err != nil {
			return fmt.Errorf("xdm: %s: %w", p, err)
		}
		for _, e := range entries {
			if e.URI == "" {
				continue
			}
			key := path.Base(strings.ReplaceAll(e.URI, "\\", "/"))
			if _, ok := index[key]; !ok {
				index[key] = e
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}
