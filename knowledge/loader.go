// Package knowledge grounds prompts with medicine monographs.
// Monographs ship embedded in the binary and are indexed into Bluge at
// boot; searches return the cards handed to the agents' prompts.
package knowledge

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	"med-lab/errors"
)

//go:embed monographs/*.txt
var monographsFolder embed.FS

// Monograph is one parsed medicine sheet.
type Monograph struct {
	Name    string
	Aliases []string
	Body    string
}

type Loader struct {
	fs fs.FS
}

func NewLoader(f fs.FS) *Loader {
	return &Loader{fs: f}
}

func NewEmbeddedLoader() *Loader {
	return NewLoader(monographsFolder)
}

// LoadAll parses every monograph under the given directory.
// Format: a "name:" header line, an optional "aliases:" line with
// comma-separated names, a blank line, then the body.
func (l *Loader) LoadAll(path string) ([]Monograph, error) {
	entries, err := fs.ReadDir(l.fs, path)
	if err != nil {
		return nil, err
	}

	var monographs []Monograph
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := fs.ReadFile(l.fs, path+"/"+entry.Name())
		if err != nil {
			return nil, err
		}
		m, err := parse(data)
		if err != nil {
			return nil, err
		}
		monographs = append(monographs, m)
	}

	if len(monographs) == 0 {
		return nil, errors.ErrEmptyMonographs
	}
	return monographs, nil
}

func parse(data []byte) (Monograph, error) {
	var m Monograph
	var body []string

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "name:"):
			m.Name = strings.TrimSpace(strings.TrimPrefix(trimmed, "name:"))
		case strings.HasPrefix(trimmed, "aliases:"):
			for _, alias := range strings.Split(strings.TrimPrefix(trimmed, "aliases:"), ",") {
				if alias = strings.TrimSpace(alias); alias != "" {
					m.Aliases = append(m.Aliases, alias)
				}
			}
		default:
			body = append(body, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return Monograph{}, err
	}

	m.Body = strings.TrimSpace(strings.Join(body, "\n"))
	if m.Name == "" || m.Body == "" {
		return Monograph{}, errors.ErrEmptyMonographs
	}
	return m, nil
}
