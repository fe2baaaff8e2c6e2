package triage

import (
	"bufio"
	"bytes"
	"embed"
	"io/fs"
	"strings"

	"med-lab/errors"
)

//go:embed keywords/emergency/* keywords/routing/*
var keywordsFolder embed.FS

// KeywordData carries the result of the loading process including metadata
// for logging.
type KeywordData struct {
	Words     []string
	Languages []string
}

// KeywordLoader is responsible for reading and parsing keyword lists from
// embedded files.
type KeywordLoader struct {
	fs fs.FS
}

func NewKeywordLoader(f fs.FS) *KeywordLoader {
	return &KeywordLoader{fs: f}
}

// NewEmbeddedLoader returns a loader over the keyword lists shipped with
// the binary.
func NewEmbeddedLoader() *KeywordLoader {
	return NewKeywordLoader(keywordsFolder)
}

// LoadAll scans the given directory path, identifying .txt files as language
// dictionaries and parsing their contents into a unique list of words.
func (l *KeywordLoader) LoadAll(path string) (*KeywordData, error) {
	entries, err := fs.ReadDir(l.fs, path)
	if err != nil {
		return nil, err
	}

	var languages []string
	uniqueWords := make(map[string]struct{})

	for _, entry := range entries {
		// We only process files, skipping subdirectories
		if entry.IsDir() {
			continue
		}

		// Track the language based on the filename (e.g., "fr.txt" -> "fr")
		lang := strings.TrimSuffix(entry.Name(), ".txt")
		languages = append(languages, lang)

		words, err := l.readWords(path + "/" + entry.Name())
		if err != nil {
			return nil, err
		}
		for _, w := range words {
			uniqueWords[w] = struct{}{}
		}
	}

	if len(uniqueWords) == 0 {
		return nil, errors.ErrEmptyWords
	}

	words := make([]string, 0, len(uniqueWords))
	for w := range uniqueWords {
		words = append(words, w)
	}

	return &KeywordData{
		Words:     words,
		Languages: languages,
	}, nil
}

// LoadIntentLists reads one keyword file per intent under the given path.
// The file name carries the intent (e.g., "dosage.txt" -> "dosage").
func (l *KeywordLoader) LoadIntentLists(path string) (map[string][]string, error) {
	entries, err := fs.ReadDir(l.fs, path)
	if err != nil {
		return nil, err
	}

	lists := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		intent := strings.TrimSuffix(entry.Name(), ".txt")
		words, err := l.readWords(path + "/" + entry.Name())
		if err != nil {
			return nil, err
		}
		if len(words) == 0 {
			return nil, errors.ErrEmptyWords
		}
		lists[intent] = words
	}

	if len(lists) == 0 {
		return nil, errors.ErrEmptyWords
	}
	return lists, nil
}

func (l *KeywordLoader) readWords(name string) ([]string, error) {
	data, err := fs.ReadFile(l.fs, name)
	if err != nil {
		return nil, err
	}

	// Use a scanner to handle different line endings (\n vs \r\n) correctly
	var words []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			words = append(words, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return words, nil
}
