// Package metadata resolves document IDs to the artist and title shown next to
// a search result. Mappings come either from the offline mapping file, held in
// memory, or from the tracks table in PostgreSQL.
package metadata

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Lyrics-Search-Engine/pkg/errors"
)

// Track is the display metadata for one document.
type Track struct {
	ID     string `json:"doc_id"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// Provider looks up a document's metadata. Lookup returns an error wrapping
// errors.ErrNotFound when the document has no mapping.
type Provider interface {
	Lookup(ctx context.Context, docID string) (Track, error)
}

// FileProvider serves mappings loaded from a document_id,artist,title file.
// It is read-only after construction.
type FileProvider struct {
	tracks map[string]Track
}

// LoadFile reads the mapping file at path.
func LoadFile(path string) (*FileProvider, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening metadata file %s: %w", path, err)
	}
	defer f.Close()

	p, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("loading metadata file %s: %w", path, err)
	}
	slog.Default().With("component", "metadata").Info("metadata loaded",
		"path", path,
		"tracks", p.Len(),
	)
	return p, nil
}

// Parse reads one mapping per line. Titles may contain commas, so only the
// first two commas separate fields. Blank lines are skipped and a repeated ID
// keeps its last mapping.
func Parse(r io.Reader) (*FileProvider, error) {
	p := &FileProvider{tracks: make(map[string]Track)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, ",", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: %w: expected document_id,artist,title", lineNo, apperrors.ErrMalformedMetadata)
		}
		id := strings.TrimSpace(fields[0])
		if id == "" {
			return nil, fmt.Errorf("line %d: %w: empty document id", lineNo, apperrors.ErrMalformedMetadata)
		}
		p.tracks[id] = Track{ID: id, Artist: fields[1], Title: fields[2]}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	return p, nil
}

func (p *FileProvider) Lookup(_ context.Context, docID string) (Track, error) {
	t, ok := p.tracks[docID]
	if !ok {
		return Track{}, fmt.Errorf("track %s: %w", docID, apperrors.ErrNotFound)
	}
	return t, nil
}

// Has reports whether docID has a mapping. It matches the engine's document
// filter signature.
func (p *FileProvider) Has(docID string) bool {
	_, ok := p.tracks[docID]
	return ok
}

func (p *FileProvider) Len() int {
	return len(p.tracks)
}

// Tracks returns every mapping ordered by document ID.
func (p *FileProvider) Tracks() []Track {
	out := make([]Track, 0, len(p.tracks))
	for _, t := range p.tracks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Resolve looks up every ID, leaving Artist and Title empty for documents
// without a mapping. Errors other than not-found are returned.
func Resolve(ctx context.Context, p Provider, docIDs []string) ([]Track, error) {
	out := make([]Track, len(docIDs))
	for i, id := range docIDs {
		t, err := p.Lookup(ctx, id)
		switch {
		case err == nil:
			out[i] = t
		case apperrors.Is(err, apperrors.ErrNotFound):
			out[i] = Track{ID: id}
		default:
			return nil, fmt.Errorf("resolving %s: %w", id, err)
		}
	}
	return out, nil
}
