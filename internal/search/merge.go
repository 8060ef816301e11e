package search

import (
	"strconv"

	"tmdbaddon/searchservice/internal/domain"
)

// Merger accumulates metas from successive batches, dropping any record
// whose identifier was already taken by an earlier batch or earlier in the
// same batch.
type Merger struct {
	format    Formatter
	mediaType domain.MediaType
	genres    []domain.Genre
	seen      map[string]struct{}
	metas     []domain.MediaMeta
}

func NewMerger(format Formatter, mediaType domain.MediaType, genres []domain.Genre) *Merger {
	return &Merger{
		format:    format,
		mediaType: mediaType,
		genres:    genres,
		seen:      make(map[string]struct{}),
		metas:     make([]domain.MediaMeta, 0),
	}
}

// Decorator rewrites the display name of a freshly formatted meta.
type Decorator func(item domain.Candidate, meta *domain.MediaMeta)

// Append formats and adds the unseen items in order. It stops once the
// merger holds limit metas; limit <= 0 means no cap. It returns how many
// metas were added.
func (m *Merger) Append(items []domain.Candidate, decorate Decorator, limit int) int {
	added := 0
	for _, item := range items {
		if limit > 0 && len(m.metas) >= limit {
			break
		}
		id := domain.MetaID(item.ID)
		if _, dup := m.seen[id]; dup {
			continue
		}
		meta := m.format(item, m.mediaType, m.genres)
		meta.ID = id
		if decorate != nil {
			decorate(item, &meta)
		}
		m.seen[id] = struct{}{}
		m.metas = append(m.metas, meta)
		added++
	}
	return added
}

// Add appends an already formatted meta unless its identifier was seen.
func (m *Merger) Add(meta domain.MediaMeta) bool {
	if _, dup := m.seen[meta.ID]; dup {
		return false
	}
	m.seen[meta.ID] = struct{}{}
	m.metas = append(m.metas, meta)
	return true
}

func (m *Merger) Len() int {
	return len(m.metas)
}

func (m *Merger) Metas() []domain.MediaMeta {
	return m.metas
}

// DecorateName appends " (YYYY)" when the date has a year and " – CERT"
// when a certification is known.
func DecorateName(name, date, cert string) string {
	if year, ok := domain.ParseYear(date); ok {
		name += " (" + strconv.Itoa(year) + ")"
	}
	if cert != "" {
		name += " – " + cert
	}
	return name
}

func certificationDecorator(certs map[int]string) Decorator {
	return func(item domain.Candidate, meta *domain.MediaMeta) {
		meta.Name = DecorateName(meta.Name, item.Date(), certs[item.ID])
	}
}
