// Package chunkstore maps legal chunks to the flat hash layout the search
// stores index, and owns the chunk index definition.
package chunkstore

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/lexrag/internal/db"
	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/language"
	"github.com/kailas-cloud/lexrag/internal/domain/legal"
)

// Key layout of the chunk index.
var (
	KeyPrefix = domain.KeyPrefix + "chunk:"
	IndexName = domain.KeyPrefix + "chunks:idx"
)

// ChunkKey returns the hash key of a chunk.
func ChunkKey(id string) string {
	return KeyPrefix + id
}

// ToHash converts an embedded chunk into a hash write.
func ToHash(c *domain.EmbeddedChunk) (db.HashSetItem, error) {
	meta, err := json.Marshal(c.Chunk.Metadata)
	if err != nil {
		return db.HashSetItem{}, fmt.Errorf("marshal metadata %s: %w", c.Chunk.ID, err)
	}
	return db.HashSetItem{
		Key: ChunkKey(c.Chunk.ID),
		Fields: map[string]string{
			db.FieldID:         c.Chunk.ID,
			db.FieldDocumentID: c.Chunk.DocumentID,
			db.FieldContent:    c.Chunk.Content,
			db.FieldLanguage:   string(c.Chunk.Language),
			db.FieldDomain:     string(c.Chunk.Domain),
			db.FieldArticle:    c.Chunk.ArticleNumber,
			db.FieldMetadata:   string(meta),
			db.FieldVector:     vectorToBytes(c.Vector),
		},
	}, nil
}

// FromEntry rebuilds a chunk from a search hit. The id comes from the id
// field when present, otherwise from the key without its prefix, which covers
// stores keyed by bare id.
func FromEntry(e *db.SearchEntry) (domain.Chunk, error) {
	id := e.Fields[db.FieldID]
	if id == "" {
		id = strings.TrimPrefix(e.Key, KeyPrefix)
	}
	if id == "" {
		return domain.Chunk{}, fmt.Errorf("search entry %q has no chunk id", e.Key)
	}

	var meta domain.ChunkMetadata
	if raw := e.Fields[db.FieldMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			return domain.Chunk{}, fmt.Errorf("decode metadata %s: %w", id, err)
		}
	}

	return domain.Chunk{
		ID:            id,
		DocumentID:    e.Fields[db.FieldDocumentID],
		Content:       e.Fields[db.FieldContent],
		Language:      language.Language(e.Fields[db.FieldLanguage]),
		Domain:        legal.Tag(e.Fields[db.FieldDomain]),
		ArticleNumber: e.Fields[db.FieldArticle],
		Metadata:      meta,
	}, nil
}

// ReturnFields lists the hash fields a search must return to rebuild a chunk.
func ReturnFields() []string {
	return []string{
		db.FieldID, db.FieldDocumentID, db.FieldContent, db.FieldLanguage,
		db.FieldDomain, db.FieldArticle, db.FieldMetadata,
	}
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
