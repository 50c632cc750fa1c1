package lexrag

import (
	"github.com/kailas-cloud/lexrag/internal/cache"
	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/language"
	"github.com/kailas-cloud/lexrag/internal/domain/legal"
	"github.com/kailas-cloud/lexrag/internal/usecase/ingest"
	"github.com/kailas-cloud/lexrag/internal/usecase/retrieval"
)

// Language is a supported corpus language.
type Language = language.Language

// Supported languages. NoLanguage lets the pipeline detect it.
const (
	NoLanguage Language = ""
	Arabic              = language.Arabic
	French              = language.French
)

// LegalDomain tags a chunk with its area of law.
type LegalDomain = legal.Tag

// Legal domains.
const (
	AnyDomain     LegalDomain = legal.Undetermined
	PenalLaw                  = legal.PenalLaw
	CivilLaw                  = legal.CivilLaw
	FamilyLaw                 = legal.FamilyLaw
	LaborLaw                  = legal.LaborLaw
	CommercialLaw             = legal.CommercialLaw
	RealEstate                = legal.RealEstate
	TaxLaw                    = legal.TaxLaw
	Consumer                  = legal.Consumer
)

// Document is a legal text to ingest.
type Document = domain.Document

// Chunk is a stored unit of legal text.
type Chunk = domain.Chunk

// RetrievedChunk is a chunk with its fused relevance score in [0, 1].
type RetrievedChunk = domain.RetrievedChunk

// Citation points an answer back to its source.
type Citation = domain.Citation

// Answer is a grounded response.
type Answer = domain.Answer

// RetrieveOptions are the per-query retrieval parameters. Zero values select
// the defaults: threshold 0.30 and 10 chunks.
type RetrieveOptions = retrieval.Options

// IngestReport summarizes one ingested document.
type IngestReport = ingest.Report

// CacheStats is a snapshot of query cache effectiveness.
type CacheStats = cache.Stats

// Prompt is one generation request.
type Prompt = domain.Prompt

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status string            // "ok", "degraded", "error"
	Checks map[string]string // component → "ok"/"error"
}
