package main

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lexrag/internal/domain"
	"github.com/kailas-cloud/lexrag/internal/domain/language"
	"github.com/kailas-cloud/lexrag/internal/domain/legal"
	ingestuc "github.com/kailas-cloud/lexrag/internal/usecase/ingest"
)

type fakeIngester struct {
	titles []string
	failOn string
}

func (f *fakeIngester) Ingest(_ context.Context, doc *domain.Document) (ingestuc.Report, error) {
	if doc.Title == f.failOn {
		return ingestuc.Report{}, errors.New("embedding provider down")
	}
	f.titles = append(f.titles, doc.Title)
	return ingestuc.Report{
		DocumentID: "id-" + doc.Title,
		Chunks:     map[language.Language]int{language.French: 1},
		Tokens:     10,
	}, nil
}

func TestLoadDocuments(t *testing.T) {
	docs, err := loadDocuments("testdata/documents.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].Title != "Code pénal" || docs[0].Domain != legal.PenalLaw || docs[0].OfficialRef != "Dahir n° 1.59.413" {
		t.Errorf("doc[0] = %+v", docs[0])
	}
	if docs[1].ContentAr == "" || docs[1].ContentFr != "" {
		t.Errorf("doc[1] content = %q / %q", docs[1].ContentAr, docs[1].ContentFr)
	}
}

func TestLoadDocuments_Errors(t *testing.T) {
	for _, path := range []string{"testdata/missing.yaml", "testdata/empty.yaml"} {
		if _, err := loadDocuments(path); err == nil {
			t.Errorf("%s: expected error", path)
		}
	}
}

func TestLoadDocuments_SampleCorpus(t *testing.T) {
	docs, err := loadDocuments("../../data/sample_documents.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, d := range docs {
		if !d.Domain.IsValid() {
			t.Errorf("%q: invalid domain %q", d.Title, d.Domain)
		}
	}
}

func TestIngestFile(t *testing.T) {
	f := &fakeIngester{}
	if err := ingestFile(context.Background(), f, "testdata/documents.yaml", zap.NewNop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.titles) != 2 {
		t.Errorf("ingested %v", f.titles)
	}
}

func TestIngestFile_StopsOnFirstFailure(t *testing.T) {
	f := &fakeIngester{failOn: "Code pénal"}
	if err := ingestFile(context.Background(), f, "testdata/documents.yaml", zap.NewNop()); err == nil {
		t.Fatal("expected error")
	}
	if len(f.titles) != 0 {
		t.Errorf("documents after the failure were ingested: %v", f.titles)
	}
}
