package memory

import (
	"context"
	"testing"

	"github.com/pkiops/pkihealth/internal/domain"
)

func TestAppendAndList(t *testing.T) {
	s := New()
	ctx := context.Background()

	recs, err := s.List(ctx)
	if err != nil || len(recs) != 0 {
		t.Fatalf("fresh store: %v records, err %v", recs, err)
	}

	want := domain.Record{
		Timestamp:  domain.Now(),
		Kind:       domain.KindPDFCheck,
		Target:     "https://repository.eidpki.ee/cp.pdf",
		Status:     domain.StatusOK,
		CodeOrPort: "200",
	}
	if err := s.Append(ctx, want); err != nil {
		t.Fatalf("append: %v", err)
	}

	recs, err = s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 || recs[0] != want {
		t.Fatalf("got %+v", recs)
	}

	// Mutating the returned slice must not touch the store.
	recs[0].Status = domain.StatusFail
	again, _ := s.List(ctx)
	if again[0].Status != domain.StatusOK {
		t.Fatalf("store mutated through List result")
	}
}

func TestAppend_RejectsInvalid(t *testing.T) {
	s := New()
	bad := domain.Record{Kind: domain.KindPDFCheck}
	if err := s.Append(context.Background(), bad); err == nil {
		t.Fatalf("expected validation error")
	}
}
