package mapping

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/eslsoft/tafsirnet/internal/entity"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("wrap: %w", entity.ErrEmptyQuestion), http.StatusBadRequest},
		{entity.ErrInvalidFilter, http.StatusBadRequest},
		{entity.ErrInvalidToken, http.StatusUnauthorized},
		{entity.ErrAccessDenied, http.StatusForbidden},
		{fmt.Errorf("%w: 1:1", entity.ErrDuplicateVerse), http.StatusConflict},
		{entity.ErrProviderNotEnabled, http.StatusServiceUnavailable},
		{fmt.Errorf("generate: %w", entity.ErrProviderFailure), http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := HTTPStatus(c.err); got != c.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestToErrorBodyRetry(t *testing.T) {
	if !ToErrorBody(entity.ErrProviderFailure).Retry {
		t.Fatalf("provider failures should be retryable")
	}
	if ToErrorBody(entity.ErrEmptyQuestion).Retry {
		t.Fatalf("validation errors should not be retryable")
	}
}

func TestEntryRoundTrip(t *testing.T) {
	in := &entity.CommentaryEntry{SurahNumber: 1, SurahName: " Al-Fatiha ", AyahNumber: 1, Commentary: " text ", Keywords: []string{"mercy"}}
	dto := ToEntry(in)
	if dto.Reference != "1:1" {
		t.Fatalf("unexpected reference %q", dto.Reference)
	}
	back := FromEntry(dto)
	if back.SurahName != "Al-Fatiha" || back.Commentary != "text" || back.Ref() != in.Ref() {
		t.Fatalf("unexpected entry %+v", back)
	}
	if ToEntry(nil) != nil || FromEntry(nil) != nil || ToExplanation(nil) != nil {
		t.Fatalf("nil inputs should map to nil")
	}
}
