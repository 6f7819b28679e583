package pagination

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func paramsFor(t *testing.T, query string) Params {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/"+query, nil)
	return FromContext(e.NewContext(req, httptest.NewRecorder()))
}

func TestFromContext_Defaults(t *testing.T) {
	p := paramsFor(t, "")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected default offset 0, got %d", p.Offset)
	}
}

func TestFromContext_CustomValues(t *testing.T) {
	p := paramsFor(t, "?limit=50&offset=10")
	if p.Limit != 50 {
		t.Errorf("expected limit 50, got %d", p.Limit)
	}
	if p.Offset != 10 {
		t.Errorf("expected offset 10, got %d", p.Offset)
	}
}

func TestFromContext_MaxLimit(t *testing.T) {
	if p := paramsFor(t, "?limit=500"); p.Limit != MaxLimit {
		t.Errorf("expected limit capped at %d, got %d", MaxLimit, p.Limit)
	}
}

func TestFromContext_InvalidValues(t *testing.T) {
	p := paramsFor(t, "?limit=abc&offset=-5")
	if p.Limit != DefaultLimit {
		t.Errorf("expected default limit for garbage input, got %d", p.Limit)
	}
	if p.Offset != 0 {
		t.Errorf("expected negative offset clamped to 0, got %d", p.Offset)
	}
}

func TestNewResponse(t *testing.T) {
	data := []string{"a", "b"}
	resp := NewResponse(data, 50, Params{Limit: 20, Offset: 0})

	if resp.Total != 50 {
		t.Errorf("expected total 50, got %d", resp.Total)
	}
	if !resp.HasMore {
		t.Error("expected has_more to be true")
	}

	last := NewResponse(data, 50, Params{Limit: 20, Offset: 40})
	if last.HasMore {
		t.Error("expected has_more to be false on last page")
	}
}

func TestParams_Navigation(t *testing.T) {
	tests := []struct {
		p        Params
		total    int
		hasNext  bool
		hasPrev  bool
		next     int
		previous int
	}{
		{Params{Limit: 10, Offset: 0}, 25, true, false, 10, 0},
		{Params{Limit: 10, Offset: 10}, 25, true, true, 20, 0},
		{Params{Limit: 10, Offset: 20}, 25, false, true, 30, 10},
		{Params{Limit: 10, Offset: 5}, 0, false, true, 15, 0},
	}

	for _, tt := range tests {
		if got := tt.p.HasNext(tt.total); got != tt.hasNext {
			t.Errorf("%+v HasNext(%d) = %v, want %v", tt.p, tt.total, got, tt.hasNext)
		}
		if got := tt.p.HasPrevious(); got != tt.hasPrev {
			t.Errorf("%+v HasPrevious() = %v, want %v", tt.p, got, tt.hasPrev)
		}
		if got := tt.p.NextOffset(); got != tt.next {
			t.Errorf("%+v NextOffset() = %d, want %d", tt.p, got, tt.next)
		}
		if got := tt.p.PreviousOffset(); got != tt.previous {
			t.Errorf("%+v PreviousOffset() = %d, want %d", tt.p, got, tt.previous)
		}
	}
}
