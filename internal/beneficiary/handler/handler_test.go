package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"sahara/internal/aggregate"
	"sahara/internal/beneficiary/service"
	"sahara/internal/beneficiary/store"
	"sahara/internal/directory"
	"sahara/internal/settings"
	"sahara/pkg/testutil"
)

// Justification: the handlers own request parsing, actor extraction and error
// mapping; running them against the real service keeps status codes honest.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	agents []string
	admin  string
	now    time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.now = time.Date(2026, 2, 7, 10, 0, 0, 0, time.UTC)
	dir := directory.NewInMemory()
	s.agents = make([]string, 4)
	for i := range s.agents {
		s.agents[i] = uuid.NewString()
	}
	s.admin = uuid.NewString()
	s.Require().NoError(dir.Seed(
		[]string{s.agents[0] + "@TR-2026-01", s.agents[1], s.agents[2], s.agents[3]},
		[]string{s.admin},
	))

	svc, err := service.New(store.NewInMemory(), dir, settings.NewInMemory(settings.Defaults()), aggregate.NewInMemory())
	s.Require().NoError(err)

	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Register(r)
	s.router = r
}

func (s *HandlerSuite) do(method, path, actor string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req = testutil.WithActor(req, actor, "")
	}
	req = testutil.WithTime(req, s.now)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func registerBody() map[string]any {
	return map[string]any{
		"authority":   uuid.NewString(),
		"disaster_id": "TR-2026-01",
		"name":        "Zeynep Kaya",
		"location": map[string]any{
			"country": "tr", "region": "Hatay", "city": "Iskenderun",
			"latitude": 36.58, "longitude": 36.17,
		},
		"family_size":     3,
		"damage_severity": 7,
	}
}

func (s *HandlerSuite) register() string {
	rec := s.do(http.MethodPost, "/beneficiaries", s.agents[0], registerBody())
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var resp BeneficiaryResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	return resp.ID
}

func (s *HandlerSuite) TestRegister() {
	s.Run("created", func() {
		rec := s.do(http.MethodPost, "/beneficiaries", s.agents[0], registerBody())
		s.Equal(http.StatusCreated, rec.Code)

		var resp BeneficiaryResponse
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
		s.Equal("pending", resp.Status)
		s.Equal("TR", resp.Location.Country)
		s.Equal(s.agents[0], resp.RegisteredBy)
		s.Empty(resp.Approvers)
	})

	s.Run("missing actor", func() {
		rec := s.do(http.MethodPost, "/beneficiaries", "", registerBody())
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("invalid family size", func() {
		body := registerBody()
		body["family_size"] = 0
		rec := s.do(http.MethodPost, "/beneficiaries", s.agents[0], body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown field", func() {
		body := registerBody()
		body["wallet"] = "abc"
		rec := s.do(http.MethodPost, "/beneficiaries", s.agents[0], body)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("agent outside disaster scope", func() {
		body := registerBody()
		body["disaster_id"] = "GR-2026-02"
		rec := s.do(http.MethodPost, "/beneficiaries", s.agents[0], body)
		s.Equal(http.StatusForbidden, rec.Code)
	})
}

func (s *HandlerSuite) TestApprovalFlow() {
	beneficiaryID := s.register()
	path := "/beneficiaries/" + beneficiaryID + "/approvals"

	var resp ApprovalResponse
	for i := 1; i <= 3; i++ {
		rec := s.do(http.MethodPost, path, s.agents[i], nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		resp = ApprovalResponse{}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	}
	s.True(resp.Verified)
	s.Equal("verified", resp.Status)
	s.Equal(3, resp.ApprovalCount)

	rec := s.do(http.MethodPost, path, s.agents[0], nil)
	s.Equal(http.StatusConflict, rec.Code)

	var errResp struct {
		Error string `json:"error"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&errResp))
	s.Equal("already_verified", errResp.Error)
}

func (s *HandlerSuite) TestFlagReviewAndUpdate() {
	beneficiaryID := s.register()
	base := "/beneficiaries/" + beneficiaryID

	rec := s.do(http.MethodPost, base+"/flag", s.agents[1], map[string]any{"reason": " "})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, base+"/flag", s.agents[1], map[string]any{"reason": "duplicate documents"})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPatch, base, s.agents[0], map[string]any{"name": "Zeynep K."})
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, base+"/review", s.agents[1], map[string]any{"approve": true})
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, base+"/review", s.admin, map[string]any{"notes": "missing decision"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, base+"/review", s.admin, map[string]any{"approve": true, "notes": "verified in person"})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPatch, base, s.agents[0], map[string]any{"name": "Zeynep K."})
	s.Require().Equal(http.StatusOK, rec.Code)
	var resp BeneficiaryResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&resp))
	s.Equal("Zeynep K.", resp.Name)
	s.Equal("pending", resp.Status)
}

func (s *HandlerSuite) TestGetAndList() {
	beneficiaryID := s.register()
	s.register()

	rec := s.do(http.MethodGet, "/beneficiaries/"+beneficiaryID, "", nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/beneficiaries/not-a-uuid", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodGet, "/beneficiaries/"+uuid.NewString(), "", nil)
	s.Equal(http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodGet, "/disasters/TR-2026-01/beneficiaries?status=pending&limit=1", "", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list ListResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&list))
	s.Equal(1, list.Count)

	rec = s.do(http.MethodGet, "/disasters/TR-2026-01/beneficiaries?limit=-4", "", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}
