package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/handler/mocks"
	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/models"
	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/service"
	"github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/store"
	dErrors "github.com/soyYisus/jaak-kyc-demo/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type ConfigHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestConfigHandlerSuite(t *testing.T) {
	suite.Run(t, new(ConfigHandlerSuite))
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func (s *ConfigHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, discard).Register(s.router)
}

func (s *ConfigHandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *ConfigHandlerSuite) TestGetConfig() {
	s.service.EXPECT().Get(gomock.Any()).Return(models.SessionConfig{
		ShortKey: "abc1234",
		Steps:    []models.StepRef{{Key: "OTO"}},
	})

	rec := s.do(http.MethodGet, "/api/config", "")

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"shortKey":"abc1234","steps":[{"key":"OTO"}]}`, rec.Body.String())
}

func (s *ConfigHandlerSuite) TestSaveConfig() {
	s.Run("valid steps are saved", func() {
		saved := models.SessionConfig{Steps: []models.StepRef{{Key: "A"}, {Key: "B"}}}
		s.service.EXPECT().SaveSteps(gomock.Any(), []string{"A", "B"}).Return(saved, nil)

		rec := s.do(http.MethodPost, "/api/config", `{"steps":["A","B"]}`)

		s.Equal(http.StatusOK, rec.Code)
		var resp models.SaveStepsResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.True(resp.Success)
		s.Equal(saved, resp.Config)
	})

	s.Run("empty array is accepted", func() {
		s.service.EXPECT().SaveSteps(gomock.Any(), []string{}).Return(models.Fallback(), nil)

		rec := s.do(http.MethodPost, "/api/config", `{"steps":[]}`)
		s.Equal(http.StatusOK, rec.Code)
	})

	for name, body := range map[string]string{
		"steps not an array":  `{"steps":"not-an-array"}`,
		"steps missing":       `{}`,
		"steps null":          `{"steps":null}`,
		"array of non-string": `{"steps":[1,2]}`,
		"body not json":       `steps=A`,
		"empty body":          ``,
	} {
		s.Run(name+" is rejected", func() {
			rec := s.do(http.MethodPost, "/api/config", body)

			s.Equal(http.StatusBadRequest, rec.Code)
			var resp map[string]any
			s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
			s.Equal(false, resp["success"])
			s.NotEmpty(resp["message"])
		})
	}

	s.Run("persistence failure is a 500", func() {
		s.service.EXPECT().SaveSteps(gomock.Any(), []string{"A"}).
			Return(models.SessionConfig{}, dErrors.Wrap(errors.New("disk"), dErrors.CodeInternal, "failed to save configuration"))

		rec := s.do(http.MethodPost, "/api/config", `{"steps":["A"]}`)

		s.Equal(http.StatusInternalServerError, rec.Code)
		s.Contains(rec.Body.String(), "failed to save configuration")
	})
}

// Round trip through the real service and file store.
func TestSaveThenGetRoundTrip(t *testing.T) {
	st := store.NewFileStore(filepath.Join(t.TempDir(), "config.json"))
	svc := service.New(st, discard, nil)
	r := chi.NewRouter()
	New(svc, discard).Register(r)

	post := httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader(`{"steps":["A","B"]}`))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, post)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/config", nil).WithContext(context.Background()))
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.SessionConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, []models.StepRef{{Key: "A"}, {Key: "B"}}, got.Steps)
	assert.Equal(t, "", got.ShortKey)
}
