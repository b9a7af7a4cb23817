package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/soyYisus/jaak-kyc-demo/internal/kyc/models"
	"github.com/soyYisus/jaak-kyc-demo/internal/kyc/provider"
	"github.com/soyYisus/jaak-kyc-demo/internal/kyc/service/mocks"
	"github.com/soyYisus/jaak-kyc-demo/internal/platform/metrics"
	sessionModels "github.com/soyYisus/jaak-kyc-demo/internal/sessionconfig/models"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Provider,ConfigService
type KYCServiceSuite struct {
	suite.Suite
	ctx      context.Context
	provider *mocks.MockProvider
	config   *mocks.MockConfigService
	metrics  *metrics.Metrics
	service  *Service
}

func TestKYCServiceSuite(t *testing.T) {
	suite.Run(t, new(KYCServiceSuite))
}

func (s *KYCServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = context.Background()
	s.provider = mocks.NewMockProvider(ctrl)
	s.config = mocks.NewMockConfigService(ctrl)
	s.metrics = metrics.NewWithRegistry(prometheus.NewRegistry())
	s.service = New(s.provider, s.config, slog.New(slog.NewTextHandler(io.Discard, nil)), s.metrics)
}

func (s *KYCServiceSuite) TestCreateSession() {
	s.Run("applies defaults and stores the short key", func() {
		want := models.FlowRequest{
			Name:            models.DefaultName,
			Flow:            models.DefaultFlow,
			CountryDocument: models.DefaultCountryDocument,
			FlowType:        models.DefaultFlowType,
			Verification:    map[string]string{"EMAIL": "", "SMS": "", "WHATSAPP": ""},
		}
		s.provider.EXPECT().CreateSession(gomock.Any(), want).
			Return(json.RawMessage(`{"sessionUrl":"https://kyc.qa.example.ai/session/dz7fZH1"}`), nil)
		s.config.EXPECT().SetShortKey(gomock.Any(), "dz7fZH1").Return(sessionModels.SessionConfig{ShortKey: "dz7fZH1"}, nil)

		session, err := s.service.CreateSession(s.ctx, models.FlowRequest{})

		s.Require().NoError(err)
		s.Require().NotNil(session.ShortKey)
		s.Equal("dz7fZH1", *session.ShortKey)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.SessionsCreated.WithLabelValues("success")))
	})

	s.Run("caller fields win over defaults", func() {
		s.provider.EXPECT().CreateSession(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, r models.FlowRequest) (json.RawMessage, error) {
				s.Equal("ana", r.Name)
				s.Equal("JAAK_DEMO_FLOW", r.Flow)
				s.Equal(models.DefaultCountryDocument, r.CountryDocument)
				s.Equal(map[string]string{"SMS": "+525512345678"}, r.Verification)
				return json.RawMessage(`{"id":"x"}`), nil
			})

		session, err := s.service.CreateSession(s.ctx, models.FlowRequest{
			Name:         "ana",
			Flow:         "JAAK_DEMO_FLOW",
			Verification: map[string]string{"SMS": "+525512345678"},
		})
		s.Require().NoError(err)
		s.Nil(session.ShortKey)
	})

	s.Run("short key persistence failure is not fatal", func() {
		s.provider.EXPECT().CreateSession(gomock.Any(), gomock.Any()).
			Return(json.RawMessage(`{"sessionUrl":"https://x/session/abc"}`), nil)
		s.config.EXPECT().SetShortKey(gomock.Any(), "abc").Return(sessionModels.SessionConfig{}, errors.New("disk"))

		session, err := s.service.CreateSession(s.ctx, models.FlowRequest{})
		s.Require().NoError(err)
		s.Equal("abc", *session.ShortKey)
	})

	s.Run("upstream error is returned untouched", func() {
		upstream := provider.NewUpstreamError(provider.ErrorAuthentication, http.StatusUnauthorized, []byte(`{}`), "unauthorized", nil)
		s.provider.EXPECT().CreateSession(gomock.Any(), gomock.Any()).Return(nil, upstream)

		_, err := s.service.CreateSession(s.ctx, models.FlowRequest{})

		s.Same(upstream, err)
		s.Equal(1.0, testutil.ToFloat64(s.metrics.SessionsCreated.WithLabelValues("upstream_error")))
	})
}
