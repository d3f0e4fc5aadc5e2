package usecase

import (
	"context"
	"encoding/json"
	"net/url"

	"go.uber.org/zap"

	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/core/domain"
	"github.com/imkamalbhandari/kamal-bhandari-driplytics/internal/infra/mlclient"
)

// AnalyticsService relays requests to the external prediction service and
// records history for authenticated callers. The service itself holds no
// sneaker data; it is a thin pass-through.
type AnalyticsService struct {
	ml     *mlclient.Client
	users  *UserService
	logger *zap.Logger
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(ml *mlclient.Client, users *UserService, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{ml: ml, users: users, logger: log}
}

// Predict forwards a price prediction request. When userID is set, the
// returned prediction is appended to the user's history.
func (s *AnalyticsService) Predict(ctx context.Context, userID string, body json.RawMessage) (*mlclient.Response, error) {
	resp, err := s.ml.Post(ctx, "/predict", body)
	if err != nil {
		return nil, err
	}

	if userID != "" && resp.StatusCode < 300 {
		s.recordPrediction(ctx, userID, body, resp.Body)
	}

	return resp, nil
}

// MarketAnalysis forwards a market analysis request.
func (s *AnalyticsService) MarketAnalysis(ctx context.Context, body json.RawMessage) (*mlclient.Response, error) {
	return s.ml.Post(ctx, "/market-analysis", body)
}

// HypeScore forwards a hype score request.
func (s *AnalyticsService) HypeScore(ctx context.Context, body json.RawMessage) (*mlclient.Response, error) {
	return s.ml.Post(ctx, "/hype-score", body)
}

// GoogleTrends forwards a trends lookup.
func (s *AnalyticsService) GoogleTrends(ctx context.Context, body json.RawMessage) (*mlclient.Response, error) {
	return s.ml.Post(ctx, "/google-trends", body)
}

// SmartSearch forwards a natural-language search request.
func (s *AnalyticsService) SmartSearch(ctx context.Context, body json.RawMessage) (*mlclient.Response, error) {
	return s.ml.Post(ctx, "/smart-search", body)
}

// SearchSneakers forwards a catalog search. When userID is set, the query and
// result count are appended to the user's search history.
func (s *AnalyticsService) SearchSneakers(ctx context.Context, userID string, query url.Values) (*mlclient.Response, error) {
	resp, err := s.ml.Get(ctx, "/sneakers/search", query)
	if err != nil {
		return nil, err
	}

	if userID != "" && resp.StatusCode < 300 {
		if q := query.Get("q"); q != "" {
			if err := s.users.RecordSearch(ctx, userID, q, countResults(resp.Body)); err != nil {
				s.logger.Warn("record search history failed",
					zap.String("user_id", userID),
					zap.Error(err),
				)
			}
		}
	}

	return resp, nil
}

// Brands forwards a brand list request.
func (s *AnalyticsService) Brands(ctx context.Context) (*mlclient.Response, error) {
	return s.ml.Get(ctx, "/brands", nil)
}

func (s *AnalyticsService) recordPrediction(ctx context.Context, userID string, request, response json.RawMessage) {
	var parsed struct {
		SneakerID      string  `json:"sneaker_id"`
		SneakerName    string  `json:"sneaker_name"`
		PredictedPrice float64 `json:"predicted_price"`
		Confidence     float64 `json:"confidence"`
	}
	if err := json.Unmarshal(response, &parsed); err != nil {
		return
	}

	if parsed.SneakerName == "" {
		var req struct {
			SneakerID   string `json:"sneaker_id"`
			SneakerName string `json:"sneaker_name"`
		}
		if err := json.Unmarshal(request, &req); err == nil {
			parsed.SneakerName = req.SneakerName
			if parsed.SneakerID == "" {
				parsed.SneakerID = req.SneakerID
			}
		}
	}
	if parsed.SneakerName == "" {
		return
	}

	entry := domain.PredictionHistoryEntry{
		SneakerID:      parsed.SneakerID,
		SneakerName:    parsed.SneakerName,
		PredictedPrice: parsed.PredictedPrice,
		Confidence:     parsed.Confidence,
	}
	if err := s.users.RecordPrediction(ctx, userID, entry); err != nil {
		s.logger.Warn("record prediction history failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// countResults tolerates both a bare array and an object wrapping one.
func countResults(body json.RawMessage) int {
	var list []json.RawMessage
	if err := json.Unmarshal(body, &list); err == nil {
		return len(list)
	}

	var wrapped struct {
		Results []json.RawMessage `json:"results"`
		Total   int               `json:"total"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if wrapped.Total > 0 {
			return wrapped.Total
		}
		return len(wrapped.Results)
	}

	return 0
}
