package poi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ogayu22918/Play-Plan/internal/api"
	"github.com/ogayu22918/Play-Plan/internal/cache"
)

func getNearby(t *testing.T, h *HandlerImpl, query string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Nearby(rr, httptest.NewRequest(http.MethodGet, "/api/pois/nearby?"+query, nil))
	return rr
}

func TestHandler_Nearby(t *testing.T) {
	client := new(MockClient)
	client.On("Around", mock.Anything, 35.68, 139.77, 2000, mock.Anything).Return(sampleElements(), nil).Once()
	h := NewHandlerImpl(newTestService(client), time.Second, testLogger())

	rr := getNearby(t, h, "lat=35.68&lon=139.77&radius_km=2&tags=cafe,museum")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp NearbyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Degraded)
	require.NotEmpty(t, resp.Places)
	assert.Equal(t, "近いカフェ", resp.Places[0].Name)
	assert.Contains(t, resp.Places[0].OSMURL, "openstreetmap.org/node/2")
	client.AssertExpectations(t)
}

func TestHandler_Nearby_InvalidQuery(t *testing.T) {
	h := NewHandlerImpl(newTestService(new(MockClient)), time.Second, testLogger())

	tests := []struct {
		name   string
		query  string
		detail string
	}{
		{"missing lat", "lon=139.7", "lat: field required"},
		{"bad lon", "lat=35&lon=east", "lon: must be of type number"},
		{"lat out of range", "lat=91&lon=139", "lat: must be between -90 and 90"},
		{"zero radius", "lat=35&lon=139&radius_km=0", "radius_km: must be between 1 and 500"},
		{"non integer radius", "lat=35&lon=139&radius_km=1.5", "radius_km: must be of type integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := getNearby(t, h, tt.query)
			assert.Equal(t, http.StatusBadRequest, rr.Code)

			var payload api.ErrorPayload
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
			assert.Equal(t, "invalid_request", payload.Error)
			assert.Contains(t, payload.Details, tt.detail)
		})
	}
}

func TestHandler_Nearby_UpstreamFailureIsDegraded(t *testing.T) {
	client := new(MockClient)
	client.On("Around", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("boom"))
	h := NewHandlerImpl(newTestService(client), time.Second, testLogger())

	rr := getNearby(t, h, "lat=35.68&lon=139.77&tags=cafe")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp NearbyResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Degraded)
	assert.Equal(t, "upstream_error", string(resp.Reason))
	assert.Empty(t, resp.Places)
}

func TestHandler_Nearby_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	svc := NewServiceImpl(new(MockClient), cfg, cache.NewManualClock(time.Now()), testLogger())

	rr := getNearby(t, NewHandlerImpl(svc, time.Second, testLogger()), "lat=1&lon=2&tags=cafe")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
