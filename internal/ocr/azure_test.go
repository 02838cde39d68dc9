package ocr

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bankscan/internal/config"
)

func TestAzureOCR_Recognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/ocr"), r.URL.Path)
		assert.Equal(t, "az-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, "zh-Hans", r.URL.Query().Get("language"))
		assert.Equal(t, "true", r.URL.Query().Get("detectOrientation"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, testPayload().Data, body)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"language":"zh-Hans","regions":[{"boundingBox":"0,0,10,10","lines":[
			{"boundingBox":"0,0,10,10","words":[{"boundingBox":"0,0,5,5","text":"上海浦东发展银行"}]},
			{"boundingBox":"0,0,10,10","words":[{"boundingBox":"0,0,5,5","text":"余额:"},{"boundingBox":"5,0,5,5","text":"8888.88"}]},
			{"boundingBox":"0,0,10,10","words":[]}
		]}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	a := NewAzure(config.AzureConfig{ProviderCommon: enabled(0.8), SubscriptionKey: "az-key", Endpoint: srv.URL + "/"})
	frags, err := a.Recognize(context.Background(), testPayload())
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "上海浦东发展银行", frags[0].Text)
	assert.Equal(t, "余额: 8888.88", frags[1].Text)
	assert.Equal(t, "azure", frags[1].SourceEngine)
	assert.InDelta(t, 0.9, frags[1].Confidence, 0.0001)
}

func TestAzureOCR_HTTPErrorNoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":{"code":"Unavailable","message":"try later"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	a := NewAzure(config.AzureConfig{ProviderCommon: enabled(0.8), SubscriptionKey: "az-key", Endpoint: srv.URL})
	start := time.Now()
	_, err := a.Recognize(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ocr: azure API call")
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 5*time.Second, "a failed call must not wait out a retry delay")
}

func TestAzureOCR_RequiresEndpoint(t *testing.T) {
	a := NewAzure(config.AzureConfig{ProviderCommon: enabled(0.8), SubscriptionKey: "az-key"})
	assert.False(t, a.Enabled())
}

func TestNewAzure_DefaultLanguage(t *testing.T) {
	a := NewAzure(config.AzureConfig{ProviderCommon: enabled(0.8), SubscriptionKey: "az-key", Endpoint: "https://example.cognitiveservices.azure.com"})
	assert.Equal(t, "zh-Hans", a.cfg.Language)
}
