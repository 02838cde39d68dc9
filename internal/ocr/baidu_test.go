package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bankscan/internal/config"
)

func newBaiduServer(t *testing.T, ocrBody any, tokenCalls *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/2.0/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(tokenCalls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "ak", r.URL.Query().Get("client_id"))
		assert.Equal(t, "sk", r.URL.Query().Get("client_secret"))
		json.NewEncoder(w).Encode(map[string]any{"access_token": "tok-1", "expires_in": 2592000}) //nolint:errcheck
	})
	mux.HandleFunc("/ocr", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "tok-1", r.URL.Query().Get("access_token"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "CHN_ENG", r.PostForm.Get("language_type"))
		assert.NotEmpty(t, r.PostForm.Get("image"))
		json.NewEncoder(w).Encode(ocrBody) //nolint:errcheck
	})
	return httptest.NewServer(mux)
}

func baiduConfig(srvURL string) config.BaiduConfig {
	return config.BaiduConfig{
		ProviderCommon: enabled(0.8),
		APIKey:         "ak",
		SecretKey:      "sk",
		URL:            srvURL + "/ocr",
		TokenURL:       srvURL + "/oauth/2.0/token",
	}
}

func TestBaiduOCR_Recognize(t *testing.T) {
	var tokenCalls int32
	srv := newBaiduServer(t, map[string]any{
		"words_result": []map[string]any{
			{"words": "中国农业银行"},
			{"words": "72120078801000002112"},
		},
	}, &tokenCalls)
	defer srv.Close()

	b := NewBaidu(baiduConfig(srv.URL))
	frags, err := b.Recognize(context.Background(), testPayload())
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "中国农业银行", frags[0].Text)
	assert.InDelta(t, 0.9, frags[0].Confidence, 0.0001)
	assert.Equal(t, "baidu", frags[0].SourceEngine)

	// Token is cached across calls.
	_, err = b.Recognize(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&tokenCalls))
}

func TestBaiduOCR_ProbabilityFiltered(t *testing.T) {
	var tokenCalls int32
	srv := newBaiduServer(t, map[string]any{
		"words_result": []map[string]any{
			{"words": "中国农业银行", "probability": map[string]any{"average": 0.97}},
			{"words": "噪声", "probability": map[string]any{"average": 0.42}},
		},
	}, &tokenCalls)
	defer srv.Close()

	frags, err := NewBaidu(baiduConfig(srv.URL)).Recognize(context.Background(), testPayload())
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.InDelta(t, 0.97, frags[0].Confidence, 0.0001)
}

func TestBaiduOCR_ErrorCode(t *testing.T) {
	var tokenCalls int32
	srv := newBaiduServer(t, map[string]any{"error_code": 17, "error_msg": "Open api daily request limit reached"}, &tokenCalls)
	defer srv.Close()

	_, err := NewBaidu(baiduConfig(srv.URL)).Recognize(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "baidu error 17")
}

func TestBaiduOCR_TokenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "invalid_client", "error_description": "unknown client id"}) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewBaidu(baiduConfig(srv.URL)).Recognize(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_client")
}
