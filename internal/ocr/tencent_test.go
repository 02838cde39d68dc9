package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bankscan/internal/config"
)

func TestTencentOCR_Recognize(t *testing.T) {
	var srvHost string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GeneralBasicOCR", r.Header.Get("X-TC-Action"))
		assert.Equal(t, "2018-11-19", r.Header.Get("X-TC-Version"))
		assert.Equal(t, "ap-beijing", r.Header.Get("X-TC-Region"))
		assert.Equal(t, "1700000000", r.Header.Get("X-TC-Timestamp"))
		assert.Equal(t, tencentContentType, r.Header.Get("Content-Type"))

		var req tencentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, testPayload().Base64(), req.ImageBase64)

		body, _ := json.Marshal(req)
		assert.Equal(t, signTC3("sid", "skey", srvHost, body, 1700000000), r.Header.Get("Authorization"))

		w.Write([]byte(`{"Response":{"TextDetections":[
			{"DetectedText":"中国建设银行","Confidence":99},
			{"DetectedText":"模糊","Confidence":40},
			{"DetectedText":"61050186550000000455","Confidence":97}
		],"RequestId":"r-1"}}`)) //nolint:errcheck
	}))
	defer srv.Close()
	u, _ := url.Parse(srv.URL)
	srvHost = u.Host

	tc := NewTencent(config.TencentConfig{
		ProviderCommon: enabled(0.8),
		SecretID:       "sid",
		SecretKey:      "skey",
		Region:         "ap-beijing",
		Endpoint:       srv.URL,
	})
	tc.now = func() time.Time { return time.Unix(1700000000, 0) }

	frags, err := tc.Recognize(context.Background(), testPayload())
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "中国建设银行", frags[0].Text)
	assert.InDelta(t, 0.99, frags[0].Confidence, 0.0001)
	assert.Equal(t, "61050186550000000455", frags[1].Text)
	assert.Equal(t, "tencent", frags[1].SourceEngine)
}

func TestTencentOCR_ErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"Response":{"Error":{"Code":"AuthFailure.SignatureFailure","Message":"bad signature"},"RequestId":"r-2"}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	tc := NewTencent(config.TencentConfig{ProviderCommon: enabled(0.8), SecretID: "sid", SecretKey: "skey", Endpoint: srv.URL})
	_, err := tc.Recognize(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AuthFailure.SignatureFailure")
}

func TestSignTC3_Format(t *testing.T) {
	auth := signTC3("AKIDEXAMPLE", "secret", "ocr.tencentcloudapi.com", []byte(`{}`), 1551113065)

	assert.True(t, strings.HasPrefix(auth, "TC3-HMAC-SHA256 Credential=AKIDEXAMPLE/2019-02-25/ocr/tc3_request, "), auth)
	assert.Contains(t, auth, "SignedHeaders=content-type;host, Signature=")

	sig := auth[strings.LastIndex(auth, "=")+1:]
	assert.Len(t, sig, 64)

	// Deterministic for identical input, sensitive to the secret.
	assert.Equal(t, auth, signTC3("AKIDEXAMPLE", "secret", "ocr.tencentcloudapi.com", []byte(`{}`), 1551113065))
	assert.NotEqual(t, auth, signTC3("AKIDEXAMPLE", "other", "ocr.tencentcloudapi.com", []byte(`{}`), 1551113065))
}
