package ocr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/bankscan/internal/config"
	"github.com/sells-group/bankscan/pkg/anthropic"
)

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

func TestAnthropicOCR_Recognize(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return req.Model == defaultAnthropicModel &&
			len(req.Messages) == 1 &&
			len(req.Messages[0].Images) == 1 &&
			req.Messages[0].Images[0].MediaType == "image/jpeg" &&
			req.Messages[0].Images[0].Data == testPayload().Base64()
	})).Return(&anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: "上海浦东发展银行\n\n余额: 8888.88\n"}},
	}, nil)

	a := NewAnthropicWithClient(config.AnthropicConfig{ProviderCommon: enabled(0.8), APIKey: "k"}, mc)
	frags, err := a.Recognize(context.Background(), testPayload())
	require.NoError(t, err)
	require.Len(t, frags, 2)
	assert.Equal(t, "上海浦东发展银行", frags[0].Text)
	assert.Equal(t, "余额: 8888.88", frags[1].Text)
	assert.Equal(t, "anthropic", frags[0].SourceEngine)

	mc.AssertExpectations(t)
}

func TestAnthropicOCR_Error(t *testing.T) {
	mc := new(mockAnthropicClient)
	mc.On("CreateMessage", mock.Anything, mock.Anything).Return(nil, errors.New("overloaded"))

	a := NewAnthropicWithClient(config.AnthropicConfig{ProviderCommon: enabled(0.8), APIKey: "k", Model: "claude-haiku-4-5-20251001"}, mc)
	_, err := a.Recognize(context.Background(), testPayload())
	assert.EqualError(t, err, "overloaded")
}

func TestAnthropicOCR_DisabledSkipsClient(t *testing.T) {
	mc := new(mockAnthropicClient)
	a := NewAnthropicWithClient(config.AnthropicConfig{APIKey: "k"}, mc)

	frags, err := a.Recognize(context.Background(), testPayload())
	assert.NoError(t, err)
	assert.Nil(t, frags)
	mc.AssertNotCalled(t, "CreateMessage", mock.Anything, mock.Anything)
}
