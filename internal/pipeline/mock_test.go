package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/bankscan/internal/model"
	"github.com/sells-group/bankscan/internal/preprocess"
)

type mockProvider struct {
	mock.Mock
	id model.ProviderID
}

func (m *mockProvider) ID() model.ProviderID { return m.id }
func (m *mockProvider) Enabled() bool        { return true }

func (m *mockProvider) Recognize(ctx context.Context, payload preprocess.Payload) ([]model.TextFragment, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.TextFragment), args.Error(1)
}
