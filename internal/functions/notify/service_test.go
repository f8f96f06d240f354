// internal/functions/notify/service_test.go
package notify

import (
	"context"
	"fmt"
	"testing"
	"time"

	"congregation-functions/internal/common/errors"
	"congregation-functions/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

type mockSESService struct {
	SendTemplatedEmailFunc func(ctx context.Context, params *ses.SendTemplatedEmailInput, optFns ...func(*ses.Options)) (*ses.SendTemplatedEmailOutput, error)
	calls                  []*ses.SendTemplatedEmailInput
}

func (m *mockSESService) SendTemplatedEmail(ctx context.Context, params *ses.SendTemplatedEmailInput, optFns ...func(*ses.Options)) (*ses.SendTemplatedEmailOutput, error) {
	m.calls = append(m.calls, params)
	if m.SendTemplatedEmailFunc != nil {
		return m.SendTemplatedEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendTemplatedEmailOutput{}, nil
}

func newTestService(t *testing.T, db *sqlmock.Sqlmock, sesMock *mockSESService) (*Service, func()) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	if db != nil {
		*db = mock
	}
	cfg := &Config{FromEmail: "no-reply@congregation.example"}
	svc := NewService(cfg, NewDirectory(sqlDB), sesMock, logger.NewTestLogger(t))
	return svc, func() { sqlDB.Close() }
}

func TestDispatch_Donation(t *testing.T) {
	var mock sqlmock.Sqlmock
	sesMock := &mockSESService{}
	svc, cleanup := newTestService(t, &mock, sesMock)
	defer cleanup()

	mock.ExpectQuery("JOIN member_roles mr").
		WithArgs(pq.Array([]string{"Elder"})).
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name", "email"}).
			AddRow("Ruth", "Okafor", "ruth@example.org").
			AddRow("Joel", "Mbeki", "joel@example.org"))
	mock.ExpectQuery("JOIN member_roles mr").
		WithArgs(pq.Array([]string{"Apostle"})).
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name", "email"}).
			AddRow("Ada", "Eze", "ada@example.org"))

	result, err := svc.Dispatch(context.Background(), &Event{
		Type: TypeDonation,
		Data: map[string]interface{}{
			"donor_name": "Grace",
			"amount":     50,
		},
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusSent, result.Status)
	assert.NotEmpty(t, result.DispatchID)
	assert.Len(t, sesMock.calls, 1)

	sent := sesMock.calls[0]
	assert.Equal(t, "donation", *sent.Template)
	assert.Equal(t, []string{"ruth@example.org", "joel@example.org"}, sent.Destination.ToAddresses)
	assert.Equal(t, []string{"ada@example.org"}, sent.Destination.CcAddresses)
	assert.Contains(t, *sent.TemplateData, `"SUBJECT":"New Donation"`)
	assert.Contains(t, *sent.TemplateData, `"DONOR_NAME":"Grace"`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatch_UnknownEventType(t *testing.T) {
	sesMock := &mockSESService{}
	svc, cleanup := newTestService(t, nil, sesMock)
	defer cleanup()

	_, err := svc.Dispatch(context.Background(), &Event{
		Type: "member-of-the-month",
		Data: map[string]interface{}{"name": "Ruth"},
	})

	assert.Error(t, err)
	stdErr, ok := err.(*errors.StandardError)
	assert.True(t, ok)
	assert.Equal(t, errors.ErrCodeUnknownEventType, stdErr.Code)
	assert.Empty(t, sesMock.calls)
}

func TestDispatch_NoRecipientsIsANoOp(t *testing.T) {
	var mock sqlmock.Sqlmock
	sesMock := &mockSESService{}
	svc, cleanup := newTestService(t, &mock, sesMock)
	defer cleanup()

	mock.ExpectQuery("JOIN member_roles mr").
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name", "email"}))

	result, err := svc.Dispatch(context.Background(), &Event{
		Type: TypeSuggestion,
		Data: map[string]interface{}{"text": "more chairs"},
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusNoRecipients, result.Status)
	assert.Empty(t, sesMock.calls)
}

func TestDispatch_DeliveryFailureDegrades(t *testing.T) {
	var mock sqlmock.Sqlmock
	sesMock := &mockSESService{
		SendTemplatedEmailFunc: func(ctx context.Context, params *ses.SendTemplatedEmailInput, optFns ...func(*ses.Options)) (*ses.SendTemplatedEmailOutput, error) {
			return nil, fmt.Errorf("MessageRejected: address not verified")
		},
	}
	svc, cleanup := newTestService(t, &mock, sesMock)
	defer cleanup()

	mock.ExpectQuery("JOIN member_roles mr").
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name", "email"}).
			AddRow("Ruth", "Okafor", "ruth@example.org"))
	mock.ExpectQuery("JOIN member_roles mr").
		WillReturnRows(sqlmock.NewRows([]string{"first_name", "last_name", "email"}))

	result, err := svc.Dispatch(context.Background(), &Event{
		Type: TypeSuggestion,
		Data: map[string]interface{}{"text": "more chairs"},
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Contains(t, result.Message, "DELIVERY_FAILED")
}

func TestDispatch_ResolutionFailureDegrades(t *testing.T) {
	var mock sqlmock.Sqlmock
	sesMock := &mockSESService{}
	svc, cleanup := newTestService(t, &mock, sesMock)
	defer cleanup()

	mock.ExpectQuery("JOIN member_roles mr").
		WillReturnError(fmt.Errorf("connection refused"))

	result, err := svc.Dispatch(context.Background(), &Event{
		Type: TypeSupportRequest,
		Data: map[string]interface{}{"issue": "projector"},
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusDegraded, result.Status)
	assert.Empty(t, sesMock.calls)
}

func TestDispatch_TestModeRedirectsRecipients(t *testing.T) {
	sesMock := &mockSESService{}
	svc, cleanup := newTestService(t, nil, sesMock)
	defer cleanup()

	result, err := svc.Dispatch(context.Background(), &Event{
		Type:          TypeDonation,
		Data:          map[string]interface{}{"amount": 10},
		TestMode:      true,
		TestRecipient: "admin@example.org",
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusSent, result.Status)
	assert.Len(t, sesMock.calls, 1)

	sent := sesMock.calls[0]
	assert.Equal(t, []string{"admin@example.org"}, sent.Destination.ToAddresses)
	assert.Empty(t, sent.Destination.CcAddresses)
	assert.Contains(t, *sent.TemplateData, `[TEST] New Donation`)
}

func TestDispatch_AppliesConfiguredTimeout(t *testing.T) {
	var sawDeadline bool
	sesMock := &mockSESService{
		SendTemplatedEmailFunc: func(ctx context.Context, params *ses.SendTemplatedEmailInput, optFns ...func(*ses.Options)) (*ses.SendTemplatedEmailOutput, error) {
			_, sawDeadline = ctx.Deadline()
			return &ses.SendTemplatedEmailOutput{}, nil
		},
	}
	svc, cleanup := newTestService(t, nil, sesMock)
	defer cleanup()
	svc.config.Timeout = 30 * time.Second

	result, err := svc.Dispatch(context.Background(), &Event{
		Type:          TypeDonation,
		Data:          map[string]interface{}{"amount": 10},
		TestMode:      true,
		TestRecipient: "admin@example.org",
	})

	assert.NoError(t, err)
	assert.Equal(t, StatusSent, result.Status)
	assert.True(t, sawDeadline, "provider call should run under the dispatch deadline")
}

func TestDispatch_ValidationErrors(t *testing.T) {
	sesMock := &mockSESService{}
	svc, cleanup := newTestService(t, nil, sesMock)
	defer cleanup()

	tests := []struct {
		name  string
		event *Event
	}{
		{"missing event type", &Event{Data: map[string]interface{}{"a": 1}}},
		{"missing event data", &Event{Type: TypeDonation}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Dispatch(context.Background(), tt.event)

			stdErr, ok := err.(*errors.StandardError)
			assert.True(t, ok)
			assert.Equal(t, errors.ErrCodeValidationFailed, stdErr.Code)
		})
	}
	assert.Empty(t, sesMock.calls)
}
