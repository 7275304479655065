package billing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/planboard/addin-backend/internal/billingprovider"
	"github.com/planboard/addin-backend/internal/models"
	"github.com/planboard/addin-backend/internal/rabbitmq"
	"github.com/planboard/addin-backend/internal/services/billing"
)

func newEvent(eventType, objectID, email, subscription string) *billing.ProviderEvent {
	event := &billing.ProviderEvent{ID: "evt_1", Type: eventType}
	event.Data.Object.ID = objectID
	event.Data.Object.CustomerEmail = email
	event.Data.Object.Subscription = subscription
	return event
}

func TestBillingService_HandleEvent_CheckoutCompleted(t *testing.T) {
	periodEnd := time.Now().UTC().Add(30 * 24 * time.Hour).Truncate(time.Second)
	remote := &billingprovider.Subscription{
		ID:               "sub_1",
		CustomerID:       "cus_123",
		CustomerEmail:    "buyer@example.com",
		Status:           "active",
		PriceID:          testPrices.Monthly,
		CurrentPeriodEnd: periodEnd.Unix(),
	}

	tests := []struct {
		name       string
		setupMocks func(m *mocks)
		wantErr    bool
	}{
		{
			name: "creates subscription for existing user",
			setupMocks: func(m *mocks) {
				m.provider.On("GetSubscription", mock.Anything, "sub_1").Return(remote, nil).Once()
				m.users.On("GetOrCreateUserByEmail", mock.Anything, "buyer@example.com").
					Return(&models.User{UID: "uid-1", Email: "buyer@example.com"}, nil).Once()
				m.users.On("SetBillingCustomerID", mock.Anything, "uid-1", "cus_123").Return(nil).Once()
				m.subs.On("UpsertActiveSubscription", mock.Anything, "evt_1", models.Subscription{
					UserUID:                "uid-1",
					ProviderSubscriptionID: "sub_1",
					Status:                 models.SubscriptionStatusActive,
					Plan:                   models.PlanMonthly,
					CurrentPeriodEnd:       periodEnd,
				}).Return(nil).Once()
				m.cache.On("Invalidate", mock.Anything, "subscription:buyer@example.com").Return(nil).Once()
			},
		},
		{
			name: "known billing customer is not overwritten",
			setupMocks: func(m *mocks) {
				existing := "cus_123"
				m.provider.On("GetSubscription", mock.Anything, "sub_1").Return(remote, nil).Once()
				m.users.On("GetOrCreateUserByEmail", mock.Anything, "buyer@example.com").
					Return(&models.User{UID: "uid-1", Email: "buyer@example.com", BillingCustomerID: &existing}, nil).Once()
				m.subs.On("UpsertActiveSubscription", mock.Anything, "evt_1", mock.Anything).Return(nil).Once()
				m.cache.On("Invalidate", mock.Anything, "subscription:buyer@example.com").Return(nil).Once()
			},
		},
		{
			name: "provider lookup failure",
			setupMocks: func(m *mocks) {
				m.provider.On("GetSubscription", mock.Anything, "sub_1").
					Return(nil, errors.New("provider unavailable")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			tt.setupMocks(m)

			event := newEvent(billing.EventCheckoutCompleted, "cs_1", "buyer@example.com", "sub_1")
			err := svc.HandleEvent(context.Background(), event)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}

			m.assertExpectations(t)
		})
	}
}

func TestBillingService_HandleEvent_InvoicePaid(t *testing.T) {
	svc, m := newService(t)
	m.subs.On("UpdateSubscriptionStatusByProviderID", mock.Anything, "evt_1", "sub_1",
		models.SubscriptionStatusActive).Return("buyer@example.com", models.PlanMonthly, nil).Once()
	m.cache.On("Invalidate", mock.Anything, "subscription:buyer@example.com").Return(nil).Once()

	event := newEvent(billing.EventInvoicePaid, "in_1", "", "sub_1")
	assert.NoError(t, svc.HandleEvent(context.Background(), event))

	m.assertExpectations(t)
}

func TestBillingService_HandleEvent_InvoiceFailed(t *testing.T) {
	tests := []struct {
		name       string
		setupMocks func(m *mocks)
	}{
		{
			name: "marks past due and publishes dunning notice",
			setupMocks: func(m *mocks) {
				m.subs.On("UpdateSubscriptionStatusByProviderID", mock.Anything, "evt_1", "sub_1",
					models.SubscriptionStatusPastDue).Return("buyer@example.com", models.PlanMonthly, nil).Once()
				m.cache.On("Invalidate", mock.Anything, "subscription:buyer@example.com").Return(nil).Once()
				m.publisher.On("Publish", rabbitmq.DunningQueue.RoutingKey,
					models.DunningNotice{Email: "buyer@example.com", Plan: models.PlanMonthly}).Return(nil).Once()
			},
		},
		{
			name: "publish failure does not fail the event",
			setupMocks: func(m *mocks) {
				m.subs.On("UpdateSubscriptionStatusByProviderID", mock.Anything, "evt_1", "sub_1",
					models.SubscriptionStatusPastDue).Return("buyer@example.com", models.PlanMonthly, nil).Once()
				m.cache.On("Invalidate", mock.Anything, "subscription:buyer@example.com").Return(nil).Once()
				m.publisher.On("Publish", mock.Anything, mock.Anything).
					Return(errors.New("broker down")).Once()
			},
		},
		{
			name: "unknown provider subscription is a no-op",
			setupMocks: func(m *mocks) {
				m.subs.On("UpdateSubscriptionStatusByProviderID", mock.Anything, "evt_1", "sub_1",
					models.SubscriptionStatusPastDue).Return("", "", nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, m := newService(t)
			tt.setupMocks(m)

			event := newEvent(billing.EventInvoiceFailed, "in_1", "", "sub_1")
			assert.NoError(t, svc.HandleEvent(context.Background(), event))

			m.assertExpectations(t)
		})
	}
}

func TestBillingService_HandleEvent_SubscriptionDeleted(t *testing.T) {
	svc, m := newService(t)
	m.subs.On("UpdateSubscriptionStatusByProviderID", mock.Anything, "evt_1", "sub_1",
		models.SubscriptionStatusCanceled).Return("buyer@example.com", models.PlanYearly, nil).Once()
	m.cache.On("Invalidate", mock.Anything, "subscription:buyer@example.com").Return(nil).Once()

	// У события удаления идентификатор подписки лежит в Data.Object.ID.
	event := newEvent(billing.EventSubscriptionDeleted, "sub_1", "", "")
	assert.NoError(t, svc.HandleEvent(context.Background(), event))

	m.assertExpectations(t)
}

func TestBillingService_HandleEvent_UnknownTypeIgnored(t *testing.T) {
	svc, m := newService(t)

	event := newEvent("customer.updated", "cus_1", "", "")
	assert.NoError(t, svc.HandleEvent(context.Background(), event))

	m.assertExpectations(t)
}
