package config

import (
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/storefront/order-system/order-service/application"
	"github.com/storefront/order-system/order-service/handlers"
	"github.com/storefront/order-system/order-service/infrastructure"
	sharedinfra "github.com/storefront/order-system/shared/infrastructure"
	"github.com/storefront/order-system/shared/retry"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Repositories
	OrderRepository *infrastructure.PostgresOrderRepository

	// Use Cases
	SubmitOrder  *application.SubmitOrder
	GetOrder     *application.GetOrder
	ResumeOrders *application.ResumeOrders

	// HTTP Handlers
	OrderHandlers *handlers.OrderHandlers

	// Event Handlers
	OrderEventHandlers *handlers.OrderEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSPublisherAdapter
	EventSubscriber *sharedinfra.SQSSubscriberAdapter
}

func BuildDependencies(config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	deps.DB = db

	eventPublisher, err := sharedinfra.NewSNSPublisherAdapter(config.AWS.SNSTopicArn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.EventPublisher = eventPublisher

	eventSubscriber, err := sharedinfra.NewSQSSubscriberAdapter(config.AWS.SQSQueueURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	deps.OrderRepository = infrastructure.NewPostgresOrderRepository(db)

	httpClient := &http.Client{}
	inventory := infrastructure.NewHTTPInventoryClient(httpClient, config.Services.InventoryURL)
	payments := infrastructure.NewHTTPPaymentClient(httpClient, config.Services.PaymentURL)
	fulfillment := infrastructure.NewHTTPFulfillmentClient(httpClient, config.Services.FulfillmentURL)

	policy := retry.Policy{
		MaxAttempts:       config.Saga.MaxAttempts,
		PerAttemptTimeout: config.Saga.PerAttemptTimeout,
		InitialBackoff:    config.Saga.InitialBackoff,
	}
	saga := application.NewOrderSaga(deps.OrderRepository, inventory, payments, fulfillment, eventPublisher, policy)

	deps.SubmitOrder = application.NewSubmitOrder(deps.OrderRepository, saga)
	deps.GetOrder = application.NewGetOrder(deps.OrderRepository)
	deps.ResumeOrders = application.NewResumeOrders(deps.OrderRepository, saga, config.Saga.ResumeStaleAfter)

	deps.OrderHandlers = handlers.NewOrderHandlers(deps.SubmitOrder, deps.GetOrder)
	deps.OrderEventHandlers = handlers.NewOrderEventHandlers(deps.ResumeOrders)

	return deps, nil
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.EventPublisher != nil {
		if err := d.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event subscriber: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}
	return nil
}
