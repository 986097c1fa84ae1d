package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"windcave/config"
	"windcave/entity"
	"windcave/services"
)

const (
	collectionLog          = "payment_log"
	collectionTransactions = "transactions"
	collectionTokens       = "card_tokens"
)

// ErrDatabaseRequired is returned at boot when the service is started
// without an enabled MongoDB connection.
var ErrDatabaseRequired = errors.New("mongo connection is disabled in configuration")

// legal payment state transitions of the order state machine
var transitions = map[string][]string{
	entity.StatePending:       {entity.StatePaid, entity.StateFailed, entity.StateCancelled, entity.StateAuthorized},
	entity.StateAuthorized:    {entity.StatePaid, entity.StateCancelled},
	entity.StatePaid:          {entity.StateRefunded},
	entity.StatePartiallyPaid: {entity.StatePaid, entity.StateRefunded},
}

// MongoDB implements the order store, the token store and the payment log
// on MongoDB. It also carries the host state machine and emits transition
// events to a registered listener after the new state is persisted.
// The adapter itself acts with system-level identity; no caller identity is
// read from ambient state.
type MongoDB struct {
	clientOptions    *options.ClientOptions
	database         string
	logRecordsNumber int64
	listener         func(ctx context.Context, event services.TransitionEvent)
}

func NewMongoClient(conf *config.Config) (*MongoDB, error) {
	if !conf.Mongo.Enabled {
		return nil, nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		clientOptions:    clientOptions,
		database:         conf.Mongo.Database,
		logRecordsNumber: conf.LogRecords,
	}
	return client, nil
}

// SetTransitionListener registers the single listener notified after each
// completed state transition.
func (m *MongoDB) SetTransitionListener(listener func(ctx context.Context, event services.TransitionEvent)) {
	m.listener = listener
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, err
	}
	return connection, nil
}

func (m *MongoDB) disconnect(ctx context.Context, connection *mongo.Client) {
	err := connection.Disconnect(ctx)
	if err != nil {
		log.Println("mongodb disconnect error", err)
	}
}

func (m *MongoDB) WriteLogMessage(data services.Data) error {
	ctx := context.Background()
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)
	collection := connection.Database(m.database).Collection(collectionLog)
	_, err = collection.InsertOne(ctx, data)
	return err
}

func (m *MongoDB) GetTransaction(ctx context.Context, id string) (*entity.TransactionRecord, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "transaction_id", Value: id}}
	collection := connection.Database(m.database).Collection(collectionTransactions)
	var record entity.TransactionRecord
	err = collection.FindOne(ctx, filter).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (m *MongoDB) SaveTransaction(ctx context.Context, record *entity.TransactionRecord) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.UpdatedAt = time.Now()

	filter := bson.D{{Key: "transaction_id", Value: record.Id}}
	set := bson.M{"$set": record}
	collection := connection.Database(m.database).Collection(collectionTransactions)
	_, err = collection.UpdateOne(ctx, filter, set, options.Update().SetUpsert(true))
	return err
}

// UpdateTransactionMetadata merges the patch into the stored metadata and
// writes the result back. Stored values are only ever supplemented.
func (m *MongoDB) UpdateTransactionMetadata(ctx context.Context, id string, patch entity.Metadata) error {
	record, err := m.GetTransaction(ctx, id)
	if err != nil {
		return err
	}
	record.Metadata.Merge(patch)

	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionTransactions)
	filter := bson.D{{Key: "transaction_id", Value: id}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "metadata", Value: record.Metadata},
			{Key: "updated_at", Value: time.Now()},
		}},
	}
	_, err = collection.UpdateOne(ctx, filter, update)
	return err
}

func (m *MongoDB) FindTransactionByMetadata(ctx context.Context, field, value string) (*entity.TransactionRecord, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "metadata." + field, Value: value}}
	collection := connection.Database(m.database).Collection(collectionTransactions)
	var record entity.TransactionRecord
	err = collection.FindOne(ctx, filter).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (m *MongoDB) GetTransactionByOrder(ctx context.Context, orderId string) (*entity.TransactionRecord, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(ctx, connection)

	filter := bson.D{{Key: "order_id", Value: orderId}}
	collection := connection.Database(m.database).Collection(collectionTransactions)
	var record entity.TransactionRecord
	err = collection.FindOne(ctx, filter).Decode(&record)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// RequestTransition applies a payment state transition. Requesting the
// state a record is already in is a no-op; an illegal transition fails
// loudly. The listener sees the event only after the new state is stored.
func (m *MongoDB) RequestTransition(ctx context.Context, transactionId, targetState string) error {
	record, err := m.GetTransaction(ctx, transactionId)
	if err != nil {
		return err
	}
	if record.State == targetState {
		return nil
	}
	if !transitionAllowed(record.State, targetState) {
		return fmt.Errorf("illegal transition %s -> %s for transaction %s", record.State, targetState, transactionId)
	}

	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionTransactions)
	filter := bson.D{{Key: "transaction_id", Value: transactionId}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "state", Value: targetState},
			{Key: "updated_at", Value: time.Now()},
		}},
	}
	if _, err = collection.UpdateOne(ctx, filter, update); err != nil {
		return err
	}

	if m.listener != nil {
		m.listener(ctx, services.TransitionEvent{
			TransactionId: transactionId,
			FromState:     record.State,
			ToState:       targetState,
		})
	}
	return nil
}

func (m *MongoDB) GetCustomerToken(ctx context.Context, customerId string) (string, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return "", err
	}
	defer m.disconnect(ctx, connection)

	collection := connection.Database(m.database).Collection(collectionTokens)
	filter := bson.D{{Key: "customer_id", Value: customerId}}
	var token entity.StoredToken
	err = collection.FindOne(ctx, filter).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token.Token, nil
}

// SaveCustomerToken keeps at most one token per customer; a new value
// overwrites the old with no history.
func (m *MongoDB) SaveCustomerToken(ctx context.Context, customerId, token string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(ctx, connection)

	stored := entity.StoredToken{
		CustomerId: customerId,
		Token:      token,
		UpdatedAt:  time.Now(),
	}
	filter := bson.D{{Key: "customer_id", Value: customerId}}
	set := bson.M{"$set": stored}
	collection := connection.Database(m.database).Collection(collectionTokens)
	_, err = collection.UpdateOne(ctx, filter, set, options.Update().SetUpsert(true))
	return err
}

func transitionAllowed(from, to string) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
