package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"billflow/desk/internal/models"
	"billflow/desk/internal/utils"
)

const renderCollection = "invoice_renders"

// IRenderLedger records every published invoice document.
type IRenderLedger interface {
	Record(ctx context.Context, rec *models.RenderRecord) error
	ListByInvoice(ctx context.Context, userID string, invoiceID int) ([]models.RenderRecord, error)
}

type renderLedger struct {
	collection *mongo.Collection
}

// NewRenderLedger returns a ledger over the invoice_renders collection.
func NewRenderLedger(database *mongo.Database) IRenderLedger {
	return &renderLedger{collection: database.Collection(renderCollection)}
}

// EnsureRenderIndexes creates the lookup index used by ListByInvoice.
func EnsureRenderIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(renderCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "invoice_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create %s index: %w", renderCollection, err)
	}
	return nil
}

// Record assigns rec a fresh DOC- reference and inserts it. A reference collision
// draws a new one.
func (l *renderLedger) Record(ctx context.Context, rec *models.RenderRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	err := Try(func() error {
		rec.Reference = utils.NewDocRef().String()
		_, err := l.collection.InsertOne(ctx, rec)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to record render of invoice %d: %w", rec.InvoiceID, err)
	}
	log.Printf("Recorded %s for invoice %d (%s)", rec.Reference, rec.InvoiceID, rec.Filename)
	return nil
}

// ListByInvoice returns the renders of one invoice, newest first.
func (l *renderLedger) ListByInvoice(ctx context.Context, userID string, invoiceID int) ([]models.RenderRecord, error) {
	filter := bson.M{"user_id": userID, "invoice_id": invoiceID}
	cursor, err := l.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query renders: %w", err)
	}
	defer cursor.Close(ctx)

	var records []models.RenderRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode renders: %w", err)
	}
	return records, nil
}
