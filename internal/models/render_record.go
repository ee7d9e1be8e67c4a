package models

import (
	"time"
)

// RenderRecord is the ledger entry written each time an invoice document is published.
type RenderRecord struct {
	Reference string    `bson:"_id" json:"reference"` // DOC-XXXXXXXX, regenerated on collision
	InvoiceID int       `bson:"invoice_id" json:"invoice_id"`
	UserID    string    `bson:"user_id" json:"user_id"`
	Month     string    `bson:"month" json:"month"`
	Filename  string    `bson:"filename" json:"filename"`
	SHA256    string    `bson:"sha256" json:"sha256"`
	Size      int64     `bson:"size" json:"size"`
	Locations []string  `bson:"locations" json:"locations"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
