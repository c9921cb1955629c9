// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns.
//
// Structure:
//   - base.go: BaseModel and AggregateModel shared by every table
//   - commerce.go: orders, invoices, payments and their child rows
//   - reference.go: customers and price books read by the lifecycle
package models
