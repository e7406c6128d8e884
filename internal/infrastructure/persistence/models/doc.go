// Package models contains GORM persistence models for the billing tables.
// Domain aggregates carry no ORM tags; each model converts with
// FromDomain / ToDomain and repositories only ever touch models.
//
// Money is stored as minor units plus a currency code. Value lists that are
// always read with their owner (tax rules, discounts, tier bounds) are
// stored as JSON; rates and invoice items get their own tables.
package models
