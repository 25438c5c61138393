// Package models defines the persisted domain records for groupledger.
//
// # Records
//
//   - Group: a set of members sharing one currency and one balance map
//   - Expense: a payment fronted by one member and split across members
//   - Settlement: a recorded real-world payment between two members
//
// Members are identified by opaque id strings supplied by the identity layer.
//
// # Design Principles
//
// 1. **One consistency point per group**: the group's balance map is the only
// mutable ledger state; expenses and settlements are deltas against it
// 2. **Avoid circular references**: records point at each other by ID string
// 3. **Authoritative breakdowns**: an expense stores its split details, so a
// reversal never recomputes them
package models
