// Package models defines the core domain records of the ledger.
//
// # Records
//
//   - User: a registered account
//   - Group: a set of people sharing expenses
//   - Member: a participant of one group, either backed by a User or a
//     placeholder ("ghost") created by name only
//   - Transaction: one financial event, an ordinary expense or a settlement
//     payment between two members
//   - Item: a receipt line of an itemized transaction
//   - Split: a derived fact "member M owes amount A because of transaction T"
//
// # Conventions
//
//  1. All amounts are int64 in the smallest currency unit. There is no
//     floating point anywhere in the ledger.
//  2. Relationships are ID strings, never pointers.
//  3. Splits have no lifecycle of their own. They are recomputed and replaced
//     whenever their transaction is created or edited.
//  4. Timestamps are Unix seconds.
package models
