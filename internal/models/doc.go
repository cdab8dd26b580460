// Package models defines the core domain models for the household ledger.
//
// # Models
//
//   - User: Registered account that can sign in
//   - Household: Group of members sharing expenses, joined by invite code
//   - Member: A user as seen from inside a household (id + display name)
//   - Expense: Money one member spent on behalf of the whole household
//   - Payment: Direct settlement from one member to another
//
// # Design Principles
//
// 1. **Exact amounts**: Money is carried as decimal.Decimal; rounding happens only at display time
// 2. **Immutable records**: Expenses and payments are never edited once created
// 3. **Avoid circular references**: Use ID strings instead of pointers for relationships
// 4. **Derived data is not stored**: Balances and the activity feed are recomputed from records
package models
