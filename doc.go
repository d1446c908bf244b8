// Package feeledger provides an embeddable fee ledger and payment state
// engine for Go applications.
//
// Feeledger is designed as a library, not a service. Import it directly into
// your application: it owns an account's fee obligations, applies payments
// against them, and keeps per-record status and ledger-wide aggregates
// consistent after every mutation. It provides:
//
//   - Bulk record loading with all-or-nothing validation
//   - Partial payments with overpayment and double-settlement guards
//   - A single status derivation rule shared by every mutation path
//   - Aggregates recomputed from the record set, never incrementally
//   - Append-only payment history per fee record
//   - Pluggable lifecycle hooks (settlement, rejection, overdue)
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/xraph/feeledger"
//	    "github.com/xraph/feeledger/store/postgres"
//	)
//
//	// Initialize store
//	store, err := postgres.New(databaseURL)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Create ledger
//	l := feeledger.New(store)
//
//	// Start the engine (runs migrations, initializes plugins)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Fee records are batch-loaded from the source system, one obligation per
// fee type and academic period:
//
//	records := []*fee.Record{
//	    {FeeType: "Tuition", AcademicPeriod: "2026-T1", Amount: types.UGX(500000), DueDate: due},
//	    {FeeType: "Transport", AcademicPeriod: "2026-T1", Amount: types.UGX(120000), DueDate: due},
//	}
//	err := l.LoadRecords(ctx, accountID, records)
//
// Payments are applied one at a time and either fully succeed or leave the
// ledger untouched:
//
//	updated, err := l.ApplyPayment(ctx, &payment.Payment{
//	    FeeID:  feeID,
//	    Amount: types.UGX(200000),
//	    Method: payment.MethodMobileMoney,
//	})
//
// Snapshots are the read API for dashboards and summary views:
//
//	snap, err := l.Snapshot(ctx, accountID)
//	fmt.Println(snap.Totals.Outstanding, snap.Totals.Collected)
//
// # Correctness
//
// Status is never stored as independent truth. Both the load path and the
// payment path derive it through fee.DeriveStatus, so a record's status can
// never diverge from its paid amount and due date. The two aggregates are
// recomputed from the full record set after every mutation.
//
// All monetary calculations use integer arithmetic to avoid floating-point
// precision issues. The Money type represents amounts in the smallest
// currency unit (whole shillings for UGX, cents for USD).
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	fee_01h2xcejqtf2nbrexx3vqjhp41   // Fee record ID
//	pay_01h2xcejqtf2nbrexx3vqjhp41   // Payment ID
//	acct_01h455vb4pex5vsknk084sn02q  // Account ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package feeledger
