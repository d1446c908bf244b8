package feeledger_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/feeledger"
	"github.com/xraph/feeledger/fee"
	"github.com/xraph/feeledger/payment"
	"github.com/xraph/feeledger/store/memory"
	"github.com/xraph/feeledger/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		// Create store (memory for demo, use PostgreSQL in production)
		store := memory.New()

		// Initialize Feeledger
		l := feeledger.New(store,
			feeledger.WithLogger(slog.Default()),
		)

		// Start the engine
		ctx := context.Background()
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		// Load a term's fee records for one account
		due := time.Now().AddDate(0, 1, 0)
		records := []*fee.Record{
			{
				FeeType:        "Tuition",
				AcademicPeriod: "2026-T1",
				Amount:         types.UGX(500000),
				DueDate:        due,
			},
			{
				FeeType:        "Transport",
				AcademicPeriod: "2026-T1",
				Amount:         types.UGX(120000),
				DueDate:        due,
			},
		}
		if err := l.LoadRecords(ctx, "acct_123", records); err != nil {
			t.Fatal(err)
		}

		// Apply a partial payment
		updated, err := l.ApplyPayment(ctx, &payment.Payment{
			FeeID:      records[0].ID,
			Amount:     types.UGX(200000),
			Method:     payment.MethodMobileMoney,
			Reference:  "MM-2026-0001",
			RecordedBy: "bursar_01",
		})
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Fee %s now %s, balance %s\n",
			updated.ID, updated.Status, updated.Outstanding().String())

		// Read the dashboard snapshot
		snap, err := l.Snapshot(ctx, "acct_123")
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("Outstanding: %s, Collected: %s\n",
			snap.Totals.Outstanding.String(), snap.Totals.Collected.String())
	})

	// Test Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.UGX(15000)  // USh 15000
		_ = types.USD(4900)   // $49.00
		_ = types.Zero("ugx") // USh 0

		// Arithmetic
		m1 := types.UGX(100)
		m2 := types.UGX(200)
		_ = m1.Add(m2)     // USh 300
		_ = m1.Multiply(3) // USh 300
		_ = m1.Divide(2)   // USh 50

		// Comparison
		if m1.LessThan(m2) {
			// m1 is less than m2
		}

		// Formatting
		_ = m1.String()      // "USh 100"
		_ = m1.FormatMajor() // "100"
	})
}
