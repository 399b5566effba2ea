// subcontract-ledger-rebuild recomputes BilledToDate / PaidToDate /
// RetainageHeld / CurrentValue for one subcontract or for every subcontract
// of a business, by replaying paid applications and approved change orders.
//
// Usage:
//
//	go run ./cmd/subcontract-ledger-rebuild --business-id <uuid> [--subcontract-id N] [--continue-on-error]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/mmdatafocus/construct_backend/config"
	"github.com/mmdatafocus/construct_backend/models"
	"github.com/mmdatafocus/construct_backend/utils"
	"github.com/mmdatafocus/construct_backend/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id (uuid)")
	subcontractID := flag.Int("subcontract-id", 0, "Optional: rebuild a single subcontract")
	continueOnError := flag.Bool("continue-on-error", false, "Skip failing subcontracts and continue rebuilding others")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, *businessID)
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "LedgerRebuild")

	var ids []int
	if *subcontractID > 0 {
		if _, err := utils.FetchSingleModel[models.Subcontract](ctx, *subcontractID); err != nil {
			fmt.Fprintf(os.Stderr, "subcontract %d not found for business %s\n", *subcontractID, *businessID)
			os.Exit(1)
		}
		ids = append(ids, *subcontractID)
	} else {
		if err := db.WithContext(ctx).Model(&models.Subcontract{}).
			Where("business_id = ?", *businessID).
			Order("id").
			Pluck("id", &ids).Error; err != nil {
			fmt.Fprintf(os.Stderr, "failed to list subcontracts: %v\n", err)
			os.Exit(1)
		}
	}
	if len(ids) == 0 {
		fmt.Println("nothing to rebuild")
		return
	}

	failed := 0
	for _, id := range ids {
		if err := workflow.RebuildSubcontractLedger(ctx, db, *businessID, id); err != nil {
			failed++
			fmt.Fprintf(os.Stderr, "subcontract %d: %v\n", id, err)
			if !*continueOnError {
				os.Exit(1)
			}
			continue
		}
		fmt.Printf("subcontract %d: rebuilt\n", id)
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d subcontracts failed\n", failed, len(ids))
		os.Exit(1)
	}
}
