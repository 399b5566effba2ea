package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmdatafocus/construct_backend/config"
	"github.com/mmdatafocus/construct_backend/models"
	"github.com/mmdatafocus/construct_backend/utils"
	"github.com/mmdatafocus/construct_backend/workflow"
	"github.com/shopspring/decimal"
)

// End-to-end billing ledger regression: sequencing, carry-forward, paid
// posting, delta reconciliation, change-order value recompute, and stale
// revision conflicts, against real MySQL + Redis.
func TestProgressBilling_LedgerLifecycle(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "construct_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUserNameInContext(ctx, "Test")

	adminCtx := utils.SetIsAdminInContext(ctx, true)
	biz, err := models.CreateBusiness(adminCtx, &models.NewBusiness{
		Name:  "Test Builders",
		Email: "owner@test.local",
	})
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	if _, err := models.CreateBusiness(ctx, &models.NewBusiness{Name: "Rogue Builders"}); err == nil {
		t.Fatal("non-admin business create must be rejected")
	}
	ctx = utils.SetBusinessIdInContext(ctx, biz.ID.String())

	// settings edits must drop the cached business copy
	if _, err := models.GetBusiness(ctx); err != nil {
		t.Fatalf("GetBusiness: %v", err)
	}
	if _, err := models.UpdateBusiness(utils.SetIsAdminInContext(ctx, true), &models.NewBusiness{
		Name:                    "Test Builders",
		Email:                   "owner@test.local",
		DefaultRetainagePercent: decimal.NewFromInt(8),
	}); err != nil {
		t.Fatalf("UpdateBusiness: %v", err)
	}
	cachedBiz, err := models.GetBusiness(ctx)
	if err != nil {
		t.Fatalf("GetBusiness after update: %v", err)
	}
	if !cachedBiz.DefaultRetainagePercent.Equal(decimal.NewFromInt(8)) {
		t.Fatalf("DefaultRetainagePercent = %s, want 8 after cache invalidation", cachedBiz.DefaultRetainagePercent)
	}

	project, err := models.CreateProject(ctx, &models.NewProject{
		ProjectNumber: "P-001",
		Name:          "Riverside Tower",
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	subcontract, err := models.CreateSubcontract(ctx, &models.NewSubcontract{
		ProjectId:         project.ID,
		ContractNumber:    "SC-001",
		SubcontractorName: "Golden Concrete Co",
		OriginalValue:     decimal.NewFromInt(100000),
		RetainagePercent:  decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("CreateSubcontract: %v", err)
	}
	if !subcontract.CurrentValue.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("CurrentValue = %s, want 100000", subcontract.CurrentValue)
	}

	// application 1: 20000 of work at 10% retainage
	periodEnd1 := time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC)
	app1, err := workflow.CreatePaymentApplication(ctx, &models.NewPaymentApplication{
		SubcontractId:           subcontract.ID,
		PeriodEnd:               periodEnd1,
		WorkCompletedThisPeriod: decimal.NewFromInt(20000),
	})
	if err != nil {
		t.Fatalf("CreatePaymentApplication 1: %v", err)
	}
	if app1.ApplicationNumber != 1 {
		t.Fatalf("ApplicationNumber = %d, want 1", app1.ApplicationNumber)
	}
	if !app1.WorkCompletedPrevious.IsZero() || !app1.RetainagePrevious.IsZero() || !app1.LessPreviousCertificates.IsZero() {
		t.Fatal("first application must start from a zero baseline")
	}
	if !app1.RetainageThisPeriod.Equal(decimal.NewFromInt(2000)) {
		t.Fatalf("RetainageThisPeriod = %s, want 2000", app1.RetainageThisPeriod)
	}
	if !app1.CurrentPaymentDue.Equal(decimal.NewFromInt(18000)) {
		t.Fatalf("CurrentPaymentDue = %s, want 18000", app1.CurrentPaymentDue)
	}
	if !app1.ScheduledValue.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("ScheduledValue = %s, want 100000 snapshot", app1.ScheduledValue)
	}

	// out-of-order period is rejected
	_, err = workflow.CreatePaymentApplication(ctx, &models.NewPaymentApplication{
		SubcontractId:           subcontract.ID,
		PeriodEnd:               periodEnd1.AddDate(0, 0, -10),
		WorkCompletedThisPeriod: decimal.NewFromInt(1000),
	})
	if utils.ErrorCode(err) != utils.ErrCodeValidation {
		t.Fatalf("backdated period: code = %s, want VALIDATION", utils.ErrorCode(err))
	}

	// application 2 carries application 1's cumulative figures forward
	app2, err := workflow.CreatePaymentApplication(ctx, &models.NewPaymentApplication{
		SubcontractId:           subcontract.ID,
		PeriodEnd:               periodEnd1.AddDate(0, 1, 0),
		WorkCompletedThisPeriod: decimal.NewFromInt(30000),
	})
	if err != nil {
		t.Fatalf("CreatePaymentApplication 2: %v", err)
	}
	if app2.ApplicationNumber != 2 {
		t.Fatalf("ApplicationNumber = %d, want 2", app2.ApplicationNumber)
	}
	if !app2.WorkCompletedToDate.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("WorkCompletedToDate = %s, want 50000", app2.WorkCompletedToDate)
	}
	if !app2.TotalRetainage.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("TotalRetainage = %s, want 5000", app2.TotalRetainage)
	}
	if !app2.LessPreviousCertificates.Equal(decimal.NewFromInt(18000)) {
		t.Fatalf("LessPreviousCertificates = %s, want 18000", app2.LessPreviousCertificates)
	}
	if !app2.CurrentPaymentDue.Equal(decimal.NewFromInt(27000)) {
		t.Fatalf("CurrentPaymentDue = %s, want 27000", app2.CurrentPaymentDue)
	}

	// walk application 2 to Paid with a reviewer haircut
	app2 = mustTransition(t, ctx, app2, models.PaymentApplicationStatusSubmitted, nil)
	if app2.SubmittedDate == nil {
		t.Fatal("SubmittedDate not stamped")
	}
	app2 = mustTransition(t, ctx, app2, models.PaymentApplicationStatusUnderReview, nil)
	app2 = mustTransition(t, ctx, app2, models.PaymentApplicationStatusApproved, nil)
	approved := decimal.NewFromInt(26000)
	app2 = mustTransition(t, ctx, app2, models.PaymentApplicationStatusPaid, &approved)
	if app2.PaidDate == nil {
		t.Fatal("PaidDate not stamped")
	}

	subcontract, err = models.GetSubcontract(ctx, subcontract.ID)
	if err != nil {
		t.Fatalf("GetSubcontract: %v", err)
	}
	if !subcontract.BilledToDate.Equal(decimal.NewFromInt(27000)) {
		t.Fatalf("BilledToDate = %s, want 27000", subcontract.BilledToDate)
	}
	if !subcontract.PaidToDate.Equal(decimal.NewFromInt(26000)) {
		t.Fatalf("PaidToDate = %s, want 26000", subcontract.PaidToDate)
	}
	if !subcontract.RetainageHeld.Equal(decimal.NewFromInt(5000)) {
		t.Fatalf("RetainageHeld = %s, want 5000", subcontract.RetainageHeld)
	}

	// revising the approved amount while Paid reconciles by delta
	revised := decimal.NewFromInt(26500)
	app2, err = workflow.UpdatePaymentApplication(ctx, app2.ID, &models.UpdatePaymentApplicationInput{
		ApprovedAmount: &revised,
		Revision:       app2.Revision,
	})
	if err != nil {
		t.Fatalf("reconcile paid edit: %v", err)
	}
	subcontract, _ = models.GetSubcontract(ctx, subcontract.ID)
	if !subcontract.PaidToDate.Equal(decimal.NewFromInt(26500)) {
		t.Fatalf("PaidToDate = %s, want 26500 (moved by delta)", subcontract.PaidToDate)
	}
	if !subcontract.BilledToDate.Equal(decimal.NewFromInt(27000)) {
		t.Fatalf("BilledToDate = %s, want unchanged 27000", subcontract.BilledToDate)
	}

	// a stale writer must fail with CONFLICT, never silently merge
	stale := decimal.NewFromInt(25000)
	_, err = workflow.UpdatePaymentApplication(ctx, app2.ID, &models.UpdatePaymentApplicationInput{
		ApprovedAmount: &stale,
		Revision:       app2.Revision - 1,
	})
	if utils.ErrorCode(err) != utils.ErrCodeConflict {
		t.Fatalf("stale write: code = %s, want CONFLICT", utils.ErrorCode(err))
	}

	// change orders: approval raises CurrentValue, voiding pulls it back
	co, err := models.CreateChangeOrder(ctx, &models.NewChangeOrder{
		SubcontractId:     subcontract.ID,
		ChangeOrderNumber: "CO-001",
		Amount:            decimal.NewFromInt(5000),
	})
	if err != nil {
		t.Fatalf("CreateChangeOrder: %v", err)
	}
	_, err = models.CreateChangeOrder(ctx, &models.NewChangeOrder{
		SubcontractId:     subcontract.ID,
		ChangeOrderNumber: "CO-001",
		Amount:            decimal.NewFromInt(100),
	})
	if utils.ErrorCode(err) != utils.ErrCodeDuplicateCoNumber {
		t.Fatalf("duplicate change order number: code = %s, want DUPLICATE_CO_NUMBER", utils.ErrorCode(err))
	}

	approvedStatus := models.ChangeOrderStatusApproved
	co, err = models.UpdateChangeOrder(ctx, co.ID, &models.NewChangeOrder{
		SubcontractId:     subcontract.ID,
		ChangeOrderNumber: co.ChangeOrderNumber,
		Amount:            co.Amount,
		CurrentStatus:     approvedStatus,
		Revision:          co.Revision,
	})
	if err != nil {
		t.Fatalf("approve change order: %v", err)
	}
	subcontract, _ = models.GetSubcontract(ctx, subcontract.ID)
	if !subcontract.CurrentValue.Equal(decimal.NewFromInt(105000)) {
		t.Fatalf("CurrentValue = %s, want 105000 after approval", subcontract.CurrentValue)
	}

	_, err = models.UpdateChangeOrder(ctx, co.ID, &models.NewChangeOrder{
		SubcontractId:     subcontract.ID,
		ChangeOrderNumber: co.ChangeOrderNumber,
		Amount:            co.Amount,
		CurrentStatus:     models.ChangeOrderStatusVoid,
		Revision:          co.Revision,
	})
	if err != nil {
		t.Fatalf("void change order: %v", err)
	}
	subcontract, _ = models.GetSubcontract(ctx, subcontract.ID)
	if !subcontract.CurrentValue.Equal(decimal.NewFromInt(100000)) {
		t.Fatalf("CurrentValue = %s, want 100000 after void", subcontract.CurrentValue)
	}

	// two concurrent approvals must both land in CurrentValue
	coA, err := models.CreateChangeOrder(ctx, &models.NewChangeOrder{
		SubcontractId:     subcontract.ID,
		ChangeOrderNumber: "CO-002",
		Amount:            decimal.NewFromInt(1500),
	})
	if err != nil {
		t.Fatalf("CreateChangeOrder CO-002: %v", err)
	}
	coB, err := models.CreateChangeOrder(ctx, &models.NewChangeOrder{
		SubcontractId:     subcontract.ID,
		ChangeOrderNumber: "CO-003",
		Amount:            decimal.NewFromInt(2500),
	})
	if err != nil {
		t.Fatalf("CreateChangeOrder CO-003: %v", err)
	}
	var wg sync.WaitGroup
	approveErrs := make(chan error, 2)
	for _, order := range []*models.ChangeOrder{coA, coB} {
		wg.Add(1)
		go func(order *models.ChangeOrder) {
			defer wg.Done()
			_, err := models.UpdateChangeOrder(ctx, order.ID, &models.NewChangeOrder{
				SubcontractId:     subcontract.ID,
				ChangeOrderNumber: order.ChangeOrderNumber,
				Amount:            order.Amount,
				CurrentStatus:     models.ChangeOrderStatusApproved,
				Revision:          order.Revision,
			})
			approveErrs <- err
		}(order)
	}
	wg.Wait()
	close(approveErrs)
	for err := range approveErrs {
		if err != nil {
			t.Fatalf("concurrent change order approval: %v", err)
		}
	}
	subcontract, _ = models.GetSubcontract(ctx, subcontract.ID)
	if !subcontract.CurrentValue.Equal(decimal.NewFromInt(104000)) {
		t.Fatalf("CurrentValue = %s, want 104000 after concurrent approvals", subcontract.CurrentValue)
	}

	// simultaneous creates on one subcontract must never share a number
	racing, err := models.CreateSubcontract(ctx, &models.NewSubcontract{
		ProjectId:         project.ID,
		ContractNumber:    "SC-002",
		SubcontractorName: "Steel Erectors Ltd",
		OriginalValue:     decimal.NewFromInt(50000),
		RetainagePercent:  decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("CreateSubcontract SC-002: %v", err)
	}
	type createResult struct {
		application *models.PaymentApplication
		err         error
	}
	createResults := make(chan createResult, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			application, err := workflow.CreatePaymentApplication(ctx, &models.NewPaymentApplication{
				SubcontractId:           racing.ID,
				PeriodEnd:               time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
				WorkCompletedThisPeriod: decimal.NewFromInt(1000),
			})
			createResults <- createResult{application, err}
		}()
	}
	wg.Wait()
	close(createResults)
	taken := map[int]bool{}
	created := 0
	for r := range createResults {
		if r.err != nil {
			if utils.ErrorCode(r.err) != utils.ErrCodeConflict {
				t.Fatalf("racing create: code = %s, want CONFLICT (%v)", utils.ErrorCode(r.err), r.err)
			}
			continue
		}
		created++
		if taken[r.application.ApplicationNumber] {
			t.Fatalf("application number %d assigned twice", r.application.ApplicationNumber)
		}
		taken[r.application.ApplicationNumber] = true
	}
	if created == 0 {
		t.Fatal("both racing creates failed")
	}

	// rebuild from the record of truth must land on the same totals
	if err := workflow.RebuildSubcontractLedger(ctx, config.GetDB(), biz.ID.String(), subcontract.ID); err != nil {
		t.Fatalf("RebuildSubcontractLedger: %v", err)
	}
	rebuilt, _ := models.GetSubcontract(ctx, subcontract.ID)
	if !rebuilt.BilledToDate.Equal(subcontract.BilledToDate) ||
		!rebuilt.PaidToDate.Equal(subcontract.PaidToDate) ||
		!rebuilt.RetainageHeld.Equal(subcontract.RetainageHeld) {
		t.Fatalf("rebuild drifted: billed=%s paid=%s held=%s", rebuilt.BilledToDate, rebuilt.PaidToDate, rebuilt.RetainageHeld)
	}

	// audit trail exists for the paid application
	histories, err := models.GetHistories(ctx, app2.ID, "payment_applications")
	if err != nil {
		t.Fatalf("GetHistories: %v", err)
	}
	if len(histories) < 5 {
		t.Fatalf("history rows = %d, want at least 5 (create + 4 updates)", len(histories))
	}
}

func mustTransition(t *testing.T, ctx context.Context, application *models.PaymentApplication,
	status models.PaymentApplicationStatus, approvedAmount *decimal.Decimal) *models.PaymentApplication {
	t.Helper()
	updated, err := workflow.UpdatePaymentApplication(ctx, application.ID, &models.UpdatePaymentApplicationInput{
		CurrentStatus:  &status,
		ApprovedAmount: approvedAmount,
		Revision:       application.Revision,
	})
	if err != nil {
		t.Fatalf("transition to %s: %v", status, err)
	}
	return updated
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("construct-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("construct-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=construct_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
