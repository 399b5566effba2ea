package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mmdatafocus/construct_backend/appctx"
	"github.com/sirupsen/logrus"
)

func newCapturedLogger(buf *bytes.Buffer) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(buf)
	return logger
}

func TestLogErrorCarriesCorrelationId(t *testing.T) {
	var buf bytes.Buffer
	logger := newCapturedLogger(&buf)

	ctx := appctx.Set(context.Background(), appctx.ContextKeyCorrelationId, "req-123")
	LogError(ctx, logger, "paymentApplicationWorkflow.go", "CreatePaymentApplication", "Transaction",
		map[string]int{"subcontract_id": 7}, errors.New("deadlock found"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	if entry["correlation_id"] != "req-123" {
		t.Fatalf("correlation_id = %v, want req-123", entry["correlation_id"])
	}
	if entry["module"] != "paymentApplicationWorkflow.go" || entry["funcName"] != "CreatePaymentApplication" {
		t.Fatalf("module/funcName missing from entry: %v", entry)
	}
	if entry["msg"] != "deadlock found" {
		t.Fatalf("msg = %v, want deadlock found", entry["msg"])
	}
}

func TestLogErrorWithoutCorrelationId(t *testing.T) {
	var buf bytes.Buffer
	logger := newCapturedLogger(&buf)

	LogError(context.Background(), logger, "api.go", "subcontractScheduleReportHandler", "Write", nil, errors.New("broken pipe"))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, buf.String())
	}
	if _, ok := entry["correlation_id"]; ok {
		t.Fatalf("correlation_id present without one in context: %v", entry)
	}
	if _, ok := entry["data"]; ok {
		t.Fatalf("data present for nil data: %v", entry)
	}
}
