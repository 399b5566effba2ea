package models

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// SubcontractScheduleReport renders a subcontract's payment application
// history as a G703-style continuation sheet workbook.
func SubcontractScheduleReport(ctx context.Context, subcontractId int) (*excelize.File, error) {

	subcontract, err := GetSubcontract(ctx, subcontractId)
	if err != nil {
		return nil, err
	}
	applications, err := GetPaymentApplications(ctx, subcontractId)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	sheetName := "Schedule"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	f.SetCellValue(sheetName, "A1", "Contract Number")
	f.SetCellValue(sheetName, "B1", subcontract.ContractNumber)
	f.SetCellValue(sheetName, "A2", "Subcontractor")
	f.SetCellValue(sheetName, "B2", subcontract.SubcontractorName)
	f.SetCellValue(sheetName, "A3", "Current Value")
	f.SetCellValue(sheetName, "B3", subcontract.CurrentValue.StringFixed(2))
	f.SetCellValue(sheetName, "A4", "Billed To Date")
	f.SetCellValue(sheetName, "B4", subcontract.BilledToDate.StringFixed(2))
	f.SetCellValue(sheetName, "A5", "Retainage Held")
	f.SetCellValue(sheetName, "B5", subcontract.RetainageHeld.StringFixed(2))

	headings := []string{
		"App #", "Period End", "Status",
		"Work Completed Previous", "Work Completed This Period", "Stored Materials",
		"Total Completed & Stored", "Total Retainage", "Earned Less Retainage",
		"Less Previous Certificates", "Current Payment Due",
	}
	headerRow := 7
	for i, h := range headings {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRow)
		if err != nil {
			return nil, err
		}
		f.SetCellValue(sheetName, cell, h)
	}

	for i, a := range applications {
		row := headerRow + 1 + i
		f.SetCellValue(sheetName, "A"+fmt.Sprint(row), a.ApplicationNumber)
		f.SetCellValue(sheetName, "B"+fmt.Sprint(row), a.PeriodEnd.Format("2006-01-02"))
		f.SetCellValue(sheetName, "C"+fmt.Sprint(row), string(a.CurrentStatus))
		f.SetCellValue(sheetName, "D"+fmt.Sprint(row), a.WorkCompletedPrevious.StringFixed(2))
		f.SetCellValue(sheetName, "E"+fmt.Sprint(row), a.WorkCompletedThisPeriod.StringFixed(2))
		f.SetCellValue(sheetName, "F"+fmt.Sprint(row), a.StoredMaterials.StringFixed(2))
		f.SetCellValue(sheetName, "G"+fmt.Sprint(row), a.TotalCompletedAndStored.StringFixed(2))
		f.SetCellValue(sheetName, "H"+fmt.Sprint(row), a.TotalRetainage.StringFixed(2))
		f.SetCellValue(sheetName, "I"+fmt.Sprint(row), a.TotalEarnedLessRetainage.StringFixed(2))
		f.SetCellValue(sheetName, "J"+fmt.Sprint(row), a.LessPreviousCertificates.StringFixed(2))
		f.SetCellValue(sheetName, "K"+fmt.Sprint(row), a.CurrentPaymentDue.StringFixed(2))
	}

	return f, nil
}
