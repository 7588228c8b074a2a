package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-ops/invigil-api/internal/models"
	"github.com/campus-ops/invigil-api/pkg/export"
	"github.com/campus-ops/invigil-api/pkg/storage"
)

type hoursStub struct{}

func (hoursStub) HoursByInvigilator(ctx context.Context, dietID string, invigilatorID *string, confirmedOnly bool) ([]models.InvigilatorHoursRow, error) {
	return []models.InvigilatorHoursRow{
		{InvigilatorID: "inv-1", DisplayName: "Ada Price", Shifts: 3, Minutes: 360, Hours: 6},
		{InvigilatorID: "inv-2", DisplayName: "Rob Nye", Shifts: 1, Minutes: 90, Hours: 1.5},
	}, nil
}

type dietStub struct{}

func (dietStub) FindDiet(ctx context.Context, id string) (*models.Diet, error) {
	return &models.Diet{ID: id, Name: "Summer 2026"}, nil
}

func newExportServiceForTest(t *testing.T) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewLocalStorage(dir)
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	cfg := ExportConfig{APIPrefix: "/api/v1", ResultTTL: time.Hour}
	svc := NewExportService(hoursStub{}, dietStub{}, store, signer, cfg, zap.NewNop(), export.NewCSVExporter(), export.NewPDFExporter())
	return svc, store
}

func TestExportServiceGenerateCSV(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeHours,
		Params:    models.ReportJobParams{DietID: "diet-1", Format: models.ReportFormatCSV},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.NotEmpty(t, result.RelativePath)
	require.Contains(t, result.URL, "/export/")

	path := store.Path(result.RelativePath)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}

func TestExportServiceGeneratePDF(t *testing.T) {
	svc, store := newExportServiceForTest(t)
	job := &models.ReportJob{
		ID:        "job-2",
		Type:      models.ReportTypeContractedHours,
		Params:    models.ReportJobParams{DietID: "diet-1", Format: models.ReportFormatPDF},
		CreatedBy: "admin",
	}
	result, err := svc.Generate(context.Background(), job)
	require.NoError(t, err)
	require.Equal(t, models.ReportFormatPDF, result.Format)

	path := filepath.Clean(store.Path(result.RelativePath))
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Greater(t, info.Size(), int64(0))
}
