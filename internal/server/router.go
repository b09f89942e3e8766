// Package server implements the HTTP server and routing logic.
package server

import (
	"net/http"

	"github.com/tabdb/tabdb/internal/importer"
	"github.com/tabdb/tabdb/internal/server/handlers"
	"github.com/tabdb/tabdb/internal/storage"
)

// NewRouter creates and configures the HTTP router serving the dataset
// API at /api/*.
func NewRouter(datasets *storage.DatasetService, imports *importer.ImportService, version string) http.Handler {
	mux := &http.ServeMux{}

	hh := handlers.NewHealthHandler(version)
	mux.Handle("GET /api/health", Wrap(hh.Health))

	dh := handlers.NewDatasetHandler(datasets)
	mux.Handle("GET /api/datasets", Wrap(dh.ListDatasets))
	mux.Handle("POST /api/datasets", Wrap(dh.CreateDataset))
	mux.Handle("GET /api/datasets/{id}", Wrap(dh.GetDataset))
	mux.Handle("GET /api/datasets/{id}/page", Wrap(dh.GetPage))
	mux.Handle("POST /api/datasets/{id}/edits", Wrap(dh.ApplyEdits))
	mux.Handle("PUT /api/datasets/{id}/name", Wrap(dh.RenameDataset))
	mux.Handle("DELETE /api/datasets/{id}", Wrap(dh.SoftDeleteDataset))
	mux.Handle("POST /api/datasets/{id}/restore", Wrap(dh.RestoreDataset))
	mux.Handle("DELETE /api/datasets/{id}/purge", Wrap(dh.PurgeDataset))
	mux.Handle("GET /api/datasets/{id}/columns/visibility", Wrap(dh.GetColumnVisibility))
	mux.Handle("PUT /api/datasets/{id}/columns/visibility", Wrap(dh.SetColumnVisibility))
	mux.Handle("PUT /api/datasets/{id}/holdings", Wrap(dh.SetHoldingsFlag))

	ih := handlers.NewImportHandler(imports)
	mux.Handle("POST /api/import", Wrap(ih.Import))

	return mux
}
