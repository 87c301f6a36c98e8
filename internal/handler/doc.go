// Package handler provides HTTP request handlers for the CafeMarche API.
//
// Rows of every table go through TableHandler; the table name is a path
// parameter and the xtable registry decides what each caller may see or edit.
// File content and custom link redirects have their own handlers.
//
// # Handler Pattern
//
//   - Constructor function (NewXxxHandler) accepts the service interface it needs
//   - RegisterRoutes attaches method-qualified patterns to a ServeMux
//   - The acting principal comes from middleware.GetPrincipal
//   - Service errors are mapped to RFC 9457 Problem Details by MapServiceError
//
// # Response Format
//
//   - WriteData: single resource with optional HATEOAS links
//   - WriteCollection: a page of rows with pagination info
//   - WriteError: problem+json error response
//
// # Example Usage
//
//	mux := http.NewServeMux()
//	handler.NewTableHandler(tableService).RegisterRoutes(mux)
//	handler.NewFileHandler(fileService).RegisterRoutes(mux)
//	handler.NewLinkHandler(linkService).RegisterRoutes(mux)
package handler
