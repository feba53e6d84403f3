// Package core holds the catalog import logic, independent of HTTP and of
// the database driver.
//
// # Import pipeline
//
// [Service.ImportCatalog] runs one uploaded workbook through:
//
//  1. [CheckUpload]: size and format checks before any parsing.
//  2. spreadsheet.Decode: header detection and raw rows.
//  3. [ValidateRows]: per-row rules, then last-wins dedup on clave.
//  4. [Reconciler.Run]: creates in chunks, then updates with bounded
//     concurrency, then exactly one [ImportRun].
//
// Row-level failures are collected and never stop a batch. Whole-batch
// failures surface as [*FatalError] after a FALLIDO run has been recorded.
//
// # Curated fields
//
// Imports only ever overwrite nombre, precio and categoria. activo and
// imagen belong to the admins and change only through [Service.UpdateProduct]
// and [Service.ToggleProduct].
//
// # Error codes
//
// [MapError] turns errors into Spanish [UserMessage] values with a support
// code and a public [Category]; see error_messages.go for the code table.
package core
