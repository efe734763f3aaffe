// Package core implements the stock transfer import pipeline.
//
// A file goes through four steps:
//
//  1. [ReadTable] decodes the bytes (latin-1 by default) and splits them on ';'.
//  2. [DetectFormat] matches the header against the known layouts, trying
//     FORMATO1 before FORMATO2.
//  3. [Validator] groups rows by destination, resolves each destination via
//     [LocationResolver], and checks every row's quantity and product against
//     the ERP catalog.
//  4. [TransferBuilder] creates one picking per destination and one move per
//     valid row. Moves are best-effort: a failed line is recorded and the
//     next one is attempted. Nothing is rolled back.
//
// A file is transferred only when it validated without any error. [Service]
// ties the steps together for a batch of files, serializes runs through a
// [ProcessLimiter] and keeps each [Run] in a [HistoryStore].
//
// # Error Handling
//
// Validation problems are data, not Go errors: they are collected in
// [ValidationResult.Errors] and per-item in [ItemValidation.Errors].
// Failures that make the outcome unknowable, such as an unreachable ERP,
// become a [SystemError] and stop the file. [MapError] turns technical
// errors into coded messages for the UI.
package core
