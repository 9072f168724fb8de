// Package core runs the media analysis pipeline.
//
// It sits between the transports (web handlers and the CLI) and the
// collaborators that do the real work: the model provider, the blob store,
// the frame sampler and the portal sink. Nothing in this package knows
// about HTTP.
//
// # Analysis flow
//
//  1. [Service.Analyze] validates the upload and takes an analysis slot.
//  2. Images are prepared (optionally auto-cropped, then downscaled) and
//     stored; videos are stored and sampled into frames.
//  3. Each image or frame goes to the provider. Frames run in parallel;
//     the provider's own Gate bounds how many requests are in flight.
//  4. Frame results are merged in frame order and the answer is kept in a
//     new session.
//
// [Service.BuildTable] then normalizes the session payload into an
// editable table that can be edited cell by cell, exported as CSV or XLSX,
// or synced to the portal.
//
// # Sessions
//
// Sessions live in memory for [DefaultSessionTTL] after their last use.
// [Service.StartSessionJanitor] sweeps expired ones.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a code for support reference:
//
//   - FILE001-FILE004: upload size and content
//   - MED001-MED002: media type and frame sampling
//   - PRV001-PRV005: model provider
//   - SES001, TBL001-TBL002: sessions and tables
//   - BLOB001, EXP001, SYNC001: storage, export and portal
//   - ANL001, UPL001-UPL002, RATE001: capacity and cancellation
package core
