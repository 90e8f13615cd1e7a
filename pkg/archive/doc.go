// Package archive keeps verified raw webhook payloads in S3 or any
// S3-compatible object store.
//
// Objects are keyed by provider, receive date and event id:
//
//	webhooks/stripe/2026/05/01/evt_123.json
//
// so a replayed event overwrites its own copy instead of creating a new one.
// The archive is write-only from the application's point of view; it exists
// for dispute resolution and manual replay.
package archive
