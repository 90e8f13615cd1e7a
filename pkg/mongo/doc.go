// Package mongo connects to MongoDB with the v2 driver and exposes the error
// classification the document stores rely on.
package mongo
