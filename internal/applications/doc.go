// Package applications holds incubator application records and the store that
// keeps them in memory while mirroring every change to a backing store.
package applications
