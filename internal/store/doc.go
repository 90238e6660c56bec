// Package store keeps the last published bar snapshot and fans it out to
// subscribers.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Snapshot]: JSON representation of one publish
//
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the scheduler).
package store
