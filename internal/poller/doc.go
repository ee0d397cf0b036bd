// Package poller watches deployed notebooks' jobs.
//
// The Job Poller:
//   - Lists each watched notebook's jobs through the backend API on an interval
//   - Remembers the last seen state of every job
//   - Reports new jobs and state changes (running -> completed / failed)
//   - Polls notebooks concurrently with a bounded number of requests in flight
package poller
