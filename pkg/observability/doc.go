/*
Package observability provides tools for monitoring mode transitions.

Metrics exposes Prometheus counters for committed and rejected transitions
and a gauge of compiled modes; AuditHooks writes the same events to a
structured logger. Both are plain domain.LifecycleHooks and can be merged
with domain.MergeHooks.
*/
package observability
