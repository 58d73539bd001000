// Package registry turns flat component definitions into immutable
// registries. The builder reflects each candidate binary, folds in its
// configuration and dependency components through composition, validates
// the surviving imports against the accumulated runtime features, and
// publishes the result. Definitions whose dependencies are not ready yet
// are retried by requeueing; visibility scopes decide which requesters
// may use a definition as a dependency.
package registry
