// Package harvest collects output that fragments push while they render:
// serialized state for the client, stylesheets and hydration URLs. Collectors
// are write-many and read once, after rendering has converged.
package harvest
