// Package asyncssr drives server-side rendering to completion when fragments
// start asynchronous work while they render.
//
// A Manager calls a render function repeatedly. During each attempt, fragments
// register Pending tokens for work they started. If an attempt registers no
// tokens, its markup is the result. Otherwise the manager waits for every token
// to settle, discards the markup and renders again, so the next attempt can
// use the settled results.
package asyncssr
