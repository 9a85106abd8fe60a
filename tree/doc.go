// Package tree models the file tree of a template project so that it can be reconstructed in an execution
// context that has no access to the host filesystem. A snapshot of the template directory is serialized
// into a JSON manifest, published as a static asset, and later consumed by the hydrator which fetches the
// contents of every listed file.
//
// The main features of this package include:
//
//   - Defining the Node structure, which models files and directories in a nested, hierarchical format.
//   - Taking a filtered snapshot of a directory on disk (hidden entries, dependency caches and build output
//     are never part of a snapshot).
//   - Encoding a snapshot into the manifest format, decoding it back, and publishing it to disk atomically.
//   - Comparing two snapshots to report added, removed and modified entries.
package tree
