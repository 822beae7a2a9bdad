// Package content holds the localized site copy and resolves dotted keys
// against it.
//
// Each locale is authored as a nested key/value structure ([Def]) and built
// into an immutable [Tree] of nodes. A node is one of three shapes:
//   - [Scalar]: plain display text
//   - [Fragment]: a title/description pair for card-style components
//   - [*Tree]: a nested namespace
//
// The core components are:
//   - [Build]: validates a definition and rejects any path that is defined
//     both as a leaf and as a namespace, or defined twice
//   - [Store]: one tree per locale plus a default locale used as fallback
//   - [Resolve] / [Lookup]: all-or-nothing walks of a [Path]
//   - [Accessor]: Text, Fragment and Subtree, each demanding a shape and
//     falling back to the default locale only when a path is missing
//   - [Loader]: decodes YAML, JSON or TOML locale files from an fs.FS
//   - [Manager]: publishes the built store to request handlers
//
// Everything after construction is read-only, so a Store and its Accessor
// are safe for concurrent use without locking.
package content
